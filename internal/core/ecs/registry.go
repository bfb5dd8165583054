package ecs

// Registry lists every owner of per-entity state: the agent record store,
// the tick scheduler and the path request queue. Destroying an agent purges
// it from all of them in one call, so no queued path callback or update
// timer outlives the agent.
type Registry struct {
	owners []Removable
	purged int
}

func NewRegistry() *Registry {
	return &Registry{owners: make([]Removable, 0, 4)}
}

// Register adds an owner. Registering the same owner twice is a no-op.
func (r *Registry) Register(owner Removable) {
	for _, o := range r.owners {
		if o == owner {
			return
		}
	}
	r.owners = append(r.owners, owner)
}

// RemoveAll purges id from every owner, in registration order.
func (r *Registry) RemoveAll(id EntityID) {
	for _, o := range r.owners {
		o.Remove(id)
	}
	r.purged++
}

// Len is the number of registered owners.
func (r *Registry) Len() int { return len(r.owners) }

// Purged counts ids purged since creation.
func (r *Registry) Purged() int { return r.purged }
