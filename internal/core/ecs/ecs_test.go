package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityPoolGenerations(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	b := p.Create()
	assert.NotEqual(t, a, b)
	require.True(t, p.Alive(a))

	p.Destroy(a)
	assert.False(t, p.Alive(a))
	p.Destroy(a) // stale, ignored

	c := p.Create()
	assert.Equal(t, a.Index(), c.Index(), "index reused")
	assert.Equal(t, a.Generation()+1, c.Generation())
	assert.True(t, p.Alive(c))
}

type agentRec struct{ name string }

func TestWorldDeferredDestroy(t *testing.T) {
	w := NewWorld()
	store := NewPtrComponentStore[agentRec]()
	w.Registry().Register(store)

	id := w.CreateEntity()
	store.Set(id, &agentRec{name: "hauler"})
	w.MarkForDestruction(id)
	assert.True(t, w.Alive(id), "destroy is deferred")
	assert.True(t, store.Has(id))

	w.FlushDestroyQueue()
	assert.False(t, w.Alive(id))
	assert.False(t, store.Has(id))
	assert.Zero(t, w.PendingDestroy())
}

type removeLog struct{ ids []EntityID }

func (l *removeLog) Remove(id EntityID) { l.ids = append(l.ids, id) }

func TestRegistryPurgesEveryOwnerOnce(t *testing.T) {
	w := NewWorld()
	paths, timers := &removeLog{}, &removeLog{}
	w.Registry().Register(paths)
	w.Registry().Register(timers)
	w.Registry().Register(paths)
	assert.Equal(t, 2, w.Registry().Len())

	id := w.CreateEntity()
	w.MarkForDestruction(id)
	w.MarkForDestruction(id)
	w.FlushDestroyQueue()
	assert.Equal(t, []EntityID{id}, paths.ids)
	assert.Equal(t, []EntityID{id}, timers.ids)
	assert.Equal(t, 1, w.Registry().Purged())
}

func TestStoreEach(t *testing.T) {
	s := NewPtrComponentStore[agentRec]()
	s.Set(NewEntityID(1, 0), &agentRec{"a"})
	s.Set(NewEntityID(2, 0), &agentRec{"b"})
	seen := map[string]bool{}
	s.Each(func(_ EntityID, r *agentRec) { seen[r.name] = true })
	assert.Len(t, seen, 2)
	assert.Equal(t, []EntityID{NewEntityID(1, 0), NewEntityID(2, 0)}, s.SortedIDs())
}

func TestZeroIDNeverAllocated(t *testing.T) {
	p := NewEntityPool()
	id := p.Create()
	assert.False(t, id.IsZero())
	assert.False(t, p.Alive(0))
	assert.Equal(t, 1, p.Live())
	p.Destroy(id)
	assert.Zero(t, p.Live())
}
