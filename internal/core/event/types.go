package event

import (
	"fmt"

	"github.com/l1jgo/navcore/internal/core/ecs"
	"github.com/l1jgo/navcore/internal/geom"
	"github.com/l1jgo/navcore/internal/grid"
	"github.com/l1jgo/navcore/internal/ticksched"
)

// MutationKind names a change to the world's walkable layout.
type MutationKind uint8

const (
	PlaceBuilding MutationKind = iota + 1
	RemoveBuilding
	PaintRoad
	MineTile
	PlaceResource
	RemoveResource
)

var mutationNames = [...]string{
	PlaceBuilding:  "place_building",
	RemoveBuilding: "remove_building",
	PaintRoad:      "paint_road",
	MineTile:       "mine_tile",
	PlaceResource:  "place_resource",
	RemoveResource: "remove_resource",
}

func (k MutationKind) String() string {
	if k > 0 && int(k) < len(mutationNames) {
		return mutationNames[k]
	}
	return fmt.Sprintf("mutation(%d)", uint8(k))
}

// Mutation is the single inbound description of a world change.
//
//	PlaceBuilding   Rect, Blocking, Door
//	RemoveBuilding  Object, or every building overlapping Rect when Object is zero
//	PaintRoad       Rect, Road
//	MineTile        Col, Row
//	PlaceResource   Rect, Blocking (trees, rocks)
//	RemoveResource  Object, or every resource overlapping Rect
type Mutation struct {
	Kind     MutationKind
	Name     string // structure name for placements
	Rect     geom.Rect
	Blocking bool
	Door     bool
	Road     grid.RoadClass
	Col, Row int
	Object   ecs.EntityID
}

// AgentSpawned announces a new navigating agent.
type AgentSpawned struct {
	ID  ecs.EntityID
	Obs ticksched.Observation
}

// AgentDestroyed announces an agent's removal.
type AgentDestroyed struct {
	ID ecs.EntityID
}

// PathResolved is emitted when a queued path request finishes.
type PathResolved struct {
	Agent     ecs.EntityID
	Found     bool
	Waypoints int
}
