package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/navcore/internal/core/ecs"
	"github.com/l1jgo/navcore/internal/geom"
	"github.com/l1jgo/navcore/internal/grid"
)

func rect(c, r, w, h int) geom.TileRect { return geom.TileRect{Col: c, Row: r, W: w, H: h} }

func TestCellIndexCandidates(t *testing.T) {
	ix := NewCellIndex()
	a, b := ecs.NewEntityID(1, 0), ecs.NewEntityID(2, 0)
	ix.Add(a, rect(10, 10, 20, 2)) // spans cells 0 and 1
	ix.Add(b, rect(40, 40, 1, 1))
	assert.Equal(t, []ecs.EntityID{a}, ix.Candidates(rect(0, 0, 16, 16)))
	assert.Equal(t, []ecs.EntityID{a}, ix.Candidates(rect(0, 0, 32, 16)), "no duplicates")
	assert.Equal(t, []ecs.EntityID{b}, ix.Candidates(rect(33, 33, 2, 2)))

	ix.Remove(a, rect(10, 10, 20, 2))
	assert.Empty(t, ix.Candidates(rect(0, 0, 32, 16)))
	assert.Equal(t, 1, ix.Cells())
}

func TestToCellCoordNegative(t *testing.T) {
	assert.Equal(t, int32(-1), toCellCoord(-1))
	assert.Equal(t, int32(-1), toCellCoord(-16))
	assert.Equal(t, int32(-2), toCellCoord(-17))
	assert.Equal(t, int32(0), toCellCoord(15))
}

func TestStructures(t *testing.T) {
	s := NewState(32, 32, 1)
	wall := s.AddStructure(KindBuilding, "wall", rect(2, 2, 4, 1), true, false)
	tree := s.AddStructure(KindResource, "tree", rect(10, 10, 1, 1), true, false)
	require.False(t, wall.IsZero())
	assert.Zero(t, s.AddStructure(KindBuilding, "offmap", rect(-5, -5, 2, 2), true, false))

	got := s.StructuresIn(rect(0, 0, 8, 8))
	require.Len(t, got, 1)
	assert.Equal(t, "wall", got[0].Name)

	removed := s.RemoveIn(KindBuilding, rect(0, 0, 32, 32))
	assert.Len(t, removed, 1)
	_, ok := s.Structure(tree)
	assert.True(t, ok, "resources survive a building sweep")
	b, r := s.StructureCount()
	assert.Equal(t, 0, b)
	assert.Equal(t, 1, r)

	refs := s.ObjectsIn(rect(9, 9, 3, 3))
	require.Len(t, refs, 1)
	assert.Equal(t, uint64(tree), refs[0].ID)
}

func TestDoorIsNeverBlocking(t *testing.T) {
	s := NewState(8, 8, 1)
	id := s.AddStructure(KindBuilding, "door", rect(1, 1, 1, 1), true, true)
	st, _ := s.Structure(id)
	assert.False(t, st.Blocking)
	assert.True(t, st.Door)
}

func TestStampSectionLayers(t *testing.T) {
	s := NewState(8, 4, 1)
	s.SetTerrainCost(rect(0, 0, 8, 1), 3)
	s.PaintRoad(rect(0, 0, 4, 1), grid.RoadDirt)
	s.SetRock(6, 0, true)
	s.AddStructure(KindBuilding, "door", rect(5, 1, 1, 1), false, true)
	s.AddStructure(KindBuilding, "wall", rect(0, 2, 8, 1), true, false)
	s.AddStructure(KindResource, "tree", rect(7, 3, 1, 1), true, false)

	g := grid.New(8, 4, 1, 4)
	g.RebuildAll(s)

	assert.InDelta(t, grid.RoadDirt.Cost(), g.Cost(g.Index(1, 0)), 1e-9)
	assert.InDelta(t, 3, g.Cost(g.Index(5, 0)), 1e-9)
	assert.True(t, g.Solid(g.Index(6, 0)))
	assert.True(t, g.Door(g.Index(5, 1)))
	assert.False(t, g.Solid(g.Index(5, 1)))
	for c := 0; c < 8; c++ {
		assert.True(t, g.Solid(g.Index(c, 2)), "wall col %d", c)
	}
	assert.True(t, g.Solid(g.Index(7, 3)))

	assert.True(t, s.Mine(6, 0))
	assert.False(t, s.Mine(6, 0))
	s.PaintRoad(rect(0, 0, 1, 1), grid.RoadNone)
	g.RebuildAll(s)
	assert.False(t, g.Solid(g.Index(6, 0)))
	assert.Equal(t, grid.RoadNone, g.Road(0))
	assert.Equal(t, 3, s.RoadTiles())
}

func TestAgentsStore(t *testing.T) {
	s := NewState(4, 4, 1)
	id := ecs.NewEntityID(1, 0)
	s.AddAgent(&Agent{ID: id, Pos: geom.Pt(1, 1), Health: 0.2, Task: "haul"})
	a, ok := s.Agent(id)
	require.True(t, ok)
	obs := a.Observation()
	assert.Equal(t, "haul", obs.Task)
	assert.InDelta(t, 0.2, obs.Health, 1e-9)

	reg := ecs.NewRegistry()
	reg.Register(s.Agents())
	reg.RemoveAll(id)
	assert.Zero(t, s.AgentCount())
}

func TestClear(t *testing.T) {
	s := NewState(4, 4, 1)
	s.AddStructure(KindBuilding, "wall", rect(0, 0, 1, 1), true, false)
	s.PaintRoad(rect(0, 1, 4, 1), grid.RoadPaved)
	s.SetRock(3, 3, true)
	s.Clear()
	assert.Empty(t, s.StructuresIn(s.Bounds()))
	assert.Zero(t, s.RoadTiles())
	assert.False(t, s.Rock(3, 3))
}
