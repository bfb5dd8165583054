package world

import (
	"github.com/l1jgo/navcore/internal/core/ecs"
	"github.com/l1jgo/navcore/internal/geom"
	"github.com/l1jgo/navcore/internal/grid"
	"github.com/l1jgo/navcore/internal/region"
	"github.com/l1jgo/navcore/internal/ticksched"
)

// StructureKind separates constructed buildings from natural resources.
type StructureKind uint8

const (
	KindBuilding StructureKind = iota + 1
	KindResource
)

func (k StructureKind) String() string {
	switch k {
	case KindBuilding:
		return "building"
	case KindResource:
		return "resource"
	}
	return "unknown"
}

// Structure is anything with a tile footprint: walls, doors, workshops,
// trees, rocks.
type Structure struct {
	ID       ecs.EntityID
	Kind     StructureKind
	Name     string
	Rect     geom.TileRect
	Blocking bool
	Door     bool
}

// Agent holds in-memory data for a navigating agent.
// Accessed only from the simulation goroutine. No locks needed.
type Agent struct {
	ID       ecs.EntityID
	Name     string
	Pos      geom.Point
	Speed    float64 // world units per second
	Sleeping bool
	InCombat bool
	Health   float64 // fraction of max health
	Task     string

	Goal       geom.Point
	HasGoal    bool
	Path       []geom.Point
	Waypoint   int
	Pending    bool // a path request is queued
	Importance ticksched.Importance
	Unreached  int // goals given up on
	Arrived    int
}

// Observation is the scheduler's view of the agent.
func (a *Agent) Observation() ticksched.Observation {
	return ticksched.Observation{
		Pos:      a.Pos,
		Sleeping: a.Sleeping,
		InCombat: a.InCombat,
		Health:   a.Health,
		Task:     a.Task,
	}
}

// State is the source of truth for everything that shapes the walkable
// layout: terrain, roads and structures. The navigation grid is derived
// from it section by section through StampSection.
// Single-goroutine access only (simulation loop).
type State struct {
	cols, rows int
	tileSize   float64

	ids        *ecs.EntityPool
	structures map[ecs.EntityID]*Structure
	index      *CellIndex

	rock    []bool
	terrain []float64 // 0 = default cost
	roads   map[int]grid.RoadClass

	agents *ecs.PtrComponentStore[Agent]
}

func NewState(cols, rows int, tileSize float64) *State {
	n := cols * rows
	return &State{
		cols:       cols,
		rows:       rows,
		tileSize:   tileSize,
		ids:        ecs.NewEntityPool(),
		structures: make(map[ecs.EntityID]*Structure, 256),
		index:      NewCellIndex(),
		rock:       make([]bool, n),
		terrain:    make([]float64, n),
		roads:      make(map[int]grid.RoadClass),
		agents:     ecs.NewPtrComponentStore[Agent](),
	}
}

func (s *State) Cols() int             { return s.cols }
func (s *State) Rows() int             { return s.rows }
func (s *State) TileSize() float64     { return s.tileSize }
func (s *State) Bounds() geom.TileRect { return geom.TileRect{W: s.cols, H: s.rows} }

func (s *State) idx(col, row int) int { return row*s.cols + col }

// Clear empties the world for a new game. Agent records are left to the
// ECS cleanup path.
func (s *State) Clear() {
	s.ids = ecs.NewEntityPool()
	s.structures = make(map[ecs.EntityID]*Structure, 256)
	s.index.Clear()
	clear(s.rock)
	clear(s.terrain)
	clear(s.roads)
}

// --- Structures ---

// AddStructure places a structure clipped to the world. It returns 0 when
// the footprint lies entirely outside.
func (s *State) AddStructure(kind StructureKind, name string, tr geom.TileRect, blocking, door bool) ecs.EntityID {
	tr = tr.Intersect(s.Bounds())
	if tr.Empty() {
		return 0
	}
	id := s.ids.Create()
	s.structures[id] = &Structure{ID: id, Kind: kind, Name: name, Rect: tr, Blocking: blocking && !door, Door: door}
	s.index.Add(id, tr)
	return id
}

// RemoveStructure deletes a structure by id.
func (s *State) RemoveStructure(id ecs.EntityID) (*Structure, bool) {
	st, ok := s.structures[id]
	if !ok {
		return nil, false
	}
	delete(s.structures, id)
	s.index.Remove(id, st.Rect)
	s.ids.Destroy(id)
	return st, true
}

// RemoveIn deletes every structure of kind overlapping tr and returns them.
func (s *State) RemoveIn(kind StructureKind, tr geom.TileRect) []*Structure {
	var out []*Structure
	for _, st := range s.StructuresIn(tr) {
		if st.Kind != kind {
			continue
		}
		s.RemoveStructure(st.ID)
		out = append(out, st)
	}
	return out
}

// Structure returns a structure by id.
func (s *State) Structure(id ecs.EntityID) (*Structure, bool) {
	st, ok := s.structures[id]
	return st, ok
}

// StructuresIn returns the structures overlapping tr in id order.
func (s *State) StructuresIn(tr geom.TileRect) []*Structure {
	var out []*Structure
	for _, id := range s.index.Candidates(tr) {
		if st := s.structures[id]; st != nil && st.Rect.Overlaps(tr) {
			out = append(out, st)
		}
	}
	return out
}

// ObjectsIn implements region.ObjectIndex.
func (s *State) ObjectsIn(tr geom.TileRect) []region.ObjectRef {
	sts := s.StructuresIn(tr)
	out := make([]region.ObjectRef, len(sts))
	for i, st := range sts {
		out[i] = region.ObjectRef{ID: uint64(st.ID), Rect: st.Rect}
	}
	return out
}

// StructureCount returns the number of buildings and resources.
func (s *State) StructureCount() (buildings, resources int) {
	for _, st := range s.structures {
		if st.Kind == KindBuilding {
			buildings++
		} else {
			resources++
		}
	}
	return buildings, resources
}

// --- Terrain ---

// SetRock marks natural solid rock.
func (s *State) SetRock(col, row int, rock bool) {
	if col < 0 || row < 0 || col >= s.cols || row >= s.rows {
		return
	}
	s.rock[s.idx(col, row)] = rock
}

func (s *State) Rock(col, row int) bool {
	if col < 0 || row < 0 || col >= s.cols || row >= s.rows {
		return false
	}
	return s.rock[s.idx(col, row)]
}

// Mine digs out the rock at (col,row) and reports whether anything changed.
func (s *State) Mine(col, row int) bool {
	if !s.Rock(col, row) {
		return false
	}
	s.rock[s.idx(col, row)] = false
	return true
}

// SetTerrainCost sets the base movement cost of tiles (mud, shallow water).
// Zero restores the default.
func (s *State) SetTerrainCost(tr geom.TileRect, cost float64) {
	tr = tr.Intersect(s.Bounds())
	for row := tr.Row; row < tr.MaxRow(); row++ {
		for col := tr.Col; col < tr.MaxCol(); col++ {
			s.terrain[s.idx(col, row)] = cost
		}
	}
}

// PaintRoad sets the road class of tiles; RoadNone erases.
func (s *State) PaintRoad(tr geom.TileRect, class grid.RoadClass) int {
	tr = tr.Intersect(s.Bounds())
	n := 0
	for row := tr.Row; row < tr.MaxRow(); row++ {
		for col := tr.Col; col < tr.MaxCol(); col++ {
			i := s.idx(col, row)
			if class == grid.RoadNone {
				delete(s.roads, i)
			} else {
				s.roads[i] = class
			}
			n++
		}
	}
	return n
}

func (s *State) RoadAt(col, row int) grid.RoadClass { return s.roads[s.idx(col, row)] }

func (s *State) RoadTiles() int { return len(s.roads) }

// StampSection implements grid.Source. Layers are applied in a fixed order
// (terrain cost, roads, doors, solids) so the result does not depend on the
// order mutations arrived in.
func (s *State) StampSection(st grid.Stamper) {
	clip := st.Clip()
	for row := clip.Row; row < clip.MaxRow(); row++ {
		for col := clip.Col; col < clip.MaxCol(); col++ {
			i := s.idx(col, row)
			tile := geom.TileRect{Col: col, Row: row, W: 1, H: 1}
			if c := s.terrain[i]; c > 0 {
				st.FillCost(tile, c)
			}
			if rc, ok := s.roads[i]; ok {
				st.FillRoad(tile, rc)
			}
			if s.rock[i] {
				st.FillSolid(tile)
			}
		}
	}
	sts := s.StructuresIn(clip)
	for _, o := range sts {
		if o.Door {
			st.FillDoor(o.Rect)
		}
	}
	for _, o := range sts {
		if o.Blocking {
			st.FillSolid(o.Rect)
		}
	}
}

// --- Agents ---

// Agents is the agent component store. Register it with the ECS registry so
// destroyed agents are purged.
func (s *State) Agents() *ecs.PtrComponentStore[Agent] { return s.agents }

func (s *State) AddAgent(a *Agent) { s.agents.Set(a.ID, a) }

func (s *State) Agent(id ecs.EntityID) (*Agent, bool) { return s.agents.Get(id) }

func (s *State) AgentCount() int { return s.agents.Len() }
