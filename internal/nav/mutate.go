package nav

import (
	"go.uber.org/zap"

	"github.com/l1jgo/navcore/internal/core/event"
	"github.com/l1jgo/navcore/internal/geom"
	"github.com/l1jgo/navcore/internal/grid"
	"github.com/l1jgo/navcore/internal/world"
)

// OnWorldMutated is the single entry point for layout changes. It updates
// the world state, marks the touched grid sections dirty and requests the
// matching rebuild: full when connectivity may change, partial otherwise.
// Nothing is rebuilt before the next FlushRebuilds. It reports whether the
// mutation changed anything.
func (s *Service) OnWorldMutated(m event.Mutation) bool {
	switch m.Kind {
	case event.PlaceBuilding:
		return s.place(world.KindBuilding, m)
	case event.PlaceResource:
		return s.place(world.KindResource, m)
	case event.RemoveBuilding:
		return s.remove(world.KindBuilding, m)
	case event.RemoveResource:
		return s.remove(world.KindResource, m)
	case event.PaintRoad:
		return s.paintRoad(m)
	case event.MineTile:
		return s.mine(m.Col, m.Row)
	}
	s.log.Warn("unknown world mutation", zap.Stringer("kind", m.Kind))
	return false
}

func (s *Service) place(kind world.StructureKind, m event.Mutation) bool {
	tr := s.grid.TileRectOf(m.Rect)
	if tr.Empty() {
		return false
	}
	name := m.Name
	if name == "" {
		name = kind.String()
	}
	if s.state.AddStructure(kind, name, tr, m.Blocking, m.Door).IsZero() {
		return false
	}
	r := s.grid.WorldRect(tr)
	if m.Blocking && !m.Door {
		s.grid.MarkRectSolid(r)
		s.rebuilds.RequestFull()
		return true
	}
	s.grid.MarkRectCost(r, grid.DefaultCost)
	s.requestPartial(r)
	return true
}

func (s *Service) remove(kind world.StructureKind, m event.Mutation) bool {
	var rects []geom.TileRect
	if !m.Object.IsZero() {
		st, ok := s.state.Structure(m.Object)
		if !ok || st.Kind != kind {
			return false
		}
		s.state.RemoveStructure(m.Object)
		rects = append(rects, st.Rect)
	} else {
		tr := s.grid.TileRectOf(m.Rect)
		if tr.Empty() {
			return false
		}
		for _, st := range s.state.RemoveIn(kind, tr) {
			rects = append(rects, st.Rect)
		}
	}
	if len(rects) == 0 {
		return false
	}
	for _, tr := range rects {
		s.grid.MarkRectSolid(s.grid.WorldRect(tr))
	}
	s.rebuilds.RequestFull()
	return true
}

func (s *Service) paintRoad(m event.Mutation) bool {
	tr := s.grid.TileRectOf(m.Rect)
	if tr.Empty() || s.state.PaintRoad(tr, m.Road) == 0 {
		return false
	}
	r := s.grid.WorldRect(tr)
	cost := grid.DefaultCost
	if m.Road != grid.RoadNone {
		cost = m.Road.Cost()
	}
	s.grid.MarkRectCost(r, cost)
	s.requestPartial(r)
	return true
}

func (s *Service) mine(col, row int) bool {
	if !s.state.Mine(col, row) {
		return false
	}
	s.grid.MarkRectSolid(s.grid.WorldRect(geom.TileRect{Col: col, Row: row, W: 1, H: 1}))
	s.rebuilds.RequestFull()
	return true
}

func (s *Service) requestPartial(r geom.Rect) {
	s.rebuilds.RequestPartial(r.Center(), r.HalfDiagonal()+s.cfg.PartialRadius)
}
