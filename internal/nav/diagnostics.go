package nav

import (
	"github.com/l1jgo/navcore/internal/pathcache"
	"github.com/l1jgo/navcore/internal/rebuild"
	"github.com/l1jgo/navcore/internal/region"
	"github.com/l1jgo/navcore/internal/ticksched"
)

type GridStats struct {
	Cols            int
	Rows            int
	Sections        int
	DirtySections   int
	SectionRebuilds int
	MinCost         float64
}

type PathStats struct {
	Searches  int
	Expanded  int
	Found     int
	Failed    int
	Rejected  int
	Processed int
}

type WorldStats struct {
	Buildings int
	Resources int
	RoadTiles int
	Agents    int
}

// Diagnostics is a point-in-time snapshot of every navigation component.
type Diagnostics struct {
	Grid           GridStats
	Regions        region.Stats
	GlobalVersion  uint64
	Paths          PathStats
	Cache          pathcache.Stats
	Rebuild        rebuild.Stats
	PendingRebuild int
	Ticks          ticksched.Stats
	World          WorldStats
}

func (s *Service) Diagnostics() Diagnostics {
	searches, expanded := s.finder.Searches()
	buildings, resources := s.state.StructureCount()
	return Diagnostics{
		Grid: GridStats{
			Cols:            s.grid.Cols(),
			Rows:            s.grid.Rows(),
			Sections:        s.grid.SectionCount(),
			DirtySections:   s.grid.DirtyCount(),
			SectionRebuilds: s.grid.SectionRebuilds(),
			MinCost:         s.grid.MinCost(),
		},
		Regions:       s.regions.Stats(),
		GlobalVersion: s.versions.Global(),
		Paths: PathStats{
			Searches:  searches,
			Expanded:  expanded,
			Found:     s.stats.Found,
			Failed:    s.stats.Failed,
			Rejected:  s.stats.Rejected,
			Processed: s.stats.Processed,
		},
		Cache:          s.cache.Stats(),
		Rebuild:        s.rebuilds.Stats(),
		PendingRebuild: len(s.rebuilds.Pending()),
		Ticks:          s.ticks.Stats(),
		World: WorldStats{
			Buildings: buildings,
			Resources: resources,
			RoadTiles: s.state.RoadTiles(),
			Agents:    s.agents.Len(),
		},
	}
}
