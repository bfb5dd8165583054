package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/navcore/internal/core/ecs"
	coresys "github.com/l1jgo/navcore/internal/core/system"
	"github.com/l1jgo/navcore/internal/nav"
)

// TickPruneSystem drops tick state of agents that stopped being observed.
// Runs every interval. Phase 5 (PostUpdate).
type TickPruneSystem struct {
	nav      *nav.Service
	log      *zap.Logger
	interval time.Duration
	elapsed  time.Duration
}

func NewTickPruneSystem(svc *nav.Service, interval time.Duration, log *zap.Logger) *TickPruneSystem {
	return &TickPruneSystem{nav: svc, interval: interval, log: log}
}

func (s *TickPruneSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *TickPruneSystem) Update(dt time.Duration) {
	s.elapsed += dt
	if s.elapsed < s.interval {
		return
	}
	s.elapsed = 0
	if n := s.nav.PruneTicks(); n > 0 {
		s.log.Debug("pruned agent tick state", zap.Int("count", n))
	}
}

// CleanupSystem destroys the entities queued during the tick. Registered
// stores drop the agent's path request, tick state and record.
// Phase 6 (Cleanup).
type CleanupSystem struct {
	world     *ecs.World
	destroyed int
}

func NewCleanupSystem(world *ecs.World) *CleanupSystem {
	return &CleanupSystem{world: world}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.destroyed += s.world.PendingDestroy()
	s.world.FlushDestroyQueue()
}

// Destroyed counts queued destructions processed so far, stale ids included.
func (s *CleanupSystem) Destroyed() int { return s.destroyed }
