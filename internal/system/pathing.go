package system

import (
	"time"

	coresys "github.com/l1jgo/navcore/internal/core/system"
	"github.com/l1jgo/navcore/internal/nav"
)

// PathRequestSystem serves queued path requests within the per-tick time
// budget. Unused budget carries over. Phase 3 (Pathing).
type PathRequestSystem struct {
	nav    *nav.Service
	budget *coresys.Budget

	// OnServed, if set, receives the number of requests served each tick.
	OnServed func(n int)

	last int
}

func NewPathRequestSystem(svc *nav.Service, budget *coresys.Budget) *PathRequestSystem {
	return &PathRequestSystem{nav: svc, budget: budget}
}

func (s *PathRequestSystem) Phase() coresys.Phase { return coresys.PhasePathing }

func (s *PathRequestSystem) Update(_ time.Duration) {
	s.budget.Begin()
	s.last = s.nav.ProcessPathRequests(s.budget)
	if s.OnServed != nil {
		s.OnServed(s.last)
	}
}

// LastServed returns the number of requests served in the latest tick.
func (s *PathRequestSystem) LastServed() int { return s.last }

func (s *PathRequestSystem) Budget() *coresys.Budget { return s.budget }
