package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/l1jgo/navcore/internal/core/system"
	"github.com/l1jgo/navcore/internal/nav"
	"github.com/l1jgo/navcore/internal/rebuild"
)

// RebuildSystem runs the deferred grid and region rebuild once per tick,
// after path requests were served against the previous layout.
// Phase 4 (Rebuild).
type RebuildSystem struct {
	nav *nav.Service
	log *zap.Logger

	// OnFlush, if set, receives every pass that ran.
	OnFlush func(rebuild.Result)

	last rebuild.Result
}

func NewRebuildSystem(svc *nav.Service, log *zap.Logger) *RebuildSystem {
	return &RebuildSystem{nav: svc, log: log}
}

func (s *RebuildSystem) Phase() coresys.Phase { return coresys.PhaseRebuild }

func (s *RebuildSystem) Update(_ time.Duration) {
	res := s.nav.FlushRebuilds()
	if !res.Ran {
		return
	}
	s.last = res
	if res.Full {
		s.log.Info("full rebuild",
			zap.Int("changed", len(res.Changed)),
			zap.Int("invalidated", res.Invalidated),
			zap.Duration("took", res.Duration))
	}
	if s.OnFlush != nil {
		s.OnFlush(res)
	}
}

// Last returns the most recent pass that ran.
func (s *RebuildSystem) Last() rebuild.Result { return s.last }
