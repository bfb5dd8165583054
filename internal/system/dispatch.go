package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/navcore/internal/core/event"
	coresys "github.com/l1jgo/navcore/internal/core/system"
	"github.com/l1jgo/navcore/internal/nav"
)

// EventDispatchSystem delivers last tick's events. World mutations and agent
// lifecycle events go to the navigation service, which only marks and
// schedules; rebuilds run later in PhaseRebuild. Phase 1 (PreUpdate).
type EventDispatchSystem struct {
	bus *event.Bus
	log *zap.Logger

	mutations int
	ignored   int
}

func NewEventDispatchSystem(bus *event.Bus, svc *nav.Service, log *zap.Logger) *EventDispatchSystem {
	s := &EventDispatchSystem{bus: bus, log: log}
	event.Subscribe(bus, func(m event.Mutation) {
		if svc.OnWorldMutated(m) {
			s.mutations++
			return
		}
		s.ignored++
		log.Debug("mutation changed nothing", zap.Stringer("kind", m.Kind))
	})
	event.Subscribe(bus, func(e event.AgentSpawned) {
		svc.AgentSpawned(e.ID, e.Obs)
	})
	event.Subscribe(bus, func(e event.AgentDestroyed) {
		svc.AgentDestroyed(e.ID)
	})
	return s
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventDispatchSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}

// Mutations returns how many mutations were applied and ignored.
func (s *EventDispatchSystem) Mutations() (applied, ignored int) { return s.mutations, s.ignored }
