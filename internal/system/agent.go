package system

import (
	"math/rand"
	"time"

	"github.com/l1jgo/navcore/internal/core/ecs"
	"github.com/l1jgo/navcore/internal/core/event"
	coresys "github.com/l1jgo/navcore/internal/core/system"
	"github.com/l1jgo/navcore/internal/geom"
	"github.com/l1jgo/navcore/internal/nav"
	"github.com/l1jgo/navcore/internal/pathcache"
	"github.com/l1jgo/navcore/internal/ticksched"
	"github.com/l1jgo/navcore/internal/world"
)

// PriorityFunc ranks an agent's path request. Higher is served first.
type PriorityFunc func(task string, imp ticksched.Importance) int

func importancePriority(_ string, imp ticksched.Importance) int { return int(imp) }

const goalAttempts = 8

// AgentSystem moves agents along their paths every tick and runs their
// decision step when the tick scheduler says they are due. Idle agents
// wander to a random open tile. Phase 2 (Update).
type AgentSystem struct {
	state    *world.State
	nav      *nav.Service
	bus      *event.Bus
	rng      *rand.Rand
	priority PriorityFunc

	wander bool
}

func NewAgentSystem(svc *nav.Service, bus *event.Bus, rng *rand.Rand) *AgentSystem {
	return &AgentSystem{
		state:    svc.State(),
		nav:      svc,
		bus:      bus,
		rng:      rng,
		priority: importancePriority,
		wander:   true,
	}
}

func (s *AgentSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

// SetPriority replaces the request ranking (the Lua path_priority rule).
func (s *AgentSystem) SetPriority(fn PriorityFunc) { s.priority = fn }

// SetWander toggles random goals for idle agents.
func (s *AgentSystem) SetWander(on bool) { s.wander = on }

func (s *AgentSystem) Update(dt time.Duration) {
	agents := s.state.Agents()
	for _, id := range agents.SortedIDs() {
		a, _ := agents.Get(id)
		s.move(a, dt)
		s.nav.ObserveAgent(id, a.Observation())
		if !s.nav.ShouldUpdateAgent(id) {
			continue
		}
		a.Importance = s.nav.Importance(id)
		s.think(a)
	}
}

func (s *AgentSystem) move(a *world.Agent, dt time.Duration) {
	if a.Sleeping || len(a.Path) == 0 {
		return
	}
	step := a.Speed * dt.Seconds()
	for step > 0 && a.Waypoint < len(a.Path) {
		next := a.Path[a.Waypoint]
		d := a.Pos.Dist(next)
		if d > step {
			a.Pos.X += (next.X - a.Pos.X) * step / d
			a.Pos.Y += (next.Y - a.Pos.Y) * step / d
			return
		}
		a.Pos = next
		step -= d
		a.Waypoint++
	}
	if a.Waypoint >= len(a.Path) {
		a.Path = nil
		a.Waypoint = 0
		a.HasGoal = false
		a.Arrived++
	}
}

// think runs the agent's decision step.
func (s *AgentSystem) think(a *world.Agent) {
	if a.Sleeping || a.Pending {
		return
	}
	if len(a.Path) > 0 && !s.blocked(a) {
		return
	}
	if !a.HasGoal {
		if !s.wander {
			return
		}
		goal, ok := s.randomGoal()
		if !ok {
			return
		}
		a.Goal = goal
		a.HasGoal = true
	}
	s.request(a)
}

// blocked reports whether the next waypoint now lies on a solid tile.
func (s *AgentSystem) blocked(a *world.Agent) bool {
	g := s.nav.Grid()
	i := g.IndexAt(a.Path[a.Waypoint])
	return i >= 0 && g.Solid(i) && a.Waypoint < len(a.Path)-1
}

func (s *AgentSystem) request(a *world.Agent) {
	id := a.ID
	a.Path = nil
	a.Waypoint = 0
	a.Pending = true
	_, queued := s.nav.RequestPath(id, a.Pos, a.Goal, s.priority(a.Task, a.Importance), func(path pathcache.Path, ok bool) {
		s.resolved(id, path, ok)
	})
	if !queued {
		a.Pending = false
	}
}

func (s *AgentSystem) resolved(id ecs.EntityID, path pathcache.Path, ok bool) {
	event.Emit(s.bus, event.PathResolved{Agent: id, Found: ok, Waypoints: len(path)})
	a, alive := s.state.Agent(id)
	if !alive {
		return
	}
	a.Pending = false
	if !ok {
		a.HasGoal = false
		a.Unreached++
		return
	}
	a.Path = path
	a.Waypoint = 0
}

func (s *AgentSystem) randomGoal() (geom.Point, bool) {
	g := s.nav.Grid()
	for i := 0; i < goalAttempts; i++ {
		col, row := s.rng.Intn(g.Cols()), s.rng.Intn(g.Rows())
		if !g.Solid(g.Index(col, row)) {
			return g.Center(col, row), true
		}
	}
	return geom.Point{}, false
}
