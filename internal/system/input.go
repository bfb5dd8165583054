package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/navcore/internal/core/ecs"
	"github.com/l1jgo/navcore/internal/core/event"
	coresys "github.com/l1jgo/navcore/internal/core/system"
	"github.com/l1jgo/navcore/internal/geom"
	"github.com/l1jgo/navcore/internal/nav"
	"github.com/l1jgo/navcore/internal/ticksched"
	"github.com/l1jgo/navcore/internal/world"
)

// Command is an external request applied at the start of a tick.
type Command interface{ command() }

// Mutate changes the world layout.
type Mutate struct{ Mutation event.Mutation }

// SetCamera moves the player's view.
type SetCamera struct{ Camera ticksched.Camera }

// Spawn adds an agent. Reply, if set, receives the new id.
type Spawn struct {
	Name  string
	Pos   geom.Point
	Speed float64
	Task  string
	Reply chan<- ecs.EntityID
}

// Destroy removes an agent.
type Destroy struct{ ID ecs.EntityID }

// SetGoal sends an agent somewhere; its logic runs on the next tick.
type SetGoal struct {
	ID   ecs.EntityID
	Goal geom.Point
}

// SetTask changes what an agent is doing, which feeds its importance.
type SetTask struct {
	ID       ecs.EntityID
	Task     string
	InCombat bool
	Sleeping bool
	Health   float64
}

// NewGame clears the world and every agent.
type NewGame struct{}

func (Mutate) command()    {}
func (SetCamera) command() {}
func (Spawn) command()     {}
func (Destroy) command()   {}
func (SetGoal) command()   {}
func (SetTask) command()   {}
func (NewGame) command()   {}

// InputSystem drains the command queue and turns commands into events or
// direct state changes. Phase 0 (Input).
type InputSystem struct {
	commands   chan Command
	maxPerTick int
	bus        *event.Bus
	ecs        *ecs.World
	state      *world.State
	nav        *nav.Service
	log        *zap.Logger
}

func NewInputSystem(queueSize, maxPerTick int, bus *event.Bus, w *ecs.World, svc *nav.Service, log *zap.Logger) *InputSystem {
	return &InputSystem{
		commands:   make(chan Command, queueSize),
		maxPerTick: maxPerTick,
		bus:        bus,
		ecs:        w,
		state:      svc.State(),
		nav:        svc,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

// Submit queues a command without blocking. Safe from any goroutine.
// A full queue drops the command and returns false.
func (s *InputSystem) Submit(cmd Command) bool {
	select {
	case s.commands <- cmd:
		return true
	default:
		s.log.Warn("command queue full, dropping command")
		return false
	}
}

func (s *InputSystem) Update(_ time.Duration) {
	for n := 0; s.maxPerTick <= 0 || n < s.maxPerTick; n++ {
		select {
		case cmd := <-s.commands:
			s.apply(cmd)
		default:
			return
		}
	}
}

func (s *InputSystem) apply(cmd Command) {
	switch c := cmd.(type) {
	case Mutate:
		event.Emit(s.bus, c.Mutation)
	case SetCamera:
		s.nav.SetCamera(c.Camera)
	case Spawn:
		id := s.spawn(c)
		if c.Reply != nil {
			c.Reply <- id
		}
	case Destroy:
		event.Emit(s.bus, event.AgentDestroyed{ID: c.ID})
	case SetGoal:
		a, ok := s.state.Agent(c.ID)
		if !ok {
			return
		}
		a.Goal = c.Goal
		a.HasGoal = true
		a.Path = nil
		a.Waypoint = 0
		s.nav.CancelPath(c.ID)
		a.Pending = false
		s.nav.ForceAgentUpdate(c.ID)
	case SetTask:
		a, ok := s.state.Agent(c.ID)
		if !ok {
			return
		}
		a.Task = c.Task
		a.InCombat = c.InCombat
		a.Sleeping = c.Sleeping
		a.Health = c.Health
	case NewGame:
		s.nav.NewGame()
	default:
		s.log.Warn("unknown command", zap.Any("command", cmd))
	}
}

func (s *InputSystem) spawn(c Spawn) ecs.EntityID {
	id := s.ecs.CreateEntity()
	speed := c.Speed
	if speed <= 0 {
		speed = 1
	}
	a := &world.Agent{
		ID:     id,
		Name:   c.Name,
		Pos:    c.Pos,
		Speed:  speed,
		Health: 1,
		Task:   c.Task,
	}
	s.state.AddAgent(a)
	event.Emit(s.bus, event.AgentSpawned{ID: id, Obs: a.Observation()})
	return id
}
