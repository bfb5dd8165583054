package ticksched

import (
	"math/rand"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/navcore/internal/core/ecs"
	"github.com/l1jgo/navcore/internal/geom"
)

// Importance decides how often an agent's logic runs.
type Importance uint8

const (
	Minimal Importance = iota
	Low
	Normal
	Critical

	numLevels = int(Critical) + 1
)

var importanceNames = [...]string{"minimal", "low", "normal", "critical"}

func (i Importance) String() string {
	if int(i) < len(importanceNames) {
		return importanceNames[i]
	}
	return "unknown"
}

// ParseImportance maps a name back to a level.
func ParseImportance(s string) (Importance, bool) {
	for i, n := range importanceNames {
		if strings.EqualFold(n, s) {
			return Importance(i), true
		}
	}
	return Minimal, false
}

// Observation is what the simulation knows about an agent this tick.
type Observation struct {
	Pos      geom.Point
	Sleeping bool
	InCombat bool
	Health   float64 // fraction of max health, 0..1
	Task     string
}

// Camera is the player's current view.
type Camera struct {
	View geom.Rect
	Zoom float64 // >1 zoomed in; distances shrink as the player zooms out
}

// Hook may override the built-in classification. ok=false keeps base.
type Hook func(obs Observation, cam Camera, base Importance) (imp Importance, ok bool)

type Config struct {
	Intervals      [numLevels]time.Duration // indexed by Importance
	Jitter         float64                  // ± fraction applied to each interval
	NearDistance   float64
	FarDistance    float64
	LowHealth      float64
	ImportantTasks []string
	StateTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Intervals: [numLevels]time.Duration{
			Minimal:  2 * time.Second,
			Low:      500 * time.Millisecond,
			Normal:   100 * time.Millisecond,
			Critical: 0,
		},
		Jitter:         0.1,
		NearDistance:   24,
		FarDistance:    64,
		LowHealth:      0.3,
		ImportantTasks: []string{"flee", "rescue", "haul_injured"},
		StateTimeout:   30 * time.Second,
	}
}

// State is a copy of an agent's scheduling record.
type State struct {
	LastUpdate time.Time
	NextDue    time.Time
	LastSeen   time.Time
	Importance Importance
	Skipped    int
}

type Stats struct {
	Tracked  int
	PerLevel [numLevels]int
	Updates  int
	Skipped  int
	Forced   int
	Pruned   int
}

type agentState struct {
	State
	force bool
}

// Scheduler throttles per-agent logic by importance.
type Scheduler struct {
	log    *zap.Logger
	cfg    Config
	rng    *rand.Rand
	hook   Hook
	states map[ecs.EntityID]*agentState
	stats  Stats
}

// New creates a scheduler. rng supplies interval jitter and must not be
// shared with another goroutine.
func New(cfg Config, rng *rand.Rand, log *zap.Logger) *Scheduler {
	return &Scheduler{
		log:    log,
		cfg:    cfg,
		rng:    rng,
		states: make(map[ecs.EntityID]*agentState),
	}
}

func (s *Scheduler) SetHook(h Hook) { s.hook = h }

// Classify maps an observation to an importance level. Sleeping wins over
// everything; combat and low health are critical; being on screen or on an
// important task raises the level to at least Normal; otherwise distance to
// the view center, scaled by zoom, decides.
func (s *Scheduler) Classify(obs Observation, cam Camera) Importance {
	base := s.classify(obs, cam)
	if s.hook != nil {
		if imp, ok := s.hook(obs, cam, base); ok && int(imp) < numLevels {
			return imp
		}
	}
	return base
}

func (s *Scheduler) classify(obs Observation, cam Camera) Importance {
	if obs.Sleeping {
		return Minimal
	}
	if obs.InCombat || obs.Health < s.cfg.LowHealth {
		return Critical
	}
	zoom := cam.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	d := obs.Pos.Dist(cam.View.Center()) * zoom
	imp := Minimal
	switch {
	case d <= s.cfg.NearDistance:
		imp = Normal
	case d <= s.cfg.FarDistance:
		imp = Low
	}
	if imp < Normal && (cam.View.Contains(obs.Pos) || slices.Contains(s.cfg.ImportantTasks, obs.Task)) {
		imp = Normal
	}
	return imp
}

// ShouldUpdate reports whether the agent's logic runs now. It is true on
// first observation, whenever importance rises, after ForceUpdate, and once
// the agent's interval has elapsed.
func (s *Scheduler) ShouldUpdate(id ecs.EntityID, imp Importance, now time.Time) bool {
	st, ok := s.states[id]
	if !ok {
		st = &agentState{State: State{Importance: imp}}
		s.states[id] = st
		st.LastSeen = now
		s.schedule(st, now)
		return true
	}
	st.LastSeen = now
	raised := imp > st.Importance
	st.Importance = imp
	switch {
	case raised:
		s.schedule(st, now)
		return true
	case st.force:
		st.force = false
		s.stats.Forced++
		s.schedule(st, now)
		return true
	case !now.Before(st.NextDue):
		s.schedule(st, now)
		return true
	}
	st.Skipped++
	s.stats.Skipped++
	return false
}

func (s *Scheduler) schedule(st *agentState, now time.Time) {
	st.LastUpdate = now
	st.NextDue = now.Add(s.interval(st.Importance))
	s.stats.Updates++
}

func (s *Scheduler) interval(imp Importance) time.Duration {
	d := s.cfg.Intervals[imp]
	if d <= 0 || s.cfg.Jitter <= 0 || s.rng == nil {
		return d
	}
	f := 1 + (s.rng.Float64()*2-1)*s.cfg.Jitter
	return time.Duration(float64(d) * f)
}

// ForceUpdate makes the next ShouldUpdate for id return true.
func (s *Scheduler) ForceUpdate(id ecs.EntityID) {
	if st, ok := s.states[id]; ok {
		st.force = true
	}
}

// Remove drops the agent's record. Implements ecs.Removable.
func (s *Scheduler) Remove(id ecs.EntityID) { delete(s.states, id) }

// Prune drops records not observed within the state timeout.
func (s *Scheduler) Prune(now time.Time) int {
	if s.cfg.StateTimeout <= 0 {
		return 0
	}
	n := 0
	for id, st := range s.states {
		if now.Sub(st.LastSeen) > s.cfg.StateTimeout {
			delete(s.states, id)
			n++
		}
	}
	if n > 0 {
		s.stats.Pruned += n
		s.log.Debug("pruned idle tick states", zap.Int("count", n), zap.Int("remaining", len(s.states)))
	}
	return n
}

// State returns a copy of the agent's record.
func (s *Scheduler) State(id ecs.EntityID) (State, bool) {
	st, ok := s.states[id]
	if !ok {
		return State{}, false
	}
	return st.State, true
}

func (s *Scheduler) Len() int { return len(s.states) }

func (s *Scheduler) Stats() Stats {
	st := s.stats
	st.Tracked = len(s.states)
	for _, a := range s.states {
		st.PerLevel[a.Importance]++
	}
	return st
}
