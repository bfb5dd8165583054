package nav

import (
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/navcore/internal/core/ecs"
	coresys "github.com/l1jgo/navcore/internal/core/system"
	"github.com/l1jgo/navcore/internal/geom"
	"github.com/l1jgo/navcore/internal/grid"
	"github.com/l1jgo/navcore/internal/pathcache"
	"github.com/l1jgo/navcore/internal/pathfind"
	"github.com/l1jgo/navcore/internal/rebuild"
	"github.com/l1jgo/navcore/internal/region"
	"github.com/l1jgo/navcore/internal/ticksched"
	"github.com/l1jgo/navcore/internal/world"
)

// agentView is the service's per-agent record: the last observation and
// the importance it was classified at.
type agentView struct {
	obs ticksched.Observation
	imp ticksched.Importance
}

type pathStats struct {
	Found     int
	Failed    int
	Rejected  int // refused by the region pre-check
	Processed int // queued requests served
}

// Service is the simulation-owned navigation context. It ties the world
// state to the grid, region graph, path cache and schedulers, and is the
// only entry point the rest of the simulation uses.
// Single-goroutine access only (simulation loop).
type Service struct {
	log *zap.Logger
	cfg Config
	now func() time.Time

	ecs      *ecs.World
	state    *world.State
	grid     *grid.Grid
	regions  *region.Graph
	versions *region.VersionManager
	finder   *pathfind.Finder
	cache    *pathcache.Cache
	rebuilds *rebuild.Scheduler
	ticks    *ticksched.Scheduler

	agents *ecs.PtrComponentStore[agentView]
	camera ticksched.Camera
	stats  pathStats
}

// New builds the grid and region graph from state. Per-agent stores are
// registered with w so destroyed agents are purged by the cleanup phase.
func New(cfg Config, state *world.State, w *ecs.World, rng *rand.Rand, log *zap.Logger) (*Service, error) {
	if cfg.SectionSize < 1 {
		return nil, fmt.Errorf("section size %d", cfg.SectionSize)
	}
	s := &Service{
		log:      log,
		cfg:      cfg,
		now:      time.Now,
		ecs:      w,
		state:    state,
		grid:     grid.New(state.Cols(), state.Rows(), state.TileSize(), cfg.SectionSize),
		regions:  region.NewGraph(log),
		versions: region.NewVersionManager(),
		agents:   ecs.NewPtrComponentStore[agentView](),
		camera:   ticksched.Camera{View: geom.Rect{W: float64(state.Cols()) * state.TileSize(), H: float64(state.Rows()) * state.TileSize()}, Zoom: 1},
	}
	s.finder = pathfind.NewFinder(s.grid, pathfind.Options{Smoothing: cfg.Smoothing})
	s.cache = pathcache.New(pathcache.Config{
		MaxEntries: cfg.CacheEntries,
		MaxAge:     cfg.CacheMaxAge,
		TileSize:   state.TileSize(),
	}, s.versions, log)
	s.rebuilds = rebuild.NewScheduler(rebuild.Config{Assertions: cfg.Assertions}, target{s}, s.versions, s.cache, log)
	s.ticks = ticksched.New(cfg.Ticks, rng, log)

	reg := w.Registry()
	reg.Register(s.cache)
	reg.Register(s.ticks)
	reg.Register(s.agents)
	reg.Register(state.Agents())

	s.grid.RebuildAll(state)
	s.regions.RebuildAll(s.grid, state)
	st := s.regions.Stats()
	log.Info("navigation ready",
		zap.Int("cols", state.Cols()),
		zap.Int("rows", state.Rows()),
		zap.Int("sections", s.grid.SectionCount()),
		zap.Int("regions", st.Regions),
		zap.Int("rooms", st.Rooms))
	return s, nil
}

// SetClock replaces the time source of the service and its cache.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.cache.SetClock(now)
}

// SetImportanceHook installs a classifier override (the Lua rules).
func (s *Service) SetImportanceHook(h ticksched.Hook) { s.ticks.SetHook(h) }

func (s *Service) State() *world.State              { return s.state }
func (s *Service) Grid() *grid.Grid                 { return s.grid }
func (s *Service) Regions() *region.Graph           { return s.regions }
func (s *Service) Versions() *region.VersionManager { return s.versions }
func (s *Service) Cache() *pathcache.Cache          { return s.cache }
func (s *Service) Rebuilds() *rebuild.Scheduler     { return s.rebuilds }
func (s *Service) Ticks() *ticksched.Scheduler      { return s.ticks }
func (s *Service) Camera() ticksched.Camera         { return s.camera }
func (s *Service) SetCamera(cam ticksched.Camera)   { s.camera = cam }
func (s *Service) SetSmoothing(on bool)             { s.finder.SetOptions(pathfind.Options{Smoothing: on}) }
func (s *Service) Smoothing() bool                  { return s.finder.Options().Smoothing }
func (s *Service) RegionsEnabled() bool             { return s.cfg.RegionsEnabled }
func (s *Service) SetRegionsEnabled(on bool)        { s.cfg.RegionsEnabled = on }
func (s *Service) SetAssertions(on bool)            { s.cfg.Assertions = on }

// Importance is the level the agent was last classified at.
func (s *Service) Importance(id ecs.EntityID) ticksched.Importance {
	if v, ok := s.agents.Get(id); ok {
		return v.imp
	}
	return ticksched.Minimal
}

// --- Queries ---

// IsReachable is the O(region count) pre-check. A disabled or unbuilt
// graph answers true so callers fall through to A*.
func (s *Service) IsReachable(start, end geom.Point) bool {
	if !s.cfg.RegionsEnabled {
		return true
	}
	return s.regions.IsReachable(start, end)
}

// FindPath answers synchronously: cache, then the region pre-check, then
// A*. Found paths are cached.
func (s *Service) FindPath(start, end geom.Point) (pathcache.Path, bool) {
	if path, ok := s.cache.Lookup(start, end); ok {
		return path, true
	}
	path, regions := s.compute(start, end)
	if len(path) == 0 {
		return nil, false
	}
	s.cache.Store(start, end, path, regions)
	return path, true
}

// compute runs the pre-check and the search and returns the path with the
// regions it crosses. A nil path means unreachable.
func (s *Service) compute(start, end geom.Point) (pathcache.Path, []region.ID) {
	if !s.IsReachable(start, end) {
		s.stats.Rejected++
		s.stats.Failed++
		return nil, nil
	}
	res, ok := s.finder.Find(start, end)
	if !ok {
		s.stats.Failed++
		return nil, nil
	}
	s.stats.Found++
	return pathcache.Path(res.Waypoints), s.regions.RegionsAlong(res.Tiles)
}

// RequestPath queues a path for agent. A cache hit invokes cb before
// returning (0, false); the agent's previous request is dropped either way.
func (s *Service) RequestPath(agent ecs.EntityID, start, end geom.Point, priority int, cb pathcache.Callback) (pathcache.RequestID, bool) {
	return s.cache.RequestPath(agent, start, end, priority, cb)
}

// CancelPath drops the agent's queued request without firing its callback.
func (s *Service) CancelPath(agent ecs.EntityID) bool { return s.cache.Cancel(agent) }

// ProcessPathRequests serves queued requests in priority order while the
// budget lasts. A started search always runs to completion. It returns the
// number of requests served.
func (s *Service) ProcessPathRequests(b *coresys.Budget) int {
	n := 0
	for !b.Exhausted() {
		if s.cfg.MaxRequestsPerTick > 0 && n >= s.cfg.MaxRequestsPerTick {
			break
		}
		req, ok := s.cache.Next()
		if !ok {
			break
		}
		began := s.now()
		path, regions := s.compute(req.Start, req.End)
		b.Spend(s.now().Sub(began))
		s.cache.Complete(req, path, regions)
		n++
	}
	s.stats.Processed += n
	return n
}

// FlushRebuilds runs the deferred rebuild for this tick.
func (s *Service) FlushRebuilds() rebuild.Result {
	return s.rebuilds.Flush()
}

// --- Agents ---

// AgentSpawned starts tracking an agent. Its first ShouldUpdateAgent call
// returns true.
func (s *Service) AgentSpawned(id ecs.EntityID, obs ticksched.Observation) {
	s.agents.Set(id, &agentView{obs: obs, imp: s.ticks.Classify(obs, s.camera)})
}

// AgentDestroyed cancels the agent's request at once and queues the entity
// for destruction; tick state and records go in the cleanup phase.
func (s *Service) AgentDestroyed(id ecs.EntityID) {
	s.cache.Cancel(id)
	s.ecs.MarkForDestruction(id)
}

// ObserveAgent records the agent's latest state for classification.
func (s *Service) ObserveAgent(id ecs.EntityID, obs ticksched.Observation) {
	if v, ok := s.agents.Get(id); ok {
		v.obs = obs
		return
	}
	s.AgentSpawned(id, obs)
}

// ShouldUpdateAgent classifies the agent against the current camera and
// reports whether its logic is due this tick. Unknown agents are never due.
func (s *Service) ShouldUpdateAgent(id ecs.EntityID) bool {
	v, ok := s.agents.Get(id)
	if !ok {
		return false
	}
	v.imp = s.ticks.Classify(v.obs, s.camera)
	return s.ticks.ShouldUpdate(id, v.imp, s.now())
}

// ForceAgentUpdate makes the agent due on its next check.
func (s *Service) ForceAgentUpdate(id ecs.EntityID) { s.ticks.ForceUpdate(id) }

// PruneTicks drops tick state of agents not observed within the timeout.
func (s *Service) PruneTicks() int { return s.ticks.Prune(s.now()) }

// --- Lifecycle ---

// NewGame empties the world and every derived structure. Tracked agents are
// queued for destruction.
func (s *Service) NewGame() {
	for _, id := range s.agents.SortedIDs() {
		s.AgentDestroyed(id)
	}
	for _, id := range s.state.Agents().SortedIDs() {
		s.AgentDestroyed(id)
	}
	s.state.Clear()
	s.grid.Clear()
	s.cache.Clear()
	s.stats = pathStats{}
	s.rebuilds.RequestFull()
	s.FlushRebuilds()
	s.log.Info("navigation reset for new game")
}

// target adapts the service to the rebuild scheduler.
type target struct{ s *Service }

func (t target) SectionsFor(area geom.Circle) []int {
	return t.s.grid.SectionsInDisc(area.Center, area.Radius)
}

func (t target) DirtySections() []int { return t.s.grid.DirtySections() }

func (t target) RebuildSections(sections []int) ([]region.ID, error) {
	s := t.s
	s.grid.RebuildSections(sections, s.state)
	changed := s.regions.RebuildSections(s.grid, sections, s.state)
	if err := s.regions.CheckConsistency(); err != nil {
		return changed, err
	}
	return changed, nil
}

func (t target) RebuildFull() []region.ID {
	s := t.s
	s.grid.RebuildAll(s.state)
	return s.regions.RebuildAll(s.grid, s.state)
}
