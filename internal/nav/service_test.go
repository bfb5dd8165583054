package nav

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/l1jgo/navcore/internal/core/ecs"
	"github.com/l1jgo/navcore/internal/core/event"
	coresys "github.com/l1jgo/navcore/internal/core/system"
	"github.com/l1jgo/navcore/internal/data"
	"github.com/l1jgo/navcore/internal/geom"
	"github.com/l1jgo/navcore/internal/grid"
	"github.com/l1jgo/navcore/internal/pathcache"
	"github.com/l1jgo/navcore/internal/ticksched"
)

var doorway = []string{
	"#########",
	"#...#...#",
	"#...D...#",
	"#...#...#",
	"#########",
}

func newService(t *testing.T, cfg Config, rows ...string) (*Service, *ecs.World) {
	t.Helper()
	l, err := data.ParseASCII(strings.NewReader(strings.Join(rows, "\n")))
	require.NoError(t, err)
	st := l.NewState()
	require.NoError(t, l.Apply(st))
	w := ecs.NewWorld()
	cfg.Ticks.Jitter = 0
	svc, err := New(cfg, st, w, rand.New(rand.NewSource(1)), zap.NewNop())
	require.NoError(t, err)
	return svc, w
}

func openField(cols, rows int) []string {
	out := make([]string, rows)
	for i := range out {
		out[i] = strings.Repeat(".", cols)
	}
	return out
}

func smallSections() Config {
	cfg := DefaultConfig()
	cfg.SectionSize = 4
	return cfg
}

// stepClock advances by step on every reading.
type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

var (
	leftRoom  = geom.Pt(1.5, 2.5)
	rightRoom = geom.Pt(6.5, 2.5)
)

func TestDoorwayRooms(t *testing.T) {
	svc, _ := newService(t, smallSections(), doorway...)
	d := svc.Diagnostics()
	assert.Equal(t, 2, d.Regions.Rooms)
	assert.Equal(t, 1, d.Regions.DoorRegions)
	assert.Zero(t, d.Regions.OutdoorRooms)

	path, ok := svc.FindPath(leftRoom, rightRoom)
	require.True(t, ok)
	assert.Equal(t, rightRoom, path[len(path)-1])
	assert.True(t, svc.IsReachable(leftRoom, rightRoom))
	assert.NotEqual(t, svc.Regions().RoomAt(leftRoom), svc.Regions().RoomAt(rightRoom))
}

// tenRoom is a 10x10 room with a one-tile doorway in its east wall at (11,5).
func tenRoom() []string {
	rows := make([]string, 12)
	for r := range rows {
		switch {
		case r == 0 || r == 11:
			rows[r] = strings.Repeat("#", 12) + strings.Repeat(".", 8)
		case r == 5:
			rows[r] = "#" + strings.Repeat(".", 10) + "D" + strings.Repeat(".", 8)
		default:
			rows[r] = "#" + strings.Repeat(".", 10) + "#" + strings.Repeat(".", 8)
		}
	}
	return rows
}

func TestPathLeavesRoomThroughDoorCenter(t *testing.T) {
	svc, _ := newService(t, DefaultConfig(), tenRoom()...)
	door := svc.Grid().Center(11, 5)
	goal := geom.Pt(16.5, 5.5)

	for _, start := range []geom.Point{geom.Pt(2.5, 2.5), geom.Pt(5.5, 9.5), geom.Pt(8.5, 5.5), geom.Pt(1.5, 10.5)} {
		require.True(t, svc.IsReachable(start, goal), "start %v", start)
		path, ok := svc.FindPath(start, goal)
		require.True(t, ok, "start %v", start)
		assert.Equal(t, pathcache.Path{start, door, goal}, path, "start %v", start)
	}
}

func TestSealedDoorwayStaleHitThenMiss(t *testing.T) {
	svc, _ := newService(t, smallSections(), doorway...)
	_, ok := svc.FindPath(leftRoom, rightRoom)
	require.True(t, ok)
	require.Equal(t, 1, svc.Cache().Len())

	changed := svc.OnWorldMutated(event.Mutation{
		Kind:     event.PlaceBuilding,
		Name:     "wall",
		Rect:     geom.Rect{X: 4, Y: 2, W: 1, H: 1},
		Blocking: true,
	})
	require.True(t, changed)
	require.Len(t, svc.Rebuilds().Pending(), 1)
	assert.True(t, svc.Rebuilds().Pending()[0].Full)

	// the rebuild is deferred: the cached answer is still served this tick
	_, ok = svc.FindPath(leftRoom, rightRoom)
	assert.True(t, ok, "stale hit before flush")
	assert.Equal(t, 1, svc.Cache().Stats().Hits)

	res := svc.FlushRebuilds()
	require.True(t, res.Ran)
	assert.True(t, res.Full)
	assert.NotEmpty(t, res.Changed)
	assert.Equal(t, 1, res.Invalidated)
	assert.Zero(t, svc.Cache().Len())

	_, ok = svc.FindPath(leftRoom, rightRoom)
	assert.False(t, ok)
	assert.False(t, svc.IsReachable(leftRoom, rightRoom))
	assert.Equal(t, 1, svc.Diagnostics().Paths.Rejected)

	// removing the seal restores the doorway
	require.True(t, svc.OnWorldMutated(event.Mutation{Kind: event.RemoveBuilding, Rect: geom.Rect{X: 4, Y: 2, W: 1, H: 1}}))
	svc.FlushRebuilds()
	_, ok = svc.FindPath(leftRoom, rightRoom)
	assert.True(t, ok)
}

func TestTwentyRoadPaintsOneRebuild(t *testing.T) {
	svc, _ := newService(t, DefaultConfig(), openField(64, 64)...)
	before := svc.Grid().SectionRebuilds()
	for i := 0; i < 20; i++ {
		ok := svc.OnWorldMutated(event.Mutation{
			Kind: event.PaintRoad,
			Rect: geom.Rect{X: float64(10 + i), Y: 10, W: 1, H: 1},
			Road: grid.RoadPaved,
		})
		require.True(t, ok)
	}
	assert.InDelta(t, grid.MinRoadCost, svc.Grid().MinCost(), 1e-9, "min cost lowered before the rebuild")
	assert.Equal(t, grid.DefaultCost, svc.Grid().Cost(svc.Grid().Index(15, 10)), "tiles untouched until flush")

	res := svc.FlushRebuilds()
	require.True(t, res.Ran)
	assert.False(t, res.Full)
	st := svc.Rebuilds().Stats()
	assert.Equal(t, 1, st.PartialPasses)
	assert.Zero(t, st.FullPasses)
	assert.Equal(t, 20, st.Requested)
	assert.Equal(t, res.Sections, svc.Grid().SectionRebuilds()-before)
	assert.InDelta(t, grid.RoadPaved.Cost(), svc.Grid().Cost(svc.Grid().Index(15, 10)), 1e-9)
	assert.Zero(t, svc.Grid().DirtyCount())

	assert.False(t, svc.FlushRebuilds().Ran, "nothing left to do")
}

func TestFullRequestAbsorbsPartials(t *testing.T) {
	svc, _ := newService(t, DefaultConfig(), openField(32, 32)...)
	svc.OnWorldMutated(event.Mutation{Kind: event.PaintRoad, Rect: geom.Rect{X: 1, Y: 1, W: 4, H: 1}, Road: grid.RoadDirt})
	svc.OnWorldMutated(event.Mutation{Kind: event.PlaceBuilding, Rect: geom.Rect{X: 10, Y: 10, W: 2, H: 2}, Blocking: true})
	svc.OnWorldMutated(event.Mutation{Kind: event.PaintRoad, Rect: geom.Rect{X: 20, Y: 1, W: 4, H: 1}, Road: grid.RoadDirt})
	pending := svc.Rebuilds().Pending()
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Full)

	res := svc.FlushRebuilds()
	assert.True(t, res.Full)
	assert.True(t, svc.Grid().Solid(svc.Grid().Index(11, 11)))
	assert.Equal(t, grid.RoadDirt, svc.Grid().Road(svc.Grid().Index(21, 1)))
}

func TestRoadPreferredAfterPaint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Smoothing = false
	svc, _ := newService(t, cfg, openField(16, 8)...)
	start, end := geom.Pt(0.5, 4.5), geom.Pt(15.5, 4.5)
	_, ok := svc.FindPath(start, end)
	require.True(t, ok)

	svc.OnWorldMutated(event.Mutation{Kind: event.PaintRoad, Rect: geom.Rect{X: 0, Y: 4, W: 16, H: 1}, Road: grid.RoadPaved})
	res := svc.FlushRebuilds()
	assert.Positive(t, res.Invalidated, "paths crossing repainted regions are dropped")

	path, ok := svc.FindPath(start, end)
	require.True(t, ok)
	for _, p := range path {
		assert.InDelta(t, 4.5, p.Y, 1e-9, "stays on the road")
	}
}

func TestMineOpensPassage(t *testing.T) {
	svc, _ := newService(t, smallSections(),
		"...R...",
		"...R...",
		"...R...",
	)
	a, b := geom.Pt(0.5, 1.5), geom.Pt(6.5, 1.5)
	require.False(t, svc.IsReachable(a, b))
	_, ok := svc.FindPath(a, b)
	require.False(t, ok)

	require.True(t, svc.OnWorldMutated(event.Mutation{Kind: event.MineTile, Col: 3, Row: 1}))
	assert.False(t, svc.OnWorldMutated(event.Mutation{Kind: event.MineTile, Col: 3, Row: 1}), "already mined")
	svc.FlushRebuilds()
	assert.True(t, svc.IsReachable(a, b))
	_, ok = svc.FindPath(a, b)
	assert.True(t, ok)
}

func TestResourceLifecycle(t *testing.T) {
	svc, _ := newService(t, smallSections(), openField(8, 8)...)
	require.True(t, svc.OnWorldMutated(event.Mutation{Kind: event.PlaceResource, Name: "tree", Rect: geom.Rect{X: 2, Y: 2}, Blocking: true}))
	svc.FlushRebuilds()
	assert.True(t, svc.Grid().Solid(svc.Grid().Index(2, 2)))
	_, resources := svc.State().StructureCount()
	assert.Equal(t, 1, resources)

	assert.False(t, svc.OnWorldMutated(event.Mutation{Kind: event.RemoveBuilding, Rect: geom.Rect{X: 2, Y: 2}}), "trees are not buildings")
	require.True(t, svc.OnWorldMutated(event.Mutation{Kind: event.RemoveResource, Rect: geom.Rect{X: 2, Y: 2}}))
	svc.FlushRebuilds()
	assert.False(t, svc.Grid().Solid(svc.Grid().Index(2, 2)))
}

func TestUnknownMutationIgnored(t *testing.T) {
	svc, _ := newService(t, smallSections(), openField(4, 4)...)
	assert.False(t, svc.OnWorldMutated(event.Mutation{Kind: 99}))
	assert.False(t, svc.OnWorldMutated(event.Mutation{Kind: event.PaintRoad, Rect: geom.Rect{X: -10, Y: -10, W: 1, H: 1}, Road: grid.RoadDirt}))
	assert.Empty(t, svc.Rebuilds().Pending())
}

func TestRegionsDisabledFallsBackToSearch(t *testing.T) {
	cfg := smallSections()
	cfg.RegionsEnabled = false
	svc, _ := newService(t, cfg,
		"..#..",
		"..#..",
	)
	a, b := geom.Pt(0.5, 0.5), geom.Pt(4.5, 0.5)
	assert.True(t, svc.IsReachable(a, b))
	_, ok := svc.FindPath(a, b)
	assert.False(t, ok)
	d := svc.Diagnostics()
	assert.Zero(t, d.Paths.Rejected)
	assert.Equal(t, 1, d.Paths.Failed)
}

func TestBackpressureServesOnlyLatest(t *testing.T) {
	svc, w := newService(t, DefaultConfig(), openField(32, 32)...)
	agent := w.CreateEntity()
	var got []int
	for i := 0; i < 10; i++ {
		i := i
		_, queued := svc.RequestPath(agent, geom.Pt(0.5, 0.5), geom.Pt(float64(i)+10.5, 20.5), 0, func(_ pathcache.Path, ok bool) {
			if ok {
				got = append(got, i)
			}
		})
		require.True(t, queued)
	}
	assert.Equal(t, 1, svc.Cache().QueueDepth())

	b := coresys.NewBudget(time.Hour, 0)
	b.Begin()
	assert.Equal(t, 1, svc.ProcessPathRequests(b))
	assert.Equal(t, []int{9}, got)
	assert.Equal(t, 9, svc.Cache().Stats().Superseded)
}

func TestBudgetLimitsRequestsPerTick(t *testing.T) {
	svc, w := newService(t, DefaultConfig(), openField(32, 32)...)
	clock := &stepClock{t: time.Unix(0, 0), step: time.Millisecond}
	svc.SetClock(clock.now)

	served := 0
	for i := 0; i < 10; i++ {
		svc.RequestPath(w.CreateEntity(), geom.Pt(0.5, 0.5), geom.Pt(float64(i)+10.5, 20.5), 0, func(_ pathcache.Path, ok bool) {
			if ok {
				served++
			}
		})
	}

	// every search reads the clock twice, so it costs exactly one step
	b := coresys.NewBudget(3*time.Millisecond, 0)
	b.Begin()
	assert.Equal(t, 3, svc.ProcessPathRequests(b))
	assert.True(t, b.Exhausted())
	b.Begin()
	assert.Equal(t, 3, svc.ProcessPathRequests(b))
	assert.Equal(t, 6, served)
	assert.Equal(t, 4, svc.Cache().QueueDepth())
}

func TestMaxRequestsPerTick(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRequestsPerTick = 2
	svc, w := newService(t, cfg, openField(16, 16)...)
	for i := 0; i < 5; i++ {
		svc.RequestPath(w.CreateEntity(), geom.Pt(0.5, 0.5), geom.Pt(float64(i)+5.5, 10.5), 0, nil)
	}
	b := coresys.NewBudget(time.Hour, 0)
	b.Begin()
	assert.Equal(t, 2, svc.ProcessPathRequests(b))
	assert.Equal(t, 2, svc.Diagnostics().Paths.Processed)
}

func TestRequestHitIsSynchronous(t *testing.T) {
	svc, w := newService(t, DefaultConfig(), openField(16, 16)...)
	a, b := geom.Pt(0.5, 0.5), geom.Pt(12.5, 9.5)
	_, ok := svc.FindPath(a, b)
	require.True(t, ok)

	var called bool
	_, queued := svc.RequestPath(w.CreateEntity(), a, b, 0, func(p pathcache.Path, ok bool) {
		called = ok && p[len(p)-1] == b
	})
	assert.False(t, queued)
	assert.True(t, called)
}

func TestAgentDestroyedCancelsAndPurges(t *testing.T) {
	svc, w := newService(t, DefaultConfig(), openField(16, 16)...)
	agent := w.CreateEntity()
	svc.AgentSpawned(agent, ticksched.Observation{Pos: geom.Pt(1, 1), Health: 1})
	require.True(t, svc.ShouldUpdateAgent(agent))

	fired := false
	svc.RequestPath(agent, geom.Pt(0.5, 0.5), geom.Pt(10.5, 10.5), 0, func(pathcache.Path, bool) { fired = true })
	svc.AgentDestroyed(agent)
	_, live := svc.Cache().Live(agent)
	assert.False(t, live, "request cancelled immediately")

	b := coresys.NewBudget(time.Hour, 0)
	b.Begin()
	assert.Zero(t, svc.ProcessPathRequests(b))
	assert.False(t, fired)

	// tick state survives until the cleanup phase
	assert.Equal(t, 1, svc.Ticks().Len())
	w.FlushDestroyQueue()
	assert.Zero(t, svc.Ticks().Len())
	assert.Zero(t, svc.Diagnostics().World.Agents)
	assert.False(t, svc.ShouldUpdateAgent(agent))
}

func TestShouldUpdateAgentFollowsCamera(t *testing.T) {
	cfg := DefaultConfig()
	svc, w := newService(t, cfg, openField(200, 200)...)
	now := time.Unix(100, 0)
	svc.SetClock(func() time.Time { return now })
	svc.SetCamera(ticksched.Camera{View: geom.Rect{W: 40, H: 30}, Zoom: 1})

	agent := w.CreateEntity()
	svc.AgentSpawned(agent, ticksched.Observation{Pos: geom.Pt(190, 190), Health: 1})
	require.True(t, svc.ShouldUpdateAgent(agent), "first observation")
	assert.Equal(t, ticksched.Minimal, svc.Importance(agent))

	now = now.Add(100 * time.Millisecond)
	assert.False(t, svc.ShouldUpdateAgent(agent))

	// walking on screen raises importance and runs at once
	svc.ObserveAgent(agent, ticksched.Observation{Pos: geom.Pt(10, 10), Health: 1})
	assert.True(t, svc.ShouldUpdateAgent(agent))
	assert.Equal(t, ticksched.Normal, svc.Importance(agent))

	now = now.Add(10 * time.Millisecond)
	assert.False(t, svc.ShouldUpdateAgent(agent))
	svc.ForceAgentUpdate(agent)
	assert.True(t, svc.ShouldUpdateAgent(agent))
}

func TestImportanceHook(t *testing.T) {
	svc, w := newService(t, DefaultConfig(), openField(8, 8)...)
	svc.SetImportanceHook(func(obs ticksched.Observation, _ ticksched.Camera, base ticksched.Importance) (ticksched.Importance, bool) {
		return ticksched.Critical, obs.Task == "vip"
	})
	agent := w.CreateEntity()
	svc.AgentSpawned(agent, ticksched.Observation{Pos: geom.Pt(500, 500), Health: 1, Task: "vip"})
	svc.ShouldUpdateAgent(agent)
	assert.Equal(t, ticksched.Critical, svc.Importance(agent))
}

func TestNewGame(t *testing.T) {
	svc, w := newService(t, smallSections(), doorway...)
	agent := w.CreateEntity()
	svc.AgentSpawned(agent, ticksched.Observation{Health: 1})
	_, ok := svc.FindPath(leftRoom, rightRoom)
	require.True(t, ok)

	svc.NewGame()
	w.FlushDestroyQueue()
	assert.Zero(t, svc.Cache().Len())
	assert.False(t, svc.Grid().Solid(0))
	d := svc.Diagnostics()
	assert.Equal(t, 6, d.Regions.Regions, "one open region per section")
	assert.Zero(t, d.World.Buildings)
	assert.Zero(t, d.World.Agents)
	assert.False(t, w.Alive(agent))
}
