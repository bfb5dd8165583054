package pathfind

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/navcore/internal/geom"
	"github.com/l1jgo/navcore/internal/grid"
)

// build makes a grid from rows of '.', '#' (solid), 'D' (door), '=' (paved
// road) and '~' (cost 4 mud).
func build(t *testing.T, rows ...string) *grid.Grid {
	t.Helper()
	g := grid.New(len(rows[0]), len(rows), 1, 8)
	g.RebuildAll(grid.SourceFunc(func(st grid.Stamper) {
		for r, line := range rows {
			for c, ch := range line {
				tile := geom.TileRect{Col: c, Row: r, W: 1, H: 1}
				switch ch {
				case '#':
					st.FillSolid(tile)
				case 'D':
					st.FillDoor(tile)
				case '=':
					st.FillRoad(tile, grid.RoadPaved)
				case '~':
					st.FillCost(tile, 4)
				}
			}
		}
	}))
	return g
}

func center(g *grid.Grid, c, r int) geom.Point { return g.Center(c, r) }

// dijkstra is the reference shortest path cost with the same step model.
func dijkstra(g *grid.Grid, s, t int) (float64, bool) {
	n := g.Len()
	dist := make([]float64, n)
	done := make([]bool, n)
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[s] = 0
	for {
		u := -1
		for i := 0; i < n; i++ {
			if !done[i] && !math.IsInf(dist[i], 1) && (u < 0 || dist[i] < dist[u]) {
				u = i
			}
		}
		if u < 0 {
			return 0, false
		}
		if u == t {
			return dist[u], true
		}
		done[u] = true
		c, r := g.Coords(u)
		for _, d := range dirs {
			nc, nr := c+d[0], r+d[1]
			if !g.InBounds(nc, nr) {
				continue
			}
			v := g.Index(nc, nr)
			if g.Solid(v) && v != t {
				continue
			}
			if nd := dist[u] + g.Cost(v); nd < dist[v] {
				dist[v] = nd
			}
		}
	}
}

func TestFindStraight(t *testing.T) {
	g := build(t,
		".....",
		".....",
	)
	f := NewFinder(g, Options{})
	res, ok := f.Find(center(g, 0, 0), geom.Pt(4.2, 0.7))
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, res.Tiles)
	assert.InDelta(t, 4.0, res.Cost, 1e-9)
	assert.Equal(t, geom.Pt(0.5, 0.5), res.Waypoints[0])
	assert.Equal(t, geom.Pt(4.2, 0.7), res.Waypoints[len(res.Waypoints)-1])
}

func TestFindUnreachable(t *testing.T) {
	g := build(t,
		"..#..",
		"..#..",
		"..#..",
	)
	f := NewFinder(g, Options{Smoothing: true})
	_, ok := f.Find(center(g, 0, 1), center(g, 4, 1))
	assert.False(t, ok)

	_, ok = f.Find(geom.Pt(-3, 0), center(g, 4, 1))
	assert.False(t, ok, "out of bounds start")
	_, ok = f.Find(center(g, 0, 0), geom.Pt(math.NaN(), 0))
	assert.False(t, ok)
}

func TestFindSolidEndpoints(t *testing.T) {
	g := build(t,
		"#...#",
	)
	f := NewFinder(g, Options{})
	res, ok := f.Find(center(g, 0, 0), center(g, 4, 0))
	require.True(t, ok, "solid start and goal are passable for the search")
	assert.Len(t, res.Tiles, 5)
}

func TestFindSameTile(t *testing.T) {
	g := build(t, "...")
	f := NewFinder(g, Options{})
	res, ok := f.Find(geom.Pt(1.1, 0.1), geom.Pt(1.9, 0.9))
	require.True(t, ok)
	assert.Equal(t, []geom.Point{geom.Pt(1.9, 0.9)}, res.Waypoints)
	assert.Zero(t, res.Cost)
}

func TestFindPrefersRoad(t *testing.T) {
	g := build(t,
		"=======",
		"=.....=",
		"=.....=",
	)
	f := NewFinder(g, Options{})
	res, ok := f.Find(center(g, 0, 2), center(g, 6, 2))
	require.True(t, ok)
	// via the road: 2 up + 6 across + 2 down at 0.5 each
	assert.InDelta(t, 5.0, res.Cost, 1e-9)
}

func TestFindMatchesDijkstra(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 40; trial++ {
		g := grid.New(14, 11, 1, 4)
		solid := make([]bool, g.Len())
		class := make([]int, g.Len())
		for i := range solid {
			solid[i] = rng.Float64() < 0.25
			class[i] = rng.Intn(4)
		}
		g.RebuildAll(grid.SourceFunc(func(st grid.Stamper) {
			for i := range solid {
				c, r := g.Coords(i)
				tile := geom.TileRect{Col: c, Row: r, W: 1, H: 1}
				switch {
				case solid[i]:
					st.FillSolid(tile)
				case class[i] == 1:
					st.FillRoad(tile, grid.RoadStone)
				case class[i] == 2:
					st.FillCost(tile, 3)
				}
			}
		}))
		f := NewFinder(g, Options{Smoothing: trial%2 == 0})
		for q := 0; q < 10; q++ {
			s := rng.Intn(g.Len())
			e := rng.Intn(g.Len())
			want, reachable := dijkstra(g, s, e)
			res, ok := f.Find(g.CenterOf(s), g.CenterOf(e))
			require.Equal(t, reachable, ok, "trial %d query %d", trial, q)
			if ok {
				assert.InDelta(t, want, res.Cost, 1e-9, "trial %d query %d", trial, q)
			}
		}
	}
}

func TestFindReusesBuffers(t *testing.T) {
	g := build(t,
		"......",
		".####.",
		"......",
	)
	f := NewFinder(g, Options{})
	a, ok := f.Find(center(g, 0, 1), center(g, 5, 1))
	require.True(t, ok)
	b, ok := f.Find(center(g, 0, 1), center(g, 5, 1))
	require.True(t, ok)
	assert.Equal(t, a.Tiles, b.Tiles)
	assert.Equal(t, a.Cost, b.Cost)

	n, _ := f.Searches()
	assert.Equal(t, 2, n)
}

func TestSmoothingSkipsOpenGround(t *testing.T) {
	g := build(t,
		"......",
		"......",
		"......",
		"......",
	)
	f := NewFinder(g, Options{Smoothing: true})
	res, ok := f.Find(center(g, 0, 0), center(g, 5, 3))
	require.True(t, ok)
	assert.Equal(t, []geom.Point{geom.Pt(0.5, 0.5), geom.Pt(5.5, 3.5)}, res.Waypoints)
	assert.Greater(t, len(res.Tiles), 2)
}

func TestSmoothingRespectsWalls(t *testing.T) {
	g := build(t,
		"......",
		"..#...",
		"..#...",
		"......",
	)
	f := NewFinder(g, Options{Smoothing: true})
	res, ok := f.Find(center(g, 0, 2), center(g, 5, 2))
	require.True(t, ok)
	require.Greater(t, len(res.Waypoints), 2)
	for i := 1; i < len(res.Waypoints); i++ {
		assert.True(t, f.lineClear(res.Waypoints[i-1], res.Waypoints[i], -1, -1, math.Inf(1)),
			"segment %d crosses a wall", i)
	}
}

func TestSmoothingKeepsRoadCorners(t *testing.T) {
	g := build(t,
		"=.....",
		"=.....",
		"======",
	)
	f := NewFinder(g, Options{Smoothing: true})
	res, ok := f.Find(center(g, 0, 0), center(g, 5, 2))
	require.True(t, ok)
	assert.Contains(t, res.Waypoints, geom.Pt(0.5, 2.5), "corner on the road must survive")
}

func TestSmoothingKeepsDoorCenter(t *testing.T) {
	g := build(t,
		"......#....",
		"......#....",
		"......D....",
		"......#....",
	)
	f := NewFinder(g, Options{Smoothing: true})
	res, ok := f.Find(center(g, 0, 0), center(g, 10, 3))
	require.True(t, ok)
	assert.Equal(t, []geom.Point{geom.Pt(0.5, 0.5), geom.Pt(6.5, 2.5), geom.Pt(10.5, 3.5)}, res.Waypoints)
}

func TestSmoothingAvoidsCostlyShortcut(t *testing.T) {
	g := build(t,
		"......",
		".~~~~.",
		".~~~~.",
		"......",
	)
	f := NewFinder(g, Options{Smoothing: true})
	res, ok := f.Find(center(g, 0, 0), center(g, 5, 3))
	require.True(t, ok)
	for i := 1; i < len(res.Waypoints); i++ {
		assert.True(t, f.lineClear(res.Waypoints[i-1], res.Waypoints[i], -1, -1, grid.DefaultCost),
			"segment %d cuts through mud", i)
	}
}

func TestSnapToRoadCenter(t *testing.T) {
	g := build(t, "===")
	wps := []geom.Point{geom.Pt(0.1, 0.2), geom.Pt(1.9, 0.9), geom.Pt(2.2, 0.3)}
	snapToRoads(g, wps)
	assert.Equal(t, geom.Pt(0.5, 0.5), wps[0])
	assert.Equal(t, geom.Pt(1.5, 0.5), wps[1])
	assert.Equal(t, geom.Pt(2.2, 0.3), wps[2], "final goal is never snapped")
}

func TestHeapOrder(t *testing.T) {
	var h minHeap
	h.push(node{idx: 1, f: 3, h: 1, seq: 0})
	h.push(node{idx: 2, f: 2, h: 2, seq: 1})
	h.push(node{idx: 3, f: 2, h: 1, seq: 2})
	h.push(node{idx: 4, f: 2, h: 1, seq: 3})
	var got []int32
	for h.Len() > 0 {
		got = append(got, h.pop().idx)
	}
	assert.Equal(t, []int32{3, 4, 2, 1}, got)
}
