package pathfind

import (
	"github.com/l1jgo/navcore/internal/geom"
	"github.com/l1jgo/navcore/internal/grid"
)

// Options controls post-processing of found paths.
type Options struct {
	Smoothing bool
}

// Result is one found path.
type Result struct {
	Waypoints []geom.Point // smoothed, first is the start tile center, last is the exact goal
	Tiles     []int        // raw tile sequence from start to goal
	Cost      float64
	Expanded  int
}

var dirs = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// Finder runs weighted A* on a grid. Search buffers are kept between calls
// and invalidated by a generation counter instead of being cleared.
// A Finder is not safe for concurrent use.
type Finder struct {
	g    *grid.Grid
	opts Options

	gen     uint32
	seen    []uint32 // generation in which gScore/parent were written
	closed  []uint32 // generation in which the tile was expanded
	gScore  []float64
	parent  []int32
	open    minHeap
	seq     uint64
	scratch []int

	searches      int
	totalExpanded int
}

func NewFinder(g *grid.Grid, opts Options) *Finder {
	return &Finder{g: g, opts: opts}
}

func (f *Finder) Options() Options     { return f.opts }
func (f *Finder) SetOptions(o Options) { f.opts = o }

// Searches returns the number of searches run and the total nodes expanded.
func (f *Finder) Searches() (count, expanded int) { return f.searches, f.totalExpanded }

func (f *Finder) ensure() {
	n := f.g.Len()
	if len(f.seen) == n {
		return
	}
	f.seen = make([]uint32, n)
	f.closed = make([]uint32, n)
	f.gScore = make([]float64, n)
	f.parent = make([]int32, n)
	f.gen = 0
}

func (f *Finder) nextGen() {
	f.gen++
	if f.gen == 0 {
		for i := range f.seen {
			f.seen[i] = 0
			f.closed[i] = 0
		}
		f.gen = 1
	}
	f.open.reset()
	f.seq = 0
}

// Find searches from start to goal. It returns false when either point is
// outside the grid or no path exists. Solid start or goal tiles are treated
// as passable for this search only.
func (f *Finder) Find(start, goal geom.Point) (Result, bool) {
	g := f.g
	s := g.IndexAt(start)
	t := g.IndexAt(goal)
	if s < 0 || t < 0 {
		return Result{}, false
	}
	f.searches++
	if s == t {
		return Result{Waypoints: []geom.Point{goal}, Tiles: []int{s}}, true
	}

	f.ensure()
	f.nextGen()

	minCost := g.MinCost()
	tc, tr := g.Coords(t)
	heur := func(i int) float64 {
		c, r := g.Coords(i)
		return float64(abs(c-tc)+abs(r-tr)) * minCost
	}

	f.seen[s] = f.gen
	f.gScore[s] = 0
	f.parent[s] = -1
	h0 := heur(s)
	f.open.push(node{idx: int32(s), g: 0, f: h0, h: h0, seq: f.seq})

	cols, rows := g.Cols(), g.Rows()
	expanded := 0
	found := false
	for f.open.Len() > 0 {
		cur := f.open.pop()
		ci := int(cur.idx)
		if f.closed[ci] == f.gen || cur.g > f.gScore[ci] {
			continue
		}
		f.closed[ci] = f.gen
		expanded++
		if ci == t {
			found = true
			break
		}
		cc, cr := ci%cols, ci/cols
		for _, d := range dirs {
			nc, nr := cc+d[0], cr+d[1]
			if nc < 0 || nr < 0 || nc >= cols || nr >= rows {
				continue
			}
			ni := nr*cols + nc
			if f.closed[ni] == f.gen {
				continue
			}
			if g.Solid(ni) && ni != t {
				continue
			}
			ng := cur.g + g.Cost(ni)
			if f.seen[ni] == f.gen && ng >= f.gScore[ni] {
				continue
			}
			f.seen[ni] = f.gen
			f.gScore[ni] = ng
			f.parent[ni] = int32(ci)
			h := heur(ni)
			f.seq++
			f.open.push(node{idx: int32(ni), g: ng, f: ng + h, h: h, seq: f.seq})
		}
	}
	f.totalExpanded += expanded
	if !found {
		return Result{Expanded: expanded}, false
	}

	tiles := f.reconstruct(t)
	wps := make([]geom.Point, len(tiles))
	for i, ti := range tiles {
		wps[i] = g.CenterOf(ti)
	}
	wps[len(wps)-1] = goal

	if f.opts.Smoothing {
		wps = f.smooth(wps, tiles, s, t)
	}
	snapToRoads(g, wps)

	return Result{Waypoints: wps, Tiles: tiles, Cost: f.gScore[t], Expanded: expanded}, true
}

func (f *Finder) reconstruct(t int) []int {
	f.scratch = f.scratch[:0]
	for i := int32(t); i >= 0; i = f.parent[i] {
		f.scratch = append(f.scratch, int(i))
	}
	out := make([]int, len(f.scratch))
	for i, v := range f.scratch {
		out[len(out)-1-i] = v
	}
	return out
}

// snapToRoads moves every waypoint except the final goal onto the exact
// center of the road-like tile beneath it.
func snapToRoads(g *grid.Grid, wps []geom.Point) {
	for i := 0; i < len(wps)-1; i++ {
		idx := g.IndexAt(wps[i])
		if idx >= 0 && g.IsRoadLike(idx) {
			wps[i] = g.CenterOf(idx)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
