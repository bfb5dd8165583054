package pathfind

import (
	"math"

	"github.com/l1jgo/navcore/internal/geom"
)

// smooth drops intermediate waypoints the agent can walk past in a straight
// line. wps[i] lies on tiles[i]. A skip is rejected when the segment crosses
// a solid tile (other than the search endpoints), a tile costlier than the
// skipped stretch, or when it would cut a right-angle turn made on a road.
// Door tiles are always kept so agents pass through the door center.
func (f *Finder) smooth(wps []geom.Point, tiles []int, s, t int) []geom.Point {
	last := len(wps) - 1
	if last < 2 {
		return wps
	}
	g := f.g
	keep := make([]bool, len(wps))
	for k := 1; k < last; k++ {
		if g.Door(tiles[k]) || g.IsRoadLike(tiles[k]) && turns(tiles[k-1], tiles[k], tiles[k+1]) {
			keep[k] = true
		}
	}

	out := make([]geom.Point, 0, len(wps))
	out = append(out, wps[0])
	a := 0
	for a < last {
		next := a + 1
		maxCost := math.Max(g.Cost(tiles[a]), g.Cost(tiles[a+1]))
		for k := a + 2; k <= last; k++ {
			if keep[k-1] {
				break
			}
			maxCost = math.Max(maxCost, g.Cost(tiles[k]))
			if !f.lineClear(wps[a], wps[k], s, t, maxCost) {
				break
			}
			next = k
		}
		out = append(out, wps[next])
		a = next
	}
	return out
}

// turns reports whether the step a→b and the step b→c differ in direction.
func turns(a, b, c int) bool {
	return b-a != c-b
}

// lineClear walks every tile the segment p→q touches (supercover: both
// neighbors are checked when the segment passes exactly through a corner).
func (f *Finder) lineClear(p, q geom.Point, s, t int, maxCost float64) bool {
	g := f.g
	ts := g.TileSize()
	blocked := func(c, r int) bool {
		if !g.InBounds(c, r) {
			return true
		}
		i := g.Index(c, r)
		if i == s || i == t {
			return false
		}
		return g.Solid(i) || g.Cost(i) > maxCost
	}

	x0, y0 := p.X/ts, p.Y/ts
	x1, y1 := q.X/ts, q.Y/ts
	cx, cy := int(math.Floor(x0)), int(math.Floor(y0))
	ex, ey := int(math.Floor(x1)), int(math.Floor(y1))
	if blocked(cx, cy) {
		return false
	}

	dx, dy := x1-x0, y1-y0
	stepX, stepY := 0, 0
	tMaxX, tMaxY := math.Inf(1), math.Inf(1)
	tDeltaX, tDeltaY := math.Inf(1), math.Inf(1)
	if dx > 0 {
		stepX = 1
		tDeltaX = 1 / dx
		tMaxX = (float64(cx+1) - x0) / dx
	} else if dx < 0 {
		stepX = -1
		tDeltaX = -1 / dx
		tMaxX = (x0 - float64(cx)) / -dx
	}
	if dy > 0 {
		stepY = 1
		tDeltaY = 1 / dy
		tMaxY = (float64(cy+1) - y0) / dy
	} else if dy < 0 {
		stepY = -1
		tDeltaY = -1 / dy
		tMaxY = (y0 - float64(cy)) / -dy
	}

	const eps = 1e-9
	for n := abs(ex-cx) + abs(ey-cy); n > 0; n-- {
		switch {
		case math.Abs(tMaxX-tMaxY) < eps:
			if blocked(cx+stepX, cy) || blocked(cx, cy+stepY) {
				return false
			}
			cx += stepX
			cy += stepY
			tMaxX += tDeltaX
			tMaxY += tDeltaY
			n--
		case tMaxX < tMaxY:
			cx += stepX
			tMaxX += tDeltaX
		default:
			cy += stepY
			tMaxY += tDeltaY
		}
		if blocked(cx, cy) {
			return false
		}
	}
	return true
}
