package grid

import (
	"math"

	"github.com/l1jgo/navcore/internal/geom"
)

// Source is the source of truth a section rebuild re-derives tiles from.
// StampSection must write every structure overlapping st.Clip().
type Source interface {
	StampSection(st Stamper)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(st Stamper)

func (f SourceFunc) StampSection(st Stamper) { f(st) }

// Grid stores per-tile solidity, door flag, road class and movement cost in
// flat arrays indexed row*cols+col. Tiles are grouped into square sections;
// edits mark sections dirty and only a rebuild rewrites tile values.
// Accessed only from the simulation goroutine. No locks.
type Grid struct {
	cols, rows  int
	tileSize    float64
	sectionSize int
	sectCols    int
	sectRows    int

	solid []bool
	door  []bool
	road  []RoadClass
	cost  []float64

	minCost float64

	dirty      []bool
	dirtyCount int

	sectionRebuilds int
}

// New creates an open grid. tileSize is the world width of one tile.
func New(cols, rows int, tileSize float64, sectionSize int) *Grid {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	if tileSize <= 0 {
		tileSize = 1
	}
	if sectionSize < 1 {
		sectionSize = 16
	}
	n := cols * rows
	g := &Grid{
		cols:        cols,
		rows:        rows,
		tileSize:    tileSize,
		sectionSize: sectionSize,
		sectCols:    (cols + sectionSize - 1) / sectionSize,
		sectRows:    (rows + sectionSize - 1) / sectionSize,
		solid:       make([]bool, n),
		door:        make([]bool, n),
		road:        make([]RoadClass, n),
		cost:        make([]float64, n),
	}
	g.dirty = make([]bool, g.sectCols*g.sectRows)
	g.Clear()
	return g
}

// Clear resets every tile to open ground and drops all dirty marks.
// Used on new game.
func (g *Grid) Clear() {
	for i := range g.cost {
		g.solid[i] = false
		g.door[i] = false
		g.road[i] = RoadNone
		g.cost[i] = DefaultCost
	}
	for i := range g.dirty {
		g.dirty[i] = false
	}
	g.dirtyCount = 0
	g.minCost = DefaultCost
}

func (g *Grid) Cols() int             { return g.cols }
func (g *Grid) Rows() int             { return g.rows }
func (g *Grid) Len() int              { return len(g.cost) }
func (g *Grid) TileSize() float64     { return g.tileSize }
func (g *Grid) SectionSize() int      { return g.sectionSize }
func (g *Grid) SectionCols() int      { return g.sectCols }
func (g *Grid) SectionRows() int      { return g.sectRows }
func (g *Grid) SectionCount() int     { return len(g.dirty) }
func (g *Grid) SectionRebuilds() int  { return g.sectionRebuilds }
func (g *Grid) Bounds() geom.TileRect { return geom.TileRect{W: g.cols, H: g.rows} }

// MinCost is the lowest tile cost currently possible on the grid.
// It never exceeds the true minimum, so it is safe as a heuristic scale.
func (g *Grid) MinCost() float64 { return g.minCost }

func (g *Grid) InBounds(col, row int) bool {
	return col >= 0 && row >= 0 && col < g.cols && row < g.rows
}

func (g *Grid) Index(col, row int) int { return row*g.cols + col }

func (g *Grid) Coords(idx int) (col, row int) { return idx % g.cols, idx / g.cols }

// TileAt returns the tile containing world point p.
func (g *Grid) TileAt(p geom.Point) (col, row int, ok bool) {
	if !p.IsFinite() {
		return 0, 0, false
	}
	col = int(math.Floor(p.X / g.tileSize))
	row = int(math.Floor(p.Y / g.tileSize))
	return col, row, g.InBounds(col, row)
}

// IndexAt returns the flat index of the tile containing p, or -1.
func (g *Grid) IndexAt(p geom.Point) int {
	col, row, ok := g.TileAt(p)
	if !ok {
		return -1
	}
	return g.Index(col, row)
}

// Center returns the world position of the tile center.
func (g *Grid) Center(col, row int) geom.Point {
	return geom.Point{X: (float64(col) + 0.5) * g.tileSize, Y: (float64(row) + 0.5) * g.tileSize}
}

func (g *Grid) CenterOf(idx int) geom.Point {
	col, row := g.Coords(idx)
	return g.Center(col, row)
}

func (g *Grid) Solid(idx int) bool        { return g.solid[idx] }
func (g *Grid) Door(idx int) bool         { return g.door[idx] }
func (g *Grid) Road(idx int) RoadClass    { return g.road[idx] }
func (g *Grid) IsRoadLike(idx int) bool   { return g.road[idx].RoadLike() }
func (g *Grid) Cost(idx int) float64      { return g.cost[idx] }
func (g *Grid) Passable(idx int) bool     { return !g.solid[idx] }
func (g *Grid) SolidAt(col, row int) bool { return !g.InBounds(col, row) || g.solid[g.Index(col, row)] }

// TileRectOf converts a world rectangle to the tiles it covers, clipped to
// the grid. A zero-size rectangle covers the single tile under its corner.
func (g *Grid) TileRectOf(r geom.Rect) geom.TileRect {
	c0 := int(math.Floor(r.X / g.tileSize))
	r0 := int(math.Floor(r.Y / g.tileSize))
	c1 := int(math.Ceil((r.X + r.W) / g.tileSize))
	r1 := int(math.Ceil((r.Y + r.H) / g.tileSize))
	if c1 <= c0 {
		c1 = c0 + 1
	}
	if r1 <= r0 {
		r1 = r0 + 1
	}
	return geom.TileRect{Col: c0, Row: r0, W: c1 - c0, H: r1 - r0}.Intersect(g.Bounds())
}

// WorldRect returns the world rectangle covered by tr.
func (g *Grid) WorldRect(tr geom.TileRect) geom.Rect {
	ts := g.tileSize
	return geom.Rect{X: float64(tr.Col) * ts, Y: float64(tr.Row) * ts, W: float64(tr.W) * ts, H: float64(tr.H) * ts}
}

// --- Sections ---

// SectionOf returns the section index containing tile (col,row).
func (g *Grid) SectionOf(col, row int) int {
	return (row/g.sectionSize)*g.sectCols + col/g.sectionSize
}

// SectionBounds returns the tiles of section s, clipped to the grid.
func (g *Grid) SectionBounds(s int) geom.TileRect {
	sc := s % g.sectCols
	sr := s / g.sectCols
	tr := geom.TileRect{Col: sc * g.sectionSize, Row: sr * g.sectionSize, W: g.sectionSize, H: g.sectionSize}
	return tr.Intersect(g.Bounds())
}

// SectionsInTileRect lists the sections overlapping tr in ascending order.
func (g *Grid) SectionsInTileRect(tr geom.TileRect) []int {
	tr = tr.Intersect(g.Bounds())
	if tr.Empty() {
		return nil
	}
	sc0, sr0 := tr.Col/g.sectionSize, tr.Row/g.sectionSize
	sc1, sr1 := (tr.MaxCol()-1)/g.sectionSize, (tr.MaxRow()-1)/g.sectionSize
	out := make([]int, 0, (sc1-sc0+1)*(sr1-sr0+1))
	for sr := sr0; sr <= sr1; sr++ {
		for sc := sc0; sc <= sc1; sc++ {
			out = append(out, sr*g.sectCols+sc)
		}
	}
	return out
}

// SectionsInRect lists the sections overlapping world rectangle r.
func (g *Grid) SectionsInRect(r geom.Rect) []int {
	return g.SectionsInTileRect(g.TileRectOf(r))
}

// SectionsInDisc lists the sections whose area intersects the disc.
func (g *Grid) SectionsInDisc(center geom.Point, radius float64) []int {
	if !center.IsFinite() || radius < 0 || math.IsNaN(radius) {
		return nil
	}
	box := g.TileRectOf(geom.Rect{X: center.X - radius, Y: center.Y - radius, W: 2 * radius, H: 2 * radius})
	var out []int
	for _, s := range g.SectionsInTileRect(box) {
		wr := g.WorldRect(g.SectionBounds(s))
		nx := math.Max(wr.X, math.Min(center.X, wr.X+wr.W))
		ny := math.Max(wr.Y, math.Min(center.Y, wr.Y+wr.H))
		if math.Hypot(center.X-nx, center.Y-ny) <= radius {
			out = append(out, s)
		}
	}
	return out
}

// NeighborSections returns the up-to-4 sections sharing an edge with s.
func (g *Grid) NeighborSections(s int) []int {
	sc, sr := s%g.sectCols, s/g.sectCols
	out := make([]int, 0, 4)
	if sc > 0 {
		out = append(out, s-1)
	}
	if sc < g.sectCols-1 {
		out = append(out, s+1)
	}
	if sr > 0 {
		out = append(out, s-g.sectCols)
	}
	if sr < g.sectRows-1 {
		out = append(out, s+g.sectCols)
	}
	return out
}

func (g *Grid) IsDirty(s int) bool { return g.dirty[s] }
func (g *Grid) DirtyCount() int    { return g.dirtyCount }

// DirtySections lists dirty sections in ascending order.
func (g *Grid) DirtySections() []int {
	if g.dirtyCount == 0 {
		return nil
	}
	out := make([]int, 0, g.dirtyCount)
	for s, d := range g.dirty {
		if d {
			out = append(out, s)
		}
	}
	return out
}

func (g *Grid) markSections(sections []int) int {
	for _, s := range sections {
		if !g.dirty[s] {
			g.dirty[s] = true
			g.dirtyCount++
		}
	}
	return len(sections)
}

// MarkRectSolid records that solidity under r changed. Tiles are left
// untouched until the overlapping sections are rebuilt.
func (g *Grid) MarkRectSolid(r geom.Rect) int {
	return g.markSections(g.SectionsInRect(r))
}

// MarkRectCost records that movement cost under r changed. The clamped cost
// lowers the tracked minimum immediately so searches that run before the
// rebuild keep an admissible heuristic.
func (g *Grid) MarkRectCost(r geom.Rect, cost float64) int {
	c := ClampCost(cost, cost <= MaxRoadCost)
	if c < g.minCost {
		g.minCost = c
	}
	return g.markSections(g.SectionsInRect(r))
}

// --- Rebuild ---

// RebuildSection resets section s to open ground, re-stamps it from src and
// clears its dirty flag.
func (g *Grid) RebuildSection(s int, src Source) {
	if s < 0 || s >= len(g.dirty) {
		return
	}
	tr := g.SectionBounds(s)
	for row := tr.Row; row < tr.MaxRow(); row++ {
		base := row * g.cols
		for col := tr.Col; col < tr.MaxCol(); col++ {
			i := base + col
			g.solid[i] = false
			g.door[i] = false
			g.road[i] = RoadNone
			g.cost[i] = DefaultCost
		}
	}
	if src != nil {
		src.StampSection(Stamper{g: g, clip: tr})
	}
	if g.dirty[s] {
		g.dirty[s] = false
		g.dirtyCount--
	}
	g.sectionRebuilds++
}

// RebuildSections rebuilds each listed section once.
func (g *Grid) RebuildSections(sections []int, src Source) {
	for _, s := range sections {
		g.RebuildSection(s, src)
	}
}

// RebuildAll rebuilds every section and recomputes the minimum cost.
func (g *Grid) RebuildAll(src Source) {
	for s := range g.dirty {
		g.RebuildSection(s, src)
	}
	g.minCost = DefaultCost
	for _, c := range g.cost {
		if c < g.minCost {
			g.minCost = c
		}
	}
}

// Stamper writes tile values during a section rebuild, clipped to the
// section being rebuilt.
type Stamper struct {
	g    *Grid
	clip geom.TileRect
}

// Clip is the tile area being rebuilt.
func (st Stamper) Clip() geom.TileRect { return st.clip }

// Grid exposes the grid being stamped (for coordinate conversion).
func (st Stamper) Grid() *Grid { return st.g }

func (st Stamper) each(tr geom.TileRect, fn func(i int)) {
	tr = tr.Intersect(st.clip)
	for row := tr.Row; row < tr.MaxRow(); row++ {
		base := row * st.g.cols
		for col := tr.Col; col < tr.MaxCol(); col++ {
			fn(base + col)
		}
	}
}

// FillSolid marks tiles as blocked.
func (st Stamper) FillSolid(tr geom.TileRect) {
	st.each(tr, func(i int) { st.g.solid[i] = true })
}

// FillDoor marks tiles as passable doorways; doors separate regions.
func (st Stamper) FillDoor(tr geom.TileRect) {
	st.each(tr, func(i int) { st.g.door[i] = true })
}

// FillRoad paints a road class and its cost.
func (st Stamper) FillRoad(tr geom.TileRect, class RoadClass) {
	c := class.Cost()
	st.each(tr, func(i int) {
		st.g.road[i] = class
		st.g.cost[i] = c
	})
	st.g.lowerMin(c)
}

// FillCost sets a terrain cost on non-road tiles.
func (st Stamper) FillCost(tr geom.TileRect, cost float64) {
	c := ClampCost(cost, false)
	st.each(tr, func(i int) {
		if st.g.road[i] == RoadNone {
			st.g.cost[i] = c
		}
	})
	st.g.lowerMin(c)
}

func (g *Grid) lowerMin(c float64) {
	if c < g.minCost {
		g.minCost = c
	}
}
