package region

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/l1jgo/navcore/internal/geom"
	"github.com/l1jgo/navcore/internal/grid"
)

// Graph partitions a grid into regions and answers reachability queries in
// time proportional to the number of regions visited.
type Graph struct {
	log *zap.Logger
	g   *grid.Grid

	tileRegion []ID
	regions    map[ID]*Region
	bySection  [][]ID
	rooms      map[RoomID]*Room

	built         bool
	fullBuilds    int
	partialBuilds int

	// BFS scratch
	visited map[ID]struct{}
	queue   []ID
	stack   []int
}

func NewGraph(log *zap.Logger) *Graph {
	return &Graph{
		log:     log,
		regions: make(map[ID]*Region),
		rooms:   make(map[RoomID]*Room),
		visited: make(map[ID]struct{}),
	}
}

// Built reports whether the graph reflects some grid. Callers must fall back
// to plain search when it does not.
func (gr *Graph) Built() bool { return gr.built }

// Reset drops every region. Used on new game.
func (gr *Graph) Reset() {
	gr.g = nil
	gr.tileRegion = nil
	gr.regions = make(map[ID]*Region)
	gr.rooms = make(map[RoomID]*Room)
	gr.bySection = nil
	gr.built = false
}

// RebuildAll partitions the whole grid and returns every region id whose
// membership, tile costs or neighbor set changed, including ids that
// appeared or disappeared.
func (gr *Graph) RebuildAll(g *grid.Grid, objs ObjectIndex) []ID {
	start := time.Now()
	if gr.g != g || len(gr.tileRegion) != g.Len() {
		gr.g = g
		gr.tileRegion = make([]ID, g.Len())
		gr.bySection = make([][]ID, g.SectionCount())
		gr.regions = make(map[ID]*Region)
	}
	old := make(map[ID]uint64, len(gr.regions))
	for id, r := range gr.regions {
		old[id] = r.sig
	}

	clear(gr.tileRegion)
	gr.regions = make(map[ID]*Region, len(old))
	all := make([]int, g.SectionCount())
	for s := range all {
		all[s] = s
		gr.bySection[s] = gr.bySection[s][:0]
		gr.fillSection(s)
	}
	changed := gr.finish(all, old, g.Bounds(), objs)
	gr.fullBuilds++
	gr.built = true
	gr.log.Debug("region graph rebuilt",
		zap.Int("regions", len(gr.regions)),
		zap.Int("changed", len(changed)),
		zap.Duration("took", time.Since(start)))
	return changed
}

// RebuildSections re-partitions the listed sections. Regions in adjacent
// sections keep their ids but have links and neighbors refreshed. The graph
// must have been built with RebuildAll first; otherwise this does a full
// build.
func (gr *Graph) RebuildSections(g *grid.Grid, sections []int, objs ObjectIndex) []ID {
	if !gr.built || gr.g != g || len(gr.tileRegion) != g.Len() {
		return gr.RebuildAll(g, objs)
	}
	if len(sections) == 0 {
		return nil
	}
	start := time.Now()

	rebuilt := make(map[int]bool, len(sections))
	for _, s := range sections {
		if s >= 0 && s < len(gr.bySection) {
			rebuilt[s] = true
		}
	}
	relink := make(map[int]bool, len(rebuilt)*3)
	for s := range rebuilt {
		relink[s] = true
		for _, n := range g.NeighborSections(s) {
			relink[n] = true
		}
	}

	old := make(map[ID]uint64)
	for s := range relink {
		for _, id := range gr.bySection[s] {
			old[id] = gr.regions[id].sig
		}
	}
	for s := range rebuilt {
		for _, id := range gr.bySection[s] {
			for _, t := range gr.regions[id].Tiles {
				gr.tileRegion[t] = 0
			}
			delete(gr.regions, id)
		}
		gr.bySection[s] = gr.bySection[s][:0]
	}
	for _, s := range sortedKeys(rebuilt) {
		gr.fillSection(s)
	}

	area := geom.TileRect{}
	for s := range relink {
		area = union(area, g.SectionBounds(s))
	}
	changed := gr.finish(sortedKeys(relink), old, area, objs)
	gr.partialBuilds++
	gr.log.Debug("region sections rebuilt",
		zap.Int("sections", len(rebuilt)),
		zap.Int("changed", len(changed)),
		zap.Duration("took", time.Since(start)))
	return changed
}

// finish links the regions of the given sections, recomputes signatures,
// rooms and object references, and diffs against the old signatures.
func (gr *Graph) finish(sections []int, old map[ID]uint64, area geom.TileRect, objs ObjectIndex) []ID {
	var touched []*Region
	for _, s := range sections {
		for _, id := range gr.bySection[s] {
			touched = append(touched, gr.regions[id])
		}
	}
	for _, r := range touched {
		gr.link(r)
	}
	for _, r := range touched {
		r.sig = gr.signature(r)
	}
	gr.buildRooms()
	gr.assignObjects(touched, area, objs)

	var changed []ID
	for id, sig := range old {
		r, ok := gr.regions[id]
		if !ok || r.sig != sig {
			changed = append(changed, id)
		}
	}
	for _, r := range touched {
		if _, ok := old[r.ID]; !ok {
			changed = append(changed, r.ID)
		}
	}
	slices.Sort(changed)
	return changed
}

// fillSection flood-fills section s. Door tiles only join door tiles and
// open tiles only join open tiles.
func (gr *Graph) fillSection(s int) {
	g := gr.g
	b := g.SectionBounds(s)
	for row := b.Row; row < b.MaxRow(); row++ {
		for col := b.Col; col < b.MaxCol(); col++ {
			i := g.Index(col, row)
			if g.Solid(i) || gr.tileRegion[i] != 0 {
				continue
			}
			gr.flood(s, b, i)
		}
	}
}

func (gr *Graph) flood(s int, b geom.TileRect, seed int) {
	g := gr.g
	id := ID(seed + 1) // row-major scan: the seed is the smallest index
	door := g.Door(seed)
	r := &Region{ID: id, Section: s}
	if door {
		r.Kind = KindDoor
	}
	cols, rows := g.Cols(), g.Rows()

	gr.tileRegion[seed] = id
	gr.stack = append(gr.stack[:0], seed)
	for len(gr.stack) > 0 {
		t := gr.stack[len(gr.stack)-1]
		gr.stack = gr.stack[:len(gr.stack)-1]
		r.Tiles = append(r.Tiles, t)
		c, rw := t%cols, t/cols
		if c == 0 || rw == 0 || c == cols-1 || rw == rows-1 {
			r.touchesEdge = true
		}
		for _, d := range dirOffsets {
			nc, nr := c+d[0], rw+d[1]
			if !b.Contains(nc, nr) {
				continue
			}
			n := nr*cols + nc
			if gr.tileRegion[n] != 0 || g.Solid(n) || g.Door(n) != door {
				continue
			}
			gr.tileRegion[n] = id
			gr.stack = append(gr.stack, n)
		}
	}
	slices.Sort(r.Tiles)
	r.Bounds = tileBounds(g, r.Tiles)
	gr.regions[id] = r
	gr.bySection[s] = append(gr.bySection[s], id)
}

// signature hashes everything a cached path through the region depends on.
func (gr *Graph) signature(r *Region) uint64 {
	d := xxhash.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = d.Write(buf[:])
	}
	put(uint64(r.Kind))
	put(uint64(len(r.Tiles)))
	for _, t := range r.Tiles {
		put(uint64(t))
		put(math.Float64bits(gr.g.Cost(t)))
	}
	put(uint64(len(r.Neighbors)))
	for _, n := range r.Neighbors {
		put(uint64(n))
	}
	return d.Sum64()
}

// --- Queries ---

// RegionAt returns the region of the tile under p, or 0.
func (gr *Graph) RegionAt(p geom.Point) ID {
	if !gr.built {
		return 0
	}
	i := gr.g.IndexAt(p)
	if i < 0 {
		return 0
	}
	return gr.tileRegion[i]
}

// RegionOfTile returns the region owning flat tile index i, or 0.
func (gr *Graph) RegionOfTile(i int) ID {
	if !gr.built || i < 0 || i >= len(gr.tileRegion) {
		return 0
	}
	return gr.tileRegion[i]
}

// Region returns the region with the given id. The result must not be modified.
func (gr *Graph) Region(id ID) (*Region, bool) {
	r, ok := gr.regions[id]
	return r, ok
}

// Room returns a room by id.
func (gr *Graph) Room(id RoomID) (*Room, bool) {
	r, ok := gr.rooms[id]
	return r, ok
}

// RoomAt returns the room of the tile under p, or 0 for solid and door tiles.
func (gr *Graph) RoomAt(p geom.Point) RoomID {
	if r, ok := gr.regions[gr.RegionAt(p)]; ok {
		return r.Room
	}
	return 0
}

// RegionsAlong returns the distinct regions a tile sequence passes through,
// ascending.
func (gr *Graph) RegionsAlong(tiles []int) []ID {
	if !gr.built {
		return nil
	}
	out := make([]ID, 0, 8)
	var prev ID
	for _, t := range tiles {
		id := gr.RegionOfTile(t)
		if id == 0 || id == prev {
			continue
		}
		prev = id
		out = append(out, id)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// IDs returns every region id, ascending.
func (gr *Graph) IDs() []ID {
	out := make([]ID, 0, len(gr.regions))
	for id := range gr.regions {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (gr *Graph) Len() int { return len(gr.regions) }

// IsReachable reports whether a walk from start to end exists. An unbuilt
// graph answers true so callers always fall through to search. Points
// outside the grid are unreachable.
func (gr *Graph) IsReachable(start, end geom.Point) bool {
	if !gr.built {
		return true
	}
	g := gr.g
	sc, sr, ok1 := g.TileAt(start)
	ec, er, ok2 := g.TileAt(end)
	if !ok1 || !ok2 {
		return false
	}
	if abs(sc-ec)+abs(sr-er) <= 1 {
		return true
	}
	from := gr.endpointRegions(sc, sr)
	to := gr.endpointRegions(ec, er)
	if len(from) == 0 || len(to) == 0 {
		return false
	}
	for _, a := range from {
		if slices.Contains(to, a) {
			return true
		}
	}

	clear(gr.visited)
	gr.queue = gr.queue[:0]
	for _, a := range from {
		gr.visited[a] = struct{}{}
		gr.queue = append(gr.queue, a)
	}
	for head := 0; head < len(gr.queue); head++ {
		r := gr.regions[gr.queue[head]]
		for _, n := range r.Neighbors {
			if _, seen := gr.visited[n]; seen {
				continue
			}
			if slices.Contains(to, n) {
				return true
			}
			gr.visited[n] = struct{}{}
			gr.queue = append(gr.queue, n)
		}
	}
	return false
}

// endpointRegions resolves a search endpoint. A solid tile is entered from
// any passable 4-neighbor, so it resolves to their regions.
func (gr *Graph) endpointRegions(col, row int) []ID {
	g := gr.g
	if id := gr.tileRegion[g.Index(col, row)]; id != 0 {
		return []ID{id}
	}
	var out []ID
	for _, d := range dirOffsets {
		nc, nr := col+d[0], row+d[1]
		if !g.InBounds(nc, nr) {
			continue
		}
		if id := gr.tileRegion[g.Index(nc, nr)]; id != 0 && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// CheckConsistency verifies the tile table against the grid and the region
// member lists.
func (gr *Graph) CheckConsistency() error {
	if !gr.built {
		return nil
	}
	g := gr.g
	if len(gr.tileRegion) != g.Len() {
		return fmt.Errorf("%w: table covers %d tiles, grid has %d", ErrInconsistent, len(gr.tileRegion), g.Len())
	}
	for i, id := range gr.tileRegion {
		if g.Solid(i) != (id == 0) {
			return fmt.Errorf("%w: tile %d solid=%v region=%d", ErrInconsistent, i, g.Solid(i), id)
		}
		if id != 0 {
			if _, ok := gr.regions[id]; !ok {
				return fmt.Errorf("%w: tile %d claims missing region %d", ErrInconsistent, i, id)
			}
		}
	}
	for id, r := range gr.regions {
		for _, t := range r.Tiles {
			if t < 0 || t >= len(gr.tileRegion) || gr.tileRegion[t] != id {
				return fmt.Errorf("%w: region %d lists tile %d it does not own", ErrInconsistent, id, t)
			}
		}
	}
	return nil
}

// Stats reports region and room counts.
func (gr *Graph) Stats() Stats {
	st := Stats{
		Built:         gr.built,
		Regions:       len(gr.regions),
		Rooms:         len(gr.rooms),
		FullBuilds:    gr.fullBuilds,
		PartialBuilds: gr.partialBuilds,
	}
	tiles := 0
	for _, r := range gr.regions {
		tiles += len(r.Tiles)
		if r.Kind == KindDoor {
			st.DoorRegions++
		}
	}
	for _, rm := range gr.rooms {
		if rm.Outdoors {
			st.OutdoorRooms++
		}
	}
	if st.Regions > 0 {
		st.AvgRegionSize = float64(tiles) / float64(st.Regions)
	}
	return st
}

func tileBounds(g *grid.Grid, tiles []int) geom.TileRect {
	c0, r0 := g.Coords(tiles[0])
	c1, r1 := c0, r0
	for _, t := range tiles[1:] {
		c, r := g.Coords(t)
		c0, c1 = min(c0, c), max(c1, c)
		r0, r1 = min(r0, r), max(r1, r)
	}
	return geom.TileRect{Col: c0, Row: r0, W: c1 - c0 + 1, H: r1 - r0 + 1}
}

func union(a, b geom.TileRect) geom.TileRect {
	if a.Empty() {
		return b
	}
	if b.Empty() {
		return a
	}
	c0, r0 := min(a.Col, b.Col), min(a.Row, b.Row)
	c1, r1 := max(a.MaxCol(), b.MaxCol()), max(a.MaxRow(), b.MaxRow())
	return geom.TileRect{Col: c0, Row: r0, W: c1 - c0, H: r1 - r0}
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
