package region

import (
	"slices"

	"github.com/l1jgo/navcore/internal/geom"
)

// assignObjects refreshes the cached structure references of the given
// regions. A structure is referenced by every region that owns a tile of
// its footprint or of the ring around it.
func (gr *Graph) assignObjects(regions []*Region, area geom.TileRect, objs ObjectIndex) {
	if objs == nil || len(regions) == 0 {
		return
	}
	want := make(map[ID]*Region, len(regions))
	for _, r := range regions {
		r.Objects = r.Objects[:0]
		want[r.ID] = r
	}
	g := gr.g
	for _, o := range objs.ObjectsIn(area.Grow(1)) {
		ring := o.Rect.Grow(1).Intersect(g.Bounds())
		for row := ring.Row; row < ring.MaxRow(); row++ {
			for col := ring.Col; col < ring.MaxCol(); col++ {
				r, ok := want[gr.tileRegion[g.Index(col, row)]]
				if !ok {
					continue
				}
				if n := len(r.Objects); n == 0 || r.Objects[n-1] != o.ID {
					r.Objects = append(r.Objects, o.ID)
				}
			}
		}
	}
	for _, r := range regions {
		slices.Sort(r.Objects)
		r.Objects = slices.Compact(r.Objects)
	}
}

// ObjectsNear returns the structures cached on the region under p.
func (gr *Graph) ObjectsNear(p geom.Point) []uint64 {
	if r, ok := gr.regions[gr.RegionAt(p)]; ok {
		return r.Objects
	}
	return nil
}
