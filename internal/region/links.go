package region

import "slices"

type boundaryTile struct {
	to    ID
	dir   Dir
	fixed int // column for East/West, row for South/North
	along int // row for East/West, column for South/North
}

// link recomputes r's links and neighbor list from the current tile table.
// Boundary tiles facing the same neighbor in the same direction merge into
// one link while they stay contiguous.
func (gr *Graph) link(r *Region) {
	g := gr.g
	cols, rows := g.Cols(), g.Rows()
	var bt []boundaryTile
	for _, t := range r.Tiles {
		c, rw := t%cols, t/cols
		for d, off := range dirOffsets {
			nc, nr := c+off[0], rw+off[1]
			if nc < 0 || nr < 0 || nc >= cols || nr >= rows {
				continue
			}
			to := gr.tileRegion[nr*cols+nc]
			if to == 0 || to == r.ID {
				continue
			}
			b := boundaryTile{to: to, dir: Dir(d), fixed: c, along: rw}
			if Dir(d) == South || Dir(d) == North {
				b.fixed, b.along = rw, c
			}
			bt = append(bt, b)
		}
	}
	slices.SortFunc(bt, func(a, b boundaryTile) int {
		switch {
		case a.to != b.to:
			return int(a.to) - int(b.to)
		case a.dir != b.dir:
			return int(a.dir) - int(b.dir)
		case a.fixed != b.fixed:
			return a.fixed - b.fixed
		}
		return a.along - b.along
	})

	r.Links = r.Links[:0]
	r.Neighbors = r.Neighbors[:0]
	for i := 0; i < len(bt); {
		j := i + 1
		for j < len(bt) && bt[j].to == bt[i].to && bt[j].dir == bt[i].dir &&
			bt[j].fixed == bt[i].fixed && bt[j].along == bt[j-1].along+1 {
			j++
		}
		l := Link{To: bt[i].to, Dir: bt[i].dir, Span: j - i}
		if l.Dir == South || l.Dir == North {
			l.Col, l.Row = bt[i].along, bt[i].fixed
		} else {
			l.Col, l.Row = bt[i].fixed, bt[i].along
		}
		r.Links = append(r.Links, l)
		if n := len(r.Neighbors); n == 0 || r.Neighbors[n-1] != l.To {
			r.Neighbors = append(r.Neighbors, l.To)
		}
		i = j
	}
}
