package pathfind

// node is an open-list entry. Entries are pushed again on improvement and
// stale ones are skipped on pop, so no decrease-key is needed.
type node struct {
	idx int32
	g   float64
	f   float64
	h   float64
	seq uint64
}

// less orders by f, then lower h (closer to goal), then insertion order.
func (a node) less(b node) bool {
	if a.f != b.f {
		return a.f < b.f
	}
	if a.h != b.h {
		return a.h < b.h
	}
	return a.seq < b.seq
}

// minHeap is a binary heap over a reusable slice.
type minHeap struct {
	items []node
}

func (h *minHeap) Len() int { return len(h.items) }

func (h *minHeap) reset() { h.items = h.items[:0] }

func (h *minHeap) push(n node) {
	h.items = append(h.items, n)
	i := len(h.items) - 1
	for i > 0 {
		p := (i - 1) / 2
		if !h.items[i].less(h.items[p]) {
			break
		}
		h.items[i], h.items[p] = h.items[p], h.items[i]
		i = p
	}
}

func (h *minHeap) pop() node {
	top := h.items[0]
	last := len(h.items) - 1
	h.items[0] = h.items[last]
	h.items = h.items[:last]
	i := 0
	for {
		l := 2*i + 1
		if l >= last {
			break
		}
		m := l
		if r := l + 1; r < last && h.items[r].less(h.items[l]) {
			m = r
		}
		if !h.items[m].less(h.items[i]) {
			break
		}
		h.items[i], h.items[m] = h.items[m], h.items[i]
		i = m
	}
	return top
}
