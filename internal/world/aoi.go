package world

import (
	"slices"

	"github.com/l1jgo/navcore/internal/core/ecs"
	"github.com/l1jgo/navcore/internal/geom"
)

// CellIndex is a cell-keyed spatial index over structure footprints.
// A footprint is registered in every cell it overlaps, so a query only
// visits the cells under the query rectangle.
// Accessed only from the simulation goroutine. No locks.

const cellSize = 16 // tiles

type cellKey struct {
	cx int32
	cy int32
}

func toCellCoord(v int) int32 {
	if v < 0 {
		return int32((v - cellSize + 1) / cellSize)
	}
	return int32(v / cellSize)
}

type CellIndex struct {
	cells map[cellKey]map[ecs.EntityID]struct{}
}

func NewCellIndex() *CellIndex {
	return &CellIndex{
		cells: make(map[cellKey]map[ecs.EntityID]struct{}),
	}
}

func (ix *CellIndex) eachCell(tr geom.TileRect, fn func(cellKey)) {
	if tr.Empty() {
		return
	}
	cx0, cy0 := toCellCoord(tr.Col), toCellCoord(tr.Row)
	cx1, cy1 := toCellCoord(tr.MaxCol()-1), toCellCoord(tr.MaxRow()-1)
	for cy := cy0; cy <= cy1; cy++ {
		for cx := cx0; cx <= cx1; cx++ {
			fn(cellKey{cx: cx, cy: cy})
		}
	}
}

// Add registers id under every cell tr overlaps.
func (ix *CellIndex) Add(id ecs.EntityID, tr geom.TileRect) {
	ix.eachCell(tr, func(k cellKey) {
		cell := ix.cells[k]
		if cell == nil {
			cell = make(map[ecs.EntityID]struct{})
			ix.cells[k] = cell
		}
		cell[id] = struct{}{}
	})
}

// Remove drops id from the cells tr overlaps.
func (ix *CellIndex) Remove(id ecs.EntityID, tr geom.TileRect) {
	ix.eachCell(tr, func(k cellKey) {
		if cell := ix.cells[k]; cell != nil {
			delete(cell, id)
			if len(cell) == 0 {
				delete(ix.cells, k)
			}
		}
	})
}

// Candidates returns every id registered in a cell under tr, ascending and
// without duplicates. Callers do the exact overlap test.
func (ix *CellIndex) Candidates(tr geom.TileRect) []ecs.EntityID {
	var out []ecs.EntityID
	ix.eachCell(tr, func(k cellKey) {
		for id := range ix.cells[k] {
			out = append(out, id)
		}
	})
	slices.Sort(out)
	return slices.Compact(out)
}

func (ix *CellIndex) Clear() { clear(ix.cells) }

// Cells counts populated cells.
func (ix *CellIndex) Cells() int { return len(ix.cells) }
