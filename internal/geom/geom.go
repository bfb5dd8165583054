package geom

import "math"

// Point is a position in world coordinates.
type Point struct {
	X float64
	Y float64
}

func Pt(x, y float64) Point { return Point{X: x, Y: y} }

func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }

// Dist returns the euclidean distance between p and o.
func (p Point) Dist(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// IsFinite reports whether both components are real numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Rect is an axis-aligned rectangle in world coordinates.
// X/Y is the top-left corner; W/H extend right and down.
type Rect struct {
	X, Y float64
	W, H float64
}

func (r Rect) Center() Point { return Point{X: r.X + r.W/2, Y: r.Y + r.H/2} }

// Contains reports whether p lies inside r (right/bottom edges exclusive).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// HalfDiagonal is the radius of the smallest disc centered on r that covers it.
func (r Rect) HalfDiagonal() float64 {
	return math.Hypot(r.W, r.H) / 2
}

// TileRect is a rectangle of tiles: columns [Col, Col+W), rows [Row, Row+H).
type TileRect struct {
	Col, Row int
	W, H     int
}

func (r TileRect) Empty() bool { return r.W <= 0 || r.H <= 0 }

func (r TileRect) MaxCol() int { return r.Col + r.W }
func (r TileRect) MaxRow() int { return r.Row + r.H }

// Contains reports whether tile (col,row) lies inside r.
func (r TileRect) Contains(col, row int) bool {
	return col >= r.Col && col < r.Col+r.W && row >= r.Row && row < r.Row+r.H
}

// Intersect returns the overlap of r and o. The result is Empty when they do not overlap.
func (r TileRect) Intersect(o TileRect) TileRect {
	c0 := max(r.Col, o.Col)
	r0 := max(r.Row, o.Row)
	c1 := min(r.MaxCol(), o.MaxCol())
	r1 := min(r.MaxRow(), o.MaxRow())
	if c1 <= c0 || r1 <= r0 {
		return TileRect{}
	}
	return TileRect{Col: c0, Row: r0, W: c1 - c0, H: r1 - r0}
}

// Overlaps reports whether r and o share at least one tile.
func (r TileRect) Overlaps(o TileRect) bool {
	return !r.Intersect(o).Empty()
}

// Grow expands r by n tiles on every side.
func (r TileRect) Grow(n int) TileRect {
	return TileRect{Col: r.Col - n, Row: r.Row - n, W: r.W + 2*n, H: r.H + 2*n}
}

// Circle is a disc in world coordinates.
type Circle struct {
	Center Point
	Radius float64
}

// ContainsCircle reports whether o lies entirely inside c.
func (c Circle) ContainsCircle(o Circle) bool {
	return c.Center.Dist(o.Center)+o.Radius <= c.Radius
}
