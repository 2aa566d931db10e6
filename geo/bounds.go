// Package geo holds the coordinate and polygon primitives shared by the
// tile pyramid, visibility selector and mask builder. It carries no
// knowledge of zoom levels or tiles; it only knows points, rectangles and
// rings.
package geo

import "math"

// Point is a 2D point in a layer's coordinate system.
type Point struct {
	X, Y float64
}

// Bounds is an axis-aligned rectangle. It is not normalized: TopLeft.X may
// be greater than BottomRight.X, or TopLeft.Y less than BottomRight.Y,
// depending on the layer's axis orientation. Callers derive "left-to-right"
// and "top-to-bottom" from the owning zoom.Level, not from this struct.
type Bounds struct {
	TopLeft     Point
	BottomRight Point
}

// Normalized returns a copy with TopLeft holding the minimum coordinates and
// BottomRight the maximum, regardless of the original orientation.
func (b Bounds) Normalized() Bounds {
	minX, maxX := b.TopLeft.X, b.BottomRight.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := b.TopLeft.Y, b.BottomRight.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return Bounds{TopLeft: Point{minX, minY}, BottomRight: Point{maxX, maxY}}
}

// Width returns the absolute width of the bounds.
func (b Bounds) Width() float64 {
	return math.Abs(b.BottomRight.X - b.TopLeft.X)
}

// Height returns the absolute height of the bounds.
func (b Bounds) Height() float64 {
	return math.Abs(b.BottomRight.Y - b.TopLeft.Y)
}

// Padded grows the bounds by the given amount on every side, preserving
// orientation.
func (b Bounds) Padded(amount float64) Bounds {
	n := b.Normalized()
	padded := Bounds{
		TopLeft:     Point{n.TopLeft.X - amount, n.TopLeft.Y - amount},
		BottomRight: Point{n.BottomRight.X + amount, n.BottomRight.Y + amount},
	}
	// Restore the caller's original orientation.
	if b.TopLeft.X > b.BottomRight.X {
		padded.TopLeft.X, padded.BottomRight.X = padded.BottomRight.X, padded.TopLeft.X
	}
	if b.TopLeft.Y > b.BottomRight.Y {
		padded.TopLeft.Y, padded.BottomRight.Y = padded.BottomRight.Y, padded.TopLeft.Y
	}
	return padded
}

// Intersects reports whether two (normalized) rectangles overlap.
func (b Bounds) Intersects(other Bounds) bool {
	a := b.Normalized()
	o := other.Normalized()
	return a.TopLeft.X <= o.BottomRight.X && a.BottomRight.X >= o.TopLeft.X &&
		a.TopLeft.Y <= o.BottomRight.Y && a.BottomRight.Y >= o.TopLeft.Y
}

// Contains reports whether other is entirely inside b (both normalized).
func (b Bounds) Contains(other Bounds) bool {
	a := b.Normalized()
	o := other.Normalized()
	return o.TopLeft.X >= a.TopLeft.X && o.BottomRight.X <= a.BottomRight.X &&
		o.TopLeft.Y >= a.TopLeft.Y && o.BottomRight.Y <= a.BottomRight.Y
}

// Intersection returns the overlapping rectangle of two normalized bounds
// and whether an overlap exists at all.
func (b Bounds) Intersection(other Bounds) (Bounds, bool) {
	a := b.Normalized()
	o := other.Normalized()
	minX := math.Max(a.TopLeft.X, o.TopLeft.X)
	minY := math.Max(a.TopLeft.Y, o.TopLeft.Y)
	maxX := math.Min(a.BottomRight.X, o.BottomRight.X)
	maxY := math.Min(a.BottomRight.Y, o.BottomRight.Y)
	if minX >= maxX || minY >= maxY {
		return Bounds{}, false
	}
	return Bounds{TopLeft: Point{minX, minY}, BottomRight: Point{maxX, maxY}}, true
}

// Ring returns the four corners of the (normalized) rectangle as a closed
// ring, suitable for polygon clipping.
func (b Bounds) Ring() Ring {
	n := b.Normalized()
	return Ring{
		{n.TopLeft.X, n.TopLeft.Y},
		{n.BottomRight.X, n.TopLeft.Y},
		{n.BottomRight.X, n.BottomRight.Y},
		{n.TopLeft.X, n.BottomRight.Y},
	}
}
