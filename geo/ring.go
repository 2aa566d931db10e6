package geo

import "math"

// Ring is a closed polygon ring: an ordered list of vertices with an
// implicit edge from the last point back to the first. Rings with holes are
// represented as Polygon (an outer Ring plus inner Rings).
type Ring []Point

// Polygon is a ring with zero or more holes, mirroring the teacher's
// point-in-polygon and box-intersection helpers in geometry.go but
// generalized to support the holes that difference/union clipping produces.
type Polygon struct {
	Outer Ring
	Holes []Ring
}

// Bounds returns the axis-aligned bounding box of the ring.
func (r Ring) Bounds() Bounds {
	if len(r) == 0 {
		return Bounds{}
	}
	minX, maxX := r[0].X, r[0].X
	minY, maxY := r[0].Y, r[0].Y
	for _, p := range r[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return Bounds{TopLeft: Point{minX, minY}, BottomRight: Point{maxX, maxY}}
}

// ContainsPoint performs a standard ray-casting point-in-polygon test,
// ported from the teacher's Polygon.containsPoint in geometry.go (there used
// for hit-testing at a pixel threshold; here used without a screen-space
// buffer since masks work in layer units).
func (r Ring) ContainsPoint(p Point) bool {
	inside := false
	j := len(r) - 1
	for i := 0; i < len(r); i++ {
		pi, pj := r[i], r[j]
		if ((pi.Y > p.Y) != (pj.Y > p.Y)) &&
			(p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X) {
			inside = !inside
		}
		j = i
	}
	return inside
}

// IsEmpty reports whether the ring has fewer than 3 vertices, i.e. encloses
// no area.
func (r Ring) IsEmpty() bool {
	return len(r) < 3
}

// Equal reports whether two rings describe the same closed loop, comparing
// up to cyclic rotation and reversal (clipping libraries don't guarantee
// winding order or start vertex). Ported from the intent of the original's
// PolygonCompare.h.
func Equal(a, b Ring) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	n := len(a)
	tryMatch := func(start int, reverse bool) bool {
		for i := 0; i < n; i++ {
			var j int
			if reverse {
				j = ((start-i)%n + n) % n
			} else {
				j = (start + i) % n
			}
			if a[i] != b[j] {
				return false
			}
		}
		return true
	}
	for start := 0; start < n; start++ {
		if b[start] != a[0] {
			continue
		}
		if tryMatch(start, false) || tryMatch(start, true) {
			return true
		}
	}
	return false
}

// RingsEqual reports whether two sets of rings are the same set, regardless
// of order, using Equal for membership.
func RingsEqual(a, b []Ring) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, ra := range a {
		found := false
		for j, rb := range b {
			if used[j] {
				continue
			}
			if Equal(ra, rb) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
