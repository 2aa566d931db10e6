// Package mask implements per-tile polygon masking (spec component C5): the
// masked region a tile must draw is the visible viewport clipped against
// holes punched by any already-loaded higher-zoom tile that fully covers
// part of it, avoiding overdraw where finer detail is already on screen.
package mask

import (
	"github.com/akavel/polyclip-go"
	"github.com/flywave/go-earcut"
	"github.com/pkg/errors"

	"github.com/goliath-tiles/tiledsource/geo"
)

// Builder accumulates coverage rings for one tile and produces the
// remaining visible mask, the polygon left over after intersecting with the
// current view and subtracting every ring a finer tile has already claimed
// (spec §4.4).
type Builder struct {
	base    geo.Ring
	view    geo.Ring
	covered []geo.Ring

	// cached* hold the inputs and output of the last Resolve call, so an
	// unchanged covering set and view don't pay for re-clipping every frame.
	hasCached     bool
	cachedBase    geo.Ring
	cachedView    geo.Ring
	cachedCovered []geo.Ring
	cachedResult  []geo.Ring
}

// NewBuilder starts a mask builder seeded with the tile's own bounds ring.
func NewBuilder(base geo.Ring) *Builder {
	return &Builder{base: base}
}

// Reset reseeds the builder for a new frame's base ring, clearing the
// accumulated coverage but keeping the last frame's cache around so Resolve
// can still detect an unchanged covering set.
func (b *Builder) Reset(base geo.Ring) {
	b.base = base
	b.view = nil
	b.covered = b.covered[:0]
}

// ClipToView restricts the mask to the given view rectangle (or view quad,
// for spherical projections), implementing spec §4.4 step 1's
// viewBoundsPolygon clip. A nil or empty view disables the clip.
func (b *Builder) ClipToView(view geo.Ring) {
	b.view = view
}

// Subtract records that region has already been drawn by a finer tile and
// must be punched out of this tile's mask.
func (b *Builder) Subtract(region geo.Ring) {
	if region.IsEmpty() {
		return
	}
	b.covered = append(b.covered, region)
}

// Resolve runs the view clip and accumulated subtractions against the base
// ring and returns the resulting polygon rings still needing to be drawn. An
// empty result means the tile is fully occluded by finer coverage or lies
// entirely outside the view (spec §4.4 step 4's CACHED short-circuit is the
// caller's business; Resolve just reports the geometry).
func (b *Builder) Resolve() []geo.Ring {
	if b.base.IsEmpty() {
		return nil
	}

	if b.hasCached && geo.Equal(b.base, b.cachedBase) && geo.Equal(b.view, b.cachedView) &&
		geo.RingsEqual(b.covered, b.cachedCovered) {
		return b.cachedResult
	}

	result := b.resolve()

	b.hasCached = true
	b.cachedBase = b.base
	b.cachedView = b.view
	b.cachedCovered = append([]geo.Ring(nil), b.covered...)
	b.cachedResult = result
	return result
}

func (b *Builder) resolve() []geo.Ring {
	subject := toPolyclip(b.base)
	if !b.view.IsEmpty() {
		subject = subject.Construct(polyclip.INTERSECTION, toPolyclip(b.view))
	}
	for _, c := range b.covered {
		if c.IsEmpty() {
			continue
		}
		subject = subject.Construct(polyclip.DIFFERENCE, toPolyclip(c))
	}
	return fromPolyclip(subject)
}

// Triangulate converts rings (outer ring first, holes after) into a
// triangle-index list suitable for handing to ebiten's vertex buffers,
// using the same earcut flattening the teacher used for its polygon tiles.
func Triangulate(outer geo.Ring, holes []geo.Ring) ([]uint16, error) {
	if len(outer) < 3 {
		return nil, nil
	}

	coords := make([]float64, 0, (len(outer)+totalLen(holes))*2)
	holeIndices := make([]int, 0, len(holes))
	appendRing := func(r geo.Ring) {
		for _, p := range r {
			coords = append(coords, p.X, p.Y)
		}
	}

	appendRing(outer)
	for _, h := range holes {
		holeIndices = append(holeIndices, len(coords)/2)
		appendRing(h)
	}

	indices, err := earcut.Earcut(coords, holeIndices, 2)
	if err != nil {
		return nil, errors.Wrap(err, "mask: triangulate")
	}

	out := make([]uint16, len(indices))
	for i, idx := range indices {
		out[i] = uint16(idx)
	}
	return out, nil
}

func totalLen(rings []geo.Ring) int {
	n := 0
	for _, r := range rings {
		n += len(r)
	}
	return n
}

func toPolyclip(r geo.Ring) polyclip.Polygon {
	pts := make(polyclip.Contour, len(r))
	for i, p := range r {
		pts[i] = polyclip.Point{X: p.X, Y: p.Y}
	}
	return polyclip.Polygon{pts}
}

func fromPolyclip(p polyclip.Polygon) []geo.Ring {
	out := make([]geo.Ring, 0, len(p))
	for _, contour := range p {
		ring := make(geo.Ring, len(contour))
		for i, pt := range contour {
			ring[i] = geo.Point{X: pt.X, Y: pt.Y}
		}
		if !ring.IsEmpty() {
			out = append(out, ring)
		}
	}
	return out
}
