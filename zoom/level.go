// Package zoom implements the per-layer zoom level table (spec component
// C2): an immutable, zoom-descending list of levels that the visibility
// selector sweeps to build a tile pyramid.
package zoom

import (
	"sort"

	"github.com/goliath-tiles/tiledsource/geo"
)

// Level describes one zoom level of a layer's tile pyramid (spec §3).
type Level struct {
	ZoomIdentifier      int32
	Zoom                float64 // physical zoom this level represents
	TileWidthLayerUnits float64
	NumTilesX           int32
	NumTilesY           int32
	NumTilesT           int32
	Bounds              geo.Bounds
}

// Table is an immutable, zoom-descending table of levels, built once from a
// layer config (spec §4.1). The teacher builds an analogous constant table
// keyed by basemap name (map.go's maxZoomLevels); Table generalizes that to
// an arbitrary per-layer level list.
type Table struct {
	levels []Level
}

// NewTable builds a Table from the given levels, sorting them by Zoom
// descending (coarsest first) as spec §4.1 requires. The input slice is
// copied; later mutation of the caller's slice does not affect the Table.
func NewTable(levels []Level) *Table {
	cp := make([]Level, len(levels))
	copy(cp, levels)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Zoom > cp[j].Zoom })
	return &Table{levels: cp}
}

// Levels returns the levels sorted by zoom descending. The returned slice
// must not be mutated by the caller.
func (t *Table) Levels() []Level {
	return t.levels
}

// Coarsest returns the first level (the one with the highest Zoom value;
// per this table's convention a lower Zoom means finer detail, e.g. more
// tiles per axis), or false if the table is empty.
func (t *Table) Coarsest() (Level, bool) {
	if len(t.levels) == 0 {
		return Level{}, false
	}
	return t.levels[0], true
}

// Finest returns the last level (the one with the lowest Zoom value), or
// false if the table is empty.
func (t *Table) Finest() (Level, bool) {
	if len(t.levels) == 0 {
		return Level{}, false
	}
	return t.levels[len(t.levels)-1], true
}

// ByIdentifier finds the level with the given zoom identifier.
func (t *Table) ByIdentifier(ident int32) (Level, bool) {
	for _, l := range t.levels {
		if l.ZoomIdentifier == ident {
			return l, true
		}
	}
	return Level{}, false
}

// IndexOf returns the index into Levels() of the level with the given zoom
// identifier, or -1 if not found.
func (t *Table) IndexOf(ident int32) int {
	for i, l := range t.levels {
		if l.ZoomIdentifier == ident {
			return i
		}
	}
	return -1
}

// TargetResult is the outcome of TargetLevel: the chosen level plus whether
// choosing it required falling outside the table's natural range (spec §8
// boundary behaviors: underzoom past the coarsest level, overzoom past the
// finest one).
type TargetResult struct {
	Level Level
	// PastCoarsest is set when the requested zoom is coarser than every
	// available level; Level is the coarsest one, picked only because
	// Underzoom allows it.
	PastCoarsest bool
	// PastFinest is set when the requested zoom is finer than every
	// available level; Level is the finest one, picked only because
	// Overzoom allows it.
	PastFinest bool
}

// TargetLevel returns the finest level whose Zoom is still >= the requested
// zoom (spec §4.3 step 1: "finest level whose zoom is still >= zoom *
// scaleFactor"). The scaleFactor has already been applied by the caller.
// When the request falls outside every level's range, the nearest edge
// level is returned with PastCoarsest/PastFinest set so the caller can apply
// the underzoom/overzoom policy (spec §6, §8).
func (t *Table) TargetLevel(zoom float64) (TargetResult, bool) {
	if len(t.levels) == 0 {
		return TargetResult{}, false
	}

	coarsest := t.levels[0]
	finest := t.levels[len(t.levels)-1]

	if zoom > coarsest.Zoom {
		return TargetResult{Level: coarsest, PastCoarsest: true}, true
	}
	if zoom < finest.Zoom {
		return TargetResult{Level: finest, PastFinest: true}, true
	}

	best := coarsest
	for _, l := range t.levels {
		if l.Zoom >= zoom {
			best = l
		}
	}
	return TargetResult{Level: best}, true
}

// ConvertBoundsToLayerSystem is a pure accessor that passes through,
// unchanged, a rectangle already expressed in the layer's coordinate system; layers whose
// native system differs from the input (e.g. a reprojection) override this
// behavior by wrapping Table. The base Table assumes identity.
func (t *Table) ConvertBoundsToLayerSystem(rect geo.Bounds) geo.Bounds {
	return rect
}
