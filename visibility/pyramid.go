// Package visibility implements the tile visibility selector (spec
// component C4): given a camera state, it produces an ordered pyramid of
// visible tiles across zoom levels, in both the planar (2D rectangular
// sweep) and spherical (3D BFS over a view frustum) modes described in
// spec §4.3.
package visibility

import (
	"hash/fnv"

	"github.com/goliath-tiles/tiledsource/geo"
	"github.com/goliath-tiles/tiledsource/tile"
)

// Layer is one level's contribution to a Pyramid: the tiles the selector
// proposes at that level, plus its signed offset from the camera's target
// level (0 = target, negative = coarser; spec §3 VisibleTilesLayer).
type Layer struct {
	Tiles                 []tile.PrioritizedInfo
	TargetZoomLevelOffset int32
}

// Pyramid is the full output of one selector run: one Layer per examined
// zoom level, the always-kept coarse layer's offset, a cheap content hash
// the source uses to skip redundant diffs on an unchanged camera state
// (spec §4.3, §5 "Back-pressure"), and the viewport rectangle the sweep
// used, so the source can clip each tile's mask to it (spec §4.4).
type Pyramid struct {
	Layers              []Layer
	KeepZoomLevelOffset int32
	Hash                uint64
	ViewBounds          geo.Bounds

	// Skip marks a degenerate input (zero-sized viewport, empty table) that
	// the selector declined to act on at all: the source must leave its
	// current tile set untouched (spec §8 "returns before changing state").
	// This is distinct from Empty, a valid result meaning "nothing is
	// visible, remove every tile" (spec §8 zoom-policy rejection).
	Skip bool
}

// Empty is the valid "nothing visible" result: the camera's zoom fell
// outside the table's underzoom/overzoom policy. The source must still run
// its removal pipeline against it (spec §8: "empty pyramid, all tiles
// removed").
var Empty = Pyramid{}

// NoOp is the degenerate-input result (zero-sized viewport, empty zoom
// table): the source leaves its current tile set untouched (spec §8
// "returns before changing state").
var NoOp = Pyramid{Skip: true}

// IsEmpty reports whether the pyramid carries no layers at all, true for
// both Empty and NoOp.
func (p Pyramid) IsEmpty() bool {
	return len(p.Layers) == 0
}

// hashLayers computes the cheap dedupe hash described in spec §4.3: a
// combination of each level's extents and t, not a hash of every tile (that
// would defeat the purpose of a cheap check).
func hashLayers(layers []Layer) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	writeInt := func(v int64) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	for _, l := range layers {
		writeInt(int64(l.TargetZoomLevelOffset))
		writeInt(int64(len(l.Tiles)))
		if len(l.Tiles) == 0 {
			continue
		}
		first, last := l.Tiles[0].Key, l.Tiles[len(l.Tiles)-1].Key
		writeInt(int64(first.X))
		writeInt(int64(first.Y))
		writeInt(int64(first.T))
		writeInt(int64(last.X))
		writeInt(int64(last.Y))
		writeInt(int64(last.T))
	}
	return h.Sum64()
}
