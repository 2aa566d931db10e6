// Package tile defines the value types that identify a tile and its content
// version (spec component C1): Key, Bounds, Info, VersionedInfo, State and
// the per-tile runtime wrapper used by source.TileSource.
package tile

import (
	"fmt"
	"strings"

	"github.com/goliath-tiles/tiledsource/geo"
)

// Key uniquely identifies a tile: an (x, y) grid cell at a given zoom
// identifier, plus an application-defined time/layer axis T (often 0).
// Equality and ordering are lexicographic on (ZoomIdentifier, X, Y, T), per
// spec §3.
type Key struct {
	X, Y, T        int32
	ZoomIdentifier int32
}

// Less orders keys lexicographically on (ZoomIdentifier, X, Y, T).
func (k Key) Less(other Key) bool {
	if k.ZoomIdentifier != other.ZoomIdentifier {
		return k.ZoomIdentifier < other.ZoomIdentifier
	}
	if k.X != other.X {
		return k.X < other.X
	}
	if k.Y != other.Y {
		return k.Y < other.Y
	}
	return k.T < other.T
}

// String renders the key in z/x/y form, with a /t suffix when T != 0.
func (k Key) String() string {
	if k.T == 0 {
		return fmt.Sprintf("%d/%d/%d", k.ZoomIdentifier, k.X, k.Y)
	}
	return fmt.Sprintf("%d/%d/%d/%d", k.ZoomIdentifier, k.X, k.Y, k.T)
}

// QuadKey renders the key as a Bing Maps style quadkey, for loader backends
// that address tiles that way. Ported from the teacher's getQuadKey
// (map.go), generalized to Key's signed int32 fields.
func (k Key) QuadKey() string {
	var sb strings.Builder
	for i := k.ZoomIdentifier; i > 0; i-- {
		digit := 0
		mask := int32(1) << (i - 1)
		if k.X&mask != 0 {
			digit++
		}
		if k.Y&mask != 0 {
			digit += 2
		}
		sb.WriteByte(byte('0' + digit))
	}
	return sb.String()
}

// Bounds is a tile's rectangle in its layer's coordinate system. It reuses
// geo.Bounds directly; TileBounds in spec §3 is not a distinct type, only a
// named usage.
type Bounds = geo.Bounds

// Info identifies a tile plus its geometry: the spec's TileInfo.
type Info struct {
	Key                Key
	Bounds             Bounds
	Zoom               float64 // physical zoom
	TessellationFactor uint8   // 3D rendering hint, 0-4
}

// VersionedInfo is Info plus a monotonic content version, incremented
// whenever the tile's payload changes so a consumer can invalidate derived
// GPU objects (spec §3).
type VersionedInfo struct {
	Info
	TileVersion uint64
}

// State is the per-tile draw/readiness state (spec §3).
type State int

const (
	// InSetup: loaded but not yet uploaded to a GPU-side consumer.
	InSetup State = iota
	// Visible: should be drawn this frame.
	Visible
	// Cached: fully covered by a higher-zoom visible tile, retained for
	// zoom-out.
	Cached
	// OutdatedVisible: still drawn while a fresher version loads.
	OutdatedVisible
)

func (s State) String() string {
	switch s {
	case InSetup:
		return "IN_SETUP"
	case Visible:
		return "VISIBLE"
	case Cached:
		return "CACHED"
	case OutdatedVisible:
		return "OUTDATED_VISIBLE"
	default:
		return "UNKNOWN"
	}
}

// PrioritizedInfo is a tile info plus a load priority. Lower priority values
// are loaded earlier; priority encodes distance from the viewport centre,
// zoom-distance from the target level, and a t-axis penalty (spec §3, §4.3).
type PrioritizedInfo struct {
	Info
	Priority int64
}

// Wrapper holds the per-tile runtime state tracked by source.TileSource: the
// decoded payload, its mask geometry and current draw state (spec §3,
// TileWrapper<R>).
type Wrapper[R any] struct {
	Payload R

	// Mask rings are the clipped, renderable portion of Bounds: the tile
	// bounds minus the union of higher-zoom VISIBLE tiles, clipped to the
	// current view rectangle (spec §4.4). When masking is disabled, this is
	// always exactly Bounds.Ring().
	MaskRings []geo.Ring

	// BoundsRing is the untouched tile-bounds polygon, cached once per tile
	// rather than rebuilt on every mask pass.
	BoundsRing geo.Ring

	State              State
	TessellationFactor uint8
	Version            uint64
}

// NewWrapper builds a Wrapper from a loaded tile's Info and payload, with
// the mask initialized to the full tile bounds (the pre-mask-pass default).
// version is the tile's content version; callers increment it from the
// previous wrapper's Version on every successful (re)load of the same key.
func NewWrapper[R any](info Info, payload R, version uint64) *Wrapper[R] {
	ring := info.Bounds.Ring()
	return &Wrapper[R]{
		Payload:            payload,
		MaskRings:          []geo.Ring{ring},
		BoundsRing:         ring,
		State:              InSetup,
		TessellationFactor: info.TessellationFactor,
		Version:            version,
	}
}
