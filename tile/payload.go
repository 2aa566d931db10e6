package tile

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/goliath-tiles/tiledsource/geo"
)

// RasterPayload is the default raster tile payload: a decoded image ready
// for GPU upload, mirroring the teacher's *ebiten.Image tile cache entries
// (TileImageCache in map.go) generalized behind the Wrapper[R] payload slot.
type RasterPayload struct {
	Image *ebiten.Image
}

// VectorPayload is a simple vector tile payload: a set of polygons decoded
// from a vector source (e.g. a shapefile), deferring feature styling and
// symbol layout to an external consumer per spec §1.
type VectorPayload struct {
	Rings []geo.Ring
}
