package source

import (
	"github.com/goliath-tiles/tiledsource/geo"
	"github.com/goliath-tiles/tiledsource/tile"
)

// TileSnapshot is an immutable copy of one tile's visible-set entry, handed
// to OnTilesUpdated and returned by GetCurrentTiles (spec §6 onTilesUpdated:
// "Set<RasterTileInfo>" generalized to a payload-generic snapshot carrying
// the tile's key, payload, mask polygons and draw state).
type TileSnapshot[R any] struct {
	Key       tile.Key
	Payload   R
	MaskRings []geo.Ring
	State     tile.State
	Version   uint64
	Ready     bool
}
