// Package config defines the inputs a layer provides to the tiled map
// source engine (spec §6): the zoom level table, tile URL templating and the
// ZoomInfo tuning knobs.
package config

import (
	"strconv"
	"strings"

	"github.com/goliath-tiles/tiledsource/geo"
	"github.com/goliath-tiles/tiledsource/zoom"
)

// ZoomInfo collects the tuning knobs the visibility selector and tile source
// read per layer (spec §6).
type ZoomInfo struct {
	// ZoomLevelScaleFactor scales screen units into zoom distance, typically
	// 0.5-2.0: the spherical selector divides its screen-space precision
	// threshold by it.
	ZoomLevelScaleFactor float64
	// NumDrawPreviousLayers is how many coarser "keep" layers are kept
	// alongside the target level (0-3).
	NumDrawPreviousLayers int32
	// AdaptScaleToScreen, when set, makes the planar selector multiply the
	// requested zoom by ppi/90 before picking its target level.
	AdaptScaleToScreen bool
	// Underzoom renders a coarser level when the camera is below the
	// coarsest available level.
	Underzoom bool
	// Overzoom renders the finest level when zoomed in past it.
	Overzoom bool
	// MaskTile enables polygon-clip masking; otherwise tiles draw their full
	// bounds.
	MaskTile bool
}

// DefaultZoomInfo returns the conservative defaults used throughout the
// corpus's basemap configuration (mirroring the teacher's fixed single-
// basemap assumptions, generalized into overridable knobs).
func DefaultZoomInfo() ZoomInfo {
	return ZoomInfo{
		ZoomLevelScaleFactor:  1.0,
		NumDrawPreviousLayers: 0,
		AdaptScaleToScreen:    false,
		Underzoom:             true,
		Overzoom:              true,
		MaskTile:              true,
	}
}

// LayerConfig is the contract a layer implements to drive a TileSource
// (spec §6).
type LayerConfig interface {
	// TileURL returns the loader URL for a tile, substituting any
	// configured placeholders.
	TileURL(x, y, t int32, z int32) string
	ZoomLevelInfos() []zoom.Level
	VirtualZoomLevelInfos() []zoom.Level
	ZoomInfo() ZoomInfo
	LayerName() string
	Bounds() geo.Bounds
	CoordinateSystemIdentifier() string
}

// VectorSettings is a marker interface for vector-layer specific
// configuration (feature decoding, styling); its contents are out of scope
// for this core (spec §1) and are passed through opaquely.
type VectorSettings interface{}

// StaticLayerConfig is a literal-table LayerConfig implementation, built the
// way the teacher's fixed maxZoomLevels basemap table is: a name, a URL
// template and a level list, all supplied up front.
type StaticLayerConfig struct {
	Name          string
	URLTemplate   string
	Levels        []zoom.Level
	VirtualLevels []zoom.Level
	Info          ZoomInfo
	LayerBounds   geo.Bounds
	CoordSystem   string
}

var _ LayerConfig = (*StaticLayerConfig)(nil)

// TileURL substitutes {x}, {y}, {z} and {t} placeholders literally, per
// spec §6's URL template substitution rule.
func (c *StaticLayerConfig) TileURL(x, y, t int32, z int32) string {
	replacer := strings.NewReplacer(
		"{x}", strconv.FormatInt(int64(x), 10),
		"{y}", strconv.FormatInt(int64(y), 10),
		"{z}", strconv.FormatInt(int64(z), 10),
		"{t}", strconv.FormatInt(int64(t), 10),
	)
	return replacer.Replace(c.URLTemplate)
}

func (c *StaticLayerConfig) ZoomLevelInfos() []zoom.Level        { return c.Levels }
func (c *StaticLayerConfig) VirtualZoomLevelInfos() []zoom.Level { return c.VirtualLevels }
func (c *StaticLayerConfig) ZoomInfo() ZoomInfo                  { return c.Info }
func (c *StaticLayerConfig) LayerName() string                   { return c.Name }
func (c *StaticLayerConfig) Bounds() geo.Bounds                  { return c.LayerBounds }
func (c *StaticLayerConfig) CoordinateSystemIdentifier() string  { return c.CoordSystem }
