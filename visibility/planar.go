package visibility

import (
	"math"

	"github.com/goliath-tiles/tiledsource/config"
	"github.com/goliath-tiles/tiledsource/geo"
	"github.com/goliath-tiles/tiledsource/tile"
	"github.com/goliath-tiles/tiledsource/zoom"
)

// PlanarRequest is the camera state driving a 2D rectangular visibility
// sweep (spec §4.3 planar mode, fed by onVisibleBoundsChanged).
type PlanarRequest struct {
	VisibleBounds    geo.Bounds
	CurT             int32
	PhysicalZoom     float64
	ScreenDensityPPI float64
	MinZoomIdent     *int32
	MaxZoomIdent     *int32
}

const viewportPadFraction = 0.15

// SelectPlanar implements spec §4.3's planar sweep: pick a target zoom
// level, pad the viewport, sweep every level from the coarsest up through
// two levels finer than the target, and emit a prioritized tile list per
// level.
func SelectPlanar(table *zoom.Table, info config.ZoomInfo, req PlanarRequest) Pyramid {
	levels := table.Levels()
	if len(levels) == 0 || req.VisibleBounds.Width() == 0 || req.VisibleBounds.Height() == 0 {
		return NoOp
	}

	scaleFactor := 1.0
	if info.AdaptScaleToScreen && req.ScreenDensityPPI > 0 {
		scaleFactor = req.ScreenDensityPPI / 90.0
	}

	target, ok := table.TargetLevel(req.PhysicalZoom * scaleFactor)
	if !ok {
		return NoOp
	}
	if target.PastCoarsest && !info.Underzoom {
		return Empty
	}
	if target.PastFinest && !info.Overzoom {
		return Empty
	}

	startIdent := levels[0].ZoomIdentifier
	endIdent := levels[len(levels)-1].ZoomIdentifier
	targetIdent := target.Level.ZoomIdentifier
	targetIndex := table.IndexOf(targetIdent)

	keepZoomLevelOffset := int32(maxInt(int(startIdent), int(endIdent)-8)) - targetIdent

	padded := padViewport(req.VisibleBounds)

	endIndex := targetIndex + 2
	if endIndex >= len(levels) {
		endIndex = len(levels) - 1
	}

	layers := make([]Layer, 0, endIndex+1)
	for idx := 0; idx <= endIndex; idx++ {
		level := levels[idx]
		if req.MinZoomIdent != nil && level.ZoomIdentifier < *req.MinZoomIdent {
			continue
		}
		if req.MaxZoomIdent != nil && level.ZoomIdentifier > *req.MaxZoomIdent {
			continue
		}

		tiles := tilesForLevel(level, padded, req.CurT, req.VisibleBounds, targetIdent)
		layers = append(layers, Layer{
			Tiles:                 tiles,
			TargetZoomLevelOffset: level.ZoomIdentifier - targetIdent,
		})
	}

	return Pyramid{
		Layers:              layers,
		KeepZoomLevelOffset: keepZoomLevelOffset,
		Hash:                hashLayers(layers),
		ViewBounds:          req.VisibleBounds,
	}
}

// padViewport grows the visible rectangle by 15% of its shorter dimension
// on every side, preventing pop-in at the edges (spec §4.3 step 3).
func padViewport(b geo.Bounds) geo.Bounds {
	shorter := math.Min(b.Width(), b.Height())
	return b.Padded(shorter * viewportPadFraction)
}

// tilesForLevel computes the tile range covering padded within level's
// bounds, and emits a PrioritizedInfo for every (x, y) cell, using curT for
// every tile's T coordinate (clamped to NumTilesT-1 when curT is past the
// level's T range).
func tilesForLevel(level zoom.Level, padded geo.Bounds, curT int32, viewBounds geo.Bounds, targetIdent int32) []tile.PrioritizedInfo {
	clamped, ok := padded.Intersection(level.Bounds.Normalized())
	if !ok {
		return nil
	}

	tileW := level.TileWidthLayerUnits
	if tileW <= 0 {
		return nil
	}
	levelOrigin := level.Bounds.Normalized().TopLeft

	minX := int32(math.Floor((clamped.TopLeft.X - levelOrigin.X) / tileW))
	maxX := int32(math.Ceil((clamped.BottomRight.X - levelOrigin.X) / tileW))
	minY := int32(math.Floor((clamped.TopLeft.Y - levelOrigin.Y) / tileW))
	maxY := int32(math.Ceil((clamped.BottomRight.Y - levelOrigin.Y) / tileW))

	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX > level.NumTilesX {
		maxX = level.NumTilesX
	}
	if maxY > level.NumTilesY {
		maxY = level.NumTilesY
	}

	t := curT
	if level.NumTilesT > 0 && t >= level.NumTilesT {
		t = level.NumTilesT - 1
	}

	numTilesT := int64(level.NumTilesT)
	if numTilesT <= 0 {
		numTilesT = 1
	}
	zoomDistance := int64(abs32(level.ZoomIdentifier - targetIdent))

	viewCenterX := (viewBounds.TopLeft.X + viewBounds.BottomRight.X) / 2
	viewCenterY := (viewBounds.TopLeft.Y + viewBounds.BottomRight.Y) / 2
	diag := math.Hypot(viewBounds.Width(), viewBounds.Height())
	if diag == 0 {
		diag = 1
	}

	var out []tile.PrioritizedInfo
	for y := minY; y < maxY; y++ {
		for x := minX; x < maxX; x++ {
			tb := geo.Bounds{
				TopLeft:     geo.Point{X: levelOrigin.X + float64(x)*tileW, Y: levelOrigin.Y + float64(y)*tileW},
				BottomRight: geo.Point{X: levelOrigin.X + float64(x+1)*tileW, Y: levelOrigin.Y + float64(y+1)*tileW},
			}
			centerX := (tb.TopLeft.X + tb.BottomRight.X) / 2
			centerY := (tb.TopLeft.Y + tb.BottomRight.Y) / 2
			distanceFactor := math.Hypot(centerX-viewCenterX, centerY-viewCenterY) / diag

			priority := int64(math.Ceil(
				distanceFactor*100 +
					float64(zoomDistance)*1000*float64(numTilesT) +
					float64(abs32(t-curT))*1000*float64(numTilesT),
			))

			out = append(out, tile.PrioritizedInfo{
				Info: tile.Info{
					Key: tile.Key{
						X: x, Y: y, T: t,
						ZoomIdentifier: level.ZoomIdentifier,
					},
					Bounds: tb,
					Zoom:   level.Zoom,
				},
				Priority: priority,
			})
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
