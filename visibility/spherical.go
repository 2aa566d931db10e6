package visibility

import (
	"math"

	"github.com/goliath-tiles/tiledsource/config"
	"github.com/goliath-tiles/tiledsource/geo"
	"github.com/goliath-tiles/tiledsource/tile"
	"github.com/goliath-tiles/tiledsource/zoom"
)

// SphericalRequest is the camera state driving a 3D BFS visibility sweep
// (spec §4.3 spherical mode). ViewMatrix and ProjMatrix are handed over by
// the renderer every frame; the selector never constructs its own camera.
type SphericalRequest struct {
	ViewMatrix       geo.Mat4
	ProjMatrix       geo.Mat4
	VerticalFovDeg   float64
	HorizontalFovDeg float64
	Width, Height    int32
	FocusAltitude    float64
	FocusLat         float64
	FocusLon         float64
	Zoom             float64
	MinZoomIdent     *int32
	MaxZoomIdent     *int32
}

// candidate is one in-flight BFS node: a tile at a given level index plus
// its lon/lat rectangle on the globe approximation.
type candidate struct {
	levelIdx int
	x, y     int32
	bounds   geo.Bounds // lon/lat rectangle, degrees
}

const (
	// defaultMinNumTiles gates which level the BFS starts at: the coarsest
	// level whose tile grid already exceeds this count, so the sweep never
	// starts from a single-tile root that would otherwise need several
	// wasted subdivision rounds. Empirically tuned in the original
	// implementation; not re-derived here.
	defaultMinNumTiles = 4
	// defaultSampleSize bounds the precision test's acceptable screen-space
	// error, in fractional viewport units. Empirically tuned in the
	// original implementation; not re-derived here.
	defaultSampleSize = 0.02
	// maxBFSDepth caps the subdivision sweep so a pathological camera state
	// can't spin it forever.
	maxBFSDepth = 24
)

// SelectSpherical implements spec §4.3's spherical mode: BFS subdivision of
// the globe's tile grid, culled by earth-centre occlusion and view frustum
// tests, refined by a screen-space precision test, with coarser-ancestor
// layers attached after the sweep and a tessellation factor assigned by
// distance from the deepest emitted level.
func SelectSpherical(table *zoom.Table, info config.ZoomInfo, req SphericalRequest) Pyramid {
	levels := table.Levels()
	if len(levels) == 0 || req.Width <= 0 || req.Height <= 0 {
		return NoOp
	}

	viewProj := req.ProjMatrix.Mul(req.ViewMatrix)
	focusView := req.ViewMatrix.Transform(geo.LatLonToUnitSphere(req.FocusLat, req.FocusLon).ToVec4())

	startIdx := 0
	for i, l := range levels {
		if l.NumTilesX*l.NumTilesY > defaultMinNumTiles {
			startIdx = i
			break
		}
	}

	queue := make([]candidate, 0, 64)
	for x := int32(0); x < levels[startIdx].NumTilesX; x++ {
		for y := int32(0); y < levels[startIdx].NumTilesY; y++ {
			queue = append(queue, candidate{
				levelIdx: startIdx, x: x, y: y,
				bounds: tileLonLatBounds(levels[startIdx], x, y),
			})
		}
	}

	byLevel := make(map[int][]tile.PrioritizedInfo)
	maxEmittedIdent := levels[startIdx].ZoomIdentifier

	sampleThreshold := defaultSampleSize * math.Min(float64(req.Width), float64(req.Height))
	if info.ZoomLevelScaleFactor > 0 {
		sampleThreshold /= info.ZoomLevelScaleFactor
	}

	for depth := 0; len(queue) > 0 && depth < maxBFSDepth; depth++ {
		next := make([]candidate, 0, len(queue))
		for _, c := range queue {
			level := levels[c.levelIdx]

			if req.MinZoomIdent != nil && level.ZoomIdentifier < *req.MinZoomIdent {
				continue
			}
			if req.MaxZoomIdent != nil && level.ZoomIdentifier > *req.MaxZoomIdent {
				continue
			}

			corners := lonLatCorners(c.bounds)
			viewCorners := make([]geo.Vec4, len(corners))
			clipCorners := make([]geo.Vec4, len(corners))
			for i, p := range corners {
				v := req.ViewMatrix.Transform(geo.LatLonToUnitSphere(p.Y, p.X).ToVec4())
				viewCorners[i] = v
				clipCorners[i] = req.ProjMatrix.Transform(v)
			}

			// The keep level (coarsest, c.levelIdx == startIdx) is exempt
			// from culling, guaranteeing background coverage regardless of
			// camera angle (spec §4.3 step 2).
			if c.levelIdx != startIdx {
				if earthCentreCulled(viewCorners, focusView) {
					continue
				}
				if frustumCulled(clipCorners) {
					continue
				}
			}

			if precisionOK(c.bounds, viewProj, req, sampleThreshold) || c.levelIdx == len(levels)-1 {
				prio := int64(c.levelIdx)
				byLevel[c.levelIdx] = append(byLevel[c.levelIdx], tile.PrioritizedInfo{
					Info: tile.Info{
						Key:    tile.Key{X: c.x, Y: c.y, ZoomIdentifier: level.ZoomIdentifier},
						Bounds: tileCellBounds(level, c.x, c.y),
						Zoom:   level.Zoom,
					},
					Priority: prio,
				})
				if level.ZoomIdentifier > maxEmittedIdent {
					maxEmittedIdent = level.ZoomIdentifier
				}
				continue
			}

			childLevelIdx := c.levelIdx + 1
			if childLevelIdx >= len(levels) {
				continue
			}
			for _, child := range subdivide(c) {
				next = append(next, child)
			}
		}
		queue = next
	}

	viewBounds := unionBounds(byLevel)

	// The keep level must always end up in byLevel so the coarsest-layer
	// acceptance test in source.applyPyramid has a real offset to match
	// (spec §4.3 step 2's background-coverage guarantee); culling alone
	// doesn't guarantee it survived the BFS if every root tile subdivided.
	ensureBackgroundLayer(byLevel, levels[startIdx], startIdx)
	keepZoomLevelOffset := levels[startIdx].ZoomIdentifier - maxEmittedIdent

	attachAncestorLayers(byLevel, levels, info.NumDrawPreviousLayers)

	layers := make([]Layer, 0, len(byLevel))
	for idx, tiles := range byLevel {
		level := levels[idx]
		for i := range tiles {
			ident := tiles[i].Key.ZoomIdentifier
			factor := maxEmittedIdent - ident
			tiles[i].TessellationFactor = clampUint8(factor, 0, 4)
		}
		layers = append(layers, Layer{
			Tiles:                 tiles,
			TargetZoomLevelOffset: level.ZoomIdentifier - maxEmittedIdent,
		})
	}

	if len(layers) == 0 {
		return Empty
	}

	return Pyramid{
		Layers:              layers,
		KeepZoomLevelOffset: keepZoomLevelOffset,
		Hash:                hashLayers(layers),
		ViewBounds:          viewBounds,
	}
}

func subdivide(c candidate) []candidate {
	midLon := (c.bounds.TopLeft.X + c.bounds.BottomRight.X) / 2
	midLat := (c.bounds.TopLeft.Y + c.bounds.BottomRight.Y) / 2
	nextLevel := c.levelIdx + 1
	quads := []geo.Bounds{
		{TopLeft: c.bounds.TopLeft, BottomRight: geo.Point{X: midLon, Y: midLat}},
		{TopLeft: geo.Point{X: midLon, Y: c.bounds.TopLeft.Y}, BottomRight: geo.Point{X: c.bounds.BottomRight.X, Y: midLat}},
		{TopLeft: geo.Point{X: c.bounds.TopLeft.X, Y: midLat}, BottomRight: geo.Point{X: midLon, Y: c.bounds.BottomRight.Y}},
		{TopLeft: geo.Point{X: midLon, Y: midLat}, BottomRight: c.bounds.BottomRight},
	}
	out := make([]candidate, 4)
	for i, q := range quads {
		out[i] = candidate{
			levelIdx: nextLevel,
			x:        c.x*2 + int32(i%2),
			y:        c.y*2 + int32(i/2),
			bounds:   q,
		}
	}
	return out
}

// earthCentreCulled reports whether every corner of a tile is farther from
// the camera (in view space) than the focus point on the globe, meaning the
// tile sits on the far side of the earth and is occluded (spec §4.3 step
// 1).
func earthCentreCulled(corners []geo.Vec4, focusView geo.Vec4) bool {
	for _, c := range corners {
		if c.Z >= focusView.Z {
			return false
		}
	}
	return true
}

// frustumCulled reports whether every corner of a tile lies outside the
// same clip-space half-plane, meaning the whole tile is outside the view
// frustum (spec §4.3 step 2).
func frustumCulled(clip []geo.Vec4) bool {
	outside := func(test func(geo.Vec4) bool) bool {
		for _, c := range clip {
			if !test(c) {
				return false
			}
		}
		return true
	}
	if outside(func(v geo.Vec4) bool { return v.X > v.W }) {
		return true
	}
	if outside(func(v geo.Vec4) bool { return v.X < -v.W }) {
		return true
	}
	if outside(func(v geo.Vec4) bool { return v.Y > v.W }) {
		return true
	}
	if outside(func(v geo.Vec4) bool { return v.Y < -v.W }) {
		return true
	}
	if outside(func(v geo.Vec4) bool { return v.Z > v.W }) {
		return true
	}
	if outside(func(v geo.Vec4) bool { return v.Z < -v.W }) {
		return true
	}
	return false
}

// precisionOK projects the tile's center and a point offset by half its
// width, then measures the screen-space gap between them; within threshold
// pixels means this level already has enough detail for the tile's screen
// footprint (spec §4.3 step 3).
func precisionOK(bounds geo.Bounds, viewProj geo.Mat4, req SphericalRequest, threshold float64) bool {
	centerLon := (bounds.TopLeft.X + bounds.BottomRight.X) / 2
	centerLat := (bounds.TopLeft.Y + bounds.BottomRight.Y) / 2
	edgeLon := bounds.BottomRight.X

	centerScreen, ok1 := projectToScreen(centerLat, centerLon, viewProj, req)
	edgeScreen, ok2 := projectToScreen(centerLat, edgeLon, viewProj, req)
	if !ok1 || !ok2 {
		return false
	}
	dx := centerScreen.X - edgeScreen.X
	dy := centerScreen.Y - edgeScreen.Y
	return math.Hypot(dx, dy) <= threshold
}

func projectToScreen(lat, lon float64, viewProj geo.Mat4, req SphericalRequest) (geo.Point, bool) {
	clip := viewProj.Transform(geo.LatLonToUnitSphere(lat, lon).ToVec4())
	if clip.W <= 0 {
		return geo.Point{}, false
	}
	ndcX := clip.X / clip.W
	ndcY := clip.Y / clip.W
	return geo.Point{
		X: (ndcX*0.5 + 0.5) * float64(req.Width),
		Y: (1 - (ndcY*0.5 + 0.5)) * float64(req.Height),
	}, true
}

func tileLonLatBounds(level zoom.Level, x, y int32) geo.Bounds {
	lonWidth := 360.0 / float64(level.NumTilesX)
	latHeight := 180.0 / float64(level.NumTilesY)
	return geo.Bounds{
		TopLeft:     geo.Point{X: -180 + float64(x)*lonWidth, Y: 90 - float64(y)*latHeight},
		BottomRight: geo.Point{X: -180 + float64(x+1)*lonWidth, Y: 90 - float64(y+1)*latHeight},
	}
}

func tileCellBounds(level zoom.Level, x, y int32) geo.Bounds {
	origin := level.Bounds.Normalized().TopLeft
	w := level.TileWidthLayerUnits
	return geo.Bounds{
		TopLeft:     geo.Point{X: origin.X + float64(x)*w, Y: origin.Y + float64(y)*w},
		BottomRight: geo.Point{X: origin.X + float64(x+1)*w, Y: origin.Y + float64(y+1)*w},
	}
}

func lonLatCorners(b geo.Bounds) []geo.Point {
	return []geo.Point{
		{X: b.TopLeft.X, Y: b.TopLeft.Y},
		{X: b.BottomRight.X, Y: b.TopLeft.Y},
		{X: b.TopLeft.X, Y: b.BottomRight.Y},
		{X: b.BottomRight.X, Y: b.BottomRight.Y},
	}
}

// attachAncestorLayers walks every emitted tile up to numDrawPreviousLayers
// coarser ancestors and adds them to byLevel if not already present, so the
// renderer has a fallback to draw under gaps while finer tiles are still
// loading (spec §4.3 step 5).
func attachAncestorLayers(byLevel map[int][]tile.PrioritizedInfo, levels []zoom.Level, numPrevious int32) {
	if numPrevious <= 0 {
		return
	}
	present := make(map[int]map[tile.Key]bool)
	for idx, tiles := range byLevel {
		present[idx] = make(map[tile.Key]bool, len(tiles))
		for _, t := range tiles {
			present[idx][t.Key] = true
		}
	}
	for idx, tiles := range byLevel {
		for _, t := range tiles {
			x, y := t.Key.X, t.Key.Y
			ai := idx
			for step := int32(0); step < numPrevious && ai > 0; step++ {
				ai--
				x /= 2
				y /= 2
				if present[ai] == nil {
					present[ai] = make(map[tile.Key]bool)
				}
				key := tile.Key{X: x, Y: y, ZoomIdentifier: levels[ai].ZoomIdentifier}
				if present[ai][key] {
					continue
				}
				present[ai][key] = true
				byLevel[ai] = append(byLevel[ai], tile.PrioritizedInfo{
					Info: tile.Info{
						Key:    key,
						Bounds: tileCellBounds(levels[ai], x, y),
						Zoom:   levels[ai].Zoom,
					},
					Priority: int64(ai),
				})
			}
		}
	}
}

// ensureBackgroundLayer inserts every tile of level (at levelIdx) into
// byLevel that isn't already present, guaranteeing the keep level covers the
// whole globe regardless of which of its tiles the BFS happened to accept
// directly (spec §4.3 step 2).
func ensureBackgroundLayer(byLevel map[int][]tile.PrioritizedInfo, level zoom.Level, levelIdx int) {
	present := make(map[tile.Key]bool, len(byLevel[levelIdx]))
	for _, t := range byLevel[levelIdx] {
		present[t.Key] = true
	}
	for x := int32(0); x < level.NumTilesX; x++ {
		for y := int32(0); y < level.NumTilesY; y++ {
			key := tile.Key{X: x, Y: y, ZoomIdentifier: level.ZoomIdentifier}
			if present[key] {
				continue
			}
			byLevel[levelIdx] = append(byLevel[levelIdx], tile.PrioritizedInfo{
				Info: tile.Info{
					Key:    key,
					Bounds: tileCellBounds(level, x, y),
					Zoom:   level.Zoom,
				},
				Priority: int64(levelIdx),
			})
		}
	}
}

// unionBounds returns the bounding box, in layer units, of every tile the
// BFS accepted, the spherical mode's stand-in for a viewBoundsPolygon (spec
// §4.4), used to clip per-tile masks to the actually-visible region.
func unionBounds(byLevel map[int][]tile.PrioritizedInfo) geo.Bounds {
	var result geo.Bounds
	first := true
	for _, tiles := range byLevel {
		for _, t := range tiles {
			b := t.Info.Bounds.Normalized()
			if first {
				result = b
				first = false
				continue
			}
			if b.TopLeft.X < result.TopLeft.X {
				result.TopLeft.X = b.TopLeft.X
			}
			if b.TopLeft.Y < result.TopLeft.Y {
				result.TopLeft.Y = b.TopLeft.Y
			}
			if b.BottomRight.X > result.BottomRight.X {
				result.BottomRight.X = b.BottomRight.X
			}
			if b.BottomRight.Y > result.BottomRight.Y {
				result.BottomRight.Y = b.BottomRight.Y
			}
		}
	}
	return result
}

func clampUint8(v int32, lo, hi int32) uint8 {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return uint8(v)
}
