package visibility

import (
	"math"
	"testing"

	"github.com/goliath-tiles/tiledsource/config"
	"github.com/goliath-tiles/tiledsource/geo"
	"github.com/goliath-tiles/tiledsource/zoom"
)

func scenarioTable() *zoom.Table {
	return zoom.NewTable([]zoom.Level{
		{ZoomIdentifier: 0, Zoom: 100, TileWidthLayerUnits: 10, NumTilesX: 1, NumTilesY: 1, NumTilesT: 1,
			Bounds: geo.Bounds{TopLeft: geo.Point{X: 0, Y: 0}, BottomRight: geo.Point{X: 10, Y: 10}}},
		{ZoomIdentifier: 1, Zoom: 50, TileWidthLayerUnits: 5, NumTilesX: 2, NumTilesY: 2, NumTilesT: 1,
			Bounds: geo.Bounds{TopLeft: geo.Point{X: 0, Y: 0}, BottomRight: geo.Point{X: 10, Y: 10}}},
		{ZoomIdentifier: 2, Zoom: 25, TileWidthLayerUnits: 2.5, NumTilesX: 4, NumTilesY: 4, NumTilesT: 1,
			Bounds: geo.Bounds{TopLeft: geo.Point{X: 0, Y: 0}, BottomRight: geo.Point{X: 10, Y: 10}}},
	})
}

func TestSelectPlanarColdStart(t *testing.T) {
	table := scenarioTable()
	info := config.DefaultZoomInfo()
	info.AdaptScaleToScreen = true

	req := PlanarRequest{
		VisibleBounds:    geo.Bounds{TopLeft: geo.Point{X: 0, Y: 0}, BottomRight: geo.Point{X: 10, Y: 10}},
		PhysicalZoom:     30,
		ScreenDensityPPI: 90,
	}

	pyr := SelectPlanar(table, info, req)
	if pyr.IsEmpty() {
		t.Fatal("expected non-empty pyramid")
	}

	var targetLayer *Layer
	for i := range pyr.Layers {
		if pyr.Layers[i].TargetZoomLevelOffset == 0 {
			targetLayer = &pyr.Layers[i]
		}
	}
	if targetLayer == nil {
		t.Fatal("expected a layer at target offset 0")
	}
	if len(targetLayer.Tiles) != 4 {
		t.Fatalf("expected 4 tiles at target level, got %d", len(targetLayer.Tiles))
	}
}

func TestSelectPlanarUnderzoomRejectedWithoutPolicy(t *testing.T) {
	table := scenarioTable()
	info := config.DefaultZoomInfo()
	info.Underzoom = false

	req := PlanarRequest{
		VisibleBounds: geo.Bounds{TopLeft: geo.Point{X: 0, Y: 0}, BottomRight: geo.Point{X: 10, Y: 10}},
		PhysicalZoom:  500,
	}

	pyr := SelectPlanar(table, info, req)
	if !pyr.IsEmpty() {
		t.Fatal("expected empty pyramid when underzoom is disallowed")
	}
	if pyr.Skip {
		t.Fatal("a zoom-policy rejection is a valid empty result, not a skip: the source must still remove every tile")
	}
}

func TestSelectPlanarZeroViewportIsSkip(t *testing.T) {
	table := scenarioTable()
	info := config.DefaultZoomInfo()
	pyr := SelectPlanar(table, info, PlanarRequest{})
	if !pyr.IsEmpty() {
		t.Fatal("expected empty pyramid for a zero-sized viewport")
	}
	if !pyr.Skip {
		t.Fatal("a degenerate zero-sized viewport must be Skip so the source leaves its state untouched")
	}
}

func identityMat4() geo.Mat4 {
	return geo.Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func lookAtMat4(distance float64) geo.Mat4 {
	// Translate the scene distance units away along Z, a minimal stand-in
	// for a real lookAt matrix, sufficient for culling tests.
	m := identityMat4()
	m[14] = -distance
	return m
}

func perspectiveMat4(fovYDeg, aspect, near, far float64) geo.Mat4 {
	fovY := fovYDeg * math.Pi / 180
	f := 1 / math.Tan(fovY/2)
	var m geo.Mat4
	m[0] = f / aspect
	m[5] = f
	m[10] = (far + near) / (near - far)
	m[11] = -1
	m[14] = (2 * far * near) / (near - far)
	return m
}

func TestSelectSphericalProducesTiles(t *testing.T) {
	table := scenarioTable()
	info := config.DefaultZoomInfo()

	req := SphericalRequest{
		ViewMatrix:       lookAtMat4(3),
		ProjMatrix:       perspectiveMat4(60, 1, 0.1, 100),
		VerticalFovDeg:   60,
		HorizontalFovDeg: 60,
		Width:            800,
		Height:           800,
		FocusAltitude:    0,
		FocusLat:         0,
		FocusLon:         0,
		Zoom:             50,
	}

	pyr := SelectSpherical(table, info, req)
	if pyr.IsEmpty() {
		t.Fatal("expected the camera looking at the globe to select some tiles")
	}
}

func TestSelectSphericalZeroViewportIsSkip(t *testing.T) {
	table := scenarioTable()
	info := config.DefaultZoomInfo()
	pyr := SelectSpherical(table, info, SphericalRequest{})
	if !pyr.IsEmpty() {
		t.Fatal("expected empty pyramid for a zero-sized viewport")
	}
	if !pyr.Skip {
		t.Fatal("a degenerate zero-sized viewport must be Skip so the source leaves its state untouched")
	}
}

func TestSelectSphericalKeepLevelExemptFromCulling(t *testing.T) {
	table := scenarioTable()
	info := config.DefaultZoomInfo()

	req := SphericalRequest{
		ViewMatrix:       lookAtMat4(3),
		ProjMatrix:       perspectiveMat4(60, 1, 0.1, 100),
		VerticalFovDeg:   60,
		HorizontalFovDeg: 60,
		Width:            800,
		Height:           800,
		FocusAltitude:    0,
		FocusLat:         0,
		FocusLon:         0,
		Zoom:             50,
	}

	pyr := SelectSpherical(table, info, req)
	var keepLayer *Layer
	for i := range pyr.Layers {
		if pyr.Layers[i].TargetZoomLevelOffset == pyr.KeepZoomLevelOffset {
			keepLayer = &pyr.Layers[i]
		}
	}
	if keepLayer == nil {
		t.Fatal("expected the keep level to appear in the pyramid, guaranteeing background coverage")
	}
	if len(keepLayer.Tiles) == 0 {
		t.Fatal("expected the keep level to retain its tiles regardless of culling")
	}
}

func TestEarthCentreCulledAllBehind(t *testing.T) {
	focus := geo.Vec4{Z: -1}
	corners := []geo.Vec4{{Z: -5}, {Z: -6}, {Z: -7}, {Z: -8}}
	if !earthCentreCulled(corners, focus) {
		t.Fatal("expected tile entirely behind the focus point to be culled")
	}
}

func TestEarthCentreCulledMixedNotCulled(t *testing.T) {
	focus := geo.Vec4{Z: -1}
	corners := []geo.Vec4{{Z: -5}, {Z: 0}, {Z: -7}, {Z: -8}}
	if earthCentreCulled(corners, focus) {
		t.Fatal("expected tile with a corner nearer than focus to survive culling")
	}
}

func TestFrustumCulledOutsideRight(t *testing.T) {
	clip := []geo.Vec4{
		{X: 2, W: 1}, {X: 3, W: 1}, {X: 2.5, W: 1}, {X: 4, W: 1},
	}
	if !frustumCulled(clip) {
		t.Fatal("expected tile entirely right of the frustum to be culled")
	}
}

func TestFrustumCulledStraddling(t *testing.T) {
	clip := []geo.Vec4{
		{X: -0.5, W: 1}, {X: 0.5, W: 1}, {X: 2, W: 1}, {X: -2, W: 1},
	}
	if frustumCulled(clip) {
		t.Fatal("expected a straddling tile to survive culling")
	}
}
