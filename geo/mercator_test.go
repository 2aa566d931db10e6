package geo

import (
	"math"
	"testing"
)

func TestLatLonToTileCoords(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		zoom     int
		wantX    float64
		wantY    float64
	}{
		{
			name:  "Center of map at zoom 1",
			lat:   0,
			lon:   0,
			zoom:  1,
			wantX: 1.0,
			wantY: 1.0,
		},
		{
			name:  "Top-left corner at zoom 1",
			lat:   MaxLat,
			lon:   -180,
			zoom:  1,
			wantX: 0.0,
			wantY: 0.0,
		},
		{
			name:  "Bottom-right corner at zoom 1",
			lat:   MinLat,
			lon:   180,
			zoom:  1,
			wantX: 2.0,
			wantY: 2.0,
		},
		{
			name:  "Equator at lon 90 (top edge of tile (1,1)) at zoom 1",
			lat:   0,
			lon:   90,
			zoom:  1,
			wantX: 1.5,
			wantY: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotX, gotY := LatLonToTileCoords(tt.lat, tt.lon, NumTilesForZoom(tt.zoom))
			if math.Abs(gotX-tt.wantX) > 1e-6 || math.Abs(gotY-tt.wantY) > 1e-6 {
				t.Errorf("got (%f, %f); want (%f, %f)",
					gotX, gotY, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestTileCoordsRoundTrip(t *testing.T) {
	n := NumTilesForZoom(12)
	lat, lon := 45.5231, -122.6765
	x, y := LatLonToTileCoords(lat, lon, n)
	gotLat, gotLon := TileCoordsToLatLon(x, y, n)
	if math.Abs(gotLat-lat) > 1e-3 || math.Abs(gotLon-lon) > 1e-9 {
		t.Errorf("round trip got (%f, %f); want (%f, %f)", gotLat, gotLon, lat, lon)
	}
}

func TestRingEqual(t *testing.T) {
	a := Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	b := Ring{{1, 1}, {0, 1}, {0, 0}, {1, 0}} // rotated
	c := Ring{{1, 0}, {0, 0}, {0, 1}, {1, 1}} // reversed + rotated
	d := Ring{{0, 0}, {1, 0}, {1, 2}, {0, 1}} // different

	if !Equal(a, b) {
		t.Error("expected rotated ring to be equal")
	}
	if !Equal(a, c) {
		t.Error("expected reversed+rotated ring to be equal")
	}
	if Equal(a, d) {
		t.Error("expected different ring to be unequal")
	}
}

func TestRingContainsPoint(t *testing.T) {
	square := Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	if !square.ContainsPoint(Point{5, 5}) {
		t.Error("expected center to be contained")
	}
	if square.ContainsPoint(Point{15, 5}) {
		t.Error("expected outside point to be excluded")
	}
}

func BenchmarkLatLonToTileCoords(b *testing.B) {
	coords := [][3]float64{
		{0, 0, 1},
		{MaxLat, 180, 10},
		{MinLat, -180, 15},
		{45.12345, -122.67890, 12},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, c := range coords {
			LatLonToTileCoords(c[0], c[1], NumTilesForZoom(int(c[2])))
		}
	}
}
