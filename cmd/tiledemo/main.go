// Command tiledemo wires a TileSource against a fixed basemap config and
// camera script, printing ReadyState transitions as they happen. It
// replaces the teacher's Goliath desktop app shell (main.go's interactive
// editor): shader/GPU upload and windowing are out of scope here, so this
// driver stops at the same boundary the core engine does, handing a
// *ebiten.Image payload to nothing in particular.
package main

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/goliath-tiles/tiledsource/config"
	"github.com/goliath-tiles/tiledsource/geo"
	"github.com/goliath-tiles/tiledsource/loader"
	"github.com/goliath-tiles/tiledsource/mailbox"
	"github.com/goliath-tiles/tiledsource/source"
	"github.com/goliath-tiles/tiledsource/tile"
	"github.com/goliath-tiles/tiledsource/visibility"
	"github.com/goliath-tiles/tiledsource/zoom"
)

// memoryBackend answers every load with a solid-color placeholder image,
// standing in for a real HTTP tile server so this demo runs offline.
type memoryBackend struct{}

func (memoryBackend) Load(ctx context.Context, info tile.Info) (loader.Result[tile.RasterPayload], error) {
	img := ebiten.NewImage(16, 16)
	img.Fill(color.RGBA{R: 80, G: 120, B: 200, A: 255})
	return loader.Result[tile.RasterPayload]{
		Status:  loader.StatusOK,
		Payload: tile.RasterPayload{Image: img},
	}, nil
}
func (memoryBackend) Cancel(tile.Key) {}
func (memoryBackend) PostProcess() loader.PostProcess[tile.RasterPayload] {
	return loader.PostProcess[tile.RasterPayload]{Kind: loader.PostProcessNone}
}

func demoLayerConfig() *config.StaticLayerConfig {
	bounds := geo.Bounds{TopLeft: geo.Point{X: 0, Y: 0}, BottomRight: geo.Point{X: 10, Y: 10}}
	return &config.StaticLayerConfig{
		Name:        "demo",
		URLTemplate: "https://tiles.example/{z}/{x}/{y}.png",
		Levels: []zoom.Level{
			{ZoomIdentifier: 0, Zoom: 100, TileWidthLayerUnits: 10, NumTilesX: 1, NumTilesY: 1, NumTilesT: 1, Bounds: bounds},
			{ZoomIdentifier: 1, Zoom: 50, TileWidthLayerUnits: 5, NumTilesX: 2, NumTilesY: 2, NumTilesT: 1, Bounds: bounds},
			{ZoomIdentifier: 2, Zoom: 25, TileWidthLayerUnits: 2.5, NumTilesX: 4, NumTilesY: 4, NumTilesT: 1, Bounds: bounds},
		},
		Info:        config.DefaultZoomInfo(),
		LayerBounds: bounds,
		CoordSystem: "demo",
	}
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := demoLayerConfig()
	chain := loader.NewChain[tile.RasterPayload](memoryBackend{})
	runtime := mailbox.NewRuntime(4, 2, 4, log)
	ts := source.New[tile.RasterPayload](cfg, chain, runtime, log)

	ts.OnTilesUpdated = func(snap []source.TileSnapshot[tile.RasterPayload]) {
		log.Info("tiles updated", "count", len(snap))
	}

	camera := []struct {
		zoom  float64
		label string
	}{
		{zoom: 30, label: "cold start, coarse"},
		{zoom: 15, label: "zoom in"},
		{zoom: 60, label: "zoom out"},
	}

	for _, step := range camera {
		fmt.Printf("-- %s (physicalZoom=%.0f) --\n", step.label, step.zoom)
		ts.OnVisibleBoundsChanged(visibility.PlanarRequest{
			VisibleBounds:    cfg.LayerBounds,
			PhysicalZoom:     step.zoom,
			ScreenDensityPPI: 90,
		})

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			state := ts.ReadyState()
			fmt.Printf("  readyState=%s\n", state)
			if state == source.Ready {
				break
			}
			time.Sleep(25 * time.Millisecond)
		}
	}
}
