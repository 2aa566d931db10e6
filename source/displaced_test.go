package source

import (
	"sync"
	"testing"
	"time"

	"github.com/goliath-tiles/tiledsource/geo"
	"github.com/goliath-tiles/tiledsource/loader"
	"github.com/goliath-tiles/tiledsource/mailbox"
	"github.com/goliath-tiles/tiledsource/tile"
	"github.com/goliath-tiles/tiledsource/visibility"
)

func TestDisplacedSourceFiresOnlyWhenBothSidesReady(t *testing.T) {
	cfg := testConfig()
	rt := mailbox.NewRuntime(4, 4, 4, nil)
	primary := New[int](cfg, loader.NewChain[int](&instantBackend{status: loader.StatusOK}), rt, nil)
	displaced := New[int](cfg, loader.NewChain[int](&instantBackend{status: loader.StatusOK}), rt, nil)

	d := NewDisplacedSource(primary, displaced)

	var mu sync.Mutex
	var lastPaired []PairedTile[int]
	d.OnTilesUpdated = func(paired []PairedTile[int]) {
		mu.Lock()
		lastPaired = paired
		mu.Unlock()
	}

	req := visibility.PlanarRequest{
		VisibleBounds: geo.Bounds{TopLeft: geo.Point{X: 0, Y: 0}, BottomRight: geo.Point{X: 10, Y: 10}},
		PhysicalZoom:  100,
	}
	key := tile.Key{ZoomIdentifier: 0, X: 0, Y: 0}

	primary.OnVisibleBoundsChanged(req)
	primary.SetTileReady(key)
	waitForState(t, primary, Ready)

	mu.Lock()
	if len(lastPaired) != 0 {
		t.Fatalf("expected no paired tiles until the displaced side is also ready, got %d", len(lastPaired))
	}
	mu.Unlock()

	displaced.OnVisibleBoundsChanged(req)
	displaced.SetTileReady(key)
	waitForState(t, displaced, Ready)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(lastPaired)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(lastPaired) != 1 {
		t.Fatalf("expected exactly one paired tile once both sides are ready, got %d", len(lastPaired))
	}
	if lastPaired[0].Key != key {
		t.Fatalf("expected paired tile key %v, got %v", key, lastPaired[0].Key)
	}
}
