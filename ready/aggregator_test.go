package ready

import (
	"testing"

	"github.com/goliath-tiles/tiledsource/tile"
)

func TestDidProcessDataSignalsReadyAfterAllManagers(t *testing.T) {
	var signaled []tile.Key
	agg := NewAggregator(func(k tile.Key) { signaled = append(signaled, k) })
	m0 := agg.Register()
	m1 := agg.Register()

	key := tile.Key{X: 1, Y: 2, ZoomIdentifier: 3}
	agg.DidProcessData(m0, key, 0)
	if len(signaled) != 0 {
		t.Fatal("expected no ready signal until every manager has processed the tile")
	}
	agg.DidProcessData(m1, key, 0)
	if len(signaled) != 1 || signaled[0] != key {
		t.Fatalf("expected ready signal once all managers processed, got %v", signaled)
	}
}

func TestDidProcessDataHoldsForNotReadyCount(t *testing.T) {
	var signaled []tile.Key
	agg := NewAggregator(func(k tile.Key) { signaled = append(signaled, k) })
	m0 := agg.Register()

	key := tile.Key{X: 1, Y: 1, ZoomIdentifier: 1}
	agg.DidProcessData(m0, key, 2)
	if len(signaled) != 0 {
		t.Fatal("expected no ready signal while not-ready count is outstanding")
	}

	agg.SetReady(m0, key, 1)
	if len(signaled) != 0 {
		t.Fatal("expected no ready signal until not-ready count reaches zero")
	}

	agg.SetReady(m0, key, 1)
	if len(signaled) != 1 {
		t.Fatalf("expected ready signal once not-ready count drains to zero, got %v", signaled)
	}
}

func TestRemoveDropsTracking(t *testing.T) {
	var signaled []tile.Key
	agg := NewAggregator(func(k tile.Key) { signaled = append(signaled, k) })
	m0 := agg.Register()
	agg.Register()

	key := tile.Key{X: 0, Y: 0, ZoomIdentifier: 0}
	agg.DidProcessData(m0, key, 0)
	agg.Remove([]tile.Key{key})

	// After removal, m0's processed count is gone; with two managers
	// registered, one more DidProcessData must not be enough to signal ready
	// (without Remove the count would reach two and signal).
	agg.DidProcessData(m0, key, 0)
	if len(signaled) != 0 {
		t.Fatal("expected Remove to clear prior processed counts")
	}
}
