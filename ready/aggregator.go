// Package ready implements the ready-state aggregator (spec component C8):
// a per-source singleton that lets several independent layer managers
// (raster, vector, symbols, …) share one TileSource and agree on when a
// tile is fully processed by all of them.
package ready

import (
	"sync"

	"github.com/goliath-tiles/tiledsource/tile"
)

// SetReadyFunc is the callback the aggregator uses to signal a tile is
// ready to the owning source; TileSource.SetTileReady is wired in here so
// this package has no import-time dependency on source.
type SetReadyFunc func(tile.Key)

// Aggregator tracks, per tile, how many of the registered managers have
// processed it and how many still report it not-ready, generalizing the
// teacher's single-boolean TileImageCache.requests tracking (map.go) to
// per-manager counters (spec §4.7).
type Aggregator struct {
	setReady SetReadyFunc

	mu           sync.Mutex
	managerCount int
	processed    map[tile.Key]int
	notReady     map[tile.Key]int
}

// NewAggregator creates an Aggregator that calls setReady when a tile
// becomes ready across every registered manager.
func NewAggregator(setReady SetReadyFunc) *Aggregator {
	return &Aggregator{
		setReady:  setReady,
		processed: make(map[tile.Key]int),
		notReady:  make(map[tile.Key]int),
	}
}

// Register adds one more layer manager and returns its index, used by
// callers as the managerIndex argument to DidProcessData/SetReady.
func (a *Aggregator) Register() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx := a.managerCount
	a.managerCount++
	return idx
}

// DidProcessData records that managerIndex finished processing key, with
// notReadyCount outstanding sub-resources still pending for that manager.
// When every registered manager has processed the tile and none report
// outstanding work, the aggregator signals the tile ready (spec §4.7).
func (a *Aggregator) DidProcessData(managerIndex int, key tile.Key, notReadyCount int) {
	a.mu.Lock()
	a.processed[key]++
	processedCount := a.processed[key]
	if notReadyCount > 0 {
		a.notReady[key] += notReadyCount
	}
	ready := processedCount >= a.managerCount && a.notReady[key] == 0
	a.mu.Unlock()

	if ready {
		a.setReady(key)
	}
}

// SetReady decrements key's outstanding not-ready count for managerIndex by
// readyCount; once it reaches zero and every manager has processed the
// tile, the aggregator signals it ready (spec §4.7).
func (a *Aggregator) SetReady(managerIndex int, key tile.Key, readyCount int) {
	a.mu.Lock()
	remaining := a.notReady[key] - readyCount
	if remaining <= 0 {
		delete(a.notReady, key)
		remaining = 0
	} else {
		a.notReady[key] = remaining
	}
	ready := remaining == 0 && a.processed[key] >= a.managerCount
	a.mu.Unlock()

	if ready {
		a.setReady(key)
	}
}

// Remove drops all tracking entries for the given tiles, called when they
// leave visibility (spec §4.7).
func (a *Aggregator) Remove(keys []tile.Key) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, k := range keys {
		delete(a.processed, k)
		delete(a.notReady, k)
	}
}
