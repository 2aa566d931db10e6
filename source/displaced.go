package source

import (
	"sync"

	"github.com/goliath-tiles/tiledsource/tile"
)

// PairedTile carries both sources' snapshot for the same tile key, once both
// have reported it ready. Rather than DisplacedSource keeping one result and
// discarding the other, callers receive both snapshots (e.g. the base raster
// and its elevation data).
type PairedTile[R any] struct {
	Key       tile.Key
	Primary   TileSnapshot[R]
	Displaced TileSnapshot[R]
}

// DisplacedSource pairs two independent TileSources driven by the same
// visibility pyramid: Primary (a base raster source) and Displaced (an
// elevation source loaded through its own loader chain). Both loads' results
// are retained rather than one being discarded.
//
// NewDisplacedSource installs its own OnTilesUpdated on both underlying
// sources; setting Primary.OnTilesUpdated or Displaced.OnTilesUpdated
// afterwards replaces that wiring and disables pairing.
type DisplacedSource[R any] struct {
	Primary   *TileSource[R]
	Displaced *TileSource[R]

	// OnTilesUpdated, if set, fires each time either underlying source calls
	// its OnTilesUpdated, carrying every key that both sides' latest
	// snapshots mark ready (possibly none) together with each side's
	// snapshot. A SetTileReady that arrives after a tile's last update does
	// not by itself trigger a call.
	OnTilesUpdated func([]PairedTile[R])

	mu            sync.Mutex
	primarySnap   map[tile.Key]TileSnapshot[R]
	displacedSnap map[tile.Key]TileSnapshot[R]
}

// NewDisplacedSource pairs two already-constructed sources.
func NewDisplacedSource[R any](primary, displaced *TileSource[R]) *DisplacedSource[R] {
	d := &DisplacedSource[R]{
		Primary:       primary,
		Displaced:     displaced,
		primarySnap:   make(map[tile.Key]TileSnapshot[R]),
		displacedSnap: make(map[tile.Key]TileSnapshot[R]),
	}
	primary.OnTilesUpdated = func(snap []TileSnapshot[R]) { d.update(true, snap) }
	displaced.OnTilesUpdated = func(snap []TileSnapshot[R]) { d.update(false, snap) }
	return d
}

// update records one side's latest snapshot and recomputes the paired set:
// every key ready on both sides, each carrying both sides' payload.
func (d *DisplacedSource[R]) update(isPrimary bool, snap []TileSnapshot[R]) {
	d.mu.Lock()
	if isPrimary {
		d.primarySnap = snapshotByKey(snap)
	} else {
		d.displacedSnap = snapshotByKey(snap)
	}

	var paired []PairedTile[R]
	for key, p := range d.primarySnap {
		disp, ok := d.displacedSnap[key]
		if !ok || !p.Ready || !disp.Ready {
			continue
		}
		paired = append(paired, PairedTile[R]{Key: key, Primary: p, Displaced: disp})
	}
	cb := d.OnTilesUpdated
	d.mu.Unlock()

	if cb != nil {
		cb(paired)
	}
}

func snapshotByKey[R any](snap []TileSnapshot[R]) map[tile.Key]TileSnapshot[R] {
	m := make(map[tile.Key]TileSnapshot[R], len(snap))
	for _, s := range snap {
		m[s.Key] = s
	}
	return m
}

// ReadyStates returns both sources' independent ReadyState, the "retain
// both" resolution: callers decide how to combine them (e.g. render
// whichever is Ready, or require both) rather than the source collapsing
// the pair into one verdict.
func (d *DisplacedSource[R]) ReadyStates() (primary, displaced ReadyState) {
	return d.Primary.ReadyState(), d.Displaced.ReadyState()
}

// Pause pauses both sources together.
func (d *DisplacedSource[R]) Pause() {
	d.Primary.Pause()
	d.Displaced.Pause()
}

// Resume resumes both sources together.
func (d *DisplacedSource[R]) Resume() {
	d.Primary.Resume()
	d.Displaced.Resume()
}
