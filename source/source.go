// Package source implements the tile source orchestrator (spec component
// C6), the largest piece of the engine: it turns a visibility pyramid into
// load requests, tracks every tile's lifecycle through the ranked loader
// chain with exponential backoff, and reports a ReadyState summary. All
// state lives behind one mailbox.Mailbox, generalizing the teacher's single
// TileImageCache-plus-downloadQueue pipeline (map.go) into a payload-generic
// actor.
package source

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/goliath-tiles/tiledsource/config"
	"github.com/goliath-tiles/tiledsource/geo"
	"github.com/goliath-tiles/tiledsource/loader"
	"github.com/goliath-tiles/tiledsource/mailbox"
	"github.com/goliath-tiles/tiledsource/mask"
	"github.com/goliath-tiles/tiledsource/tile"
	"github.com/goliath-tiles/tiledsource/visibility"
	"github.com/goliath-tiles/tiledsource/xlog"
	"github.com/goliath-tiles/tiledsource/zoom"
)

// initialBackoff and maxBackoff are the spec's literal MIN_WAIT_MILLIS and
// MAX_WAIT_MILLIS: delay = min(2^k * initialBackoff, maxBackoff).
const (
	initialBackoff = 1000 * time.Millisecond
	maxBackoff     = 32000 * time.Millisecond
)

// errorInfo pairs a tile's pending Info with its backoff state, so a
// delayed retry doesn't need to reconstruct the tile's geometry from
// scratch (spec §4.5 ErrorInfo).
type errorInfo struct {
	info        tile.Info
	status      loader.Status
	errorCode   string
	delay       time.Duration
	lastAttempt time.Time
}

// TileSource is the per-layer orchestrator described in spec §4.5. Every
// exported method except ReadyState and GetCurrentTiles is fire-and-forget:
// it enqueues work on
// the source's mailbox and returns immediately, matching the teacher's
// non-blocking downloadQueue<- pattern generalized to an actor.
type TileSource[R any] struct {
	cfg     config.LayerConfig
	table   *zoom.Table
	chain   *loader.Chain[R]
	runtime *mailbox.Runtime
	mbox    *mailbox.Mailbox
	log     *slog.Logger

	// OnTilesUpdated, if set, is called (on the mailbox's draining
	// goroutine) whenever currentTiles or its masks change, carrying an
	// immutable snapshot of the visible tile set: keys, payloads, mask
	// polygons and state (spec §6 onTilesUpdated).
	OnTilesUpdated func([]TileSnapshot[R])

	currentTiles        map[tile.Key]*tile.Wrapper[R]
	outdatedTiles       map[tile.Key]*tile.Wrapper[R]
	currentVisibleTiles map[tile.Key]struct{}
	currentlyLoading    map[tile.Key]int
	readyTiles          map[tile.Key]struct{}
	errorTiles          map[int]map[tile.Key]errorInfo
	notFoundTiles       map[tile.Key]struct{}
	builders            map[tile.Key]*mask.Builder

	currentPyramid             visibility.Pyramid
	currentKeepZoomLevelOffset int32
	currentViewRing            geo.Ring
	lastVisibleTilesHash       uint64

	nextDelayDeadline *time.Time

	minZoomIdent *int32
	maxZoomIdent *int32
	paused       bool
}

// New builds a TileSource for one layer. runtime is typically shared across
// every layer's sources, the way the teacher shares one downloadQueue across
// every tile request.
func New[R any](cfg config.LayerConfig, chain *loader.Chain[R], runtime *mailbox.Runtime, log *slog.Logger) *TileSource[R] {
	log = xlog.OrDiscard(log)
	return &TileSource[R]{
		cfg:                 cfg,
		table:               zoom.NewTable(cfg.ZoomLevelInfos()),
		chain:               chain,
		runtime:             runtime,
		mbox:                mailbox.NewMailbox(runtime, log),
		log:                 log,
		currentTiles:        make(map[tile.Key]*tile.Wrapper[R]),
		outdatedTiles:       make(map[tile.Key]*tile.Wrapper[R]),
		currentVisibleTiles: make(map[tile.Key]struct{}),
		currentlyLoading:    make(map[tile.Key]int),
		readyTiles:          make(map[tile.Key]struct{}),
		errorTiles:          make(map[int]map[tile.Key]errorInfo),
		notFoundTiles:       make(map[tile.Key]struct{}),
		builders:            make(map[tile.Key]*mask.Builder),
	}
}

// OnVisibleBoundsChanged is the planar mode entry point (spec §4.5).
func (ts *TileSource[R]) OnVisibleBoundsChanged(req visibility.PlanarRequest) {
	ts.mbox.Push(mailbox.Envelope{
		Key:                 "visibility",
		Environment:         mailbox.Computation,
		DuplicationStrategy: mailbox.ReplaceNewest,
		Run: func(ctx context.Context) {
			if ts.paused {
				return
			}
			ts.applyPyramid(visibility.SelectPlanar(ts.table, ts.cfg.ZoomInfo(), ts.clampedPlanar(req)))
		},
	})
}

// OnCameraChange is the spherical mode entry point (spec §4.5).
func (ts *TileSource[R]) OnCameraChange(req visibility.SphericalRequest) {
	ts.mbox.Push(mailbox.Envelope{
		Key:                 "visibility",
		Environment:         mailbox.Computation,
		DuplicationStrategy: mailbox.ReplaceNewest,
		Run: func(ctx context.Context) {
			if ts.paused {
				return
			}
			ts.applyPyramid(visibility.SelectSpherical(ts.table, ts.cfg.ZoomInfo(), ts.clampedSpherical(req)))
		},
	})
}

func (ts *TileSource[R]) clampedPlanar(req visibility.PlanarRequest) visibility.PlanarRequest {
	req.MinZoomIdent = ts.minZoomIdent
	req.MaxZoomIdent = ts.maxZoomIdent
	return req
}

func (ts *TileSource[R]) clampedSpherical(req visibility.SphericalRequest) visibility.SphericalRequest {
	req.MinZoomIdent = ts.minZoomIdent
	req.MaxZoomIdent = ts.maxZoomIdent
	return req
}

// SetMinZoomLevelIdentifier clamps which levels the selector may consider
// from below (spec §4.5).
func (ts *TileSource[R]) SetMinZoomLevelIdentifier(v *int32) {
	ts.mbox.Push(mailbox.Envelope{Environment: mailbox.Computation, Run: func(ctx context.Context) {
		ts.minZoomIdent = v
	}})
}

// SetMaxZoomLevelIdentifier clamps which levels the selector may consider
// from above (spec §4.5).
func (ts *TileSource[R]) SetMaxZoomLevelIdentifier(v *int32) {
	ts.mbox.Push(mailbox.Envelope{Environment: mailbox.Computation, Run: func(ctx context.Context) {
		ts.maxZoomIdent = v
	}})
}

// Pause short-circuits visibility changes until Resume is called (spec
// §4.5).
func (ts *TileSource[R]) Pause() {
	ts.mbox.Push(mailbox.Envelope{Environment: mailbox.Computation, Run: func(ctx context.Context) {
		ts.paused = true
	}})
}

// Resume re-enables visibility changes (spec §4.5).
func (ts *TileSource[R]) Resume() {
	ts.mbox.Push(mailbox.Envelope{Environment: mailbox.Computation, Run: func(ctx context.Context) {
		ts.paused = false
	}})
}

// ForceReload retries every tile with an outstanding error immediately,
// bypassing its remaining backoff (spec §4.5).
func (ts *TileSource[R]) ForceReload() {
	ts.mbox.Push(mailbox.Envelope{Environment: mailbox.IO, Run: func(ctx context.Context) {
		for loaderIndex, byKey := range ts.errorTiles {
			for key, ei := range byKey {
				delete(byKey, key)
				ts.performLoadingTask(ei.info, loaderIndex)
			}
		}
	}})
}

// ReloadTiles discards the current tile set (keeping it available as
// outdatedTiles), cancels in-flight loads and replays the last pyramid from
// scratch (spec §4.5).
func (ts *TileSource[R]) ReloadTiles() {
	ts.mbox.Push(mailbox.Envelope{Environment: mailbox.Computation, Run: func(ctx context.Context) {
		ts.outdatedTiles = ts.currentTiles
		ts.currentTiles = make(map[tile.Key]*tile.Wrapper[R])
		for key, loaderIndex := range ts.currentlyLoading {
			ts.chain.Cancel(key, loaderIndex)
		}
		ts.currentlyLoading = make(map[tile.Key]int)
		ts.readyTiles = make(map[tile.Key]struct{})
		ts.lastVisibleTilesHash = 0
		ts.applyPyramid(ts.currentPyramid)
	}})
}

// SetTileReady records that a downstream manager finished processing key
// (spec §4.5).
func (ts *TileSource[R]) SetTileReady(key tile.Key) {
	ts.mbox.Push(mailbox.Envelope{
		Key:                 "ready:" + key.String(),
		Environment:         mailbox.Computation,
		DuplicationStrategy: mailbox.ReplaceNewest,
		Run: func(ctx context.Context) {
			ts.markReady(key)
		},
	})
}

// SetTilesReady is the batch form of SetTileReady (spec §4.5).
func (ts *TileSource[R]) SetTilesReady(keys []tile.Key) {
	ts.mbox.Push(mailbox.Envelope{Environment: mailbox.Computation, Run: func(ctx context.Context) {
		for _, k := range keys {
			ts.markReady(k)
		}
	}})
}

func (ts *TileSource[R]) markReady(key tile.Key) {
	ts.readyTiles[key] = struct{}{}
	if w, ok := ts.currentTiles[key]; ok {
		w.State = tile.Visible
	}
}

// ReadyState blocks until the mailbox evaluates the current offscreen
// readiness summary (spec §4.5 isReadyToRenderOffscreen).
func (ts *TileSource[R]) ReadyState() ReadyState {
	result := make(chan ReadyState, 1)
	ts.mbox.Push(mailbox.Envelope{Environment: mailbox.Computation, Run: func(ctx context.Context) {
		result <- ts.computeReadyState()
	}})
	return <-result
}

func (ts *TileSource[R]) computeReadyState() ReadyState {
	if len(ts.notFoundTiles) > 0 {
		return Error
	}
	for _, byKey := range ts.errorTiles {
		if len(byKey) > 0 {
			return Error
		}
	}
	if len(ts.currentlyLoading) > 0 {
		return NotReady
	}
	for key := range ts.currentVisibleTiles {
		if _, ok := ts.currentTiles[key]; !ok {
			return NotReady
		}
		if _, ready := ts.readyTiles[key]; !ready {
			return NotReady
		}
	}
	return Ready
}

// applyPyramid runs the internal pipeline described in spec §4.5 steps 1-8.
func (ts *TileSource[R]) applyPyramid(pyr visibility.Pyramid) {
	if pyr.Skip {
		return
	}
	if pyr.Hash == ts.lastVisibleTilesHash {
		return
	}
	ts.lastVisibleTilesHash = pyr.Hash
	ts.currentPyramid = pyr
	ts.currentKeepZoomLevelOffset = pyr.KeepZoomLevelOffset
	ts.currentViewRing = pyr.ViewBounds.Ring()

	numPrev := ts.cfg.ZoomInfo().NumDrawPreviousLayers

	newVisible := make(map[tile.Key]struct{})
	var candidates []tile.PrioritizedInfo
	for _, layer := range pyr.Layers {
		acceptable := (layer.TargetZoomLevelOffset <= 0 && layer.TargetZoomLevelOffset >= -numPrev) ||
			layer.TargetZoomLevelOffset == pyr.KeepZoomLevelOffset
		if !acceptable {
			continue
		}
		for _, t := range layer.Tiles {
			newVisible[t.Key] = struct{}{}
			candidates = append(candidates, t)
		}
	}

	for key := range ts.currentTiles {
		if _, ok := newVisible[key]; !ok {
			delete(ts.currentTiles, key)
			delete(ts.readyTiles, key)
		}
	}
	for loaderIndex, byKey := range ts.errorTiles {
		for key := range byKey {
			if _, ok := newVisible[key]; !ok {
				delete(byKey, key)
			}
		}
		_ = loaderIndex
	}
	for key := range ts.notFoundTiles {
		if _, ok := newVisible[key]; !ok {
			delete(ts.notFoundTiles, key)
		}
	}
	for key, loaderIndex := range ts.currentlyLoading {
		if _, ok := newVisible[key]; !ok {
			ts.chain.Cancel(key, loaderIndex)
			delete(ts.currentlyLoading, key)
		}
	}

	ts.currentVisibleTiles = newVisible

	var toAdd []tile.PrioritizedInfo
	for _, c := range candidates {
		if _, loaded := ts.currentTiles[c.Key]; loaded {
			continue
		}
		if _, loading := ts.currentlyLoading[c.Key]; loading {
			continue
		}
		if _, missing := ts.notFoundTiles[c.Key]; missing {
			continue
		}
		toAdd = append(toAdd, c)
	}
	sort.Slice(toAdd, func(i, j int) bool { return toAdd[i].Priority < toAdd[j].Priority })

	for _, c := range toAdd {
		ts.performLoadingTask(c.Info, 0)
	}

	ts.updateTileMasks()
	ts.notifyTilesUpdated()
}

// performLoadingTask kicks off a load for info at loaderIndex unless the
// tile is already loading or no longer visible (spec §4.5).
func (ts *TileSource[R]) performLoadingTask(info tile.Info, loaderIndex int) {
	if _, loading := ts.currentlyLoading[info.Key]; loading {
		return
	}
	if _, visible := ts.currentVisibleTiles[info.Key]; !visible {
		return
	}
	ts.currentlyLoading[info.Key] = loaderIndex
	delete(ts.readyTiles, info.Key)

	ts.runtime.Go(mailbox.IO, func() {
		ts.loadAndPostBack(info, loaderIndex)
	})
}

func (ts *TileSource[R]) loadAndPostBack(info tile.Info, loaderIndex int) {
	res, err := ts.chain.Load(context.Background(), info, loaderIndex)
	if err != nil {
		ts.postFailure(info, loaderIndex, loader.StatusErrorOther, err.Error())
		return
	}
	if res.Status != loader.StatusOK {
		ts.postFailure(info, loaderIndex, res.Status, res.ErrorCode)
		return
	}

	pp := ts.chain.PostProcess(loaderIndex)
	if pp.Kind != loader.PostProcessCompute || pp.Compute == nil {
		ts.postSuccess(info, loaderIndex, res.Payload)
		return
	}

	ts.runtime.Go(mailbox.Computation, func() {
		out, err := pp.Compute(context.Background(), res.Payload)
		if err != nil {
			ts.postFailure(info, loaderIndex, loader.StatusErrorOther, err.Error())
			return
		}
		ts.postSuccess(info, loaderIndex, out)
	})
}

func (ts *TileSource[R]) postSuccess(info tile.Info, loaderIndex int, payload R) {
	ts.mbox.Push(mailbox.Envelope{Environment: mailbox.Computation, Run: func(ctx context.Context) {
		ts.didLoad(info, loaderIndex, payload)
	}})
}

func (ts *TileSource[R]) postFailure(info tile.Info, loaderIndex int, status loader.Status, code string) {
	ts.mbox.Push(mailbox.Envelope{Environment: mailbox.Computation, Run: func(ctx context.Context) {
		ts.didFailToLoad(info, loaderIndex, status, code)
	}})
}

// didLoad installs a successfully loaded tile (spec §4.5). The new wrapper's
// version is one past whatever version the key last carried, in
// currentTiles or, failing that, outdatedTiles, so a reload round-trip
// always leaves every affected tile with an incremented TileVersion (spec
// §8).
func (ts *TileSource[R]) didLoad(info tile.Info, loaderIndex int, payload R) {
	delete(ts.currentlyLoading, info.Key)
	if _, visible := ts.currentVisibleTiles[info.Key]; !visible {
		return
	}

	version := uint64(1)
	if prev, ok := ts.currentTiles[info.Key]; ok {
		version = prev.Version + 1
	} else if prev, ok := ts.outdatedTiles[info.Key]; ok {
		version = prev.Version + 1
	}

	wrapper := tile.NewWrapper(info, payload, version)
	wrapper.State = tile.Visible
	ts.currentTiles[info.Key] = wrapper
	delete(ts.outdatedTiles, info.Key)
	if byKey, ok := ts.errorTiles[loaderIndex]; ok {
		delete(byKey, info.Key)
	}
	ts.updateTileMasks()
	ts.notifyTilesUpdated()
}

// didFailToLoad applies the failure-mode policy from spec §4.2/§4.5/§4.8.
func (ts *TileSource[R]) didFailToLoad(info tile.Info, loaderIndex int, status loader.Status, code string) {
	delete(ts.currentlyLoading, info.Key)
	if _, visible := ts.currentVisibleTiles[info.Key]; !visible {
		return
	}

	switch {
	case status == loader.StatusNOOP:
		if byKey, ok := ts.errorTiles[loaderIndex]; ok {
			delete(byKey, info.Key)
		}
		if loaderIndex+1 < ts.chain.Len() {
			ts.performLoadingTask(info, loaderIndex+1)
		}
	case status.Permanent():
		ts.notFoundTiles[info.Key] = struct{}{}
		if byKey, ok := ts.errorTiles[loaderIndex]; ok {
			delete(byKey, info.Key)
		}
	default:
		byKey := ts.errorTiles[loaderIndex]
		if byKey == nil {
			byKey = make(map[tile.Key]errorInfo)
			ts.errorTiles[loaderIndex] = byKey
		}
		delay := initialBackoff
		if prev, ok := byKey[info.Key]; ok {
			delay = prev.delay * 2
			if delay > maxBackoff {
				delay = maxBackoff
			}
		}
		byKey[info.Key] = errorInfo{
			info:        info,
			status:      status,
			errorCode:   code,
			delay:       delay,
			lastAttempt: time.Now(),
		}
		ts.scheduleDelayedTask(delay)
	}
}

// scheduleDelayedTask arms a timer for performDelayedTasks, coalescing with
// any earlier-firing timer already pending (spec §4.5).
func (ts *TileSource[R]) scheduleDelayedTask(delay time.Duration) {
	deadline := time.Now().Add(delay)
	if ts.nextDelayDeadline != nil && !deadline.Before(*ts.nextDelayDeadline) {
		return
	}
	ts.nextDelayDeadline = &deadline

	ts.runtime.Go(mailbox.IO, func() {
		time.Sleep(delay)
		ts.mbox.Push(mailbox.Envelope{
			Key:                 "delayed-tasks",
			Environment:         mailbox.IO,
			DuplicationStrategy: mailbox.ReplaceNewest,
			Run: func(ctx context.Context) {
				ts.performDelayedTasks()
			},
		})
	})
}

// performDelayedTasks retries every tile whose backoff has elapsed and
// reschedules for the next soonest deadline (spec §4.5). A retried tile's
// error entry stays in place until the retry succeeds, so a further failure
// doubles its delay.
func (ts *TileSource[R]) performDelayedTasks() {
	now := time.Now()
	var minRemaining *time.Duration

	for loaderIndex, byKey := range ts.errorTiles {
		for _, ei := range byKey {
			fireAt := ei.lastAttempt.Add(ei.delay)
			if !now.Before(fireAt) {
				ts.performLoadingTask(ei.info, loaderIndex)
				continue
			}
			remaining := fireAt.Sub(now)
			if minRemaining == nil || remaining < *minRemaining {
				minRemaining = &remaining
			}
		}
	}

	ts.nextDelayDeadline = nil
	if minRemaining != nil {
		ts.scheduleDelayedTask(*minRemaining)
	}
}

// updateTileMasks recomputes every loaded tile's mask rings by clipping to
// the current view rectangle and subtracting the bounds of finer, visible
// tiles that already cover part of it (spec §4.4 steps 1 and 4). Builders
// persist per tile key across calls so an unchanged covering set and view
// skip re-clipping (mask.Builder.Resolve's cache). Disabled entirely when
// the layer config turns masking off.
func (ts *TileSource[R]) updateTileMasks() {
	if !ts.cfg.ZoomInfo().MaskTile {
		return
	}
	for key := range ts.builders {
		if _, live := ts.currentTiles[key]; !live {
			delete(ts.builders, key)
		}
	}
	for key, wrapper := range ts.currentTiles {
		b, ok := ts.builders[key]
		if !ok {
			b = mask.NewBuilder(wrapper.BoundsRing)
			ts.builders[key] = b
		} else {
			b.Reset(wrapper.BoundsRing)
		}
		b.ClipToView(ts.currentViewRing)

		for otherKey, other := range ts.currentTiles {
			if otherKey == key || otherKey.ZoomIdentifier <= key.ZoomIdentifier {
				continue
			}
			if _, visible := ts.currentVisibleTiles[otherKey]; !visible {
				continue
			}
			b.Subtract(other.BoundsRing)
		}
		resolved := b.Resolve()
		wrapper.MaskRings = resolved
		switch {
		case len(resolved) == 0:
			wrapper.State = tile.Cached
		case wrapper.State == tile.Cached:
			wrapper.State = tile.Visible
		}
	}
}

// snapshotLocked builds an immutable copy of the current tile set for
// OnTilesUpdated/GetCurrentTiles (spec §6 onTilesUpdated). Must only be
// called from the mailbox's draining goroutine.
func (ts *TileSource[R]) snapshotLocked() []TileSnapshot[R] {
	out := make([]TileSnapshot[R], 0, len(ts.currentTiles))
	for key, w := range ts.currentTiles {
		_, ready := ts.readyTiles[key]
		out = append(out, TileSnapshot[R]{
			Key:       key,
			Payload:   w.Payload,
			MaskRings: append([]geo.Ring(nil), w.MaskRings...),
			State:     w.State,
			Version:   w.Version,
			Ready:     ready,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

// GetCurrentTiles blocks until the mailbox evaluates a snapshot of the
// currently visible tile set (spec §5/§6 getCurrentTiles).
func (ts *TileSource[R]) GetCurrentTiles() []TileSnapshot[R] {
	result := make(chan []TileSnapshot[R], 1)
	ts.mbox.Push(mailbox.Envelope{Environment: mailbox.Computation, Run: func(ctx context.Context) {
		result <- ts.snapshotLocked()
	}})
	return <-result
}

func (ts *TileSource[R]) notifyTilesUpdated() {
	if ts.OnTilesUpdated != nil {
		ts.OnTilesUpdated(ts.snapshotLocked())
	}
}
