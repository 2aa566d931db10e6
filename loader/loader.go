// Package loader implements the ranked loader chain (spec component C3):
// each backend in the chain can accept a tile, decline it (NOOP, try the
// next backend), fail permanently (400/404) or fail transiently (network,
// timeout, other). source.TileSource owns the retry/backoff policy; Chain
// itself only dispatches to a specific backend index and allows cancelling
// an in-flight load.
package loader

import (
	"context"

	"github.com/goliath-tiles/tiledsource/tile"
)

// Status is the outcome of a single backend's attempt to load a tile
// (spec §4.2).
type Status int

const (
	// StatusOK completes the load; Result.Payload is valid.
	StatusOK Status = iota
	// StatusNOOP means "I don't handle this tile"; the source retries at
	// loaderIndex + 1.
	StatusNOOP
	// StatusError400 is a permanent client error.
	StatusError400
	// StatusError404 is a permanent not-found error.
	StatusError404
	// StatusErrorTimeout is a transient transport timeout.
	StatusErrorTimeout
	// StatusErrorNetwork is a transient network failure.
	StatusErrorNetwork
	// StatusErrorOther is any other transient failure, including one
	// produced by a cancelled load that resolved anyway (spec §4.2).
	StatusErrorOther
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNOOP:
		return "NOOP"
	case StatusError400:
		return "ERROR_400"
	case StatusError404:
		return "ERROR_404"
	case StatusErrorTimeout:
		return "ERROR_TIMEOUT"
	case StatusErrorNetwork:
		return "ERROR_NETWORK"
	case StatusErrorOther:
		return "ERROR_OTHER"
	default:
		return "UNKNOWN"
	}
}

// Permanent reports whether this status should land the tile in
// notFoundTiles rather than being retried (spec §4.2, §7).
func (s Status) Permanent() bool {
	return s == StatusError400 || s == StatusError404
}

// Transient reports whether this status should be retried with exponential
// backoff (spec §4.2, §7).
func (s Status) Transient() bool {
	return s == StatusErrorTimeout || s == StatusErrorNetwork || s == StatusErrorOther
}

// Result carries a backend's outcome for one tile load attempt.
type Result[R any] struct {
	Status    Status
	Payload   R
	ErrorCode string
}

// PostProcessKind distinguishes a backend whose OK result is ready to use
// from one whose result needs an expensive post-processing pass staged on a
// compute executor before the tile is considered loaded (spec §9's
// hasExpensivePostLoadingTask hook).
type PostProcessKind int

const (
	// PostProcessNone: the backend's OK result is the final payload.
	PostProcessNone PostProcessKind = iota
	// PostProcessCompute: the backend's OK result must be run through
	// Compute before the tile is considered loaded.
	PostProcessCompute
)

// PostProcess describes how a backend's result should be finished before
// the tile source installs it.
type PostProcess[R any] struct {
	Kind    PostProcessKind
	Compute func(ctx context.Context, payload R) (R, error)
}

// Backend is one rung of a loader Chain.
type Backend[R any] interface {
	// Load fetches or decodes the given tile. Implementations must be safe
	// to call concurrently for different tiles, and must respect ctx
	// cancellation by returning promptly with StatusErrorOther (or any
	// error) once ctx is done.
	Load(ctx context.Context, info tile.Info) (Result[R], error)
	// Cancel aborts an in-flight load for the given tile, if any. Cancel
	// must not block; the corresponding Load call is allowed to keep
	// running and have its result discarded by the caller.
	Cancel(key tile.Key)
	// PostProcess reports whether this backend's OK results need a
	// compute-executor pass before being considered loaded.
	PostProcess() PostProcess[R]
}

// Chain is an ordered list of backends. Backends are tried in source-driven
// order: the source calls Load at loaderIndex 0, and on StatusNOOP retries
// at loaderIndex+1, per spec §4.2.
type Chain[R any] struct {
	backends []Backend[R]
}

// NewChain builds a Chain from the given backends, ranked from index 0
// (tried first) to len-1 (tried last).
func NewChain[R any](backends ...Backend[R]) *Chain[R] {
	return &Chain[R]{backends: backends}
}

// Len returns the number of backends in the chain.
func (c *Chain[R]) Len() int {
	return len(c.backends)
}

// Load dispatches to the backend at loaderIndex. Callers are responsible for
// the NOOP-retry policy (spec: that is the source's job, not the chain's).
func (c *Chain[R]) Load(ctx context.Context, info tile.Info, loaderIndex int) (Result[R], error) {
	if loaderIndex < 0 || loaderIndex >= len(c.backends) {
		return Result[R]{Status: StatusErrorOther}, errOutOfRange
	}
	return c.backends[loaderIndex].Load(ctx, info)
}

// Cancel aborts an in-flight load at the given backend index.
func (c *Chain[R]) Cancel(key tile.Key, loaderIndex int) {
	if loaderIndex < 0 || loaderIndex >= len(c.backends) {
		return
	}
	c.backends[loaderIndex].Cancel(key)
}

// PostProcess returns the post-processing descriptor for the backend at
// loaderIndex.
func (c *Chain[R]) PostProcess(loaderIndex int) PostProcess[R] {
	if loaderIndex < 0 || loaderIndex >= len(c.backends) {
		return PostProcess[R]{Kind: PostProcessNone}
	}
	return c.backends[loaderIndex].PostProcess()
}

var errOutOfRange = chainError("loader index out of range")

type chainError string

func (e chainError) Error() string { return string(e) }
