// Package mailbox generalizes the teacher's channel-plus-worker-pool
// concurrency model (map.go's downloadQueue/tileDownloader) from "one
// channel, N identical workers, one job type" to "one mailbox per owned
// object, a tagged environment per message, three shared executors" (spec
// component C7). Every TileSource owns exactly one Mailbox and only ever
// mutates its state while that mailbox is draining, making the source a
// logically single-threaded actor despite running on a shared pool.
package mailbox

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/goliath-tiles/tiledsource/xlog"
)

// Environment tags which executor a message must run on (spec §4.6).
type Environment int

const (
	Computation Environment = iota
	Graphics
	IO
)

func (e Environment) String() string {
	switch e {
	case Computation:
		return "computation"
	case Graphics:
		return "graphics"
	case IO:
		return "io"
	default:
		return "unknown"
	}
}

// DuplicationStrategy controls what Push does when a message targeting the
// same logical operation is already queued (spec §4.6).
type DuplicationStrategy int

const (
	// None enqueues every message, even if an equivalent one is pending.
	None DuplicationStrategy = iota
	// ReplaceNewest drops any queued message with the same Key in favor of
	// the newly pushed one, e.g. coalescing repeated visibility updates.
	ReplaceNewest
)

// Envelope is one unit of work destined for a mailbox's owner. Key is only
// consulted when DuplicationStrategy is ReplaceNewest.
type Envelope struct {
	Key                 string
	Environment         Environment
	DuplicationStrategy DuplicationStrategy
	Run                 func(ctx context.Context)
}

// Runtime is the shared, bounded thread pool partitioned into three
// executors (spec §5). It hands out goroutines gated by a per-environment
// weighted semaphore, generalizing the teacher's single fixed-size worker
// pool (startWorkerPool) to three independently sized pools.
type Runtime struct {
	computation *semaphore.Weighted
	graphics    *semaphore.Weighted
	io          *semaphore.Weighted
	log         *slog.Logger
}

// NewRuntime builds a Runtime with the given per-environment concurrency
// caps. A cap of 0 is treated as 1: every environment must make progress.
func NewRuntime(computationCap, graphicsCap, ioCap int64, log *slog.Logger) *Runtime {
	clamp := func(n int64) int64 {
		if n <= 0 {
			return 1
		}
		return n
	}
	return &Runtime{
		computation: semaphore.NewWeighted(clamp(computationCap)),
		graphics:    semaphore.NewWeighted(clamp(graphicsCap)),
		io:          semaphore.NewWeighted(clamp(ioCap)),
		log:         xlog.OrDiscard(log),
	}
}

func (r *Runtime) executor(env Environment) *semaphore.Weighted {
	switch env {
	case Graphics:
		return r.graphics
	case IO:
		return r.io
	default:
		return r.computation
	}
}

// Go runs fn on the executor matching env once a slot is free, for callers
// outside this package that need to stage work off a mailbox (e.g.
// source.TileSource dispatching a loader call on the io executor).
func (r *Runtime) Go(env Environment, fn func()) {
	r.schedule(env, fn)
}

// schedule runs fn on the executor matching env once a slot is free.
func (r *Runtime) schedule(env Environment, fn func()) {
	sem := r.executor(env)
	if err := sem.Acquire(context.Background(), 1); err != nil {
		r.log.Error("mailbox: executor acquire failed", "environment", env.String(), "error", err)
		return
	}
	go func() {
		defer sem.Release(1)
		fn()
	}()
}

type mailboxCtxKey struct{}

func withMailbox(ctx context.Context, m *Mailbox) context.Context {
	return context.WithValue(ctx, mailboxCtxKey{}, m)
}

// onMailbox reports whether ctx was produced by m's own drain loop, the
// reentrancy signal SyncAccess and Converse use to avoid deadlocking when a
// message handler synchronously accesses its own mailbox's owner.
func onMailbox(ctx context.Context, m *Mailbox) bool {
	v, _ := ctx.Value(mailboxCtxKey{}).(*Mailbox)
	return v == m
}

// Mailbox is a single-consumer FIFO owned by one object. Messages pushed
// while idle trigger a drain on the runtime; messages pushed while a drain
// is already in flight simply queue (spec §4.6).
type Mailbox struct {
	runtime *Runtime
	log     *slog.Logger

	mu       sync.Mutex
	queue    []Envelope
	draining bool
	dropped  bool
}

// NewMailbox creates a mailbox bound to runtime. The mailbox starts idle
// and alive (not dropped).
func NewMailbox(runtime *Runtime, log *slog.Logger) *Mailbox {
	return &Mailbox{runtime: runtime, log: xlog.OrDiscard(log)}
}

// Push enqueues e, applying ReplaceNewest coalescing, and kicks off a drain
// if the mailbox was idle.
func (m *Mailbox) Push(e Envelope) {
	m.mu.Lock()
	if m.dropped {
		m.mu.Unlock()
		return
	}
	if e.DuplicationStrategy == ReplaceNewest && e.Key != "" {
		for i := range m.queue {
			if m.queue[i].Key == e.Key {
				m.queue[i] = e
				m.mu.Unlock()
				return
			}
		}
	}
	m.queue = append(m.queue, e)
	needDrain := !m.draining
	if needDrain {
		m.draining = true
	}
	env := e.Environment
	m.mu.Unlock()

	if needDrain {
		m.runtime.schedule(env, m.drainLoop)
	}
}

// drainLoop processes queued envelopes one at a time until the queue empties
// or the mailbox is dropped, guaranteeing single-threaded execution of this
// mailbox's messages (spec §4.6's "recursive locking primitive").
func (m *Mailbox) drainLoop() {
	ctx := withMailbox(context.Background(), m)
	for {
		m.mu.Lock()
		if m.dropped || len(m.queue) == 0 {
			m.draining = false
			m.mu.Unlock()
			return
		}
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		next.Run(ctx)
	}
}

// Drop disables the mailbox, the weak-reference-destroyed analog described
// in spec §4.6: any already-queued or future messages are silently
// discarded.
func (m *Mailbox) Drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped = true
	m.queue = nil
}

// SyncAccess runs fn with exclusive access to the mailbox owner's state. If
// ctx was handed to the caller by this same mailbox's drain loop (i.e. fn is
// being called reentrantly from within a message handler), it runs inline;
// otherwise it is pushed as a message and SyncAccess blocks until it runs.
func (m *Mailbox) SyncAccess(ctx context.Context, env Environment, fn func()) {
	if onMailbox(ctx, m) {
		fn()
		return
	}
	done := make(chan struct{})
	m.Push(Envelope{
		Environment: env,
		Run: func(ctx context.Context) {
			defer close(done)
			fn()
		},
	})
	<-done
}

// Converse pushes fn as a message and returns a channel resolved with its
// return value once the message runs, the async analog of SyncAccess (spec
// §4.6).
func (m *Mailbox) Converse(env Environment, fn func() any) <-chan any {
	result := make(chan any, 1)
	m.Push(Envelope{
		Environment: env,
		Run: func(ctx context.Context) {
			result <- fn()
		},
	})
	return result
}
