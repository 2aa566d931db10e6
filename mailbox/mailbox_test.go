package mailbox

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMailboxDrainsInOrder(t *testing.T) {
	rt := NewRuntime(2, 2, 2, nil)
	m := NewMailbox(rt, nil)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(3)

	for i := 1; i <= 3; i++ {
		i := i
		m.Push(Envelope{
			Environment: Computation,
			Run: func(ctx context.Context) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				wg.Done()
			},
		})
	}

	waitOrTimeout(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected messages to drain in push order, got %v", order)
	}
}

func TestMailboxReplaceNewestCoalesces(t *testing.T) {
	rt := NewRuntime(1, 1, 1, nil)
	m := NewMailbox(rt, nil)

	block := make(chan struct{})
	var ran []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(1)

	// First message blocks the drain loop so the next two pushes queue up
	// and coalesce before anything runs.
	m.Push(Envelope{
		Environment: Computation,
		Run: func(ctx context.Context) {
			<-block
			mu.Lock()
			ran = append(ran, 0)
			mu.Unlock()
			wg.Done()
		},
	})

	wg.Add(1)
	m.Push(Envelope{
		Key:                 "same",
		Environment:         Computation,
		DuplicationStrategy: ReplaceNewest,
		Run: func(ctx context.Context) {
			mu.Lock()
			ran = append(ran, 1)
			mu.Unlock()
			wg.Done()
		},
	})
	m.Push(Envelope{
		Key:                 "same",
		Environment:         Computation,
		DuplicationStrategy: ReplaceNewest,
		Run: func(ctx context.Context) {
			mu.Lock()
			ran = append(ran, 2)
			mu.Unlock()
			wg.Done()
		},
	})

	close(block)
	waitOrTimeout(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 2 || ran[1] != 2 {
		t.Fatalf("expected the second same-key message to replace the first, got %v", ran)
	}
}

func TestMailboxDropDiscardsMessages(t *testing.T) {
	rt := NewRuntime(1, 1, 1, nil)
	m := NewMailbox(rt, nil)
	m.Drop()

	ran := false
	m.Push(Envelope{
		Environment: Computation,
		Run:         func(ctx context.Context) { ran = true },
	})
	time.Sleep(10 * time.Millisecond)
	if ran {
		t.Fatal("expected message pushed after Drop to be discarded")
	}
}

func TestSyncAccessReentrant(t *testing.T) {
	rt := NewRuntime(1, 1, 1, nil)
	m := NewMailbox(rt, nil)

	done := make(chan struct{})
	m.Push(Envelope{
		Environment: Computation,
		Run: func(ctx context.Context) {
			ran := false
			m.SyncAccess(ctx, Computation, func() { ran = true })
			if !ran {
				t.Error("expected reentrant SyncAccess to run inline")
			}
			close(done)
		},
	})
	waitOrTimeoutChan(t, done)
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	waitOrTimeoutChan(t, done)
}

func waitOrTimeoutChan(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mailbox drain")
	}
}
