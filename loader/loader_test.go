package loader

import (
	"context"
	"testing"

	"github.com/goliath-tiles/tiledsource/tile"
)

type fakeBackend struct {
	status    Status
	payload   int
	cancelled []tile.Key
}

func (f *fakeBackend) Load(ctx context.Context, info tile.Info) (Result[int], error) {
	return Result[int]{Status: f.status, Payload: f.payload}, nil
}

func (f *fakeBackend) Cancel(key tile.Key) {
	f.cancelled = append(f.cancelled, key)
}

func (f *fakeBackend) PostProcess() PostProcess[int] {
	return PostProcess[int]{Kind: PostProcessNone}
}

func TestChainLoadDispatchesToIndex(t *testing.T) {
	a := &fakeBackend{status: StatusNOOP}
	b := &fakeBackend{status: StatusOK, payload: 42}
	chain := NewChain[int](a, b)

	res, err := chain.Load(context.Background(), tile.Info{}, 0)
	if err != nil || res.Status != StatusNOOP {
		t.Fatalf("expected NOOP from backend 0, got %v err %v", res, err)
	}

	res, err = chain.Load(context.Background(), tile.Info{}, 1)
	if err != nil || res.Status != StatusOK || res.Payload != 42 {
		t.Fatalf("expected OK/42 from backend 1, got %v err %v", res, err)
	}
}

func TestChainLoadOutOfRange(t *testing.T) {
	chain := NewChain[int](&fakeBackend{status: StatusOK})
	_, err := chain.Load(context.Background(), tile.Info{}, 5)
	if err == nil {
		t.Fatal("expected error for out-of-range loader index")
	}
}

func TestChainCancel(t *testing.T) {
	a := &fakeBackend{}
	chain := NewChain[int](a)
	k := tile.Key{X: 1, Y: 2, ZoomIdentifier: 3}
	chain.Cancel(k, 0)
	if len(a.cancelled) != 1 || a.cancelled[0] != k {
		t.Fatalf("expected backend to observe cancel for %v, got %v", k, a.cancelled)
	}
}

func TestStatusClassification(t *testing.T) {
	if !StatusError404.Permanent() || StatusError404.Transient() {
		t.Error("404 should be permanent, not transient")
	}
	if !StatusErrorTimeout.Transient() || StatusErrorTimeout.Permanent() {
		t.Error("timeout should be transient, not permanent")
	}
	if StatusNOOP.Permanent() || StatusNOOP.Transient() {
		t.Error("NOOP should be neither permanent nor transient")
	}
}
