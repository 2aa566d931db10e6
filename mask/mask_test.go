package mask

import (
	"testing"

	"github.com/goliath-tiles/tiledsource/geo"
)

func square(x0, y0, x1, y1 float64) geo.Ring {
	return geo.Ring{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
	}
}

func TestBuilderResolveNoSubtraction(t *testing.T) {
	b := NewBuilder(square(0, 0, 10, 10))
	out := b.Resolve()
	if len(out) != 1 {
		t.Fatalf("expected one ring with no subtraction, got %d", len(out))
	}
}

func TestBuilderResolveEmptyBase(t *testing.T) {
	b := NewBuilder(nil)
	if out := b.Resolve(); out != nil {
		t.Fatalf("expected nil for empty base, got %v", out)
	}
}

func TestBuilderResolveFullyCovered(t *testing.T) {
	b := NewBuilder(square(0, 0, 10, 10))
	b.Subtract(square(-1, -1, 11, 11))
	out := b.Resolve()
	if len(out) != 0 {
		t.Fatalf("expected fully covered tile to resolve to no rings, got %d", len(out))
	}
}

func TestBuilderResolvePartialCoverage(t *testing.T) {
	b := NewBuilder(square(0, 0, 10, 10))
	b.Subtract(square(0, 0, 5, 10))
	out := b.Resolve()
	if len(out) == 0 {
		t.Fatal("expected remaining coverage after a partial subtraction")
	}
}

func TestTriangulateTriangle(t *testing.T) {
	outer := geo.Ring{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 2, Y: 4}}
	indices, err := Triangulate(outer, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(indices) != 3 {
		t.Fatalf("expected 3 indices for a single triangle, got %d", len(indices))
	}
}

func TestTriangulateTooFewPoints(t *testing.T) {
	indices, err := Triangulate(geo.Ring{{X: 0, Y: 0}, {X: 1, Y: 1}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if indices != nil {
		t.Fatalf("expected nil indices for a degenerate ring, got %v", indices)
	}
}

func TestBuilderClipToView(t *testing.T) {
	b := NewBuilder(square(0, 0, 10, 10))
	b.ClipToView(square(5, 0, 15, 10))
	out := b.Resolve()
	if len(out) != 1 {
		t.Fatalf("expected one ring after clipping to an overlapping view, got %d", len(out))
	}
	bounds := out[0].Bounds()
	if bounds.TopLeft.X != 5 || bounds.BottomRight.X != 10 {
		t.Fatalf("expected clip to restrict X to [5,10], got %+v", bounds)
	}
}

func TestBuilderClipToDisjointViewResolvesEmpty(t *testing.T) {
	b := NewBuilder(square(0, 0, 10, 10))
	b.ClipToView(square(20, 20, 30, 30))
	if out := b.Resolve(); len(out) != 0 {
		t.Fatalf("expected no rings when the view doesn't overlap the base, got %d", len(out))
	}
}

func TestBuilderResolveCachesUnchangedCoveringSet(t *testing.T) {
	b := NewBuilder(square(0, 0, 10, 10))
	b.Subtract(square(0, 0, 5, 10))
	first := b.Resolve()

	b.Reset(square(0, 0, 10, 10))
	b.Subtract(square(0, 0, 5, 10))
	second := b.Resolve()

	if len(first) != len(second) {
		t.Fatalf("expected Reset with an identical base/covering set to reproduce the same result")
	}
}

func TestPathReturnsPathForRings(t *testing.T) {
	rings := []geo.Ring{square(0, 0, 1, 1), square(2, 2, 3, 3)}
	p := Path(rings)
	if p == nil {
		t.Fatal("expected a non-nil path")
	}
}
