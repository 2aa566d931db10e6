package mask

import (
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/goliath-tiles/tiledsource/geo"
)

// Path converts resolved mask rings into an ebiten vector.Path, the GPU
// hand-off boundary the renderer fills or strokes (spec §4.4, §1's GPU
// drawing is the only part of this component left to the out-of-scope
// renderer).
func Path(rings []geo.Ring) *vector.Path {
	p := &vector.Path{}
	for _, r := range rings {
		if len(r) == 0 {
			continue
		}
		p.MoveTo(float32(r[0].X), float32(r[0].Y))
		for _, pt := range r[1:] {
			p.LineTo(float32(pt.X), float32(pt.Y))
		}
		p.Close()
	}
	return p
}
