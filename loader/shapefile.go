package loader

import (
	"context"
	"sync"

	"github.com/jonas-p/go-shp"
	"github.com/pkg/errors"

	"github.com/goliath-tiles/tiledsource/geo"
	"github.com/goliath-tiles/tiledsource/tile"
)

// ShapefileBackend serves vector tiles from a shapefile already loaded into
// memory, returning every ring whose bounding box intersects the requested
// tile's bounds. Rings are returned whole; they are not clipped to the tile.
// It is grounded on the teacher's shapefiles.go, which parses .shp
// polygon/polyline/point records into an R-tree-indexed layer;
// ShapefileBackend keeps the "decode once, serve many tiles" shape but
// returns VectorPayload slices instead of populating a UI layer.
//
// Because the whole shapefile is decoded up front (teacher's loadShapefile
// loop), Load itself does no I/O and never returns a transient status; it
// only ever returns StatusOK with at least one ring, or StatusNOOP when no
// ring intersects the tile at all, letting the chain fall through to the
// next backend.
type ShapefileBackend struct {
	mu    sync.RWMutex
	rings []geo.Ring
}

// OpenShapefileBackend decodes every polygon record in the .shp file at
// path into layer-unit rings. Point and polyline shapefiles are not
// supported here: the tiled source's mask/visibility geometry only needs
// closed rings; point/line feature rendering belongs to the symbol-layout
// subsystem out of scope per spec §1.
func OpenShapefileBackend(path string) (*ShapefileBackend, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening shapefile %s", path)
	}
	defer reader.Close()

	var rings []geo.Ring
	for reader.Next() {
		_, shape := reader.Shape()

		var pointSets [][]shp.Point
		switch poly := shape.(type) {
		case *shp.Polygon:
			pointSets = ringsFromParts(poly.Points, poly.Parts)
		case *shp.PolygonZ:
			pointSets = ringsFromParts(poly.Points, poly.Parts)
		default:
			continue
		}

		for _, pts := range pointSets {
			ring := make(geo.Ring, len(pts))
			for i, pt := range pts {
				ring[i] = geo.Point{X: pt.X, Y: pt.Y}
			}
			rings = append(rings, ring)
		}
	}

	return &ShapefileBackend{rings: rings}, nil
}

// ringsFromParts splits a shapefile's flat point list on its Parts offsets,
// since a shp.Polygon can contain multiple rings (outer + holes).
func ringsFromParts(points []shp.Point, parts []int32) [][]shp.Point {
	if len(parts) <= 1 {
		return [][]shp.Point{points}
	}
	out := make([][]shp.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		out = append(out, points[start:end])
	}
	return out
}

var _ Backend[tile.VectorPayload] = (*ShapefileBackend)(nil)

func (b *ShapefileBackend) Load(ctx context.Context, info tile.Info) (Result[tile.VectorPayload], error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var clipped []geo.Ring
	for _, r := range b.rings {
		if r.Bounds().Intersects(info.Bounds) {
			clipped = append(clipped, r)
		}
	}

	if clipped == nil {
		return Result[tile.VectorPayload]{Status: StatusNOOP}, nil
	}

	return Result[tile.VectorPayload]{
		Status:  StatusOK,
		Payload: tile.VectorPayload{Rings: clipped},
	}, nil
}

// Cancel is a no-op: Load never blocks on I/O, so there is nothing to abort.
func (b *ShapefileBackend) Cancel(tile.Key) {}

func (b *ShapefileBackend) PostProcess() PostProcess[tile.VectorPayload] {
	return PostProcess[tile.VectorPayload]{Kind: PostProcessNone}
}
