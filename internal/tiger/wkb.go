package tiger

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// EncodeLineEWKB converts a shapefile polyline to a single EWKB linestring
// with SRID 4326. Multi-part edges are concatenated in file order, which
// matches how ADDRFEAT splits an edge at shape-file record boundaries.
// Returns nil, nil for degenerate geometries.
func EncodeLineEWKB(pl *shp.PolyLine) ([]byte, error) {
	if pl == nil || len(pl.Points) < 2 {
		return nil, nil
	}

	flat := make([]float64, 0, len(pl.Points)*2)
	for _, p := range pl.Points {
		flat = append(flat, p.X, p.Y)
	}

	ls := geom.NewLineStringFlat(geom.XY, flat).SetSRID(4326)
	data, err := ewkb.Marshal(ls, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "tiger: encode linestring")
	}
	return data, nil
}
