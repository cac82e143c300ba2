package tiger

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ParseAddrFeat reads an ADDRFEAT shapefile and returns the usable address
// ranges, one row per edge side that carries a road name, a ZIP, and
// numeric house numbers.
func ParseAddrFeat(shpPath string) ([]RangeRow, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "tiger: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	attr := func(name string) string {
		idx, ok := fieldIdx[name]
		if !ok {
			return ""
		}
		val := strings.TrimRight(reader.Attribute(idx), "\x00")
		return strings.TrimSpace(val)
	}

	var rows []RangeRow
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		pl, ok := shape.(*shp.PolyLine)
		if !ok {
			skipped++
			continue
		}
		geomBytes, encErr := EncodeLineEWKB(pl)
		if encErr != nil || geomBytes == nil {
			skipped++
			continue
		}

		tlid, tlidErr := strconv.ParseInt(attr("tlid"), 10, 64)
		if tlidErr != nil {
			skipped++
			continue
		}
		fullName := attr("fullname")

		kept := false
		if left, ok := sideRange(tlid, fullName, attr("lfromhn"), attr("ltohn"), attr("zipl"), geomBytes); ok {
			rows = append(rows, left)
			kept = true
		}
		if right, ok := sideRange(tlid, fullName, attr("rfromhn"), attr("rtohn"), attr("zipr"), geomBytes); ok {
			rows = append(rows, right)
			kept = true
		}
		if !kept {
			skipped++
		}
	}

	if skipped > 0 {
		zap.L().Debug("tiger: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return rows, nil
}
