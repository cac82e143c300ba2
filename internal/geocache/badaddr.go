package geocache

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BadAddressTable maps known-bad raw addresses to corrected replacements.
// Loaded once at startup from a CSV with columns address_raw,address_update
// and read-only afterward.
type BadAddressTable struct {
	lookup map[string]string
}

// LoadBadAddresses reads the rewrite table. A missing file yields an empty
// table, not an error.
func LoadBadAddresses(path string) (*BadAddressTable, error) {
	t := &BadAddressTable{lookup: map[string]string{}}
	if path == "" {
		return t, nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "geocache: open bad address table")
	}
	defer f.Close() //nolint:errcheck

	records, err := readRecords(f)
	if err != nil {
		return nil, eris.Wrap(err, "geocache: read bad address table")
	}
	for _, rec := range records {
		raw := strings.TrimSpace(rec["address_raw"])
		update := strings.TrimSpace(rec["address_update"])
		if raw == "" || update == "" {
			continue
		}
		t.lookup[NormalizeKey(raw)] = update
	}
	zap.L().Debug("loaded bad address table", zap.String("path", path), zap.Int("entries", len(t.lookup)))
	return t, nil
}

// Lookup returns the replacement for a known-bad raw address.
func (t *BadAddressTable) Lookup(rawAddress string) (string, bool) {
	update, ok := t.lookup[NormalizeKey(rawAddress)]
	return update, ok
}

// Len reports the number of rewrite rules.
func (t *BadAddressTable) Len() int {
	return len(t.lookup)
}

// readRecords decodes header-keyed CSV rows.
func readRecords(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var records []map[string]string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rec := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
