package main

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geocode-cli/internal/resolver"
)

var (
	batchInput       string
	batchColumn      string
	batchOutput      string
	batchNotFound    string
	batchLimit       int
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Resolve a file of addresses concurrently",
	Long: `Reads addresses from one column of a CSV or XLSX file and resolves
them concurrently. Resolved rows go to the output CSV; unresolved addresses go
to the not-found CSV with their failure reason. Individual failures never
abort the batch.

Examples:
  geocode-cli batch --input parcels.csv --column site_address
  geocode-cli batch --input parcels.xlsx --column address --output resolved.csv --not-found unresolved.csv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		addresses, err := readAddresses(batchInput, batchColumn)
		if err != nil {
			return eris.Wrap(err, "batch: read input")
		}
		zap.L().Info("parsed input file", zap.Int("addresses", len(addresses)))

		if batchLimit > 0 && batchLimit < len(addresses) {
			addresses = addresses[:batchLimit]
		}

		env, err := initResolver(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		var mu sync.Mutex
		results := make([]*resolver.Resolution, len(addresses))
		var found, notFound atomic.Int64

		for i, address := range addresses {
			i, address := i, address
			g.Go(func() error {
				res, resolveErr := env.Resolver.Resolve(gCtx, address)
				if resolveErr != nil {
					notFound.Add(1)
					zap.L().Error("batch: address failed",
						zap.String("address", address),
						zap.Error(resolveErr),
					)
					res = &resolver.Resolution{RawAddress: address, Error: resolveErr.Error()}
				} else if res.Found() {
					found.Add(1)
				} else {
					notFound.Add(1)
				}

				mu.Lock()
				results[i] = res
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		zap.L().Info("batch complete",
			zap.Int("total", len(addresses)),
			zap.Int64("found", found.Load()),
			zap.Int64("not_found", notFound.Load()),
		)

		if err := writeResolved(batchOutput, results); err != nil {
			return err
		}
		return writeNotFound(batchNotFound, results)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "path to input CSV or XLSX file (required)")
	batchCmd.Flags().StringVar(&batchColumn, "column", "address", "name of the address column")
	batchCmd.Flags().StringVar(&batchOutput, "output", "resolved.csv", "path for resolved addresses")
	batchCmd.Flags().StringVar(&batchNotFound, "not-found", "not_found.csv", "path for unresolved addresses")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max addresses to process (0 = all)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "parallel resolutions (default: from config)")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}

// readAddresses extracts one named column from a CSV or XLSX input,
// dispatching on file extension.
func readAddresses(path, column string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readAddressColumnXLSX(path, column)
	}
	return readAddressColumn(path, column)
}

// findColumn locates a header column by exact name.
func findColumn(header []string, column string) int {
	for i, name := range header {
		if name == column {
			return i
		}
	}
	return -1
}

// readAddressColumn extracts one named column from a CSV. Blank cells are
// skipped, not errors.
func readAddressColumn(path, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open csv")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read header")
	}
	colIdx := findColumn(header, column)
	if colIdx < 0 {
		return nil, eris.Errorf("column %q not found in header", column)
	}

	var addresses []string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read row")
		}
		if colIdx >= len(row) || row[colIdx] == "" {
			continue
		}
		addresses = append(addresses, row[colIdx])
	}
	return addresses, nil
}

// readAddressColumnXLSX extracts one named column from the first sheet of
// an XLSX workbook. Row 0 is the header.
func readAddressColumnXLSX(path, column string) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx file has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("xlsx sheet is empty")
	}

	header := make([]string, len(sheet.Rows[0].Cells))
	for i, cell := range sheet.Rows[0].Cells {
		header[i] = cell.String()
	}
	colIdx := findColumn(header, column)
	if colIdx < 0 {
		return nil, eris.Errorf("column %q not found in header", column)
	}

	var addresses []string
	for _, row := range sheet.Rows[1:] {
		if colIdx >= len(row.Cells) {
			continue
		}
		if value := row.Cells[colIdx].String(); value != "" {
			addresses = append(addresses, value)
		}
	}
	return addresses, nil
}

func writeResolved(path string, results []*resolver.Resolution) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "batch: create output file")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write([]string{"address_raw", "latitude", "longitude", "method", "display_name"}); err != nil {
		return eris.Wrap(err, "batch: write output header")
	}
	for _, res := range results {
		if res == nil || !res.Found() {
			continue
		}
		row := []string{res.RawAddress, res.Latitude, res.Longitude, res.Method, res.DisplayName}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "batch: write output row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "batch: flush output")
}

func writeNotFound(path string, results []*resolver.Resolution) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "batch: create not-found file")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write([]string{"address_raw", "error"}); err != nil {
		return eris.Wrap(err, "batch: write not-found header")
	}
	for _, res := range results {
		if res == nil || res.Found() {
			continue
		}
		if err := w.Write([]string{res.RawAddress, res.Error}); err != nil {
			return eris.Wrap(err, "batch: write not-found row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "batch: flush not-found")
}
