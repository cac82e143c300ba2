package tiger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geocode-cli/internal/db"
)

const (
	defaultBatchSize = 50000
	importTableName  = "location_property_tiger_import"
)

var importTable = pgx.Identifier{importTableName}

// BulkLoad copies parsed address ranges into the staging table using the
// COPY protocol, in chunks of batchSize rows (0 = default 50,000).
func BulkLoad(ctx context.Context, pool db.Pool, rows []RangeRow, batchSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	log := zap.L().With(
		zap.String("component", "tiger.copy"),
		zap.Int("total_rows", len(rows)),
	)

	var total int64
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}

		batch := make([][]any, 0, end-i)
		for _, r := range rows[i:end] {
			batch = append(batch, r.values())
		}

		n, err := db.CopyFrom(ctx, pool, importTableName, importColumns, batch)
		if err != nil {
			return total, eris.Wrapf(err, "tiger: load batch %d-%d", i, end)
		}
		total += n

		log.Debug("batch loaded",
			zap.Int("batch_start", i),
			zap.Int("batch_end", end),
			zap.Int64("batch_rows", n),
		)
	}

	return total, nil
}

// TruncateImport empties the staging table before and after a load run.
func TruncateImport(ctx context.Context, pool db.Pool) error {
	if _, err := pool.Exec(ctx, "TRUNCATE "+importTable.Sanitize()); err != nil {
		return eris.Wrap(err, "tiger: truncate staging table")
	}
	return nil
}
