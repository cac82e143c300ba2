package tiger

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geocode-cli/internal/db"
)

// LoadOptions configures an ADDRFEAT load run.
type LoadOptions struct {
	Year        int      // TIGER/Line data year (default 2024)
	Counties    []string // 5-digit state+county FIPS codes; at least one
	TempDir     string   // Download directory
	Concurrency int      // Parallel county downloads (default 3)
	BatchSize   int      // COPY batch size (default 50,000)
	Incremental bool     // Skip counties already in the load ledger
	DryRun      bool     // Download and parse without loading
	UseFTP      bool     // Pull archives from the Census FTP mirror
}

// StatusRow is one row of the tiger_load_status ledger.
type StatusRow struct {
	CountyFIPS string
	Year       int
	RowCount   int
	LoadedAt   time.Time
	DurationMs int
}

var countyFIPSRe = regexp.MustCompile(`^\d{5}$`)

// Load downloads, parses, and loads ADDRFEAT data for the given counties,
// then attaches the staged ranges to their parent roads.
func Load(ctx context.Context, pool db.Pool, opts LoadOptions) error {
	if opts.Year == 0 {
		opts.Year = 2024
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.TempDir == "" {
		opts.TempDir = "/tmp/tiger"
	}
	if len(opts.Counties) == 0 {
		return eris.New("tiger: at least one county FIPS code is required")
	}
	for _, county := range opts.Counties {
		if !countyFIPSRe.MatchString(county) {
			return eris.Errorf("tiger: invalid county FIPS %q", county)
		}
		if _, ok := AbbrFromFIPS(county[:2]); !ok {
			return eris.Errorf("tiger: unknown state FIPS prefix in %q", county)
		}
	}

	log := zap.L().With(
		zap.String("component", "tiger.loader"),
		zap.Int("year", opts.Year),
	)

	if !opts.DryRun {
		if err := EnsureSchema(ctx, pool); err != nil {
			return err
		}
		if err := TruncateImport(ctx, pool); err != nil {
			return err
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, county := range opts.Counties {
		county := county
		g.Go(func() error {
			return loadCounty(gCtx, pool, county, opts)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("counties staged", zap.Int("counties", len(opts.Counties)))

	if !opts.DryRun {
		attached, err := AttachParents(ctx, pool)
		if err != nil {
			return err
		}
		if err := TruncateImport(ctx, pool); err != nil {
			return err
		}
		log.Info("ADDRFEAT load complete", zap.Int64("attached", attached))
	}
	return nil
}

// loadCounty stages one county's address ranges.
func loadCounty(ctx context.Context, pool db.Pool, countyFIPS string, opts LoadOptions) error {
	stateAbbr, _ := AbbrFromFIPS(countyFIPS[:2])
	log := zap.L().With(
		zap.String("component", "tiger.loader"),
		zap.String("county", countyFIPS),
		zap.String("state", stateAbbr),
	)

	if opts.Incremental {
		loaded, err := isLoaded(ctx, pool, countyFIPS, opts.Year)
		if err != nil {
			return err
		}
		if loaded {
			log.Debug("county already loaded, skipping")
			return nil
		}
	}

	start := time.Now()

	url := DownloadURL(opts.Year, countyFIPS)
	if opts.UseFTP {
		url = FTPDownloadURL(opts.Year, countyFIPS)
	}
	destDir := fmt.Sprintf("%s/%s", opts.TempDir, countyFIPS)
	shpPath, err := DownloadShapefile(ctx, url, destDir)
	if err != nil {
		return eris.Wrapf(err, "tiger: download county %s", countyFIPS)
	}
	log.Info("shapefile downloaded", zap.String("path", shpPath))

	rows, err := ParseAddrFeat(shpPath)
	if err != nil {
		return eris.Wrapf(err, "tiger: parse county %s", countyFIPS)
	}
	log.Info("shapefile parsed", zap.Int("ranges", len(rows)))

	if opts.DryRun {
		log.Info("dry run, skipping load", zap.Int("ranges", len(rows)))
		return nil
	}

	loaded, err := BulkLoad(ctx, pool, rows, opts.BatchSize)
	if err != nil {
		return err
	}
	duration := time.Since(start)

	if err := recordLoad(ctx, pool, countyFIPS, opts.Year, int(loaded), int(duration.Milliseconds())); err != nil {
		log.Warn("failed to record load status", zap.Error(err))
	}

	log.Info("county staged",
		zap.Int64("ranges", loaded),
		zap.Duration("duration", duration),
	)
	return nil
}

// isLoaded checks whether a county/year is already in the ledger.
func isLoaded(ctx context.Context, pool db.Pool, countyFIPS string, year int) (bool, error) {
	var count int
	row := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM tiger_load_status WHERE county_fips = $1 AND year = $2",
		countyFIPS, year,
	)
	if err := row.Scan(&count); err != nil {
		return false, eris.Wrap(err, "tiger: check load status")
	}
	return count > 0, nil
}

// recordLoad upserts the ledger row for a completed county load.
func recordLoad(ctx context.Context, pool db.Pool, countyFIPS string, year, rowCount, durationMs int) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO tiger_load_status (county_fips, year, row_count, duration_ms)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (county_fips, year) DO UPDATE SET
			row_count = EXCLUDED.row_count,
			loaded_at = now(),
			duration_ms = EXCLUDED.duration_ms`,
		countyFIPS, year, rowCount, durationMs,
	)
	if err != nil {
		return eris.Wrap(err, "tiger: record load status")
	}
	return nil
}

// LoadStatus returns the load ledger ordered by county.
func LoadStatus(ctx context.Context, pool db.Pool) ([]StatusRow, error) {
	rows, err := pool.Query(ctx, `
		SELECT county_fips, year, row_count, loaded_at, COALESCE(duration_ms, 0)
		FROM tiger_load_status
		ORDER BY county_fips, year`)
	if err != nil {
		return nil, eris.Wrap(err, "tiger: query load status")
	}
	defer rows.Close()

	var status []StatusRow
	for rows.Next() {
		var sr StatusRow
		if err := rows.Scan(&sr.CountyFIPS, &sr.Year, &sr.RowCount, &sr.LoadedAt, &sr.DurationMs); err != nil {
			return nil, eris.Wrap(err, "tiger: scan load status row")
		}
		status = append(status, sr)
	}
	return status, rows.Err()
}
