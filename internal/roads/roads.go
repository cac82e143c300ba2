// Package roads reads road names and TIGER address-range segments from a
// Nominatim Postgres database. Road names come from the TIGER import joined
// to placex, with a geometry-radius fallback around the postcode centroid
// for ZIPs the TIGER tables do not cover.
package roads

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geocode-cli/internal/db"
	"github.com/sells-group/geocode-cli/internal/interp"
)

// Lookup failure kinds for search metadata.
const (
	KindTimeout     = "db_timeout"
	KindError       = "db_error"
	KindUnavailable = "db_unavailable"
)

// Store provides road reference data for one postcode.
type Store interface {
	// RoadNames returns the distinct road names known for a postcode,
	// sorted and deduplicated.
	RoadNames(ctx context.Context, postcode string) ([]string, error)

	// Segments returns TIGER address ranges in a postcode whose road name
	// contains roadLike, ordered by road name then range.
	Segments(ctx context.Context, postcode, roadLike string) ([]interp.Segment, error)
}

// Config tunes the geometry-radius fallback.
type Config struct {
	CountryCode string
	RadiusM     int
}

// DefaultConfig returns the US-centric fallback bounds.
func DefaultConfig() Config {
	return Config{CountryCode: "us", RadiusM: 5000}
}

// PostgresStore implements Store against a Nominatim database.
type PostgresStore struct {
	pool db.Pool
	cfg  Config

	// Column accessor syntax differs between hstore and jsonb Nominatim
	// schemas; sniffed once per store.
	sniffOnce sync.Once
	sniffErr  error
	nameOp    colOp
	addrOp    colOp
	geomCol   string
}

type colOp struct {
	op   string
	cast string
}

func (o colOp) expr(column, key string) string {
	return fmt.Sprintf("p.%s%s'%s'%s", column, o.op, key, o.cast)
}

// NewPostgres creates a road store over an existing pool.
func NewPostgres(pool db.Pool, cfg Config) *PostgresStore {
	def := DefaultConfig()
	if cfg.CountryCode == "" {
		cfg.CountryCode = def.CountryCode
	}
	if cfg.RadiusM <= 0 {
		cfg.RadiusM = def.RadiusM
	}
	return &PostgresStore{pool: pool, cfg: cfg}
}

// Kind classifies a lookup error for search metadata. Statement timeouts and
// deadline errors report as KindTimeout, everything else as KindError.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "canceling statement") {
		return KindTimeout
	}
	return KindError
}

// sniffSchema detects whether placex name/address columns are hstore or
// jsonb and which geometry column location_postcode carries.
func (s *PostgresStore) sniffSchema(ctx context.Context) error {
	s.sniffOnce.Do(func() {
		s.nameOp, s.sniffErr = s.columnOperator(ctx, "placex", "name")
		if s.sniffErr != nil {
			return
		}
		s.addrOp, s.sniffErr = s.columnOperator(ctx, "placex", "address")
		if s.sniffErr != nil {
			return
		}
		s.geomCol, s.sniffErr = s.postcodeGeomColumn(ctx)
	})
	return s.sniffErr
}

func (s *PostgresStore) columnOperator(ctx context.Context, table, column string) (colOp, error) {
	const q = `SELECT data_type, udt_name
		FROM information_schema.columns
		WHERE table_name = $1 AND column_name = $2
		LIMIT 1`

	var dataType, udtName string
	err := s.pool.QueryRow(ctx, q, table, column).Scan(&dataType, &udtName)
	if errors.Is(err, pgx.ErrNoRows) {
		return colOp{op: "->>"}, nil
	}
	if err != nil {
		return colOp{}, eris.Wrapf(err, "roads: sniff %s.%s", table, column)
	}
	if udtName == "hstore" {
		return colOp{op: "->", cast: "::text"}, nil
	}
	if dataType == "json" || dataType == "jsonb" {
		return colOp{op: "->>"}, nil
	}
	return colOp{op: "->>"}, nil
}

func (s *PostgresStore) postcodeGeomColumn(ctx context.Context) (string, error) {
	const q = `SELECT column_name
		FROM information_schema.columns
		WHERE table_name = 'location_postcode'
		  AND column_name IN ('centroid', 'geometry')
		ORDER BY CASE column_name WHEN 'centroid' THEN 1 ELSE 2 END
		LIMIT 1`

	var col string
	err := s.pool.QueryRow(ctx, q).Scan(&col)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", eris.New("roads: location_postcode has neither centroid nor geometry column")
	}
	if err != nil {
		return "", eris.Wrap(err, "roads: sniff location_postcode geometry column")
	}
	return col, nil
}

// RoadNames returns road names for a postcode from the TIGER tables,
// falling back to a highway scan around the postcode centroid.
func (s *PostgresStore) RoadNames(ctx context.Context, postcode string) ([]string, error) {
	if postcode == "" {
		return nil, nil
	}
	if err := s.sniffSchema(ctx); err != nil {
		return nil, err
	}

	names, err := s.tigerRoadNames(ctx, postcode)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		zap.L().Debug("no TIGER road names for postcode, using geometry fallback",
			zap.String("postcode", postcode))
		names, err = s.radiusRoadNames(ctx, postcode)
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(names)
	return names, nil
}

func (s *PostgresStore) tigerRoadNames(ctx context.Context, postcode string) ([]string, error) {
	keys := []string{
		s.nameOp.expr("name", "name"),
		s.nameOp.expr("name", "name:en"),
		s.nameOp.expr("name", "alt_name"),
		s.nameOp.expr("name", "official_name"),
		s.addrOp.expr("address", "road"),
	}
	var parts []string
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf(`SELECT DISTINCT NULLIF(BTRIM(%s), '') AS road_name
			FROM location_property_tiger t
			JOIN placex p ON p.place_id = t.parent_place_id
			WHERE t.postcode = $1`, key))
	}
	q := fmt.Sprintf(`WITH roads AS (%s)
		SELECT road_name FROM roads WHERE road_name IS NOT NULL ORDER BY road_name`,
		strings.Join(parts, "\nUNION\n"))

	rows, err := s.pool.Query(ctx, q, postcode)
	if err != nil {
		return nil, eris.Wrap(err, "roads: tiger road names")
	}
	defer rows.Close()
	return scanRoadNames(rows)
}

func (s *PostgresStore) radiusRoadNames(ctx context.Context, postcode string) ([]string, error) {
	coalesced := strings.Join([]string{
		s.nameOp.expr("name", "name"),
		s.nameOp.expr("name", "name:en"),
		s.nameOp.expr("name", "alt_name"),
		s.nameOp.expr("name", "official_name"),
		s.addrOp.expr("address", "road"),
		s.addrOp.expr("address", "pedestrian"),
		s.addrOp.expr("address", "footway"),
		s.addrOp.expr("address", "path"),
	}, ",\n")
	q := fmt.Sprintf(`WITH z AS (
			SELECT %s::geometry AS g
			FROM location_postcode
			WHERE country_code = $1 AND postcode = $2
			LIMIT 1
		),
		roads AS (
			SELECT DISTINCT NULLIF(BTRIM(COALESCE(%s)), '') AS road_name
			FROM placex p, z
			WHERE p.class = 'highway'
			  AND p.geometry IS NOT NULL
			  AND ST_DWithin(p.geometry::geography, z.g::geography, $3)
		)
		SELECT road_name FROM roads WHERE road_name IS NOT NULL ORDER BY road_name`,
		s.geomCol, coalesced)

	rows, err := s.pool.Query(ctx, q, s.cfg.CountryCode, postcode, s.cfg.RadiusM)
	if err != nil {
		return nil, eris.Wrap(err, "roads: radius road names")
	}
	defer rows.Close()
	return scanRoadNames(rows)
}

func scanRoadNames(rows pgx.Rows) ([]string, error) {
	seen := map[string]bool{}
	var names []string
	for rows.Next() {
		var name *string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "roads: scan road name")
		}
		if name == nil || *name == "" || seen[*name] {
			continue
		}
		seen[*name] = true
		names = append(names, *name)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "roads: iterate road names")
	}
	return names, nil
}

// Segments returns the TIGER address ranges for a matched road. Rows with a
// missing numeric range or geometry are dropped.
func (s *PostgresStore) Segments(ctx context.Context, postcode, roadLike string) ([]interp.Segment, error) {
	if postcode == "" || roadLike == "" {
		return nil, nil
	}

	const q = `SELECT
			t.place_id,
			t.startnumber,
			t.endnumber,
			COALESCE(t.step, 1),
			t.postcode,
			p.name::text,
			p.class,
			p.type,
			ST_X(ST_StartPoint(t.linegeo::geometry)),
			ST_Y(ST_StartPoint(t.linegeo::geometry)),
			ST_X(ST_EndPoint(t.linegeo::geometry)),
			ST_Y(ST_EndPoint(t.linegeo::geometry))
		FROM location_property_tiger t
		JOIN placex p ON p.place_id = t.parent_place_id
		WHERE t.postcode = $1
		  AND p.name::text ILIKE '%' || $2 || '%'
		ORDER BY
			p.name::text,
			LEAST(t.startnumber, t.endnumber),
			GREATEST(t.startnumber, t.endnumber)`

	rows, err := s.pool.Query(ctx, q, postcode, roadLike)
	if err != nil {
		return nil, eris.Wrap(err, "roads: tiger segments")
	}
	defer rows.Close()

	var segments []interp.Segment
	for rows.Next() {
		var (
			placeID              *int64
			startNum, endNum     *int
			step                 int
			pc, name, cls, typ   *string
			startLon, startLat   *float64
			endLon, endLat       *float64
		)
		if err := rows.Scan(&placeID, &startNum, &endNum, &step, &pc, &name, &cls, &typ,
			&startLon, &startLat, &endLon, &endLat); err != nil {
			return nil, eris.Wrap(err, "roads: scan tiger segment")
		}
		if startNum == nil || endNum == nil ||
			startLat == nil || startLon == nil || endLat == nil || endLon == nil {
			continue
		}
		seg := interp.Segment{
			StartNumber: *startNum,
			EndNumber:   *endNum,
			Step:        step,
			StartLat:    *startLat,
			StartLon:    *startLon,
			EndLat:      *endLat,
			EndLon:      *endLon,
		}
		if placeID != nil {
			seg.PlaceID = *placeID
		}
		if pc != nil {
			seg.Postcode = *pc
		}
		if name != nil {
			seg.RoadName = *name
		}
		if cls != nil {
			seg.RoadClass = *cls
		}
		if typ != nil {
			seg.RoadType = *typ
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "roads: iterate tiger segments")
	}
	return segments, nil
}
