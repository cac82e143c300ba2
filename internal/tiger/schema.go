package tiger

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geocode-cli/internal/db"
)

// schemaStatements create everything a load needs: the staging table, the
// interpolation table the resolver queries, its postcode index, and the
// per-county load ledger.
var schemaStatements = []struct {
	name string
	sql  string
}{
	{
		name: "staging table",
		sql: `CREATE TABLE IF NOT EXISTS location_property_tiger_import (
			tlid bigint NOT NULL,
			fullname text NOT NULL,
			startnumber integer NOT NULL,
			endnumber integer NOT NULL,
			step smallint NOT NULL,
			postcode text NOT NULL,
			linegeo geometry(LineString, 4326) NOT NULL
		)`,
	},
	{
		name: "place_id sequence",
		sql:  `CREATE SEQUENCE IF NOT EXISTS location_property_tiger_seq`,
	},
	{
		name: "interpolation table",
		sql: `CREATE TABLE IF NOT EXISTS location_property_tiger (
			place_id bigint NOT NULL,
			parent_place_id bigint,
			startnumber integer,
			endnumber integer,
			step smallint,
			postcode text,
			linegeo geometry
		)`,
	},
	{
		name: "postcode index",
		sql: `CREATE INDEX IF NOT EXISTS idx_location_property_tiger_postcode
			ON location_property_tiger (postcode)`,
	},
	{
		name: "load ledger",
		sql: `CREATE TABLE IF NOT EXISTS tiger_load_status (
			county_fips text NOT NULL,
			year integer NOT NULL,
			row_count integer NOT NULL DEFAULT 0,
			loaded_at timestamptz NOT NULL DEFAULT now(),
			duration_ms integer,
			PRIMARY KEY (county_fips, year)
		)`,
	},
}

// EnsureSchema creates the load tables when missing. Requires PostGIS.
func EnsureSchema(ctx context.Context, pool db.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt.sql); err != nil {
			return eris.Wrapf(err, "tiger: create %s", stmt.name)
		}
	}
	return nil
}

// AttachParents moves staged ranges into location_property_tiger, assigning
// each range the nearest highway feature as its parent. Ranges with no
// highway within ~100m stay out of the interpolation table since the
// resolver could never name them.
func AttachParents(ctx context.Context, pool db.Pool) (int64, error) {
	const q = `INSERT INTO location_property_tiger
			(place_id, parent_place_id, startnumber, endnumber, step, postcode, linegeo)
		SELECT nextval('location_property_tiger_seq'),
			parent.place_id,
			i.startnumber, i.endnumber, i.step, i.postcode, i.linegeo
		FROM location_property_tiger_import i
		CROSS JOIN LATERAL (
			SELECT p.place_id
			FROM placex p
			WHERE p.class = 'highway'
			  AND ST_DWithin(p.geometry, i.linegeo, 0.001)
			ORDER BY p.geometry <-> i.linegeo
			LIMIT 1
		) parent`

	tag, err := pool.Exec(ctx, q)
	if err != nil {
		return 0, eris.Wrap(err, "tiger: attach parents")
	}

	attached := tag.RowsAffected()
	zap.L().Info("address ranges attached",
		zap.String("component", "tiger.schema"),
		zap.Int64("rows", attached),
	)
	return attached, nil
}
