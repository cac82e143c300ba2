package geocache

import (
	"database/sql"

	"github.com/rotisserie/eris"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS address_cache (
	cache_key         TEXT PRIMARY KEY,
	address_raw       TEXT NOT NULL,
	address_geocode   TEXT NOT NULL DEFAULT '',
	address_nominatim TEXT NOT NULL DEFAULT '',
	latitude          TEXT NOT NULL DEFAULT '',
	longitude         TEXT NOT NULL DEFAULT '',
	method            TEXT NOT NULL DEFAULT '',
	error             TEXT NOT NULL DEFAULT '',
	result_metadata   TEXT NOT NULL DEFAULT '',
	tag_metadata      TEXT NOT NULL DEFAULT '',
	search_metadata   TEXT NOT NULL DEFAULT '',
	process_metadata  TEXT NOT NULL DEFAULT ''
);
`

// sqliteBackend persists entries as upserted rows, so saves stay cheap as
// the cache grows.
type sqliteBackend struct {
	db *sql.DB
}

func newSQLiteBackend(path string) (*sqliteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "geocache: open sqlite cache")
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrap(err, "geocache: set sqlite pragma")
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "geocache: create cache table")
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) load() (map[string]Entry, error) {
	rows, err := b.db.Query(`
		SELECT cache_key, address_raw, address_geocode, address_nominatim,
		       latitude, longitude, method, error,
		       result_metadata, tag_metadata, search_metadata, process_metadata
		FROM address_cache`)
	if err != nil {
		return nil, eris.Wrap(err, "geocache: query cache rows")
	}
	defer rows.Close() //nolint:errcheck

	entries := map[string]Entry{}
	for rows.Next() {
		var key string
		var e Entry
		if err := rows.Scan(&key, &e.AddressRaw, &e.AddressGeocode, &e.AddressNominatim,
			&e.Latitude, &e.Longitude, &e.Method, &e.Error,
			&e.ResultMetadata, &e.TagMetadata, &e.SearchMetadata, &e.ProcessMetadata); err != nil {
			return nil, eris.Wrap(err, "geocache: scan cache row")
		}
		entries[key] = e
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "geocache: iterate cache rows")
	}
	return entries, nil
}

func (b *sqliteBackend) save(_ map[string]Entry, key string, e Entry) error {
	_, err := b.db.Exec(`
		INSERT INTO address_cache (
			cache_key, address_raw, address_geocode, address_nominatim,
			latitude, longitude, method, error,
			result_metadata, tag_metadata, search_metadata, process_metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			address_raw = excluded.address_raw,
			address_geocode = excluded.address_geocode,
			address_nominatim = excluded.address_nominatim,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			method = excluded.method,
			error = excluded.error,
			result_metadata = excluded.result_metadata,
			tag_metadata = excluded.tag_metadata,
			search_metadata = excluded.search_metadata,
			process_metadata = excluded.process_metadata`,
		key, e.AddressRaw, e.AddressGeocode, e.AddressNominatim,
		e.Latitude, e.Longitude, e.Method, e.Error,
		e.ResultMetadata, e.TagMetadata, e.SearchMetadata, e.ProcessMetadata)
	if err != nil {
		return eris.Wrap(err, "geocache: upsert cache row")
	}
	return nil
}

func (b *sqliteBackend) close() error {
	return b.db.Close()
}
