// Package geocache stores resolution results keyed by a normalized address
// string, with optional persistence across runs. Concurrent resolutions
// of the same key perform the external work at most once.
package geocache

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
)

// csvColumns is the persisted row layout. The four metadata columns hold
// serialized JSON diagnostics.
var csvColumns = []string{
	"address_raw",
	"address_geocode",
	"address_nominatim",
	"latitude",
	"longitude",
	"method",
	"error",
	"result_metadata",
	"tag_metadata",
	"search_metadata",
	"process_metadata",
}

// Entry is one cached resolution.
type Entry struct {
	AddressRaw       string
	AddressGeocode   string
	AddressNominatim string
	Latitude         string
	Longitude        string
	Method           string
	Error            string
	ResultMetadata   string
	TagMetadata      string
	SearchMetadata   string
	ProcessMetadata  string
}

func (e Entry) row() []string {
	return []string{
		e.AddressRaw, e.AddressGeocode, e.AddressNominatim,
		e.Latitude, e.Longitude, e.Method, e.Error,
		e.ResultMetadata, e.TagMetadata, e.SearchMetadata, e.ProcessMetadata,
	}
}

func entryFromRecord(rec map[string]string) Entry {
	return Entry{
		AddressRaw:       rec["address_raw"],
		AddressGeocode:   rec["address_geocode"],
		AddressNominatim: rec["address_nominatim"],
		Latitude:         rec["latitude"],
		Longitude:        rec["longitude"],
		Method:           rec["method"],
		Error:            rec["error"],
		ResultMetadata:   rec["result_metadata"],
		TagMetadata:      rec["tag_metadata"],
		SearchMetadata:   rec["search_metadata"],
		ProcessMetadata:  rec["process_metadata"],
	}
}

var foldCaser = cases.Fold()

// NormalizeKey canonicalizes an address for cache lookup: trimmed,
// case-folded, whitespace-collapsed, with edge punctuation stripped.
func NormalizeKey(value string) string {
	normalized := foldCaser.String(strings.TrimSpace(value))
	normalized = strings.Join(strings.Fields(normalized), " ")
	return strings.Trim(normalized, " ,")
}

// backend persists cache entries across runs. Implementations are called
// under the cache's write lock.
type backend interface {
	load() (map[string]Entry, error)
	// save persists one upsert. all is the full entry map for backends
	// that rewrite the whole file.
	save(all map[string]Entry, key string, entry Entry) error
	close() error
}

// Cache is a concurrency-safe resolution cache. The zero value is not
// usable; construct with New.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	store   backend
	group   singleflight.Group
}

// New creates a cache backed by the file at path. An empty path or
// persist=false keeps the cache in memory only. Paths ending in .db,
// .sqlite, or .sqlite3 use a SQLite backend; anything else is CSV. A
// missing file is not an error; a malformed one is.
func New(path string, persist bool) (*Cache, error) {
	c := &Cache{entries: map[string]Entry{}}
	if !persist || path == "" {
		return c, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		store, err := newSQLiteBackend(path)
		if err != nil {
			return nil, err
		}
		c.store = store
	default:
		c.store = &csvBackend{path: path}
	}

	entries, err := c.store.load()
	if err != nil {
		return nil, err
	}
	c.entries = entries
	zap.L().Debug("loaded address cache", zap.String("path", path), zap.Int("entries", len(entries)))
	return c, nil
}

// Close releases the persistence backend, if any.
func (c *Cache) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.close()
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Get returns the entry for an address, if present.
func (c *Cache) Get(rawAddress string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[NormalizeKey(rawAddress)]
	return e, ok
}

// Put stores an entry and persists it when a backend is configured.
func (c *Cache) Put(rawAddress string, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := NormalizeKey(rawAddress)
	c.entries[key] = entry
	if c.store == nil {
		return nil
	}
	return c.store.save(c.entries, key, entry)
}

// GetOrCompute returns the cached entry for an address, computing and
// storing it on a miss. Concurrent callers with equal keys share one
// compute call and all observe the same entry. The bool reports a hit.
func (c *Cache) GetOrCompute(rawAddress string, compute func() (Entry, error)) (Entry, bool, error) {
	key := NormalizeKey(rawAddress)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return entry, true, nil
	}

	type outcome struct {
		entry Entry
		hit   bool
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		// A racing caller may have stored the entry before this flight
		// started.
		c.mu.RLock()
		entry, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return outcome{entry: entry, hit: true}, nil
		}

		computed, err := compute()
		if err != nil {
			return outcome{}, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		c.entries[key] = computed
		if c.store != nil {
			if err := c.store.save(c.entries, key, computed); err != nil {
				return outcome{}, err
			}
		}
		return outcome{entry: computed}, nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	out := v.(outcome)
	return out.entry, out.hit, nil
}

// csvBackend persists the cache as a single CSV file, rewritten whole on
// every save so the file is always consistent.
type csvBackend struct {
	path string
}

func (b *csvBackend) load() (map[string]Entry, error) {
	entries := map[string]Entry{}

	f, err := os.Open(b.path)
	if os.IsNotExist(err) {
		return entries, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "geocache: open cache file")
	}
	defer f.Close() //nolint:errcheck

	records, err := readRecords(f)
	if err != nil {
		return nil, eris.Wrap(err, "geocache: read cache file")
	}
	for _, rec := range records {
		raw := strings.TrimSpace(rec["address_raw"])
		if raw == "" {
			continue
		}
		entries[NormalizeKey(raw)] = entryFromRecord(rec)
	}
	return entries, nil
}

func (b *csvBackend) save(all map[string]Entry, _ string, _ Entry) error {
	if dir := filepath.Dir(b.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "geocache: create cache dir")
		}
	}
	f, err := os.Create(b.path)
	if err != nil {
		return eris.Wrap(err, "geocache: create cache file")
	}
	defer f.Close() //nolint:errcheck

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := csv.NewWriter(f)
	if err := w.Write(csvColumns); err != nil {
		return eris.Wrap(err, "geocache: write header")
	}
	for _, k := range keys {
		if err := w.Write(all[k].row()); err != nil {
			return eris.Wrap(err, "geocache: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "geocache: flush cache file")
	}
	return nil
}

func (b *csvBackend) close() error { return nil }
