package geocache

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  12 Main St,  Newport RI  ", "12 main st, newport ri"},
		{"12 MAIN ST", "12 main st"},
		{"12 Main St, ", "12 main st"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeKey(tt.in), tt.in)
	}
}

func TestCache_PutGetRoundTrip(t *testing.T) {
	c, err := New("", false)
	require.NoError(t, err)

	entry := Entry{
		AddressRaw: "12 Main St, Newport RI 02840",
		Latitude:   "41.4901024",
		Longitude:  "-71.3128285",
		Method:     "etags_nsz",
	}
	require.NoError(t, c.Put(entry.AddressRaw, entry))

	got, ok := c.Get("  12 main st,   newport ri 02840 ")
	require.True(t, ok)
	assert.Equal(t, entry, got)
}

func TestCache_PersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.csv")

	c, err := New(path, true)
	require.NoError(t, err)
	entry := Entry{
		AddressRaw:       "12 Main St, Newport RI 02840",
		AddressGeocode:   "12, Main Street, 02840",
		AddressNominatim: "12, Main Street, Newport, RI, United States",
		Latitude:         "41.4901024",
		Longitude:        "-71.3128285",
		Method:           "etags_nsz",
		ResultMetadata:   `{"place_rank":30}`,
		TagMetadata:      `{"missing_zip":false}`,
		SearchMetadata:   `{"search_successful":true}`,
		ProcessMetadata:  `{}`,
	}
	require.NoError(t, c.Put(entry.AddressRaw, entry))

	reloaded, err := New(path, true)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Len())
	got, ok := reloaded.Get(entry.AddressRaw)
	require.True(t, ok)
	assert.Equal(t, entry, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "address_raw,address_geocode,address_nominatim")
}

func TestCache_MissingFileIsEmpty(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "absent.csv"), true)
	require.NoError(t, err)
	assert.Zero(t, c.Len())
}

func TestGetOrCompute_ComputesOncePerKey(t *testing.T) {
	c, err := New("", false)
	require.NoError(t, err)

	var calls atomic.Int32
	compute := func() (Entry, error) {
		calls.Add(1)
		return Entry{Latitude: "41.5", Longitude: "-71.3", Method: "etags_nsz"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, _, err := c.GetOrCompute("12 Main St", compute)
			assert.NoError(t, err)
			assert.Equal(t, "41.5", entry.Latitude)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())

	// Subsequent call is a hit.
	_, hit, err := c.GetOrCompute("12 MAIN ST", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	c, err := New("", false)
	require.NoError(t, err)

	boom := errors.New("service down")
	_, _, err = c.GetOrCompute("12 Main St", func() (Entry, error) {
		return Entry{}, boom
	})
	assert.ErrorIs(t, err, boom)

	entry, _, err := c.GetOrCompute("12 Main St", func() (Entry, error) {
		return Entry{Method: "etags_nsz"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "etags_nsz", entry.Method)
}

func TestBadAddressTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	content := "address_raw,address_update\n" +
		"\"12 Mian St, Newport RI\",\"12 Main St, Newport RI 02840\"\n" +
		",skipped\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := LoadBadAddresses(path)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())

	update, ok := table.Lookup("  12 MIAN st, newport ri ")
	require.True(t, ok)
	assert.Equal(t, "12 Main St, Newport RI 02840", update)

	_, ok = table.Lookup("12 Main St, Newport RI")
	assert.False(t, ok)
}

func TestBadAddressTable_MissingFile(t *testing.T) {
	table, err := LoadBadAddresses(filepath.Join(t.TempDir(), "absent.csv"))
	require.NoError(t, err)
	assert.Zero(t, table.Len())
}
