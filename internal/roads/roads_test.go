package roads

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgres(mock, DefaultConfig()), mock
}

// expectSchemaSniff queues the three information_schema probes for an
// hstore-name, jsonb-address, centroid-geometry database.
func expectSchemaSniff(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery(`SELECT data_type, udt_name`).
		WithArgs("placex", "name").
		WillReturnRows(pgxmock.NewRows([]string{"data_type", "udt_name"}).AddRow("USER-DEFINED", "hstore"))
	mock.ExpectQuery(`SELECT data_type, udt_name`).
		WithArgs("placex", "address").
		WillReturnRows(pgxmock.NewRows([]string{"data_type", "udt_name"}).AddRow("jsonb", "jsonb"))
	mock.ExpectQuery(`SELECT column_name`).
		WillReturnRows(pgxmock.NewRows([]string{"column_name"}).AddRow("centroid"))
}

func TestRoadNames_FromTigerTables(t *testing.T) {
	s, mock := newMockStore(t)
	expectSchemaSniff(mock)

	mock.ExpectQuery(`FROM location_property_tiger t`).
		WithArgs("02835").
		WillReturnRows(pgxmock.NewRows([]string{"road_name"}).
			AddRow(ptr("Narragansett Avenue")).
			AddRow(ptr("Walcott Avenue")))

	names, err := s.RoadNames(context.Background(), "02835")
	require.NoError(t, err)
	assert.Equal(t, []string{"Narragansett Avenue", "Walcott Avenue"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoadNames_GeometryFallbackWhenTigerEmpty(t *testing.T) {
	s, mock := newMockStore(t)
	expectSchemaSniff(mock)

	mock.ExpectQuery(`FROM location_property_tiger t`).
		WithArgs("02835").
		WillReturnRows(pgxmock.NewRows([]string{"road_name"}))
	mock.ExpectQuery(`FROM location_postcode`).
		WithArgs("us", "02835", 5000).
		WillReturnRows(pgxmock.NewRows([]string{"road_name"}).AddRow(ptr("Conanicus Avenue")))

	names, err := s.RoadNames(context.Background(), "02835")
	require.NoError(t, err)
	assert.Equal(t, []string{"Conanicus Avenue"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoadNames_EmptyPostcode(t *testing.T) {
	s, _ := newMockStore(t)
	names, err := s.RoadNames(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, names)
}

func TestRoadNames_SniffRunsOnce(t *testing.T) {
	s, mock := newMockStore(t)
	expectSchemaSniff(mock)

	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`FROM location_property_tiger t`).
			WithArgs("02835").
			WillReturnRows(pgxmock.NewRows([]string{"road_name"}).AddRow(ptr("Walcott Avenue")))
	}

	for i := 0; i < 2; i++ {
		_, err := s.RoadNames(context.Background(), "02835")
		require.NoError(t, err)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSegments_ParsesAndSkipsIncompleteRows(t *testing.T) {
	s, mock := newMockStore(t)

	cols := []string{
		"place_id", "startnumber", "endnumber", "step", "postcode",
		"name", "class", "type",
		"start_lon", "start_lat", "end_lon", "end_lat",
	}
	lat1, lon1 := 41.50, -71.37
	lat2, lon2 := 41.51, -71.36
	rows := pgxmock.NewRows(cols).
		AddRow(ptr(int64(101)), ptr(2), ptr(40), 2, ptr("02835"), ptr(`"name"=>"Walcott Avenue"`), ptr("highway"), ptr("residential"),
			&lon1, &lat1, &lon2, &lat2).
		AddRow(ptr(int64(102)), ptr(42), ptr(98), 2, ptr("02835"), ptr(`"name"=>"Walcott Avenue"`), ptr("highway"), ptr("residential"),
			(*float64)(nil), (*float64)(nil), &lon2, &lat2)

	mock.ExpectQuery(`FROM location_property_tiger t`).
		WithArgs("02835", "Walcott Avenue").
		WillReturnRows(rows)

	segs, err := s.Segments(context.Background(), "02835", "Walcott Avenue")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, int64(101), segs[0].PlaceID)
	assert.Equal(t, 2, segs[0].StartNumber)
	assert.Equal(t, 40, segs[0].EndNumber)
	assert.Equal(t, 2, segs[0].Step)
	assert.InDelta(t, 41.50, segs[0].StartLat, 1e-9)
	assert.InDelta(t, -71.36, segs[0].EndLon, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSegments_MissingInputs(t *testing.T) {
	s, _ := newMockStore(t)
	segs, err := s.Segments(context.Background(), "", "Walcott Avenue")
	require.NoError(t, err)
	assert.Nil(t, segs)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, KindTimeout, Kind(context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, Kind(errors.New("ERROR: canceling statement due to statement timeout")))
	assert.Equal(t, KindError, Kind(errors.New("connection refused")))
}
