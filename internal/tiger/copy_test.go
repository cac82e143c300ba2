package tiger

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows(n int) []RangeRow {
	rows := make([]RangeRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, RangeRow{
			TLID:        int64(100 + i),
			FullName:    "Old Walcott Ave",
			StartNumber: 2,
			EndNumber:   10,
			Step:        2,
			Postcode:    "02835",
			Geom:        []byte{0x01},
		})
	}
	return rows
}

func TestBulkLoad(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"location_property_tiger_import"}, importColumns).
		WillReturnResult(2)

	n, err := BulkLoad(context.Background(), mock, sampleRows(2), 1000)

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkLoad_EmptyRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	n, err := BulkLoad(context.Background(), mock, nil, 1000)

	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkLoad_BatchSplitting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// 5 rows with batch size 2 = 3 COPY calls (2+2+1).
	mock.ExpectCopyFrom(pgx.Identifier{"location_property_tiger_import"}, importColumns).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"location_property_tiger_import"}, importColumns).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"location_property_tiger_import"}, importColumns).WillReturnResult(1)

	n, err := BulkLoad(context.Background(), mock, sampleRows(5), 2)

	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTruncateImport(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`TRUNCATE "location_property_tiger_import"`).
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))

	err = TruncateImport(context.Background(), mock)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
