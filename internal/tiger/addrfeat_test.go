package tiger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadURL(t *testing.T) {
	url := DownloadURL(2024, "44005")
	assert.Equal(t,
		"https://www2.census.gov/geo/tiger/TIGER2024/ADDRFEAT/tl_2024_44005_addrfeat.zip",
		url,
	)
}

func TestFTPDownloadURL(t *testing.T) {
	url := FTPDownloadURL(2024, "44005")
	assert.Equal(t,
		"ftp://ftp2.census.gov/geo/tiger/TIGER2024/ADDRFEAT/tl_2024_44005_addrfeat.zip",
		url,
	)
}

func TestAbbrFromFIPS(t *testing.T) {
	abbr, ok := AbbrFromFIPS("44")
	require.True(t, ok)
	assert.Equal(t, "RI", abbr)

	_, ok = AbbrFromFIPS("99")
	assert.False(t, ok)
}

func TestSideRange_ParityStep(t *testing.T) {
	geom := []byte{0x01}

	row, ok := sideRange(100, "Old Walcott Ave", "2", "10", "02835", geom)
	require.True(t, ok)
	assert.Equal(t, 2, row.Step)
	assert.Equal(t, 2, row.StartNumber)
	assert.Equal(t, 10, row.EndNumber)
	assert.Equal(t, "02835", row.Postcode)

	row, ok = sideRange(100, "Old Walcott Ave", "2", "11", "02835", geom)
	require.True(t, ok)
	assert.Equal(t, 1, row.Step)
}

func TestSideRange_DropsUnusableSides(t *testing.T) {
	geom := []byte{0x01}

	tests := []struct {
		name                    string
		fullName, from, to, zip string
	}{
		{"missing road name", "", "2", "10", "02835"},
		{"missing zip", "Main St", "2", "10", ""},
		{"missing from", "Main St", "", "10", "02835"},
		{"hyphenated house number", "Main St", "12-34", "56-78", "11354"},
		{"alpha house number", "Main St", "2A", "10", "02835"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := sideRange(100, tt.fullName, tt.from, tt.to, tt.zip, geom)
			assert.False(t, ok)
		})
	}
}

func TestRangeRow_Values(t *testing.T) {
	row := RangeRow{
		TLID:        636051357,
		FullName:    "Old Walcott Ave",
		StartNumber: 2,
		EndNumber:   10,
		Step:        2,
		Postcode:    "02835",
		Geom:        []byte{0x01, 0x02},
	}

	vals := row.values()
	require.Len(t, vals, len(importColumns))
	assert.Equal(t, int64(636051357), vals[0])
	assert.Equal(t, "Old Walcott Ave", vals[1])
	assert.Equal(t, []byte{0x01, 0x02}, vals[6])
}
