package tagger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FullStreetAddress(t *testing.T) {
	tags, typ, err := Parse("2 Old Walcott Ave, Jamestown RI 02835")
	require.NoError(t, err)
	assert.Equal(t, TypeStreetAddress, typ)
	assert.Equal(t, "2", tags[LabelAddressNumber])
	assert.Equal(t, "Old Walcott", tags[LabelStreetName])
	assert.Equal(t, "Ave", tags[LabelStreetNamePostType])
	assert.Equal(t, "Jamestown", tags[LabelPlaceName])
	assert.Equal(t, "RI", tags[LabelStateName])
	assert.Equal(t, "02835", tags[LabelZipCode])
}

func TestParse_DropsCountryToken(t *testing.T) {
	tags, _, err := Parse("2 Old Walcott Ave, Jamestown RI 02835 USA")
	require.NoError(t, err)
	assert.Equal(t, "02835", tags[LabelZipCode])
	assert.Equal(t, "RI", tags[LabelStateName])
}

func TestParse_FullStateName(t *testing.T) {
	tags, _, err := Parse("15 Benefit Street, Providence Rhode Island 02903")
	require.NoError(t, err)
	assert.Equal(t, "RI", tags[LabelStateName])
	assert.Equal(t, "Providence", tags[LabelPlaceName])
}

func TestParse_Directionals(t *testing.T) {
	tags, _, err := Parse("100 N Main St W, Peabody MA 01960")
	require.NoError(t, err)
	assert.Equal(t, "N", tags[LabelStreetNamePreDir])
	assert.Equal(t, "Main", tags[LabelStreetName])
	assert.Equal(t, "St", tags[LabelStreetNamePostType])
	assert.Equal(t, "W", tags[LabelStreetNamePostDir])
}

func TestParse_Occupancy(t *testing.T) {
	tags, _, err := Parse("45 Oak St Apt 2B, Cranston RI 02910")
	require.NoError(t, err)
	assert.Equal(t, "Apt", tags[LabelOccupancyType])
	assert.Equal(t, "2B", tags[LabelOccupancyIdentifier])
	assert.Equal(t, "Cranston", tags[LabelPlaceName])
}

func TestParse_HashUnit(t *testing.T) {
	tags, _, err := Parse("45 Oak St #5, Cranston RI 02910")
	require.NoError(t, err)
	assert.Equal(t, "#", tags[LabelOccupancyType])
	assert.Equal(t, "5", tags[LabelOccupancyIdentifier])
}

func TestParse_POBox(t *testing.T) {
	tags, typ, err := Parse("PO Box 123, Jamestown RI 02835")
	require.NoError(t, err)
	assert.Equal(t, TypePOBox, typ)
	assert.Equal(t, "PO Box", tags[LabelUSPSBoxType])
	assert.Equal(t, "123", tags[LabelUSPSBoxID])
	assert.Empty(t, tags[LabelAddressNumber])
}

func TestParse_ZipPlusFour(t *testing.T) {
	tags, _, err := Parse("12 Main St, Newport RI 02840-1234")
	require.NoError(t, err)
	assert.Equal(t, "02840", tags[LabelZipCode])
}

func TestParse_NoStateOrZip(t *testing.T) {
	tags, typ, err := Parse("12 Narragansett Ave, Jamestown")
	require.NoError(t, err)
	assert.Equal(t, TypeStreetAddress, typ)
	assert.Equal(t, "Jamestown", tags[LabelPlaceName])
	assert.Empty(t, tags[LabelStateName])
	assert.Empty(t, tags[LabelZipCode])
}

func TestParse_RepeatedZipIsParseError(t *testing.T) {
	_, _, err := Parse("12 Main St 02840, Newport RI 02841")
	require.Error(t, err)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, LabelZipCode, parseErr.Label)
	assert.Equal(t, "02840", parseErr.Partial[LabelZipCode])
	assert.Empty(t, parseErr.Partial[LabelStateName])
}

func TestParse_LowercaseStateWordNotMistaken(t *testing.T) {
	// "in" the preposition must not become Indiana.
	tags, _, err := Parse("12 Main St, Oregon City")
	require.NoError(t, err)
	assert.Empty(t, tags[LabelStateName])
	assert.Equal(t, "Oregon City", tags[LabelPlaceName])
}

func TestParse_Empty(t *testing.T) {
	tags, typ, err := Parse("   ")
	require.NoError(t, err)
	assert.Empty(t, tags)
	assert.Equal(t, TypeAmbiguous, typ)
}

func TestBuildStreet(t *testing.T) {
	street := BuildStreet(Tags{
		LabelStreetNamePreDir:   "North",
		LabelStreetName:         "Main",
		LabelStreetNamePostType: "Street",
	})
	assert.Equal(t, "North Main Street", street)

	assert.Empty(t, BuildStreet(Tags{}))
}
