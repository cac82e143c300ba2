package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geocode-cli/internal/search"
)

func rank(n int) *int { return &n }

// houseCandidate is a street-level hit in Jamestown, RI with a tight bbox.
func houseCandidate() search.Candidate {
	return search.Candidate{
		Class:       "place",
		Type:        "house",
		PlaceRank:   rank(30),
		DisplayName: "12, Walcott Avenue, Jamestown, RI",
		BoundingBox: []string{"41.5000", "41.5002", "-71.3670", "-71.3668"},
		Address: search.Address{
			HouseNumber: "12",
			Road:        "Walcott Avenue",
			Town:        "Jamestown",
			State:       "Rhode Island",
			Postcode:    "02835",
		},
	}
}

func TestCheck_AcceptsHouseOnZipMatch(t *testing.T) {
	v := New(DefaultConfig())
	d := v.Check(houseCandidate(), Expectation{Zip: "02835"})
	assert.True(t, d.Accepted)
	assert.Empty(t, d.Reasons)
	assert.Empty(t, d.Reason())
	assert.Equal(t, true, d.Diag["zip_match"])
}

func TestCheck_AcceptsOnCityStateWhenZipDiffers(t *testing.T) {
	v := New(DefaultConfig())
	d := v.Check(houseCandidate(), Expectation{Zip: "02840", City: "Jamestown", State: "RI"})
	assert.True(t, d.Accepted)
	assert.Equal(t, false, d.Diag["zip_match"])
	assert.Equal(t, true, d.Diag["city_match"])
	assert.Equal(t, true, d.Diag["state_match"])
}

func TestCheck_RejectsCityStateWhenOnlyCityMatches(t *testing.T) {
	v := New(DefaultConfig())
	d := v.Check(houseCandidate(), Expectation{City: "Jamestown", State: "CT"})
	require.False(t, d.Accepted)
	assert.Contains(t, d.Reasons, ReasonLocationMismatch)
}

func TestCheck_RejectsBroadFeatures(t *testing.T) {
	v := New(DefaultConfig())

	town := houseCandidate()
	town.Class = "place"
	town.Type = "town"
	d := v.Check(town, Expectation{Zip: "02835"})
	require.False(t, d.Accepted)
	assert.Contains(t, d.Reasons, ReasonBroadClassType)

	boundary := houseCandidate()
	boundary.Class = "boundary"
	boundary.Type = "administrative"
	d = v.Check(boundary, Expectation{Zip: "02835"})
	require.False(t, d.Accepted)
	assert.Contains(t, d.Reasons, ReasonBroadClassType)
}

func TestCheck_HighwayClassNotBroad(t *testing.T) {
	v := New(DefaultConfig())
	road := houseCandidate()
	road.Class = "highway"
	road.Type = "residential"
	d := v.Check(road, Expectation{Zip: "02835"})
	assert.True(t, d.Accepted)
}

func TestCheck_RejectsLowPlaceRank(t *testing.T) {
	v := New(DefaultConfig())
	c := houseCandidate()
	c.PlaceRank = rank(20)
	d := v.Check(c, Expectation{Zip: "02835"})
	require.False(t, d.Accepted)
	assert.Contains(t, d.Reasons, ReasonPlaceRankTooLow)
}

func TestCheck_MissingPlaceRankPasses(t *testing.T) {
	v := New(DefaultConfig())
	c := houseCandidate()
	c.PlaceRank = nil
	d := v.Check(c, Expectation{Zip: "02835"})
	assert.True(t, d.Accepted)
}

func TestCheck_RejectsMissingOrBadBBox(t *testing.T) {
	v := New(DefaultConfig())

	c := houseCandidate()
	c.BoundingBox = nil
	d := v.Check(c, Expectation{Zip: "02835"})
	require.False(t, d.Accepted)
	assert.Contains(t, d.Reasons, ReasonMissingBBox)

	c = houseCandidate()
	c.BoundingBox = []string{"41.5", "not-a-number", "-71.4", "-71.3"}
	d = v.Check(c, Expectation{Zip: "02835"})
	require.False(t, d.Accepted)
	assert.Contains(t, d.Reasons, ReasonMissingBBox)
}

func TestCheck_RejectsOversizedFeature(t *testing.T) {
	v := New(DefaultConfig())
	c := houseCandidate()
	// Roughly 11 km north-south.
	c.BoundingBox = []string{"41.50", "41.60", "-71.37", "-71.36"}
	d := v.Check(c, Expectation{Zip: "02835"})
	require.False(t, d.Accepted)
	assert.Contains(t, d.Reasons, ReasonTooLongFeature)
}

func TestCheck_AllChecksEvaluated(t *testing.T) {
	v := New(DefaultConfig())
	c := houseCandidate()
	c.Class = "boundary"
	c.PlaceRank = rank(16)
	c.BoundingBox = nil
	d := v.Check(c, Expectation{Zip: "99999"})
	require.False(t, d.Accepted)
	assert.Equal(t, []string{
		ReasonBroadClassType,
		ReasonPlaceRankTooLow,
		ReasonMissingBBox,
		ReasonLocationMismatch,
	}, d.Reasons)
	assert.Len(t, d.Logic, 4)
}

func TestCheck_StateNormalization(t *testing.T) {
	v := New(DefaultConfig())

	c := houseCandidate()
	c.Address.State = ""
	c.Address.ISO3166Lvl4 = "US-RI"
	d := v.Check(c, Expectation{City: "Jamestown", State: "Rhode Island"})
	assert.True(t, d.Accepted)
	assert.Equal(t, "RI", d.Diag["result_state_normalized"])
	assert.Equal(t, "RI", d.Diag["expected_state_normalized"])
}

func TestCheck_CityContainmentMatch(t *testing.T) {
	v := New(DefaultConfig())
	c := houseCandidate()
	c.Address.Town = ""
	c.Address.City = "City of Jamestown"
	d := v.Check(c, Expectation{City: "Jamestown", State: "RI"})
	assert.True(t, d.Accepted)
	assert.Equal(t, []string{"city"}, d.Diag["city_match_keys"])
}

func TestCheck_ZipPlusFourNormalized(t *testing.T) {
	v := New(DefaultConfig())
	c := houseCandidate()
	c.Address.Postcode = "02835-1234"
	d := v.Check(c, Expectation{Zip: "02835"})
	assert.True(t, d.Accepted)
}

func TestBBoxMaxDimM(t *testing.T) {
	// One degree of latitude is about 111 km.
	dim, ok := bboxMaxDimM([]string{"41.0", "42.0", "-71.0", "-71.0"})
	require.True(t, ok)
	assert.InDelta(t, 111195, dim, 200)

	_, ok = bboxMaxDimM([]string{"41.0", "42.0"})
	assert.False(t, ok)
}

func TestNormalizeState(t *testing.T) {
	tests := []struct{ in, want string }{
		{"RI", "RI"},
		{"ri", "RI"},
		{"Rhode Island", "RI"},
		{"US-RI", "RI"},
		{"us ma", "MA"},
		{"District of Columbia", "DC"},
		{"", ""},
		{"Ontario", "ontario"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeState(tt.in), tt.in)
	}
}
