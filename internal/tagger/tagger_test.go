package tagger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geocode-cli/internal/search"
	"github.com/sells-group/geocode-cli/internal/zipstate"
)

type stubSearcher struct {
	candidates []search.Candidate
	err        error
	queries    []search.Query
}

func (s *stubSearcher) Search(_ context.Context, q search.Query) ([]search.Candidate, error) {
	s.queries = append(s.queries, q)
	return s.candidates, s.err
}

func TestTag_EndToEnd(t *testing.T) {
	tg := New(zipstate.Lookup)
	res, err := tg.Tag(context.Background(), "2 Old Walcott Ave, Jamestown RI 02835")
	require.NoError(t, err)

	assert.Equal(t, "2", res.Expanded[LabelAddressNumber])
	assert.Contains(t, res.Expanded[LabelStreetName], "Walcott")
	assert.Equal(t, "Avenue", res.Expanded[LabelStreetNamePostType])
	assert.Equal(t, "Jamestown", res.Expanded[LabelPlaceName])
	assert.Equal(t, "RI", res.Expanded[LabelStateName])
	assert.Equal(t, "02835", res.Expanded[LabelZipCode])
	assert.Equal(t, 1, res.Meta.FixExpandAbbreviationsCount)
	assert.False(t, res.Meta.MissingStreetName)
	assert.False(t, res.Meta.MissingZip)
}

func TestTag_StateFilledFromZip(t *testing.T) {
	tg := New(zipstate.Lookup)
	res, err := tg.Tag(context.Background(), "12 Narragansett Ave, Jamestown 02835")
	require.NoError(t, err)
	assert.Equal(t, "RI", res.Tags[LabelStateName])
	assert.True(t, res.Meta.FixStateAbbreviationAfterTags)
}

func TestTag_AddressNumberSplit(t *testing.T) {
	tg := New(zipstate.Lookup)
	res, err := tg.Tag(context.Background(), "123A Hope St, Providence RI 02906")
	require.NoError(t, err)
	assert.Equal(t, "123", res.Tags[LabelAddressNumber])
	assert.Equal(t, "Unit", res.Tags[LabelOccupancyType])
	assert.Equal(t, "A", res.Tags[LabelOccupancyIdentifier])
	assert.True(t, res.Meta.FixAddressNumberNonNumeric)
}

func TestTag_AddressNumberSplitUsesSubaddressSlot(t *testing.T) {
	tg := New(zipstate.Lookup)
	res, err := tg.Tag(context.Background(), "123A Hope St Apt 4, Providence RI 02906")
	require.NoError(t, err)
	assert.Equal(t, "123", res.Tags[LabelAddressNumber])
	assert.Equal(t, "Apt", res.Tags[LabelOccupancyType])
	assert.Equal(t, "Unit", res.Tags[LabelSubaddressType])
	assert.Equal(t, "A", res.Tags[LabelSubaddressIdentifier])
}

func TestTag_RepairRetryInsertsState(t *testing.T) {
	tg := New(zipstate.Lookup)
	// Two ZIP-looking tokens fail the parse; the repair inserts the state
	// before the first ZIP, which does not change the conflict, so this
	// fails permanently.
	_, err := tg.Tag(context.Background(), "12 Main St 02840, Newport 02841")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaggingFailed)
}

func TestTag_FailsWithoutZipInPartial(t *testing.T) {
	tg := New(zipstate.Lookup)
	// Three occupancy markers overflow both unit slots with no ZIP tagged.
	_, err := tg.Tag(context.Background(), "45 Oak St Apt 2 Unit 3 Suite 4 Fl 5")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaggingFailed)
}

func TestTag_ExpansionCount(t *testing.T) {
	tg := New(zipstate.Lookup)
	res, err := tg.Tag(context.Background(), "10 N Main St Apt 3, Peabody MA 01960")
	require.NoError(t, err)
	assert.Equal(t, "North", res.Expanded[LabelStreetNamePreDir])
	assert.Equal(t, "Street", res.Expanded[LabelStreetNamePostType])
	assert.Equal(t, "Apartment", res.Expanded[LabelOccupancyType])
	assert.Equal(t, 3, res.Meta.FixExpandAbbreviationsCount)
	// Raw tags keep the original values.
	assert.Equal(t, "St", res.Tags[LabelStreetNamePostType])
}

func TestTag_ReverseForState_Unanimous(t *testing.T) {
	stub := &stubSearcher{candidates: []search.Candidate{
		{DisplayName: "12, Narragansett Avenue, Jamestown, RI", Address: search.Address{State: "Rhode Island"}},
		{DisplayName: "12, Narragansett Avenue, Jamestown, Rhode Island", Address: search.Address{State: "rhode island"}},
	}}
	tg := New(zipstate.Lookup, WithSearcher(stub))

	res, err := tg.Tag(context.Background(), "12 Narragansett Ave, Jamestown")
	require.NoError(t, err)
	assert.Equal(t, "Rhode Island", res.Tags[LabelStateName])
	assert.True(t, res.Meta.ReverseForStateSearched)
	assert.True(t, res.Meta.ReverseForStateIncluded)
	assert.Equal(t, 2, res.Meta.ReverseForStateNumberResults)
	require.NotNil(t, res.Meta.ReverseForStateAllResultsMatch)
	assert.True(t, *res.Meta.ReverseForStateAllResultsMatch)

	require.Len(t, stub.queries, 1)
	assert.Equal(t, "12, Narragansett Avenue, Jamestown", stub.queries[0].Text)
	assert.Equal(t, "us", stub.queries[0].CountryCodes)
}

func TestTag_ReverseForState_Ambiguous(t *testing.T) {
	stub := &stubSearcher{candidates: []search.Candidate{
		{Address: search.Address{State: "Rhode Island"}},
		{Address: search.Address{State: "Massachusetts"}},
	}}
	tg := New(zipstate.Lookup, WithSearcher(stub))

	res, err := tg.Tag(context.Background(), "12 Narragansett Ave, Jamestown")
	require.NoError(t, err)
	assert.Empty(t, res.Tags[LabelStateName])
	assert.False(t, res.Meta.ReverseForStateIncluded)
	require.NotNil(t, res.Meta.ReverseForStateAllResultsMatch)
	assert.False(t, *res.Meta.ReverseForStateAllResultsMatch)
}

func TestTag_ReverseForState_SkippedWhenStatePresent(t *testing.T) {
	stub := &stubSearcher{}
	tg := New(zipstate.Lookup, WithSearcher(stub))

	res, err := tg.Tag(context.Background(), "12 Narragansett Ave, Jamestown RI")
	require.NoError(t, err)
	assert.False(t, res.Meta.ReverseForStateSearched)
	assert.Empty(t, stub.queries)
}
