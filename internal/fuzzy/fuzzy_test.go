package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandRoadAbbreviations(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Main St", "Main street"},
		{"Oak Lawn Ave.", "Oak Lawn avenue"},
		{"N. Broadway Blvd", "N Broadway boulevard"},
		{"Walcott", "Walcott"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandRoadAbbreviations(tt.in))
	}
}

func TestSmartScore_ExactAndJoined(t *testing.T) {
	assert.InDelta(t, 100, SmartScore("Main Street", "main street"), 0.01)
	// Joined form catches separator differences.
	assert.Greater(t, SmartScore("Oaklawn Avenue", "Oak Lawn Avenue"), 85.0)
}

func TestBestMatch_AbbreviationClearsThreshold(t *testing.T) {
	m := NewMatcher(80)
	match, top := m.BestMatch("Main Street", []string{"Main St"})
	require.NotNil(t, match)
	assert.Equal(t, "Main St", match.Name)
	assert.GreaterOrEqual(t, top, 80.0)
}

func TestBestMatch_UnrelatedReturnsNone(t *testing.T) {
	m := NewMatcher(80)
	match, top := m.BestMatch("Main Street", []string{"Elm Avenue"})
	assert.Nil(t, match)
	assert.Less(t, top, 80.0)
}

func TestBestMatch_PicksTopCandidate(t *testing.T) {
	m := NewMatcher(80)
	match, _ := m.BestMatch("Old Walcott Ave", []string{
		"Narragansett Avenue",
		"Old Walcott Avenue",
		"Walcott Court",
	})
	require.NotNil(t, match)
	assert.Equal(t, "Old Walcott Avenue", match.Name)
}

func TestBestMatch_EmptyInputs(t *testing.T) {
	m := NewMatcher(80)
	match, top := m.BestMatch("", []string{"Main Street"})
	assert.Nil(t, match)
	assert.Zero(t, top)

	match, top = m.BestMatch("Main Street", nil)
	assert.Nil(t, match)
	assert.Zero(t, top)
}
