package tagger

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geocode-cli/internal/search"
)

// ErrTaggingFailed means no usable tags could be produced even after the
// one-shot state-insertion repair.
var ErrTaggingFailed = errors.New("tagger: no usable tags")

// StateLookup resolves a 5-digit ZIP to a 2-letter state abbreviation.
type StateLookup func(zip5 string) (string, bool)

// Searcher is the slice of the search client the tagger needs for state
// inference by reverse lookup.
type Searcher interface {
	Search(ctx context.Context, q search.Query) ([]search.Candidate, error)
}

// abbreviationExpansions standardizes street-type, directional, and
// occupancy-type values.
var abbreviationExpansions = map[string]string{
	"st": "Street", "st.": "Street",
	"ave": "Avenue", "ave.": "Avenue",
	"blvd": "Boulevard", "blvd.": "Boulevard",
	"rd": "Road", "rd.": "Road",
	"ct": "Court", "ct.": "Court",
	"ln": "Lane", "ln.": "Lane",
	"dr": "Drive", "dr.": "Drive",
	"pl": "Place", "pl.": "Place",
	"sq": "Square", "sq.": "Square",
	"pkwy": "Parkway", "pkwy.": "Parkway",
	"cir": "Circle", "cir.": "Circle",
	"hwy": "Highway", "hwy.": "Highway",
	"ter": "Terrace", "ter.": "Terrace",
	"n": "North", "s": "South",
	"e": "East", "w": "West",
	"apt": "Apartment", "apt.": "Apartment",
	"ste": "Suite", "ste.": "Suite",
}

// expandableLabels are the tag slots abbreviation expansion applies to.
var expandableLabels = []string{
	LabelStreetNamePreType,
	LabelStreetNamePostType,
	LabelStreetNamePreDir,
	LabelStreetNamePostDir,
	LabelOccupancyType,
}

// Metadata records every repair applied while tagging one address.
type Metadata struct {
	FixStateAbbreviationBeforeTags bool  `json:"fix_state_abbreviation_before_tags"`
	FixStateAbbreviationAfterTags  bool  `json:"fix_state_abbreviation_after_tags"`
	FixExpandAbbreviationsCount    int   `json:"fix_expand_address_abbreviations_count"`
	FixAddressNumberNonNumeric     bool  `json:"fix_address_number_non_numeric"`
	ReverseForStateSearched        bool  `json:"reverse_for_state_searched"`
	ReverseForStateIncluded        bool  `json:"reverse_for_state_included"`
	ReverseForStateNumberResults   int   `json:"reverse_for_state_number_results"`
	ReverseForStateAllResultsMatch *bool `json:"reverse_for_state_all_results_match"`
	ReverseForStateDisplayName     string `json:"reverse_for_state_display_name,omitempty"`
	AddressTags                    Tags  `json:"address_tags"`
	AddressTagsExpanded            Tags  `json:"address_tags_expanded"`
	MissingStreetNumber            bool  `json:"missing_street_number"`
	MissingStreetName              bool  `json:"missing_street_name"`
	MissingCity                    bool  `json:"missing_city"`
	MissingState                   bool  `json:"missing_state"`
	MissingZip                     bool  `json:"missing_zip"`
}

// Result is a successful tagging outcome.
type Result struct {
	// Tags are the components as parsed.
	Tags Tags
	// Expanded is Tags with abbreviation expansion applied.
	Expanded    Tags
	AddressType string
	Meta        Metadata
}

// Option configures a Tagger.
type Option func(*Tagger)

// WithSearcher enables state inference by reverse lookup.
func WithSearcher(s Searcher) Option {
	return func(t *Tagger) {
		t.searcher = s
	}
}

// Tagger labels address components and repairs tagging gaps.
type Tagger struct {
	stateByZip StateLookup
	searcher   Searcher
}

// New creates a Tagger using the given ZIP-to-state lookup.
func New(stateByZip StateLookup, opts ...Option) *Tagger {
	t := &Tagger{stateByZip: stateByZip}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tag parses one normalized address and applies the repair pipeline. A
// returned ErrTaggingFailed is terminal for the address but not for the run.
func (t *Tagger) Tag(ctx context.Context, address string) (*Result, error) {
	res := &Result{}

	tags, addrType, err := Parse(address)
	if err != nil {
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			return nil, eris.Wrap(err, "tagger: parse")
		}
		tags, addrType, err = t.retryWithState(address, parseErr, &res.Meta)
		if err != nil {
			return nil, err
		}
	}

	// Fill a missing state from the ZIP reference without re-parsing.
	if tags[LabelZipCode] != "" && tags[LabelStateName] == "" {
		if abbr, ok := t.stateByZip(tags[LabelZipCode]); ok {
			tags[LabelStateName] = abbr
			res.Meta.FixStateAbbreviationAfterTags = true
			zap.L().Debug("added StateName from ZipCode",
				zap.String("zip", tags[LabelZipCode]),
				zap.String("state", abbr))
		}
	}

	t.splitAddressNumber(tags, &res.Meta)

	res.Tags = tags
	res.Expanded, res.Meta.FixExpandAbbreviationsCount = expandAbbreviations(tags)
	res.AddressType = addrType

	t.reverseForState(ctx, res)

	res.Meta.AddressTags = res.Tags.Clone()
	res.Meta.AddressTagsExpanded = res.Expanded.Clone()
	res.Meta.MissingStreetNumber = res.Expanded[LabelAddressNumber] == ""
	res.Meta.MissingStreetName = res.Expanded[LabelStreetName] == ""
	res.Meta.MissingCity = res.Expanded[LabelPlaceName] == ""
	res.Meta.MissingState = res.Expanded[LabelStateName] == ""
	res.Meta.MissingZip = res.Expanded[LabelZipCode] == ""
	return res, nil
}

// retryWithState handles a failed parse: when the partial tags carry a ZIP
// but no state, insert the state abbreviation before the ZIP digits and
// parse exactly once more.
func (t *Tagger) retryWithState(address string, parseErr *ParseError, meta *Metadata) (Tags, string, error) {
	partial := parseErr.Partial
	zip := partial[LabelZipCode]
	if zip == "" {
		return nil, "", eris.Wrap(ErrTaggingFailed, "parse failed without a ZipCode tag")
	}
	if partial[LabelStateName] != "" {
		return nil, "", eris.Wrap(ErrTaggingFailed, "parse failed with a StateName tag present")
	}
	abbr, ok := t.stateByZip(zip)
	if !ok {
		return nil, "", eris.Wrapf(ErrTaggingFailed, "no state known for ZIP %s", zip)
	}

	repaired := strings.Replace(address, zip, abbr+" "+zip, 1)
	meta.FixStateAbbreviationBeforeTags = true
	zap.L().Debug("inserted state before ZIP and retrying parse",
		zap.String("state", abbr), zap.String("repaired", repaired))

	tags, addrType, err := Parse(repaired)
	if err != nil {
		return nil, "", eris.Wrap(ErrTaggingFailed, "parse failed again after state insertion")
	}
	return tags, addrType, nil
}

// splitAddressNumber keeps only digits in AddressNumber, moving the
// remainder into the first free occupancy or sub-address slot.
func (t *Tagger) splitAddressNumber(tags Tags, meta *Metadata) {
	number := tags[LabelAddressNumber]
	if number == "" || isDigits(number) {
		return
	}

	var digits, rest strings.Builder
	for _, c := range number {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		} else {
			rest.WriteRune(c)
		}
	}
	tags[LabelAddressNumber] = digits.String()
	meta.FixAddressNumberNonNumeric = true

	switch {
	case tags[LabelOccupancyType] == "":
		tags[LabelOccupancyType] = "Unit"
		tags[LabelOccupancyIdentifier] = rest.String()
	case tags[LabelSubaddressType] == "":
		tags[LabelSubaddressType] = "Unit"
		tags[LabelSubaddressIdentifier] = rest.String()
	default:
		zap.L().Debug("both unit slots occupied, dropping address number remainder",
			zap.String("remainder", rest.String()))
	}
}

// expandAbbreviations expands type and directional tag values and returns
// the new tags plus the number of values changed.
func expandAbbreviations(tags Tags) (Tags, int) {
	expanded := tags.Clone()
	count := 0
	for _, label := range expandableLabels {
		value, ok := tags[label]
		if !ok {
			continue
		}
		if full, ok := abbreviationExpansions[strings.ToLower(value)]; ok && full != value {
			expanded[label] = full
			count++
		}
	}
	return expanded, count
}

// BuildStreet assembles the full street value from its component tags.
func BuildStreet(tags Tags) string {
	parts := []string{
		tags[LabelStreetNamePreDir],
		tags[LabelStreetNamePreType],
		tags[LabelStreetName],
		tags[LabelStreetNamePostType],
		tags[LabelStreetNamePostDir],
	}
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// reverseForState infers a missing state by querying the search service
// with (number, street, city) and adopting the state only when every
// candidate agrees.
func (t *Tagger) reverseForState(ctx context.Context, res *Result) {
	if res.Expanded[LabelStateName] != "" || res.Expanded[LabelZipCode] != "" {
		return
	}
	number := res.Expanded[LabelAddressNumber]
	street := BuildStreet(res.Expanded)
	city := res.Expanded[LabelPlaceName]
	if number == "" || street == "" || city == "" || t.searcher == nil {
		return
	}

	query := strings.Join([]string{number, street, city}, ", ")
	res.Meta.ReverseForStateSearched = true
	candidates, err := t.searcher.Search(ctx, search.Query{Text: query, CountryCodes: "us"})
	if err != nil {
		zap.L().Debug("reverse state lookup failed", zap.String("query", query), zap.Error(err))
		return
	}
	res.Meta.ReverseForStateNumberResults = len(candidates)

	type stateHit struct {
		state       string
		displayName string
	}
	var hits []stateHit
	for _, cand := range candidates {
		state := strings.TrimSpace(cand.Address.State)
		if state != "" {
			hits = append(hits, stateHit{state: state, displayName: cand.DisplayName})
		}
	}
	if len(hits) == 0 {
		return
	}

	distinct := map[string]string{}
	for _, h := range hits {
		key := strings.ToLower(h.state)
		if _, ok := distinct[key]; !ok {
			distinct[key] = h.state
		}
	}
	agree := len(distinct) == 1
	res.Meta.ReverseForStateAllResultsMatch = &agree
	if !agree {
		zap.L().Debug("reverse state lookup ambiguous", zap.Int("states", len(distinct)))
		return
	}

	inferred := hits[0].state
	res.Tags[LabelStateName] = inferred
	res.Expanded[LabelStateName] = inferred
	res.Meta.ReverseForStateIncluded = true
	res.Meta.ReverseForStateDisplayName = hits[0].displayName
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
