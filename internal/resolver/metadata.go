package resolver

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/sells-group/geocode-cli/internal/tagger"
)

// Strategy names, in cascade order.
const (
	StrategyNumberStreetZip       = "etags_nsz"
	StrategyNumberStreetCityState = "etags_nscs"
	StrategyFuzzyStreetInZip      = "zip_street_match_nsz"
	StrategyTigerExtrapolateSnap  = "tiger_extrapolate_snap"
)

// Trace result statuses.
const (
	StatusReturned  = "returned"
	StatusNoneFound = "none_found"
	StatusSkipped   = "skipped"
	StatusError     = "error"
)

// CandidateTrace records the validation outcome for one candidate.
type CandidateTrace struct {
	ResultIndex     int    `json:"result_index"`
	DisplayName     string `json:"display_name"`
	Class           string `json:"class,omitempty"`
	Type            string `json:"type,omitempty"`
	PlaceRank       *int   `json:"place_rank"`
	Accepted        bool   `json:"accepted"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	RejectionLogic  string `json:"rejection_logic,omitempty"`
}

// TraceEntry records one strategy attempt, whether it ran or was skipped.
type TraceEntry struct {
	SearchName          string           `json:"search_name"`
	Attempted           bool             `json:"attempted"`
	ResultStatus        string           `json:"result_status"`
	Error               string           `json:"error,omitempty"`
	NumberResults       int              `json:"number_results"`
	ResultCheck         string           `json:"result_check,omitempty"`
	ResultCheckReason   string           `json:"result_check_reason,omitempty"`
	ResultCheckLogic    string           `json:"result_check_logic,omitempty"`
	ElapsedMS           int64            `json:"elapsed_ms"`
	Query               string           `json:"query,omitempty"`
	ExpectedZip         string           `json:"expected_zip,omitempty"`
	ExpectedTown        string           `json:"expected_town,omitempty"`
	AcceptedResultIndex *int             `json:"accepted_result_index"`
	Results             []CandidateTrace `json:"results,omitempty"`
}

// TigerMetadata summarizes the interpolation attempt.
type TigerMetadata struct {
	Attempted    bool   `json:"attempted"`
	Outcome      string `json:"outcome"`
	RowsReturned int    `json:"rows_returned"`
	ElapsedMS    int64  `json:"elapsed_ms"`
	Error        string `json:"error,omitempty"`
}

// SearchMetadata is the per-address search diagnostics block, persisted
// with the cache entry.
type SearchMetadata struct {
	RawAddress                 string         `json:"raw_address"`
	BadAddressLookupUsed       bool           `json:"bad_address_lookup_used"`
	AddressCacheUsed           bool           `json:"address_cache_used"`
	SearchDetails              []TraceEntry   `json:"search_details"`
	SearchMethodAccepted       string         `json:"search_method_accepted"`
	StreetMatchAttempted       bool           `json:"street_match_in_zip_attempted"`
	StreetMatchCandidates      int            `json:"street_match_in_zip_number_candidates"`
	StreetMatchTopScore        *float64       `json:"street_match_in_zip_top_score"`
	StreetMatchTopAccepted     bool           `json:"street_match_in_zip_top_accepted"`
	StreetMatchElapsedMS       int64          `json:"street_match_in_zip_elapsed_ms"`
	Tiger                      TigerMetadata  `json:"tiger_extrapolate_snap"`
	SearchSuccessful           bool           `json:"search_successful"`
	FinalError                 string         `json:"final_error,omitempty"`
	ElapsedMS                  int64          `json:"elapsed_ms"`
	ResultsReturnedTotal       int            `json:"nominatim_results_returned_total"`
	ResultsReturnedByStrategy  map[string]int `json:"nominatim_results_returned_by_search"`
}

func (m *SearchMetadata) addReturned(strategy string, n int) {
	m.ResultsReturnedTotal += n
	if m.ResultsReturnedByStrategy == nil {
		m.ResultsReturnedByStrategy = map[string]int{}
	}
	m.ResultsReturnedByStrategy[strategy] += n
}

// TagMetadata combines the normalizer's repair flags with the tagger's.
type TagMetadata struct {
	RawAddress           string `json:"raw_address"`
	FixZipRepair         bool   `json:"fix_zip_repair"`
	FixStateAbbreviation bool   `json:"fix_state_abbreviation"`
	FixTownDirectional   bool   `json:"fix_town_directional"`
	tagger.Metadata
}

// Resolution is the terminal outcome for one raw address. Immutable once
// produced.
type Resolution struct {
	RawAddress     string
	Query          string
	Latitude       string
	Longitude      string
	DisplayName    string
	Method         string
	Error          string
	ResultMetadata map[string]any
	TagMeta        TagMetadata
	SearchMeta     SearchMetadata
}

// Found reports whether coordinates were resolved.
func (r *Resolution) Found() bool {
	return r.Latitude != "" && r.Longitude != ""
}

// marshalMeta serializes a metadata block for cache persistence. Marshal
// failures degrade to an empty object rather than failing the resolution.
func marshalMeta(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		zap.L().Warn("metadata marshal failed", zap.Error(err))
		return "{}"
	}
	return string(data)
}
