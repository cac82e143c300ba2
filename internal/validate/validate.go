// Package validate screens Nominatim candidates for address-level precision
// and location consistency. Every check runs even after a prior failure so a
// rejection carries the complete reason list.
package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/geocode-cli/internal/search"
)

// Rejection reason codes.
const (
	ReasonBroadClassType   = "BROAD_CLASS_TYPE"
	ReasonPlaceRankTooLow  = "PLACE_RANK_TOO_LOW"
	ReasonMissingBBox      = "MISSING_BBOX"
	ReasonTooLongFeature   = "TOO_LONG_FEATURE"
	ReasonLocationMismatch = "ZIP_OR_CITY_STATE_MISMATCH"
)

// cityLevelKeys are the address keys a city-level match may come from.
var cityLevelKeys = []string{"city", "town", "village"}

// broadPlaceTypes are place types too coarse to pin a street address.
var broadPlaceTypes = map[string]bool{
	"postcode":      true,
	"city":          true,
	"town":          true,
	"village":       true,
	"hamlet":        true,
	"suburb":        true,
	"neighbourhood": true,
}

// Config bounds candidate acceptance.
type Config struct {
	// MaxLinearM rejects features whose bounding box exceeds this many
	// meters in either dimension. Default is one mile.
	MaxLinearM float64
	// MinPlaceRank rejects candidates below street-level rank.
	MinPlaceRank int
}

// DefaultConfig returns the street-level acceptance bounds.
func DefaultConfig() Config {
	return Config{MaxLinearM: 1609.34, MinPlaceRank: 26}
}

// Expectation is the location the candidate must be consistent with.
// A candidate passes the consistency check on ZIP match, or on city-level
// match combined with state match.
type Expectation struct {
	Zip   string
	City  string
	State string
}

// Decision is the outcome of checking one candidate.
type Decision struct {
	Accepted bool
	// Reasons holds the short rejection codes, empty on acceptance.
	Reasons []string
	// Logic holds one verbose line per rejection reason.
	Logic []string
	// Diag carries the intermediate values for metadata and logs.
	Diag map[string]any
}

// Reason joins the short codes, or "" on acceptance.
func (d Decision) Reason() string {
	return strings.Join(d.Reasons, ",")
}

// LogicText joins the verbose lines, or "" on acceptance.
func (d Decision) LogicText() string {
	return strings.Join(d.Logic, " | ")
}

// Validator checks candidates against acceptance bounds.
type Validator struct {
	cfg Config
}

// New creates a Validator. Zero-valued config fields fall back to defaults.
func New(cfg Config) *Validator {
	def := DefaultConfig()
	if cfg.MaxLinearM <= 0 {
		cfg.MaxLinearM = def.MaxLinearM
	}
	if cfg.MinPlaceRank <= 0 {
		cfg.MinPlaceRank = def.MinPlaceRank
	}
	return &Validator{cfg: cfg}
}

// Check screens one candidate. Address-level objects, POIs, and short roads
// pass; towns, postcodes, admin boundaries, and oversized features do not.
func (v *Validator) Check(cand search.Candidate, want Expectation) Decision {
	d := Decision{Diag: map[string]any{}}

	if broadClassType(cand) {
		d.reject(ReasonBroadClassType, fmt.Sprintf(
			"class/type rejected for broad feature: class=%q, type=%q", cand.Class, cand.Type))
	}

	d.Diag["place_rank"] = cand.PlaceRank
	if cand.PlaceRank != nil && *cand.PlaceRank < v.cfg.MinPlaceRank {
		d.reject(ReasonPlaceRankTooLow, fmt.Sprintf(
			"place_rank too low: place_rank=%d, min_place_rank=%d", *cand.PlaceRank, v.cfg.MinPlaceRank))
	}

	bboxDim, bboxOK := bboxMaxDimM(cand.BoundingBox)
	if bboxOK {
		d.Diag["bbox_max_dim_m"] = bboxDim
	} else {
		d.Diag["bbox_max_dim_m"] = nil
	}
	switch {
	case !bboxOK:
		// Conservative: a candidate without a parsable bbox is rejected.
		d.reject(ReasonMissingBBox, "boundingbox missing or unparsable.")
	case bboxDim > v.cfg.MaxLinearM:
		d.reject(ReasonTooLongFeature, fmt.Sprintf(
			"feature bounding box too large: bbox_max_dim_m=%.3f, max_linear_m=%.3f",
			bboxDim, v.cfg.MaxLinearM))
	}

	expectedZip5 := normalizeZip5(want.Zip)
	resultZip5 := normalizeZip5(cand.Address.Postcode)
	zipMatch := expectedZip5 != "" && resultZip5 != "" && expectedZip5 == resultZip5

	cityMatch, cityKeys := cityLevelMatch(want.City, cand.Address)

	expectedState := normalizeState(want.State)
	resultStateRaw := cand.Address.StateValue()
	resultState := normalizeState(resultStateRaw)
	stateMatch := expectedState != "" && resultState != "" && expectedState == resultState

	locationMatch := zipMatch || (cityMatch && stateMatch)

	d.Diag["expected_zip5"] = expectedZip5
	d.Diag["result_zip5"] = resultZip5
	d.Diag["zip_match"] = zipMatch
	d.Diag["expected_city"] = want.City
	d.Diag["expected_city_normalized"] = normalizeText(want.City)
	d.Diag["city_match"] = cityMatch
	d.Diag["city_match_keys"] = cityKeys
	d.Diag["expected_state"] = want.State
	d.Diag["expected_state_normalized"] = expectedState
	d.Diag["result_state"] = resultStateRaw
	d.Diag["result_state_normalized"] = resultState
	d.Diag["state_match"] = stateMatch
	d.Diag["location_match"] = locationMatch

	if !locationMatch {
		d.reject(ReasonLocationMismatch, fmt.Sprintf(
			"zip/(city+state) consistency failed: expected_zip5=%q, result_zip5=%q, zip_match=%t; "+
				"expected_city=%q, city_match=%t, city_match_keys=%v; "+
				"expected_state=%q, result_state=%q, state_match=%t; "+
				"rule=zip_match or (city_match and state_match)",
			expectedZip5, resultZip5, zipMatch,
			want.City, cityMatch, cityKeys,
			want.State, resultStateRaw, stateMatch))
	}

	d.Accepted = len(d.Reasons) == 0
	d.Diag["reasons"] = d.Reasons
	return d
}

func (d *Decision) reject(reason, logic string) {
	d.Reasons = append(d.Reasons, reason)
	d.Logic = append(d.Logic, logic)
}

// broadClassType reports whether the candidate's primary OSM tag is an
// area-ish feature. Roads (class=highway) stay acceptable; the bbox length
// check bounds them instead.
func broadClassType(cand search.Candidate) bool {
	if cand.Class == "boundary" {
		return true
	}
	return cand.Class == "place" && broadPlaceTypes[cand.Type]
}

// cityLevelMatch checks the expected city against each city-level address
// key, matching on equality or whole-word containment.
func cityLevelMatch(expectedCity string, addr search.Address) (bool, []string) {
	values := map[string]string{
		"city":    addr.City,
		"town":    addr.Town,
		"village": addr.Village,
	}
	var matched []string
	for _, key := range cityLevelKeys {
		if isCityLevelMatch(expectedCity, values[key]) {
			matched = append(matched, key)
		}
	}
	return len(matched) > 0, matched
}

func isCityLevelMatch(expected, candidate string) bool {
	expectedNorm := normalizeText(expected)
	candidateNorm := normalizeText(candidate)
	if expectedNorm == "" || candidateNorm == "" {
		return false
	}
	if candidateNorm == expectedNorm {
		return true
	}
	return strings.Contains(" "+candidateNorm+" ", " "+expectedNorm+" ")
}

const earthRadiusM = 6371000.0

// haversineM returns the great-circle distance in meters.
func haversineM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLmb := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLmb/2)*math.Sin(dLmb/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// bboxMaxDimM computes the larger of the north-south and east-west extents
// of a JSONv2 boundingbox quad [south_lat, north_lat, west_lon, east_lon].
func bboxMaxDimM(bbox []string) (float64, bool) {
	if len(bbox) != 4 {
		return 0, false
	}
	vals := make([]float64, 4)
	for i, s := range bbox {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		vals[i] = f
	}
	sLat, nLat, wLon, eLon := vals[0], vals[1], vals[2], vals[3]
	midLat := (sLat + nLat) / 2
	ns := haversineM(sLat, wLon, nLat, wLon)
	ew := haversineM(midLat, wLon, midLat, eLon)
	return math.Max(ns, ew), true
}
