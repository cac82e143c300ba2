package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/geocode-cli/internal/fuzzy"
	"github.com/sells-group/geocode-cli/internal/interp"
	"github.com/sells-group/geocode-cli/internal/roads"
	"github.com/sells-group/geocode-cli/internal/search"
	"github.com/sells-group/geocode-cli/internal/tagger"
	"github.com/sells-group/geocode-cli/internal/validate"
)

var digitsRe = regexp.MustCompile(`\d+`)

// attemptState carries one resolution's tags and cross-strategy values
// through the cascade.
type attemptState struct {
	number string
	street string
	town   string
	state  string
	zip    string
	// fuzzyMatch is set by the fuzzy-street strategy for the TIGER
	// strategy to reuse.
	fuzzyMatch *fuzzy.Match
	meta       *SearchMetadata
}

// outcome is the result of one strategy attempt.
type outcome struct {
	trace       TraceEntry
	accepted    bool
	lat, lon    string
	displayName string
	query       string
	errText     string
	resultMeta  map[string]any
}

// strategy is one step of the cascade. Attempt must record a trace even
// when the strategy is skipped.
type strategy interface {
	name() string
	attempt(ctx context.Context, st *attemptState) outcome
}

func skippedOutcome(name, reason, query, expectedZip, expectedTown string) outcome {
	return outcome{
		trace: TraceEntry{
			SearchName:        name,
			Attempted:         false,
			ResultStatus:      StatusSkipped,
			ResultCheckReason: reason,
			ResultCheckLogic:  reason,
			Query:             query,
			ExpectedZip:       expectedZip,
			ExpectedTown:      expectedTown,
		},
		errText: reason,
	}
}

func joinQueryParts(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// runSearch executes one search query and validates candidates in service
// order, accepting the first that passes.
func (r *Resolver) runSearch(ctx context.Context, name, query string, st *attemptState) outcome {
	out := outcome{
		query: query,
		trace: TraceEntry{
			SearchName:   name,
			Attempted:    true,
			ResultStatus: StatusError,
			Query:        query,
			ExpectedZip:  st.zip,
			ExpectedTown: st.town,
		},
	}
	started := time.Now()
	defer func() {
		out.trace.ElapsedMS = time.Since(started).Milliseconds()
	}()

	if r.searcher == nil {
		out.errText = "searcher_not_configured"
		out.trace.Error = out.errText
		return out
	}

	candidates, err := r.searcher.Search(ctx, search.Query{Text: query})
	if err != nil {
		if errors.Is(err, search.ErrTimeout) {
			out.errText = "Timeout"
		} else {
			out.errText = err.Error()
		}
		out.trace.Error = out.errText
		zap.L().Debug("search request failed",
			zap.String("strategy", name), zap.String("query", query), zap.Error(err))
		return out
	}

	st.meta.addReturned(name, len(candidates))
	if len(candidates) == 0 {
		out.errText = "No results"
		out.trace.ResultStatus = StatusNoneFound
		out.trace.Error = out.errText
		return out
	}

	out.trace.ResultStatus = StatusReturned
	out.trace.NumberResults = len(candidates)

	want := validate.Expectation{Zip: st.zip, City: st.town, State: st.state}
	var rejectedReasons, rejectedLogic []string
	for idx, cand := range candidates {
		decision := r.validator.Check(cand, want)
		out.trace.Results = append(out.trace.Results, CandidateTrace{
			ResultIndex:     idx,
			DisplayName:     cand.DisplayName,
			Class:           cand.Class,
			Type:            cand.Type,
			PlaceRank:       cand.PlaceRank,
			Accepted:        decision.Accepted,
			RejectionReason: decision.Reason(),
			RejectionLogic:  decision.LogicText(),
		})
		if decision.Accepted {
			accepted := idx
			out.accepted = true
			out.lat = cand.Lat
			out.lon = cand.Lon
			out.displayName = cand.DisplayName
			out.trace.ResultCheck = "accepted"
			out.trace.AcceptedResultIndex = &accepted
			out.resultMeta = candidateResultMeta(name, query, len(candidates), accepted, cand, decision)
			zap.L().Debug("candidate accepted",
				zap.String("strategy", name),
				zap.String("display_name", cand.DisplayName))
			return out
		}
		rejectedReasons = append(rejectedReasons, decision.Reason())
		rejectedLogic = append(rejectedLogic, decision.LogicText())
	}

	out.errText = "No acceptable results; rejected_reasons=" + strings.Join(rejectedReasons, " | ")
	out.trace.Error = out.errText
	out.trace.ResultCheck = "rejected"
	out.trace.ResultCheckReason = strings.Join(rejectedReasons, " | ")
	out.trace.ResultCheckLogic = strings.Join(rejectedLogic, " | ")
	return out
}

func candidateResultMeta(name, query string, total, idx int, cand search.Candidate, decision validate.Decision) map[string]any {
	return map[string]any{
		"search_name":           name,
		"search_query":          query,
		"search_number_results": total,
		"accepted_result_index": idx,
		"osm_type":              cand.OSMType,
		"osm_id":                cand.OSMID,
		"place_id":              cand.PlaceID,
		"lat":                   cand.Lat,
		"lon":                   cand.Lon,
		"place_rank":            cand.PlaceRank,
		"class":                 cand.Class,
		"type":                  cand.Type,
		"addresstype":           cand.AddressType,
		"importance":            cand.Importance,
		"bbox_max_dim_m":        decision.Diag["bbox_max_dim_m"],
		"display_name":          cand.DisplayName,
		"addr_house_number":     cand.Address.HouseNumber,
		"addr_road":             cand.Address.Road,
		"addr_postcode":         cand.Address.Postcode,
		"addr_city":             cand.Address.CityLevel(),
		"addr_state":            cand.Address.State,
		"checker_zip_match":     decision.Diag["zip_match"],
		"checker_city_match":    decision.Diag["city_match"],
		"checker_state_match":   decision.Diag["state_match"],
	}
}

// directZipStrategy queries with (number, street, zip).
type directZipStrategy struct{ r *Resolver }

func (s directZipStrategy) name() string { return StrategyNumberStreetZip }

func (s directZipStrategy) attempt(ctx context.Context, st *attemptState) outcome {
	if st.street == "" || st.zip == "" {
		var missing []string
		if st.street == "" {
			missing = append(missing, tagger.LabelStreetName)
		}
		if st.zip == "" {
			missing = append(missing, tagger.LabelZipCode)
		}
		return skippedOutcome(s.name(), "missing_required_tags:"+strings.Join(missing, ","), "", st.zip, st.town)
	}
	return s.r.runSearch(ctx, s.name(), joinQueryParts(st.number, st.street, st.zip), st)
}

// cityStateStrategy queries with (number, street, city, state).
type cityStateStrategy struct{ r *Resolver }

func (s cityStateStrategy) name() string { return StrategyNumberStreetCityState }

func (s cityStateStrategy) attempt(ctx context.Context, st *attemptState) outcome {
	var missing []string
	if st.street == "" {
		missing = append(missing, tagger.LabelStreetName)
	}
	if st.town == "" {
		missing = append(missing, tagger.LabelPlaceName)
	}
	if st.state == "" {
		missing = append(missing, tagger.LabelStateName)
	}
	if len(missing) > 0 {
		return skippedOutcome(s.name(), "missing_required_tags:"+strings.Join(missing, ","), "", st.zip, st.town)
	}
	return s.r.runSearch(ctx, s.name(), joinQueryParts(st.number, st.street, st.town, st.state), st)
}

// fuzzyZipStrategy matches the tagged street against the road names known
// for the ZIP, then re-queries with the matched road.
type fuzzyZipStrategy struct{ r *Resolver }

func (s fuzzyZipStrategy) name() string { return StrategyFuzzyStreetInZip }

func (s fuzzyZipStrategy) attempt(ctx context.Context, st *attemptState) outcome {
	if st.street == "" || st.zip == "" {
		return skippedOutcome(s.name(), "missing_required_tags:StreetName_or_ZipCode", "", st.zip, st.town)
	}

	started := time.Now()
	defer func() {
		st.meta.StreetMatchElapsedMS = time.Since(started).Milliseconds()
	}()
	st.meta.StreetMatchAttempted = true

	if s.r.roads == nil {
		out := skippedOutcome(s.name(), "postcode_lookup_error:"+roads.KindUnavailable, "", st.zip, st.town)
		out.errText = roads.KindUnavailable
		return out
	}

	candidates, err := s.r.roads.RoadNames(ctx, st.zip)
	if err != nil {
		kind := roads.Kind(err)
		zap.L().Debug("postcode road lookup failed",
			zap.String("zip", st.zip), zap.String("kind", kind), zap.Error(err))
		out := skippedOutcome(s.name(), "postcode_lookup_error:"+kind, "", st.zip, st.town)
		out.errText = kind
		return out
	}
	st.meta.StreetMatchCandidates = len(candidates)

	match, topScore := s.r.matcher.BestMatch(st.street, candidates)
	st.meta.StreetMatchTopScore = &topScore
	st.meta.StreetMatchTopAccepted = match != nil
	if match == nil {
		return skippedOutcome(s.name(), "no_fuzzy_match", "", st.zip, st.town)
	}
	st.fuzzyMatch = match
	zap.L().Debug("fuzzy road match",
		zap.String("street", st.street),
		zap.String("match", match.Name),
		zap.Float64("score", match.Score))

	return s.r.runSearch(ctx, s.name(), joinQueryParts(st.number, match.Name, st.zip), st)
}

// tigerStrategy interpolates the house number along TIGER segments of the
// fuzzy-matched road.
type tigerStrategy struct{ r *Resolver }

func (s tigerStrategy) name() string { return StrategyTigerExtrapolateSnap }

func (s tigerStrategy) attempt(ctx context.Context, st *attemptState) outcome {
	st.meta.Tiger.Attempted = true
	st.meta.Tiger.Outcome = "unsuccessful"
	started := time.Now()
	defer func() {
		st.meta.Tiger.ElapsedMS = time.Since(started).Milliseconds()
	}()

	roadName := ""
	if st.fuzzyMatch != nil {
		roadName = st.fuzzyMatch.Name
	}
	queryText := fmt.Sprintf("postcode=%s; street_like=%s; address_number=%s", st.zip, roadName, st.number)

	house, houseOK := parseHouseNumber(st.number)
	if st.zip == "" || roadName == "" || !houseOK {
		reason := "missing_required_inputs:zip_or_street_or_address_number"
		st.meta.Tiger.Error = reason
		out := skippedOutcome(s.name(), reason, queryText, st.zip, st.town)
		out.trace.ResultCheck = "rejected"
		return out
	}

	if s.r.roads == nil {
		st.meta.Tiger.Error = roads.KindUnavailable
		out := skippedOutcome(s.name(), roads.KindUnavailable, queryText, st.zip, st.town)
		out.trace.ResultStatus = StatusError
		return out
	}

	out := outcome{
		query: queryText,
		trace: TraceEntry{
			SearchName:   s.name(),
			Attempted:    true,
			ResultStatus: StatusError,
			Query:        queryText,
			ExpectedZip:  st.zip,
			ExpectedTown: st.town,
		},
	}
	defer func() {
		out.trace.ElapsedMS = time.Since(started).Milliseconds()
	}()

	segments, err := s.r.roads.Segments(ctx, st.zip, roadName)
	if err != nil {
		out.errText = "tiger_query_error:" + err.Error()
		out.trace.Error = out.errText
		st.meta.Tiger.Error = out.errText
		return out
	}
	st.meta.Tiger.RowsReturned = len(segments)
	out.trace.NumberResults = len(segments)

	if len(segments) == 0 {
		out.errText = "No TIGER rows returned"
		out.trace.ResultStatus = StatusNoneFound
		out.trace.Error = out.errText
		out.trace.ResultCheck = "rejected"
		out.trace.ResultCheckReason = "no_tiger_rows"
		st.meta.Tiger.Error = out.errText
		return out
	}

	out.trace.ResultStatus = StatusReturned
	for idx, seg := range segments {
		out.trace.Results = append(out.trace.Results, CandidateTrace{
			ResultIndex:     idx,
			DisplayName:     seg.RoadName,
			Class:           seg.RoadClass,
			Type:            seg.RoadType,
			Accepted:        false,
			RejectionReason: "not_selected",
		})
	}

	result, ok := interp.Interpolate(house, segments)
	if !ok {
		out.errText = "No usable TIGER rows"
		out.trace.Error = out.errText
		out.trace.ResultCheck = "rejected"
		out.trace.ResultCheckReason = "no_usable_tiger_rows"
		st.meta.Tiger.Error = out.errText
		return out
	}

	for _, idx := range result.SegmentIndexes {
		out.trace.Results[idx].Accepted = true
		out.trace.Results[idx].RejectionReason = ""
	}

	selectedRoad := result.RoadName
	if selectedRoad == "" {
		selectedRoad = roadName
	}
	out.accepted = true
	out.lat = strconv.FormatFloat(result.Lat, 'f', 7, 64)
	out.lon = strconv.FormatFloat(result.Lon, 'f', 7, 64)
	out.displayName = fmt.Sprintf("%d, %s, %s, TIGER extrapolate/snap", house, selectedRoad, st.zip)
	out.trace.ResultCheck = "accepted"
	out.trace.ResultCheckReason = string(result.Mode)
	out.trace.ResultCheckLogic = result.Logic
	first := result.SegmentIndexes[0]
	out.trace.AcceptedResultIndex = &first
	out.resultMeta = map[string]any{
		"search_name":           s.name(),
		"search_query":          queryText,
		"search_number_results": len(segments),
		"accepted_result_index": first,
		"place_id":              result.PlaceID,
		"lat":                   out.lat,
		"lon":                   out.lon,
		"class":                 result.RoadClass,
		"type":                  result.RoadType,
		"addresstype":           StrategyTigerExtrapolateSnap,
		"display_name":          out.displayName,
		"addr_house_number":     strconv.Itoa(house),
		"addr_road":             selectedRoad,
		"addr_postcode":         st.zip,
		"addr_city":             st.town,
		"addr_state":            st.state,
		"tiger_outcome":         string(result.Mode),
		"tiger_logic":           result.Logic,
		"tiger_rows_returned":   len(segments),
	}
	st.meta.Tiger.Outcome = string(result.Mode)
	st.meta.Tiger.Error = ""
	zap.L().Debug("TIGER interpolation succeeded",
		zap.String("mode", string(result.Mode)),
		zap.String("lat", out.lat),
		zap.String("lon", out.lon))
	return out
}

func parseHouseNumber(value string) (int, bool) {
	m := digitsRe.FindString(value)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
