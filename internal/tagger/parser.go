// Package tagger splits a normalized address string into labeled components
// and repairs common gaps: missing state tokens, non-numeric house numbers,
// and abbreviated street types.
package tagger

import (
	"fmt"
	"regexp"
	"strings"
)

// Component labels.
const (
	LabelAddressNumber        = "AddressNumber"
	LabelStreetNamePreDir     = "StreetNamePreDirectional"
	LabelStreetNamePreType    = "StreetNamePreType"
	LabelStreetName           = "StreetName"
	LabelStreetNamePostType   = "StreetNamePostType"
	LabelStreetNamePostDir    = "StreetNamePostDirectional"
	LabelPlaceName            = "PlaceName"
	LabelStateName            = "StateName"
	LabelZipCode              = "ZipCode"
	LabelOccupancyType        = "OccupancyType"
	LabelOccupancyIdentifier  = "OccupancyIdentifier"
	LabelSubaddressType       = "SubaddressType"
	LabelSubaddressIdentifier = "SubaddressIdentifier"
	LabelUSPSBoxType          = "USPSBoxType"
	LabelUSPSBoxID            = "USPSBoxID"
)

// Address type classifications.
const (
	TypeStreetAddress = "Street Address"
	TypePOBox         = "PO Box"
	TypeAmbiguous     = "Ambiguous"
)

// Tags maps component labels to their values.
type Tags map[string]string

// Clone returns a shallow copy.
func (t Tags) Clone() Tags {
	out := make(Tags, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// ParseError reports a parse that could not finish, carrying whatever
// components were labeled before the conflict so callers can attempt repair.
type ParseError struct {
	Label   string
	Value   string
	Partial Tags
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tagger: repeated label %s (value %q)", e.Label, e.Value)
}

var (
	zipTokenRe    = regexp.MustCompile(`^(\d{5})(?:-\d{4})?$`)
	poBoxRe       = regexp.MustCompile(`(?i)^(?:p\.?\s*o\.?|post\s+office)\s+box\s+(\S+)`)
	hashUnitRe    = regexp.MustCompile(`^#(\S+)$`)
	countryTokens = map[string]bool{"usa": true, "us": true, "u.s.a": true, "u.s": true}
)

var directionals = map[string]bool{
	"n": true, "s": true, "e": true, "w": true,
	"ne": true, "nw": true, "se": true, "sw": true,
	"north": true, "south": true, "east": true, "west": true,
	"northeast": true, "northwest": true, "southeast": true, "southwest": true,
}

var streetSuffixes = map[string]bool{
	"alley": true, "aly": true,
	"ave": true, "av": true, "avenue": true,
	"blvd": true, "boulevard": true,
	"cir": true, "circle": true,
	"ct": true, "court": true,
	"cv": true, "cove": true,
	"dr": true, "drive": true,
	"expy": true, "expressway": true,
	"hwy": true, "highway": true,
	"ln": true, "lane": true,
	"loop": true,
	"pike": true,
	"pkwy": true, "parkway": true,
	"pl": true, "place": true,
	"plz": true, "plaza": true,
	"rd": true, "road": true,
	"row": true,
	"sq": true, "square": true,
	"st": true, "street": true,
	"ter": true, "terrace": true,
	"trl": true, "trail": true,
	"way": true, "wharf": true,
}

var streetPreTypes = map[string]bool{
	"route": true, "rt": true, "rte": true,
	"highway": true, "hwy": true,
	"interstate": true,
	"county": true, "state": true, "us": true,
}

var occupancyMarkers = map[string]string{
	"apt": "Apt", "apartment": "Apartment",
	"unit": "Unit",
	"ste": "Ste", "suite": "Suite",
	"fl": "Fl", "floor": "Floor",
	"bldg": "Bldg", "building": "Building",
	"rm": "Rm", "room": "Room",
	"lot": "Lot",
	"trlr": "Trlr",
}

type token struct {
	text string
	// commaAfter marks a field boundary in the source text.
	commaAfter bool
}

func tokenize(s string) []token {
	fields := strings.Fields(s)
	tokens := make([]token, 0, len(fields))
	for _, f := range fields {
		trimmed := strings.TrimRight(f, ",;")
		if trimmed == "" {
			if len(tokens) > 0 {
				tokens[len(tokens)-1].commaAfter = true
			}
			continue
		}
		tokens = append(tokens, token{
			text:       trimmed,
			commaAfter: trimmed != f,
		})
	}
	return tokens
}

func lower(s string) string {
	return strings.ToLower(strings.Trim(s, "."))
}

// stateTokenSpan checks for a state name ending at index end (inclusive),
// trying a two-token full name first. It returns the start index and the
// canonical value, or -1.
func stateTokenSpan(tokens []token, end int) (int, string) {
	if end >= 1 && !tokens[end-1].commaAfter {
		two := tokens[end-1].text + " " + tokens[end].text
		if abbr, ok := stateFromName(two); ok {
			return end - 1, abbr
		}
	}
	if end >= 0 {
		if abbr, ok := stateFromName(tokens[end].text); ok {
			return end, abbr
		}
	}
	return -1, ""
}

// Parse labels the components of one normalized address line. On a repeated
// label the returned error is a *ParseError holding the partial tags.
func Parse(address string) (Tags, string, error) {
	tags := Tags{}
	tokens := tokenize(address)
	if len(tokens) == 0 {
		return tags, TypeAmbiguous, nil
	}

	// Drop a trailing country token.
	if countryTokens[lower(tokens[len(tokens)-1].text)] {
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) == 0 {
		return tags, TypeAmbiguous, nil
	}

	// ZIP: every 5-digit token is a ZipCode claim; two claims is a conflict.
	zipIdx := -1
	for i, tok := range tokens {
		m := zipTokenRe.FindStringSubmatch(tok.text)
		if m == nil {
			continue
		}
		if zipIdx >= 0 {
			return nil, "", &ParseError{Label: LabelZipCode, Value: tok.text, Partial: tags.Clone()}
		}
		zipIdx = i
		tags[LabelZipCode] = m[1]
	}

	// State: immediately before the ZIP, or at the end when no ZIP.
	stateEnd := len(tokens) - 1
	if zipIdx >= 0 {
		stateEnd = zipIdx - 1
	}
	stateStart := -1
	if stateEnd >= 0 {
		var abbr string
		stateStart, abbr = stateTokenSpan(tokens, stateEnd)
		if stateStart >= 0 {
			tags[LabelStateName] = abbr
		}
	}

	// The locality region runs up to the state (or zip) tokens.
	tailStart := len(tokens)
	if zipIdx >= 0 {
		tailStart = zipIdx
	}
	if stateStart >= 0 {
		tailStart = stateStart
	}
	body := tokens[:tailStart]

	if len(body) == 0 {
		return tags, classify(tags), nil
	}

	// PO Box addresses have no street portion.
	bodyText := joinTokens(body)
	if m := poBoxRe.FindStringSubmatch(bodyText); m != nil {
		tags[LabelUSPSBoxType] = "PO Box"
		tags[LabelUSPSBoxID] = strings.TrimRight(m[1], ",;")
		rest := strings.TrimSpace(bodyText[len(m[0]):])
		if rest != "" {
			tags[LabelPlaceName] = strings.TrimSpace(strings.Trim(rest, ","))
		}
		return tags, classify(tags), nil
	}

	idx := 0
	if startsWithDigit(body[idx].text) {
		tags[LabelAddressNumber] = body[idx].text
		idx++
	}

	idx = parseStreet(body, idx, tags)
	idx, err := parseOccupancy(body, idx, tags)
	if err != nil {
		return nil, "", err
	}

	// Whatever remains before the state/zip is the place name.
	if idx < len(body) {
		tags[LabelPlaceName] = joinTokens(body[idx:])
	}

	return tags, classify(tags), nil
}

// parseStreet consumes the street portion: optional pre-directional and
// pre-type, the street name, and optional post-type and post-directional.
// The portion ends at the first comma boundary or occupancy marker.
func parseStreet(body []token, idx int, tags Tags) int {
	start := idx
	end := idx
	for end < len(body) {
		low := lower(body[end].text)
		if _, isOcc := occupancyMarkers[low]; isOcc && end > start {
			break
		}
		if hashUnitRe.MatchString(body[end].text) {
			break
		}
		done := body[end].commaAfter
		end++
		if done {
			break
		}
	}
	street := body[start:end]
	if len(street) == 0 {
		return end
	}

	if len(street) > 1 && directionals[lower(street[0].text)] {
		tags[LabelStreetNamePreDir] = street[0].text
		street = street[1:]
	}
	if len(street) > 1 && streetPreTypes[lower(street[0].text)] && startsWithDigit(street[1].text) {
		tags[LabelStreetNamePreType] = street[0].text
		street = street[1:]
	}
	if len(street) > 1 && directionals[lower(street[len(street)-1].text)] {
		tags[LabelStreetNamePostDir] = street[len(street)-1].text
		street = street[:len(street)-1]
	}
	if len(street) > 1 && streetSuffixes[lower(street[len(street)-1].text)] {
		tags[LabelStreetNamePostType] = street[len(street)-1].text
		street = street[:len(street)-1]
	}
	if len(street) > 0 {
		tags[LabelStreetName] = joinTokens(street)
	}
	return end
}

// parseOccupancy consumes "Apt 2B" / "Suite 300" / "#5" style units. A
// second conflicting occupancy marker is a repeated label.
func parseOccupancy(body []token, idx int, tags Tags) (int, error) {
	for idx < len(body) {
		low := lower(body[idx].text)
		if m := hashUnitRe.FindStringSubmatch(body[idx].text); m != nil {
			if err := setOccupancy(tags, "#", m[1], body[idx].text); err != nil {
				return idx, err
			}
			idx++
			continue
		}
		marker, ok := occupancyMarkers[low]
		if !ok {
			break
		}
		ident := ""
		if idx+1 < len(body) && !body[idx].commaAfter {
			ident = body[idx+1].text
			idx++
		}
		if err := setOccupancy(tags, marker, ident, body[idx].text); err != nil {
			return idx, err
		}
		idx++
	}
	return idx, nil
}

func setOccupancy(tags Tags, occType, ident, source string) error {
	if _, exists := tags[LabelOccupancyType]; !exists {
		tags[LabelOccupancyType] = occType
		if ident != "" {
			tags[LabelOccupancyIdentifier] = ident
		}
		return nil
	}
	if _, exists := tags[LabelSubaddressType]; !exists {
		tags[LabelSubaddressType] = occType
		if ident != "" {
			tags[LabelSubaddressIdentifier] = ident
		}
		return nil
	}
	return &ParseError{Label: LabelOccupancyType, Value: source, Partial: tags.Clone()}
}

func classify(tags Tags) string {
	if tags[LabelUSPSBoxType] != "" {
		return TypePOBox
	}
	if tags[LabelAddressNumber] != "" && tags[LabelStreetName] != "" {
		return TypeStreetAddress
	}
	return TypeAmbiguous
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func joinTokens(tokens []token) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = tok.text
	}
	return strings.Join(parts, " ")
}
