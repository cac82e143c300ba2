package validate

import (
	"regexp"
	"strings"
)

// usStateNames maps 2-letter abbreviations to full state names, covering the
// states, DC, and the territories the search service may report.
var usStateNames = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho",
	"IL": "Illinois", "IN": "Indiana", "IA": "Iowa", "KS": "Kansas",
	"KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi",
	"MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma",
	"OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
	"VT": "Vermont", "VA": "Virginia", "WA": "Washington", "WV": "West Virginia",
	"WI": "Wisconsin", "WY": "Wyoming", "DC": "District of Columbia",
	"PR": "Puerto Rico", "GU": "Guam", "VI": "U.S. Virgin Islands",
	"AS": "American Samoa", "MP": "Northern Mariana Islands",
}

var stateNormalizedToAbbr = func() map[string]string {
	m := make(map[string]string, len(usStateNames)*2)
	for abbr, name := range usStateNames {
		m[normalizeText(abbr)] = abbr
		m[normalizeText(name)] = abbr
	}
	return m
}()

var (
	zip5Re     = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\b`)
	isoStateRe = regexp.MustCompile(`(?i)\bUS[-\s]([A-Za-z]{2})\b`)
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// normalizeZip5 extracts the first 5-digit ZIP from a value, dropping a +4
// extension. Returns "" when no ZIP is present.
func normalizeZip5(value string) string {
	m := zip5Re.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return ""
	}
	return m[1]
}

// normalizeText lowercases and collapses non-alphanumeric runs.
func normalizeText(value string) string {
	text := strings.ToLower(strings.TrimSpace(value))
	text = nonAlnumRe.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

// normalizeState canonicalizes a state value to its 2-letter abbreviation.
// Accepts full names, abbreviations, and ISO codes such as "US-RI". Values
// that cannot be mapped are returned in normalized text form so mismatches
// stay visible in diagnostics.
func normalizeState(value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return ""
	}

	if m := isoStateRe.FindStringSubmatch(raw); m != nil {
		candidate := strings.ToUpper(m[1])
		if _, ok := usStateNames[candidate]; ok {
			return candidate
		}
	}

	normalized := normalizeText(raw)
	if normalized == "" {
		return ""
	}
	if abbr, ok := stateNormalizedToAbbr[normalized]; ok {
		return abbr
	}
	if len(normalized) == 2 {
		candidate := strings.ToUpper(normalized)
		if _, ok := usStateNames[candidate]; ok {
			return candidate
		}
	}
	return normalized
}
