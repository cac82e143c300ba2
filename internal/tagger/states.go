package tagger

import "strings"

// stateAbbrs covers the states, DC, and territories.
var stateAbbrs = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true,
	"CT": true, "DE": true, "FL": true, "GA": true, "HI": true, "ID": true,
	"IL": true, "IN": true, "IA": true, "KS": true, "KY": true, "LA": true,
	"ME": true, "MD": true, "MA": true, "MI": true, "MN": true, "MS": true,
	"MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true, "OK": true,
	"OR": true, "PA": true, "RI": true, "SC": true, "SD": true, "TN": true,
	"TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true, "DC": true, "PR": true, "GU": true, "VI": true,
	"AS": true, "MP": true,
}

var stateNameToAbbr = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY", "puerto rico": "PR", "guam": "GU",
	"american samoa": "AS",
}

// stateFromName maps a state token (abbreviation or full name) to its
// 2-letter code. Abbreviations must already be uppercase to avoid mistaking
// directionals and city words ("in", "me", "or") for states.
func stateFromName(name string) (string, bool) {
	trimmed := strings.Trim(name, ".,")
	if trimmed == "" {
		return "", false
	}
	if len(trimmed) == 2 && trimmed == strings.ToUpper(trimmed) && stateAbbrs[strings.ToUpper(trimmed)] {
		return strings.ToUpper(trimmed), true
	}
	if abbr, ok := stateNameToAbbr[strings.ToLower(trimmed)]; ok {
		return abbr, true
	}
	return "", false
}
