// Package zipstate maps 5-digit ZIP codes to 2-letter state abbreviations
// using the USPS 3-digit prefix allocation. The table is static and loaded
// once; lookups are safe for concurrent use.
package zipstate

import "strings"

// prefixRange assigns an inclusive range of 3-digit ZIP prefixes to a state.
type prefixRange struct {
	lo, hi string
	state  string
}

// USPS national 3-digit prefix allocation. Ranges are inclusive and ordered;
// gaps are unassigned prefixes.
var prefixRanges = []prefixRange{
	{"005", "005", "NY"},
	{"006", "009", "PR"},
	{"010", "027", "MA"},
	{"028", "029", "RI"},
	{"030", "038", "NH"},
	{"039", "049", "ME"},
	{"050", "059", "VT"},
	{"060", "069", "CT"},
	{"070", "089", "NJ"},
	{"100", "149", "NY"},
	{"150", "196", "PA"},
	{"197", "199", "DE"},
	{"200", "200", "DC"},
	{"201", "201", "VA"},
	{"202", "205", "DC"},
	{"206", "219", "MD"},
	{"220", "246", "VA"},
	{"247", "268", "WV"},
	{"270", "289", "NC"},
	{"290", "299", "SC"},
	{"300", "319", "GA"},
	{"320", "349", "FL"},
	{"350", "369", "AL"},
	{"370", "385", "TN"},
	{"386", "397", "MS"},
	{"398", "399", "GA"},
	{"400", "427", "KY"},
	{"430", "459", "OH"},
	{"460", "479", "IN"},
	{"480", "499", "MI"},
	{"500", "528", "IA"},
	{"530", "549", "WI"},
	{"550", "567", "MN"},
	{"570", "577", "SD"},
	{"580", "588", "ND"},
	{"590", "599", "MT"},
	{"600", "629", "IL"},
	{"630", "658", "MO"},
	{"660", "679", "KS"},
	{"680", "693", "NE"},
	{"700", "714", "LA"},
	{"716", "729", "AR"},
	{"730", "749", "OK"},
	{"750", "799", "TX"},
	{"800", "816", "CO"},
	{"820", "831", "WY"},
	{"832", "838", "ID"},
	{"840", "847", "UT"},
	{"850", "865", "AZ"},
	{"870", "884", "NM"},
	{"885", "885", "TX"},
	{"889", "898", "NV"},
	{"900", "961", "CA"},
	{"962", "966", "AP"},
	{"967", "968", "HI"},
	{"969", "969", "GU"},
	{"970", "979", "OR"},
	{"980", "994", "WA"},
	{"995", "999", "AK"},
}

// Lookup returns the 2-letter state abbreviation for a 5-digit ZIP.
// The second return is false for malformed or unassigned ZIPs.
func Lookup(zip5 string) (string, bool) {
	z := strings.TrimSpace(zip5)
	if len(z) < 3 {
		return "", false
	}
	prefix := z[:3]
	for _, c := range prefix {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	for _, r := range prefixRanges {
		if prefix >= r.lo && prefix <= r.hi {
			return r.state, true
		}
	}
	return "", false
}
