package normalize

import (
	"regexp"
	"strings"
)

// ZipResult holds the extracted/repaired ZIP and the cleaned address string.
type ZipResult struct {
	Cleaned string
	Zip5    string
	Source  ZipSource
}

// Unit designators that often precede a number that is NOT a ZIP.
const unitWords = `(?:apt|apartment|unit|ste|suite|#|fl|floor|bldg|building)\.?`

// PO Box marker: the following number is never a ZIP.
const poBox = `(?:p\.?\s*o\.?\s*box|po\s*box)`

// Optional country strings sometimes appear at the end.
const country = `(?:USA|US|United\s+States(?:\s+of\s+America)?)\.?`

// RI/MA state tokens.
const riMAState = `(?:RI|MA|Rhode\s+Island|Massachusetts)`

var (
	zip5Re       = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\b`)
	trailing4Re  = regexp.MustCompile(`(?i)\b(\d{4})\b(?:\s*` + country + `)?\s*$`)
	afterStateRe = regexp.MustCompile(`(?i)\b(` + riMAState + `)\b\W*(\d{4})\b`)
	beforeStateRe = regexp.MustCompile(`(?i)\b(\d{4})\b\W*\b(` + riMAState + `)\b`)
	unitCtxRe    = regexp.MustCompile(`(?i)` + unitWords + `\s*$`)
	poBoxCtxRe   = regexp.MustCompile(`(?i)` + poBox + `\s*$`)

	multiSpaceRe   = regexp.MustCompile(`\s{2,}`)
	spaceCommaRe   = regexp.MustCompile(`\s+,`)
	commaSpacingRe = regexp.MustCompile(`\s*,\s*`)
)

// RepairZip extracts a ZIP from an address string, repairing 4-digit RI/MA
// ZIPs by padding a leading zero. Heuristics are tried in a fixed order and
// the first match wins:
//
//  1. A 5-digit ZIP (or ZIP+4) anywhere.
//  2. A trailing 4-digit token, optionally before a country token.
//  3. A RI/MA state token followed by a 4-digit token.
//  4. A 4-digit token followed by a RI/MA state token.
//
// Heuristics 2-4 are skipped when the digits follow a unit/suite or PO-Box
// marker, so "PO Box 2835" and "Apt 2835" never become ZIPs.
func RepairZip(address string) ZipResult {
	s := strings.TrimSpace(address)
	if s == "" {
		return ZipResult{Cleaned: s}
	}

	if loc := zip5Re.FindStringSubmatchIndex(s); loc != nil {
		zip5 := s[loc[2]:loc[3]]
		return ZipResult{
			Cleaned: replaceSpan(s, loc[0], loc[1], zip5),
			Zip5:    zip5,
			Source:  ZipSourceZip5,
		}
	}

	if loc := trailing4Re.FindStringSubmatchIndex(s); loc != nil {
		before := strings.TrimRight(s[:loc[0]], " ")
		if !unitCtxRe.MatchString(before) && !poBoxCtxRe.MatchString(before) {
			zip5 := "0" + s[loc[2]:loc[3]]
			return ZipResult{
				Cleaned: replaceSpan(s, loc[0], loc[1], zip5),
				Zip5:    zip5,
				Source:  ZipSourceTrailing4,
			}
		}
	}

	if loc := afterStateRe.FindStringSubmatchIndex(s); loc != nil {
		digitsStart, digitsEnd := loc[4], loc[5]
		before := strings.TrimRight(s[:digitsStart], " ")
		if !unitCtxRe.MatchString(before) && !poBoxCtxRe.MatchString(before) {
			zip5 := "0" + s[digitsStart:digitsEnd]
			return ZipResult{
				Cleaned: replaceSpan(s, digitsStart, digitsEnd, zip5),
				Zip5:    zip5,
				Source:  ZipSourceAfterState,
			}
		}
	}

	if loc := beforeStateRe.FindStringSubmatchIndex(s); loc != nil {
		digitsStart, digitsEnd := loc[2], loc[3]
		before := strings.TrimRight(s[:digitsStart], " ")
		if !unitCtxRe.MatchString(before) && !poBoxCtxRe.MatchString(before) {
			zip5 := "0" + s[digitsStart:digitsEnd]
			return ZipResult{
				Cleaned: replaceSpan(s, digitsStart, digitsEnd, zip5),
				Zip5:    zip5,
				Source:  ZipSourceBeforeState,
			}
		}
	}

	return ZipResult{Cleaned: s}
}

// replaceSpan substitutes s[a:b] with replacement and cleans up leftover
// punctuation and spacing.
func replaceSpan(s string, a, b int, replacement string) string {
	cleaned := strings.TrimSpace(s[:a] + replacement + s[b:])
	cleaned = multiSpaceRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.Trim(cleaned, " ,;")
	cleaned = spaceCommaRe.ReplaceAllString(cleaned, ",")
	cleaned = strings.TrimSpace(commaSpacingRe.ReplaceAllString(cleaned, ", "))
	return cleaned
}
