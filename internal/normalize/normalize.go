// Package normalize repairs messy raw address strings before tagging:
// state-name abbreviation, directional town-name expansion, and ZIP repair
// for the RI/MA service area where leading zeros are commonly dropped.
package normalize

import (
	"strings"
)

// ZipSource identifies which heuristic produced the ZIP.
type ZipSource string

// ZIP repair sources, in the order the heuristics are tried.
const (
	ZipSourceNone        ZipSource = ""
	ZipSourceZip5        ZipSource = "zip5"
	ZipSourceTrailing4   ZipSource = "zip4_trailing"
	ZipSourceAfterState  ZipSource = "zip4_after_state"
	ZipSourceBeforeState ZipSource = "zip4_before_state"
)

// Repaired indicates whether the source means a 4-digit ZIP was padded.
func (s ZipSource) Repaired() bool {
	return s == ZipSourceTrailing4 || s == ZipSourceAfterState || s == ZipSourceBeforeState
}

// Result is the outcome of normalizing one raw address.
type Result struct {
	Cleaned          string
	Zip5             string
	ZipSource        ZipSource
	FixedState       bool
	FixedTown        bool
}

// stateCorrections maps long-form or dotted state spellings to two-letter codes.
var stateCorrections = []struct{ from, to string }{
	{"rhode island", "RI"},
	{"r.i.", "RI"},
	{"massachusetts", "MA"},
	{"mass.", "MA"},
	{"m.a.", "MA"},
}

// townCorrections expands abbreviated compass-directional town names.
var townCorrections = []struct{ from, to string }{
	{"n scituate", "North Scituate"},
	{"n. scituate", "North Scituate"},
	{"n kingstown", "North Kingstown"},
	{"s kingstown", "South Kingstown"},
	{"s. kingstown", "South Kingstown"},
	{"n providence", "North Providence"},
	{"n. providence", "North Providence"},
	{"n attleboro", "North Attleboro"},
	{"n. attleboro", "North Attleboro"},
}

// Normalize applies state-name correction, town-directional correction, and
// ZIP repair to a raw address. It is a pure function: absence of a ZIP is a
// valid outcome, never an error.
func Normalize(raw string) Result {
	res := Result{}
	s := raw

	for _, c := range stateCorrections {
		if idx := strings.Index(strings.ToLower(s), c.from); idx >= 0 {
			s = s[:idx] + c.to + s[idx+len(c.from):]
			res.FixedState = true
		}
	}

	for _, c := range townCorrections {
		if idx := strings.Index(strings.ToLower(s), c.from); idx >= 0 {
			s = s[:idx] + c.to + s[idx+len(c.from):]
			res.FixedTown = true
		}
	}

	zr := RepairZip(s)
	res.Cleaned = zr.Cleaned
	res.Zip5 = zr.Zip5
	res.ZipSource = zr.Source
	return res
}
