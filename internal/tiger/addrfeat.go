// Package tiger downloads Census TIGER/Line ADDRFEAT shapefiles and bulk
// loads their address ranges into the road reference store, where the
// resolver's interpolation fallback reads them.
package tiger

import (
	"fmt"
	"strconv"
)

// importColumns is the staging-table row layout produced by the parser.
var importColumns = []string{
	"tlid", "fullname", "startnumber", "endnumber", "step", "postcode", "linegeo",
}

// RangeRow is one side of an ADDRFEAT record: a house-number range along a
// road edge, with the edge geometry as EWKB.
type RangeRow struct {
	TLID        int64
	FullName    string
	StartNumber int
	EndNumber   int
	// Step is 2 when both ends share parity (a single-parity range), else 1.
	Step     int
	Postcode string
	Geom     []byte
}

func (r RangeRow) values() []any {
	return []any{r.TLID, r.FullName, r.StartNumber, r.EndNumber, r.Step, r.Postcode, r.Geom}
}

// FIPSCodes maps state abbreviation to 2-digit FIPS code for all 50 states + DC.
var FIPSCodes = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56",
}

// abbrByFIPS is a reverse lookup from FIPS code to state abbreviation.
var abbrByFIPS map[string]string

func init() {
	abbrByFIPS = make(map[string]string, len(FIPSCodes))
	for abbr, fips := range FIPSCodes {
		abbrByFIPS[fips] = abbr
	}
}

// AbbrFromFIPS returns the state abbreviation for a 2-digit state FIPS code.
func AbbrFromFIPS(fips string) (string, bool) {
	abbr, ok := abbrByFIPS[fips]
	return abbr, ok
}

// DownloadURL builds the Census Bureau URL for a county's ADDRFEAT archive.
// countyFIPS is the 5-digit state+county code, e.g. "44005" for Newport
// County, RI.
func DownloadURL(year int, countyFIPS string) string {
	return fmt.Sprintf(
		"https://www2.census.gov/geo/tiger/TIGER%d/ADDRFEAT/tl_%d_%s_addrfeat.zip",
		year, year, countyFIPS,
	)
}

// FTPDownloadURL builds the same archive path on the Census FTP mirror.
func FTPDownloadURL(year int, countyFIPS string) string {
	return fmt.Sprintf(
		"ftp://ftp2.census.gov/geo/tiger/TIGER%d/ADDRFEAT/tl_%d_%s_addrfeat.zip",
		year, year, countyFIPS,
	)
}

// sideRange builds the range row for one side of an edge. Sides with a
// missing road name, postcode, or non-numeric house numbers (hyphenated
// New-York-style ranges included) carry nothing usable and are dropped.
func sideRange(tlid int64, fullName, fromHN, toHN, zip string, geom []byte) (RangeRow, bool) {
	if fullName == "" || zip == "" {
		return RangeRow{}, false
	}
	from, ok := parseHouseNumber(fromHN)
	if !ok {
		return RangeRow{}, false
	}
	to, ok := parseHouseNumber(toHN)
	if !ok {
		return RangeRow{}, false
	}

	step := 1
	if from%2 == to%2 {
		step = 2
	}
	return RangeRow{
		TLID:        tlid,
		FullName:    fullName,
		StartNumber: from,
		EndNumber:   to,
		Step:        step,
		Postcode:    zip,
		Geom:        geom,
	}, true
}

// parseHouseNumber accepts plain decimal house numbers only.
func parseHouseNumber(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
