// Package interp positions a house number along TIGER address-range road
// segments. Selection prefers interpolation inside a covering range, then
// extrapolation between bracketing ranges, then a snap to the nearest
// range endpoint.
package interp

import (
	"fmt"
	"sort"
)

// Mode describes how the coordinate was derived.
type Mode string

const (
	// ModeExtrapolated means the point was interpolated within or between
	// address ranges.
	ModeExtrapolated Mode = "extrapolated"
	// ModeSnapped means the point was snapped to the nearest range endpoint.
	ModeSnapped Mode = "snapped"
)

// Segment is one TIGER address-range row with its line endpoints.
type Segment struct {
	PlaceID     int64
	RoadName    string
	RoadClass   string
	RoadType    string
	Postcode    string
	StartNumber int
	EndNumber   int
	// Step is the house-number increment; 2 means a single-parity range.
	Step     int
	StartLat float64
	StartLon float64
	EndLat   float64
	EndLon   float64
}

// low/high orient the range so the smaller house number comes first.
func (s Segment) low() int  { return min(s.StartNumber, s.EndNumber) }
func (s Segment) high() int { return max(s.StartNumber, s.EndNumber) }

func (s Segment) lowPoint() (lat, lon float64) {
	if s.StartNumber <= s.EndNumber {
		return s.StartLat, s.StartLon
	}
	return s.EndLat, s.EndLon
}

func (s Segment) highPoint() (lat, lon float64) {
	if s.StartNumber <= s.EndNumber {
		return s.EndLat, s.EndLon
	}
	return s.StartLat, s.StartLon
}

// parityOK reports whether the house number is on the segment's side of the
// street. Only step-2 ranges carry parity.
func (s Segment) parityOK(house int) bool {
	if s.Step != 2 {
		return true
	}
	return house%2 == s.StartNumber%2
}

func (s Segment) span() int { return s.high() - s.low() }

func (s Segment) midpoint() float64 { return float64(s.low()+s.high()) / 2 }

// Result is the selected coordinate and its provenance.
type Result struct {
	Lat  float64
	Lon  float64
	Mode Mode
	// Logic describes the selection in one line for search metadata.
	Logic string
	// SegmentIndexes are the positions in the input slice that produced the
	// point: one for within-range and snap, two for between-range.
	SegmentIndexes []int
	RoadName       string
	RoadClass      string
	RoadType       string
	PlaceID        int64
}

func lerp(start, end, frac float64) float64 {
	return start + (end-start)*frac
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Interpolate places a house number using the given segments. The second
// return is false when no segment can produce a point.
func Interpolate(houseNumber int, segments []Segment) (Result, bool) {
	if len(segments) == 0 {
		return Result{}, false
	}

	if r, ok := withinRange(houseNumber, segments); ok {
		return r, true
	}
	if r, ok := betweenRanges(houseNumber, segments); ok {
		return r, true
	}
	return snapToEndpoint(houseNumber, segments)
}

// withinRange interpolates inside the tightest parity-passing range that
// covers the house number. Ties on span break toward the range whose
// midpoint is closest to the house number.
func withinRange(house int, segments []Segment) (Result, bool) {
	bestIdx := -1
	for i, seg := range segments {
		if !seg.parityOK(house) || house < seg.low() || house > seg.high() {
			continue
		}
		if bestIdx < 0 {
			bestIdx = i
			continue
		}
		best := segments[bestIdx]
		if seg.span() < best.span() ||
			(seg.span() == best.span() && absF(float64(house)-seg.midpoint()) < absF(float64(house)-best.midpoint())) {
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return Result{}, false
	}

	seg := segments[bestIdx]
	frac := 0.5
	if seg.span() > 0 {
		frac = clamp01(float64(house-seg.low()) / float64(seg.span()))
	}
	lowLat, lowLon := seg.lowPoint()
	highLat, highLon := seg.highPoint()
	return Result{
		Lat:  lerp(lowLat, highLat, frac),
		Lon:  lerp(lowLon, highLon, frac),
		Mode: ModeExtrapolated,
		Logic: fmt.Sprintf("within_range_interpolation: house_num=%d, range=[%d,%d], frac=%.6f",
			house, seg.low(), seg.high(), frac),
		SegmentIndexes: []int{bestIdx},
		RoadName:       seg.RoadName,
		RoadClass:      seg.RoadClass,
		RoadType:       seg.RoadType,
		PlaceID:        seg.PlaceID,
	}, true
}

// betweenRanges extrapolates across the smallest gap between two adjacent
// parity-passing ranges that bracket the house number.
func betweenRanges(house int, segments []Segment) (Result, bool) {
	type ordered struct {
		idx int
		seg Segment
	}
	sorted := make([]ordered, 0, len(segments))
	for i, seg := range segments {
		sorted = append(sorted, ordered{idx: i, seg: seg})
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		if sorted[a].seg.low() != sorted[b].seg.low() {
			return sorted[a].seg.low() < sorted[b].seg.low()
		}
		return sorted[a].seg.high() < sorted[b].seg.high()
	})

	leftIdx, rightIdx := -1, -1
	for i := 0; i+1 < len(sorted); i++ {
		left, right := sorted[i], sorted[i+1]
		if !left.seg.parityOK(house) || !right.seg.parityOK(house) {
			continue
		}
		if left.seg.high() < house && house < right.seg.low() {
			if leftIdx < 0 {
				leftIdx, rightIdx = i, i+1
				continue
			}
			gap := right.seg.low() - left.seg.high()
			bestGap := sorted[rightIdx].seg.low() - sorted[leftIdx].seg.high()
			if gap < bestGap {
				leftIdx, rightIdx = i, i+1
			}
		}
	}
	if leftIdx < 0 {
		return Result{}, false
	}

	left, right := sorted[leftIdx], sorted[rightIdx]
	gap := right.seg.low() - left.seg.high()
	frac := 0.5
	if gap > 0 {
		frac = clamp01(float64(house-left.seg.high()) / float64(gap))
	}
	leftLat, leftLon := left.seg.highPoint()
	rightLat, rightLon := right.seg.lowPoint()
	return Result{
		Lat:  lerp(leftLat, rightLat, frac),
		Lon:  lerp(leftLon, rightLon, frac),
		Mode: ModeExtrapolated,
		Logic: fmt.Sprintf("between_ranges_extrapolation: house_num=%d, lower_high=%d, upper_low=%d, frac=%.6f",
			house, left.seg.high(), right.seg.low(), frac),
		SegmentIndexes: []int{left.idx, right.idx},
		RoadName:       left.seg.RoadName,
		RoadClass:      left.seg.RoadClass,
		RoadType:       left.seg.RoadType,
		PlaceID:        left.seg.PlaceID,
	}, true
}

// snapToEndpoint picks the range endpoint nearest to the house number,
// restricted to parity-passing segments when any exist.
func snapToEndpoint(house int, segments []Segment) (Result, bool) {
	type endpoint struct {
		idx      int
		seg      Segment
		num      int
		lat, lon float64
		side     string
	}

	build := func(parityOnly bool) []endpoint {
		var eps []endpoint
		for i, seg := range segments {
			if parityOnly && !seg.parityOK(house) {
				continue
			}
			lowLat, lowLon := seg.lowPoint()
			highLat, highLon := seg.highPoint()
			eps = append(eps,
				endpoint{idx: i, seg: seg, num: seg.low(), lat: lowLat, lon: lowLon, side: "low"},
				endpoint{idx: i, seg: seg, num: seg.high(), lat: highLat, lon: highLon, side: "high"},
			)
		}
		return eps
	}

	eps := build(true)
	if len(eps) == 0 {
		eps = build(false)
	}
	if len(eps) == 0 {
		return Result{}, false
	}

	best := 0
	for i := 1; i < len(eps); i++ {
		if abs(house-eps[i].num) < abs(house-eps[best].num) {
			best = i
		}
	}
	ep := eps[best]
	return Result{
		Lat:  ep.lat,
		Lon:  ep.lon,
		Mode: ModeSnapped,
		Logic: fmt.Sprintf("nearest_endpoint_snap: house_num=%d, endpoint=%d, side=%s, delta=%d",
			house, ep.num, ep.side, abs(house-ep.num)),
		SegmentIndexes: []int{ep.idx},
		RoadName:       ep.seg.RoadName,
		RoadClass:      ep.seg.RoadClass,
		RoadType:       ep.seg.RoadType,
		PlaceID:        ep.seg.PlaceID,
	}, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func absF(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
