// Package fuzzy scores a target street name against candidate road names
// from the road reference store. Scoring runs on canonicalized text with
// common street-suffix abbreviations expanded so "Main St" matches
// "Main Street" and "Oaklawn" matches "Oak Lawn".
package fuzzy

import (
	"regexp"
	"strings"

	fw "github.com/paul-mannino/go-fuzzywuzzy"
)

var (
	nonAlnumRunRe = regexp.MustCompile(`[^a-z0-9]+`)
	nonAlnumRe    = regexp.MustCompile(`[^a-z0-9]`)
)

// suffixAbbreviations expands well-known street suffix abbreviations before
// scoring. Intentionally conservative.
var suffixAbbreviations = map[string]string{
	"ave":   "avenue",
	"av":    "avenue",
	"blvd":  "boulevard",
	"cir":   "circle",
	"ct":    "court",
	"ctr":   "center",
	"cv":    "cove",
	"dr":    "drive",
	"expy":  "expressway",
	"expwy": "expressway",
	"hwy":   "highway",
	"ln":    "lane",
	"pkwy":  "parkway",
	"pl":    "place",
	"rd":    "road",
	"sq":    "square",
	"st":    "street",
	"ter":   "terrace",
	"trl":   "trail",
}

// ExpandRoadAbbreviations replaces punctuation with spaces and expands
// suffix abbreviations token by token.
func ExpandRoadAbbreviations(text string) string {
	if text == "" {
		return ""
	}
	cleaned := regexp.MustCompile(`[^A-Za-z0-9]+`).ReplaceAllString(text, " ")
	tokens := strings.Fields(cleaned)
	for i, tok := range tokens {
		if full, ok := suffixAbbreviations[strings.ToLower(tok)]; ok {
			tokens[i] = full
		}
	}
	return strings.Join(tokens, " ")
}

// canonTokens lowercases and collapses non-alphanumeric runs to single spaces.
func canonTokens(s string) string {
	s = strings.ToLower(s)
	s = nonAlnumRunRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// canonJoined removes separators entirely so "Oak Lawn" == "Oaklawn".
func canonJoined(s string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToLower(s), "")
}

// SmartScore scores a pair of road names on a 0-100 scale as the maximum of
// token-set overlap, partial substring overlap, and a down-weighted
// character-level ratio on the joined forms.
func SmartScore(target, candidate string) float64 {
	tTok := canonTokens(target)
	cTok := canonTokens(candidate)

	sTok := float64(fw.TokenSetRatio(tTok, cTok))
	sPartial := float64(fw.PartialRatio(tTok, cTok))
	sJoin := 0.9 * float64(fw.Ratio(canonJoined(target), canonJoined(candidate)))

	score := sTok
	if sPartial > score {
		score = sPartial
	}
	if sJoin > score {
		score = sJoin
	}
	return score
}

// Match is the best-scoring candidate road name.
type Match struct {
	Name  string
	Score float64
}

// Matcher scores target street names against candidate lists.
type Matcher struct {
	// Threshold is the minimum accepted score on the 0-100 scale.
	Threshold float64
}

// NewMatcher creates a Matcher with the given acceptance threshold.
func NewMatcher(threshold float64) *Matcher {
	return &Matcher{Threshold: threshold}
}

// BestMatch returns the top-scoring candidate, or nil when no candidate
// clears the threshold. TopScore reports the best observed score either way.
func (m *Matcher) BestMatch(target string, candidates []string) (match *Match, topScore float64) {
	if target == "" || len(candidates) == 0 {
		return nil, 0
	}

	targetExp := ExpandRoadAbbreviations(target)
	bestIdx := -1
	best := 0.0
	for i, cand := range candidates {
		s := SmartScore(targetExp, ExpandRoadAbbreviations(cand))
		if s > best {
			best = s
			bestIdx = i
		}
	}
	if bestIdx < 0 || best < m.Threshold {
		return nil, best
	}
	return &Match{Name: candidates[bestIdx], Score: best}, best
}
