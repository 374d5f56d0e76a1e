// Package matching decides whether two free-text records refer to the same
// restaurant or menu item. Everything here is pure and safe for concurrent use.
package matching

import (
	"sort"
	"strings"
	"unicode"
)

// Similarity tiers. Callers sort and threshold on these exact values.
const (
	TierContained = 100
	TierAllWords  = 90
	TierSomeWords = 70
	TierNone      = 0
)

// normalize lowercases s and drops every whitespace rune.
func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.ToLower(s))
}

// queryWords splits on the same whitespace normalize drops, plus commas.
func queryWords(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
}

// TieredSimilarity scores candidate against query as one of 100, 90, 70 or 0.
//
// Containment of either normalized string in the other is 100. Otherwise the
// query is split into words and each word is looked up in the normalized
// candidate: all found is 90, some is 70, none is 0. Equal inputs score 100
// even when empty; otherwise empty input on either side scores 0.
func TieredSimilarity(candidate, query string) int {
	a := normalize(candidate)
	b := normalize(query)
	if a == b {
		return TierContained
	}
	if a == "" || b == "" {
		return TierNone
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return TierContained
	}

	words := queryWords(query)
	if len(words) == 0 {
		return TierNone
	}
	matched := 0
	for _, w := range words {
		if strings.Contains(a, w) {
			matched++
		}
	}
	switch {
	case matched == len(words):
		return TierAllWords
	case matched > 0:
		return TierSomeWords
	default:
		return TierNone
	}
}

// NameSimilarity is TieredSimilarity on a 0..1 scale.
func NameSimilarity(candidate, query string) float64 {
	return float64(TieredSimilarity(candidate, query)) / 100
}

// Ranked is one entry of RankByName.
type Ranked struct {
	Index     int
	Candidate Candidate
	Tier      int
}

// RankByName orders candidates by tier against query, highest first, keeping
// input order on ties. Candidates scoring 0 or below minTier are dropped.
func RankByName(query string, candidates []Candidate, minTier int) []Ranked {
	out := make([]Ranked, 0, len(candidates))
	for i, c := range candidates {
		tier := TieredSimilarity(c.Name, query)
		if tier < minTier || tier == TierNone {
			continue
		}
		out = append(out, Ranked{Index: i, Candidate: c, Tier: tier})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tier > out[j].Tier })
	return out
}
