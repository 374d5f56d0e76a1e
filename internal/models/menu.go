package models

import (
	"sort"
	"strings"
)

// MenuItem matches the app's menu item record. The allergen set of an item is
// the key set of AllergenIngredients; values list the ingredients that carry
// that allergen.
type MenuItem struct {
	Name                string              `json:"name"`
	Description         string              `json:"description,omitempty"`
	AllergenIngredients map[string][]string `json:"allergenIngredients"`
}

// Allergens returns the item's allergen keys, trimmed, lowercased, deduped
// and sorted.
func (m MenuItem) Allergens() []string {
	seen := make(map[string]struct{}, len(m.AllergenIngredients))
	out := make([]string, 0, len(m.AllergenIngredients))
	for k := range m.AllergenIngredients {
		n := NormalizeAllergen(k)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NormalizeAllergen is the canonical form used for allergen set comparisons.
func NormalizeAllergen(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// AnalysisStatus tags what the vision model decided the photo was.
type AnalysisStatus string

const (
	AnalysisMenu     AnalysisStatus = "menu"
	AnalysisNotAMenu AnalysisStatus = "not_a_menu"
)

// MenuAnalysis is the parsed result of a menu photo.
type MenuAnalysis struct {
	Status         AnalysisStatus `json:"status"`
	RestaurantName string         `json:"restaurant_name,omitempty"`
	Items          []MenuItem     `json:"items"`
	Reason         string         `json:"reason,omitempty"`
	Provider       string         `json:"provider,omitempty"`
	Cached         bool           `json:"cached"`
}

// FlaggedItem lists which of the user's allergens an item contains.
type FlaggedItem struct {
	Index     int      `json:"index"`
	Name      string   `json:"name"`
	Allergens []string `json:"allergens"`
}

// MenuMatch pairs a source item with its best target item.
type MenuMatch struct {
	SourceIndex int      `json:"source_index"`
	TargetIndex int      `json:"target_index"`
	Source      MenuItem `json:"source"`
	Target      MenuItem `json:"matchedCandidate"`
	Score       float64  `json:"score"`
}
