package matching

import (
	"menu-allergen-scanner/internal/models"
)

// FlagAllergens reports, per item, which of the user's allergens the item
// carries. Items that carry none are left out. Comparison is on normalized
// allergen names; the output uses the user's spelling in the user's order.
func FlagAllergens(items []models.MenuItem, userAllergens []string) []models.FlaggedItem {
	if len(userAllergens) == 0 {
		return nil
	}
	var flagged []models.FlaggedItem
	for i, item := range items {
		have := make(map[string]struct{})
		for _, a := range item.Allergens() {
			have[a] = struct{}{}
		}
		var hits []string
		seen := make(map[string]struct{})
		for _, ua := range userAllergens {
			n := models.NormalizeAllergen(ua)
			if _, dup := seen[n]; dup || n == "" {
				continue
			}
			seen[n] = struct{}{}
			if _, ok := have[n]; ok {
				hits = append(hits, ua)
			}
		}
		if len(hits) > 0 {
			flagged = append(flagged, models.FlaggedItem{Index: i, Name: item.Name, Allergens: hits})
		}
	}
	return flagged
}
