package vision

import (
	"encoding/json"
	"sort"
	"strings"

	"menu-allergen-scanner/internal/models"
	errs "menu-allergen-scanner/pkg/errors"
)

type rawItem struct {
	Name                string              `json:"name"`
	Description         string              `json:"description"`
	AllergenIngredients map[string][]string `json:"allergenIngredients"`
}

type rawAnalysis struct {
	IsMenu         *bool     `json:"isMenu"`
	RestaurantName string    `json:"restaurantName"`
	Items          []rawItem `json:"items"`
	Reason         string    `json:"reason"`
}

// extractJSON strips markdown fences and any prose around the outermost object.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// ParseMenuResponse decodes a model reply. A reply without isMenu is treated
// as a menu when it lists items. A menu with no usable items becomes
// not_a_menu.
func ParseMenuResponse(system, reply string) (*models.MenuAnalysis, error) {
	const op = "vision.ParseMenuResponse"

	body := extractJSON(reply)
	if body == "" {
		return nil, errs.NewParse(op, system, "empty reply", reply, nil)
	}
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, errs.NewParse(op, system, "reply is not the expected json", reply, err)
	}

	items := make([]models.MenuItem, 0, len(raw.Items))
	for _, it := range raw.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		items = append(items, models.MenuItem{
			Name:                name,
			Description:         strings.TrimSpace(it.Description),
			AllergenIngredients: normalizeAllergens(it.AllergenIngredients),
		})
	}

	isMenu := len(items) > 0
	if raw.IsMenu != nil {
		isMenu = *raw.IsMenu
	}
	out := &models.MenuAnalysis{
		RestaurantName: strings.TrimSpace(raw.RestaurantName),
		Reason:         strings.TrimSpace(raw.Reason),
	}
	switch {
	case isMenu && len(items) > 0:
		out.Status = models.AnalysisMenu
		out.Items = items
	case isMenu:
		out.Status = models.AnalysisNotAMenu
		out.Items = []models.MenuItem{}
		if out.Reason == "" {
			out.Reason = "no menu items recognized"
		}
	default:
		out.Status = models.AnalysisNotAMenu
		out.Items = []models.MenuItem{}
		if out.Reason == "" {
			out.Reason = "photo is not a menu"
		}
	}
	return out, nil
}

// normalizeAllergens canonicalizes keys, merges keys that collapse together
// and dedupes ingredient lists.
func normalizeAllergens(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, ings := range in {
		key := models.NormalizeAllergen(k)
		if key == "" {
			continue
		}
		out[key] = append(out[key], ings...)
	}
	for k, ings := range out {
		seen := make(map[string]struct{}, len(ings))
		clean := make([]string, 0, len(ings))
		for _, ing := range ings {
			ing = strings.TrimSpace(ing)
			if ing == "" {
				continue
			}
			if _, ok := seen[strings.ToLower(ing)]; ok {
				continue
			}
			seen[strings.ToLower(ing)] = struct{}{}
			clean = append(clean, ing)
		}
		sort.Strings(clean)
		out[k] = clean
	}
	return out
}
