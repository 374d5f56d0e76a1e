package matching

import (
	"menu-allergen-scanner/internal/models"
)

// Menu item score weights; they sum to 1 so the blend stays in [0,1].
const (
	NameWeight     = 0.7
	AllergenWeight = 0.3
)

// Jaccard returns |a∩b| / |a∪b| over two string sets. Two empty sets score
// 1.0. Duplicates inside a slice count once.
func Jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[s] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, s := range b {
		setB[s] = struct{}{}
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}

	inter := 0
	for s := range setA {
		if _, ok := setB[s]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// AllergenOverlap is the Jaccard overlap of two items' allergen keys.
func AllergenOverlap(a, b models.MenuItem) float64 {
	return Jaccard(a.Allergens(), b.Allergens())
}

// MenuItemSimilarity blends name similarity and allergen overlap into [0,1].
// target plays the candidate role, source the query role.
func MenuItemSimilarity(source, target models.MenuItem) float64 {
	return NameWeight*NameSimilarity(target.Name, source.Name) +
		AllergenWeight*AllergenOverlap(source, target)
}

// BestMenuMatches finds, for each source item, the target item with the
// highest MenuItemSimilarity. Ties keep the first target. With no targets the
// result is empty.
func BestMenuMatches(sources, targets []models.MenuItem) []models.MenuMatch {
	if len(targets) == 0 {
		return nil
	}
	out := make([]models.MenuMatch, 0, len(sources))
	scores := make([]float64, len(targets))
	for si, src := range sources {
		for ti, tgt := range targets {
			scores[ti] = MenuItemSimilarity(src, tgt)
		}
		best := BestByScore(scores)
		out = append(out, models.MenuMatch{
			SourceIndex: si,
			TargetIndex: best,
			Source:      src,
			Target:      targets[best],
			Score:       scores[best],
		})
	}
	return out
}

// BestByScore returns the index of the highest score, first wins on ties, or
// -1 for an empty slice.
func BestByScore(scores []float64) int {
	best := -1
	for i, s := range scores {
		if best == -1 || s > scores[best] {
			best = i
		}
	}
	return best
}
