package matching

import (
	"menu-allergen-scanner/pkg/geography"
)

// Defaults for the restaurant match gate.
const (
	DefaultMinNameSimilarity = 0.4
	DefaultMaxDistanceMeters = 1000.0
)

// RestaurantGate holds both thresholds a candidate must pass.
type RestaurantGate struct {
	MinNameSimilarity float64 `yaml:"min_name_similarity" json:"min_name_similarity"`
	MaxDistanceMeters float64 `yaml:"max_distance_meters" json:"max_distance_meters"`
}

// DefaultRestaurantGate returns the stock thresholds.
func DefaultRestaurantGate() RestaurantGate {
	return RestaurantGate{
		MinNameSimilarity: DefaultMinNameSimilarity,
		MaxDistanceMeters: DefaultMaxDistanceMeters,
	}
}

// Evaluation is the per-candidate outcome of the gate.
type Evaluation struct {
	Similarity     float64
	DistanceMeters *float64
	Passed         bool
}

// Evaluate runs both gates for a single candidate against target.
//
// When target has no location the distance gate is skipped. When target has
// one and the candidate does not, the candidate fails. A NaN distance fails.
func (g RestaurantGate) Evaluate(target, candidate Candidate) Evaluation {
	ev := Evaluation{Similarity: NameSimilarity(candidate.Name, target.Name)}
	nameOK := ev.Similarity >= g.MinNameSimilarity

	distOK := true
	if target.Location != nil {
		if candidate.Location == nil {
			distOK = false
		} else {
			d := geography.Between(*target.Location, *candidate.Location)
			ev.DistanceMeters = &d
			distOK = g.withinDistance(d)
		}
	}
	ev.Passed = nameOK && distOK
	return ev
}

// Accepts applies both thresholds to precomputed signals.
func (g RestaurantGate) Accepts(similarity, distanceMeters float64) bool {
	return similarity >= g.MinNameSimilarity && g.withinDistance(distanceMeters)
}

// NaN compares false, so malformed coordinates never pass.
func (g RestaurantGate) withinDistance(d float64) bool { return d <= g.MaxDistanceMeters }

// MatchRestaurant picks the candidate with the highest name similarity among
// those passing the gate. Ties keep the first candidate seen.
func MatchRestaurant(target Candidate, candidates []Candidate, gate RestaurantGate) MatchResult {
	best := MatchResult{Index: -1}
	for i := range candidates {
		ev := gate.Evaluate(target, candidates[i])
		if !ev.Passed {
			continue
		}
		if best.Found && ev.Similarity <= best.Score {
			continue
		}
		best = MatchResult{
			Found:          true,
			Index:          i,
			Candidate:      &candidates[i],
			Score:          ev.Similarity,
			DistanceMeters: ev.DistanceMeters,
		}
	}
	return best
}
