package matching

import (
	"menu-allergen-scanner/internal/models"
	"menu-allergen-scanner/pkg/geography"
)

// Candidate is a named, optionally located entity with optional tags.
type Candidate struct {
	Name     string
	Location *geography.Coordinate
	Tags     []string
}

// MatchResult is the outcome of MatchRestaurant. Index is -1 when nothing
// passed the gate.
type MatchResult struct {
	Found          bool
	Index          int
	Candidate      *Candidate
	Score          float64
	DistanceMeters *float64
}

// FromPlace builds a candidate from a place record.
func FromPlace(p models.Place) Candidate {
	c := Candidate{Name: p.Name, Tags: p.Types}
	if p.Location != nil {
		loc := *p.Location
		c.Location = &loc
	}
	return c
}

// FromPlaces converts a slice of places, preserving order.
func FromPlaces(ps []models.Place) []Candidate {
	out := make([]Candidate, len(ps))
	for i, p := range ps {
		out[i] = FromPlace(p)
	}
	return out
}

// FromMenuItem builds a candidate whose tags are the item's allergens.
func FromMenuItem(m models.MenuItem) Candidate {
	return Candidate{Name: m.Name, Tags: m.Allergens()}
}
