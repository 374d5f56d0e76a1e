package matching

import (
	"math"
	"testing"

	"menu-allergen-scanner/internal/models"
	"menu-allergen-scanner/pkg/geography"
)

func loc(lat, lng float64) *geography.Coordinate {
	return &geography.Coordinate{Lat: lat, Lng: lng}
}

// metersNorth returns a point roughly m meters north of (lat, lng).
func metersNorth(lat, lng, m float64) *geography.Coordinate {
	dLat := m / geography.EarthRadiusMeters * 180 / math.Pi
	return loc(lat+dLat, lng)
}

func TestRestaurantGate_Accepts(t *testing.T) {
	g := DefaultRestaurantGate()
	tests := []struct {
		name       string
		similarity float64
		distance   float64
		want       bool
	}{
		{"passes both", 0.5, 200, true},
		{"similarity ok but too far", 0.5, 1500, false},
		{"close but name too weak", 0.3, 10, false},
		{"exact thresholds", 0.4, 1000, true},
		{"nan distance", 1.0, math.NaN(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Accepts(tt.similarity, tt.distance); got != tt.want {
				t.Errorf("Accepts(%v, %v) = %v, want %v", tt.similarity, tt.distance, got, tt.want)
			}
		})
	}
}

func TestMatchRestaurant_SelectsHighestPassing(t *testing.T) {
	target := Candidate{Name: "Joe's Pizza", Location: loc(40.7306, -73.9866)}
	candidates := []Candidate{
		{Name: "Joe's Pizza Broadway", Location: metersNorth(40.7306, -73.9866, 5000)}, // 100 but too far
		{Name: "Pizza Joe's", Location: metersNorth(40.7306, -73.9866, 300)},          // 90, close
		{Name: "Joe's Pizza", Location: metersNorth(40.7306, -73.9866, 50)},           // 100 and close
		{Name: "Sushi Place", Location: metersNorth(40.7306, -73.9866, 10)},           // 0
	}
	got := MatchRestaurant(target, candidates, DefaultRestaurantGate())
	if !got.Found {
		t.Fatal("expected a match")
	}
	if got.Index != 2 {
		t.Errorf("Index = %d, want 2", got.Index)
	}
	if got.Score != 1.0 {
		t.Errorf("Score = %f, want 1.0", got.Score)
	}
	if got.DistanceMeters == nil || math.Abs(*got.DistanceMeters-50) > 1 {
		t.Errorf("DistanceMeters = %v, want ~50", got.DistanceMeters)
	}
	if got.Candidate == nil || got.Candidate.Name != "Joe's Pizza" {
		t.Errorf("Candidate = %+v", got.Candidate)
	}
}

func TestMatchRestaurant_TieKeepsFirst(t *testing.T) {
	target := Candidate{Name: "Taco", Location: loc(0, 0)}
	candidates := []Candidate{
		{Name: "Taco Town", Location: metersNorth(0, 0, 100)},
		{Name: "Taco Bell", Location: metersNorth(0, 0, 10)},
	}
	got := MatchRestaurant(target, candidates, DefaultRestaurantGate())
	if !got.Found || got.Index != 0 {
		t.Errorf("expected first candidate on tie, got %+v", got)
	}
}

func TestMatchRestaurant_RejectsFarCandidate(t *testing.T) {
	target := Candidate{Name: "Joe's Diner", Location: loc(51.5, -0.12)}
	candidates := []Candidate{{Name: "Joe's Diner & Grill", Location: metersNorth(51.5, -0.12, 1500)}}
	got := MatchRestaurant(target, candidates, DefaultRestaurantGate())
	if got.Found {
		t.Errorf("expected no match beyond 1000m, got %+v", got)
	}
	if got.Index != -1 {
		t.Errorf("Index = %d, want -1", got.Index)
	}
}

func TestMatchRestaurant_MissingLocations(t *testing.T) {
	gate := DefaultRestaurantGate()

	// target without location: name-only decision
	got := MatchRestaurant(Candidate{Name: "Pizza"}, []Candidate{{Name: "Pizza Palace", Location: loc(1, 1)}}, gate)
	if !got.Found || got.DistanceMeters != nil {
		t.Errorf("expected name-only match without distance, got %+v", got)
	}

	// candidate without location while target has one: rejected
	got = MatchRestaurant(Candidate{Name: "Pizza", Location: loc(1, 1)}, []Candidate{{Name: "Pizza Palace"}}, gate)
	if got.Found {
		t.Errorf("expected rejection for candidate without location, got %+v", got)
	}
}

func TestMatchRestaurant_NoCandidates(t *testing.T) {
	got := MatchRestaurant(Candidate{Name: "x"}, nil, DefaultRestaurantGate())
	if got.Found || got.Candidate != nil {
		t.Errorf("expected empty result, got %+v", got)
	}
}

func TestMatchRestaurant_CustomGate(t *testing.T) {
	target := Candidate{Name: "joe pizza", Location: loc(0, 0)}
	candidates := []Candidate{{Name: "Joe's Diner", Location: metersNorth(0, 0, 100)}}
	// "Joe's Diner" against "joe pizza" scores 0.7; a gate at 0.8 rejects it.
	strict := RestaurantGate{MinNameSimilarity: 0.8, MaxDistanceMeters: 1000}
	if got := MatchRestaurant(target, candidates, strict); got.Found {
		t.Errorf("expected strict gate to reject, got %+v", got)
	}
	if got := MatchRestaurant(target, candidates, DefaultRestaurantGate()); !got.Found {
		t.Error("expected default gate to accept")
	}
}

func TestFromPlace_CopiesLocation(t *testing.T) {
	p := models.Place{Name: "A", Location: loc(1, 2), Types: []string{"restaurant"}}
	c := FromPlace(p)
	p.Location.Lat = 99
	if c.Location.Lat != 1 {
		t.Errorf("candidate location aliased the place location")
	}
	if len(c.Tags) != 1 || c.Tags[0] != "restaurant" {
		t.Errorf("Tags = %v", c.Tags)
	}
}
