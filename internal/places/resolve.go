package places

import (
	"context"
	"strings"

	"menu-allergen-scanner/internal/matching"
	"menu-allergen-scanner/internal/models"
	errs "menu-allergen-scanner/pkg/errors"
	"menu-allergen-scanner/pkg/geography"
	"menu-allergen-scanner/pkg/logging"
)

// Resolve searches for target by name (and address when given) around its
// location, then applies the restaurant gate to the results.
func (c *Client) Resolve(ctx context.Context, target models.Place, gate matching.RestaurantGate) (*models.PlaceLookup, error) {
	const op = "places.Client.Resolve"

	name := strings.TrimSpace(target.Name)
	if name == "" {
		return nil, errs.NewValidation(op, "restaurant name is required", nil)
	}
	if target.Location != nil && !target.Location.Valid() {
		return nil, errs.NewValidation(op, "location is out of range", nil)
	}
	if target.Location != nil && target.Location.IsZero() {
		target.Location = nil
	}

	q := Query{Text: name, Location: target.Location}
	if addr := strings.TrimSpace(target.Address); addr != "" {
		q.Text = name + " " + addr
	}
	if gate.MaxDistanceMeters > 0 && uint(gate.MaxDistanceMeters) > c.cfg.RadiusMeters {
		q.RadiusMeters = uint(gate.MaxDistanceMeters)
	}

	found, err := c.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	lookup := Match(target, found, gate)
	c.reg.ObserveMatch("restaurant", lookup.Found)

	if lookup.Found && c.cfg.FetchDetails && lookup.Place.Website == "" && lookup.Place.PlaceID != "" {
		site, werr := c.Website(ctx, lookup.Place.PlaceID)
		if werr != nil {
			c.log.WithContext(ctx).Warn("place website lookup failed",
				logging.String("place_id", lookup.Place.PlaceID), logging.String("error", werr.Error()))
		} else {
			lookup.Place.Website = site
		}
	}
	c.log.WithContext(ctx).Debug("restaurant resolved",
		logging.Bool("found", lookup.Found), logging.Int("candidates", lookup.Candidates))
	return lookup, nil
}

// Match applies the gate to already fetched places.
func Match(target models.Place, found []models.Place, gate matching.RestaurantGate) *models.PlaceLookup {
	res := matching.MatchRestaurant(matching.FromPlace(target), matching.FromPlaces(found), gate)
	if !res.Found {
		return models.NotFoundPlace(len(found))
	}
	place := found[res.Index]
	score := res.Score
	lookup := &models.PlaceLookup{
		Status:     models.StatusFound,
		Found:      true,
		Place:      &place,
		Score:      &score,
		Candidates: len(found),
	}
	if res.DistanceMeters != nil {
		m := *res.DistanceMeters
		km := m / 1000
		lookup.DistanceMeters = &m
		lookup.DistanceKm = &km
	}
	return lookup
}

// RankedPlace is one search result ordered by name tier.
type RankedPlace struct {
	models.Place
	Tier       int      `json:"tier"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// Rank orders places by name tier against query, dropping those below
// minTier. Distances are measured from origin when it is set.
func Rank(query string, origin *geography.Coordinate, found []models.Place, minTier int) []RankedPlace {
	ranked := matching.RankByName(query, matching.FromPlaces(found), minTier)
	out := make([]RankedPlace, 0, len(ranked))
	for _, r := range ranked {
		rp := RankedPlace{Place: found[r.Index], Tier: r.Tier}
		if origin != nil && rp.Location != nil {
			km := geography.DistanceKm(origin.Lat, origin.Lng, rp.Location.Lat, rp.Location.Lng)
			rp.DistanceKm = &km
		}
		out = append(out, rp)
	}
	return out
}
