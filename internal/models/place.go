package models

import "menu-allergen-scanner/pkg/geography"

// Place is the restaurant record exchanged with the mobile app:
// {name, location:{lat,lng}}. Google-sourced places also carry the rest.
type Place struct {
	PlaceID  string                `json:"place_id,omitempty"`
	Name     string                `json:"name"`
	Address  string                `json:"address,omitempty"`
	Location *geography.Coordinate `json:"location,omitempty"`
	Types    []string              `json:"types,omitempty"`
	Rating   float64               `json:"rating,omitempty"`
	Website  string                `json:"website,omitempty"`
}

// LookupStatus tags the outcome of an upstream lookup.
type LookupStatus string

const (
	StatusFound    LookupStatus = "found"
	StatusNotFound LookupStatus = "not_found"
)

// PlaceLookup is the result of resolving a user-submitted restaurant against
// Places search results.
type PlaceLookup struct {
	Status         LookupStatus `json:"status"`
	Found          bool         `json:"found"`
	Place          *Place       `json:"matchedCandidate,omitempty"`
	Score          *float64     `json:"score,omitempty"` // set on found only
	DistanceMeters *float64     `json:"distance_meters,omitempty"`
	DistanceKm     *float64     `json:"distance_km,omitempty"`
	Candidates     int          `json:"candidates"`
}

// NotFoundPlace builds the not_found variant.
func NotFoundPlace(candidates int) *PlaceLookup {
	return &PlaceLookup{Status: StatusNotFound, Candidates: candidates}
}

// LogoLookup is the result of a logo search for a restaurant.
type LogoLookup struct {
	Status  LookupStatus `json:"status"`
	Name    string       `json:"name,omitempty"`
	Domain  string       `json:"domain,omitempty"`
	LogoURL string       `json:"logo_url,omitempty"`
}

// RestaurantResolution combines the place and logo lookups.
type RestaurantResolution struct {
	Place *PlaceLookup `json:"place"`
	Logo  *LogoLookup  `json:"logo,omitempty"`
}
