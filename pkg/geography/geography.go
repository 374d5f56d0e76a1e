// Package geography holds great-circle distance helpers.
//
// Units: the restaurant match gate and places search radius work in meters
// (DistanceMeters); the API's user-facing distance_km field and the matchctl
// CLI use kilometers (DistanceKm). Both share one haversine implementation.
package geography

import "math"

const (
	EarthRadiusKm     = 6371.0
	EarthRadiusMeters = EarthRadiusKm * 1000
)

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether both components are zero. Callers treat the zero
// coordinate as "no location" only where they say so explicitly.
func (c Coordinate) IsZero() bool { return c.Lat == 0 && c.Lng == 0 }

// Valid reports whether the coordinate is finite and within lat/lng bounds.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// DistanceMeters returns the haversine distance between two points in meters.
// NaN inputs yield NaN.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := toRadians(lat1)
	lat2Rad := toRadians(lat2)
	deltaLat := toRadians(lat2 - lat1)
	deltaLng := toRadians(lng2 - lng1)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// DistanceKm is DistanceMeters in kilometers.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	return DistanceMeters(lat1, lng1, lat2, lng2) / 1000
}

// Between returns the distance in meters between two coordinates.
func Between(a, b Coordinate) float64 {
	return DistanceMeters(a.Lat, a.Lng, b.Lat, b.Lng)
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
