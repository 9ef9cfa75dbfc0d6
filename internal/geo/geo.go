// Package geo holds the coordinate value type and the great-circle math
// shared by integrations.
package geo

import "math"

// earthRadiusMiles matches the radius the rest of the pipeline assumes when
// reporting distances to the user.
const earthRadiusMiles = 3956.0

// MetersPerMile converts route distances (meters) to reported miles.
const MetersPerMile = 1609.344

// Coordinate is an immutable latitude/longitude pair (WGS 84).
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is inside the WGS 84 envelope.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Haversine returns the great-circle distance between a and b in miles.
func Haversine(a, b Coordinate) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(h))
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
