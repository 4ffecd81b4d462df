// Package proximity decides which vendors can serve a buyer location.
// Two interchangeable strategies exist: straight-line haversine distance
// (default, no network) and a routing-distance API lookup.
package proximity

import (
	"errors"
	"math"
)

const earthRadiusKm = 6371.0

var (
	// ErrInvalidLocation is returned when a coordinate is absent or non-numeric.
	ErrInvalidLocation = errors.New("invalid location: latitude and longitude are required")

	// ErrNoVendorsEvaluated is returned when vendors exist but every
	// distance lookup failed, so no match decision could be made at all.
	ErrNoVendorsEvaluated = errors.New("distance lookup failed for every vendor")
)

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both coordinates are present, numeric numbers.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lng) &&
		!math.IsInf(p.Lat, 0) && !math.IsInf(p.Lng, 0)
}

// Location is a buyer-side origin: coordinates for the geodesic strategy,
// formatted address for the routing strategy.
type Location struct {
	Point   Point
	Address string
}

// VendorSite is a vendor's shop as seen by the matcher.
type VendorSite struct {
	VendorID string
	Address  string
	Point    Point
	RadiusKm float64
}

// Serviceable reports whether the site carries enough data to be matched.
func (s VendorSite) Serviceable() bool {
	return s.RadiusKm > 0 && s.Point.Valid()
}

// BuyerPoint is a buyer's delivery location as seen by the matcher.
type BuyerPoint struct {
	BuyerID string
	Address string
	Point   Point
}

// HaversineKm computes the great-circle distance between two points in km.
func HaversineKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}
