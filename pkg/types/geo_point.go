package types

import "math"

const earthRadiusKM = 6371.0

// GeoPoint is a WGS84 coordinate stored as a JSON column. Distance between a
// work team base and a service address is derived from it; routing stays an
// external concern.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the point carries no coordinates.
func (g GeoPoint) IsZero() bool {
	return g.Lat == 0 && g.Lng == 0
}

// DistanceKM returns the great-circle distance to other in kilometers.
func (g GeoPoint) DistanceKM(other GeoPoint) float64 {
	lat1 := g.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - g.Lat) * math.Pi / 180
	dLng := (other.Lng - g.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}
