// Package geo measures great-circle distances for geofence checks.
package geo

import "math"

const earthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// DistanceMeters returns the haversine distance between two points, rounded to whole meters.
func DistanceMeters(a, b Point) int {
	phi1 := toRadians(a.Latitude)
	phi2 := toRadians(b.Latitude)
	dPhi := toRadians(b.Latitude - a.Latitude)
	dLambda := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return int(math.Round(earthRadiusMeters * c))
}

// Within reports whether the point lies inside a circular fence and the measured distance.
func Within(point, center Point, radiusMeters int) (bool, int) {
	distance := DistanceMeters(point, center)
	return distance <= radiusMeters, distance
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
