package domain

import "math"

const earthRadiusM = 6371000.0

// DistanceMeters returns the haversine great-circle distance between
// two coordinates in meters.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// WithinGeofence reports whether the point is strictly inside the
// radius around the reference location. A point exactly on the boundary
// is not inside; the intake routes it to human review instead.
func WithinGeofence(lat, lon, refLat, refLon, radiusM float64) bool {
	return DistanceMeters(lat, lon, refLat, refLon) < radiusM
}
