// Package geospatial provides the great-circle math used to decide whether
// a place-search candidate lies within a city's configured radius.
package geospatial

import "math"

const earthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance in kilometers between two
// WGS84 coordinates.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLambda := radians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}

// WithinRadiusKM reports whether the point lies within radiusKM of the
// center. The boundary is inclusive.
func WithinRadiusKM(lat, lon, centerLat, centerLon, radiusKM float64) bool {
	return HaversineKM(lat, lon, centerLat, centerLon) <= radiusKM
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
