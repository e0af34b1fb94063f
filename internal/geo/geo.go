// Package geo provides great-circle distance math. All distances in this
// codebase are kilometers; thresholds and scoring bands assume km.
package geo

import "math"

// EarthRadiusKm is the mean earth radius used by Distance.
const EarthRadiusKm = 6371.0

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func toRadians(degree float64) float64 {
	return degree * math.Pi / 180
}

// Distance returns the haversine great-circle distance between a and b in
// kilometers. NaN inputs propagate NaN; callers validate coordinate ranges.
func Distance(a, b Point) float64 {
	phi1 := toRadians(a.Lat)
	phi2 := toRadians(b.Lat)
	deltaPhi := toRadians(b.Lat - a.Lat)
	deltaLambda := toRadians(b.Lng - a.Lng)

	h := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}
