package geo

import (
	"math"

	"nav-simulator/internal/nav"
)

const earthRadiusMeters = 6371000.0

func toRad(d float64) float64 { return d * math.Pi / 180 }

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

func Distance(a, b nav.LatLng) float64 { return Haversine(a.Lat, a.Lng, b.Lat, b.Lng) }

// Bearing returns the initial bearing from a to b in degrees, [0,360).
func Bearing(a, b nav.LatLng) float64 {
	y := math.Sin(toRad(b.Lng-a.Lng)) * math.Cos(toRad(b.Lat))
	x := math.Cos(toRad(a.Lat))*math.Sin(toRad(b.Lat)) - math.Sin(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Cos(toRad(b.Lng-a.Lng))
	return NormalizeHeading(math.Atan2(y, x) * 180 / math.Pi)
}

// NormalizeHeading wraps degrees into [0,360).
func NormalizeHeading(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}

// Offset moves p by step degrees along heading using a flat-earth
// approximation: lat grows with cos(heading), lng with sin(heading).
func Offset(p nav.LatLng, headingDeg, step float64) nav.LatLng {
	rad := toRad(headingDeg)
	return nav.LatLng{
		Lat: p.Lat + step*math.Cos(rad),
		Lng: p.Lng + step*math.Sin(rad),
	}
}
