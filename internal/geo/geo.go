// Package geo computes distances between activity locations and the caller.
package geo

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

const earthRadiusKm = 6371

// Point is a latitude/longitude pair in degrees
type Point struct {
	Lat float64
	Lng float64
}

// DistanceKm returns the great-circle distance between a and b (haversine).
func DistanceKm(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// FormatDistance renders distances under a kilometre in whole metres, the rest with one decimal.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%d m", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1f km", km)
}

var coordsPattern = regexp.MustCompile(`(-?\d+\.?\d*),\s*(-?\d+\.?\d*)`)

// ParseLocation extracts a coordinate pair from strings like "48.1351, 11.5820".
// Place names such as "Munich, Germany" return false.
func ParseLocation(s string) (Point, bool) {
	m := coordsPattern.FindStringSubmatch(s)
	if m == nil {
		return Point{}, false
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Point{}, false
	}
	lng, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Point{}, false
	}
	return Point{Lat: lat, Lng: lng}, true
}

// Valid reports whether p lies within latitude/longitude bounds.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
