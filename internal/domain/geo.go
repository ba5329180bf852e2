package domain

import (
	"fmt"
	"math"
)

// Unit selects the distance unit for Distance.
type Unit string

const (
	Kilometers Unit = "km"
	Miles      Unit = "miles"
)

const (
	earthRadiusKm    = 6371.0
	earthRadiusMiles = 3956.0
	kmPerMile        = 1.609344
)

// Coordinates is a WGS-84 position with optional device-reported extras.
type Coordinates struct {
	Latitude  float64  `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64  `json:"longitude" validate:"gte=-180,lte=180"`
	Accuracy  *float64 `json:"accuracy,omitempty"` // meters
	Altitude  *float64 `json:"altitude,omitempty"` // meters
	Heading   *float64 `json:"heading,omitempty"`  // degrees from true north
	Speed     *float64 `json:"speed,omitempty"`    // m/s
}

// Validate reports whether the latitude and longitude are in range.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return fmt.Errorf("%w: non-finite value", ErrInvalidCoordinates)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinates, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinates, c.Longitude)
	}
	return nil
}

// Distance returns the great-circle distance between a and b in the given
// unit, rounded to two decimals. Any unit other than Miles is kilometers.
func Distance(a, b Coordinates, unit Unit) float64 {
	radius := earthRadiusKm
	if unit == Miles {
		radius = earthRadiusMiles
	}

	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding error can push h fractionally past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return round2(radius * c)
}

// DistanceKm is Distance in kilometers.
func DistanceKm(a, b Coordinates) float64 {
	return Distance(a, b, Kilometers)
}

// Bearing returns the initial compass bearing from a to b in [0, 360).
func Bearing(a, b Coordinates) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	deg := math.Mod(toDegrees(math.Atan2(y, x))+360, 360)
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// KmToMiles converts kilometers to statute miles.
func KmToMiles(km float64) float64 {
	return km / kmPerMile
}

// MilesToKm converts statute miles to kilometers.
func MilesToKm(miles float64) float64 {
	return miles * kmPerMile
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
