// Package geo implements the distance checks behind office check-in.
package geo

import (
	"errors"
	"math"

	"github.com/Dan9191/installment-service/internal/models"
)

// EarthRadius is the mean earth radius in meters.
const EarthRadius = 6371000.0

var (
	// ErrInvalidCoordinates reports a latitude or longitude out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrInvalidRadius reports a radius configuration that cannot be used.
	ErrInvalidRadius = errors.New("invalid radius")
	// ErrNoLocations is returned by Nearest for an empty location list.
	ErrNoLocations = errors.New("no office locations")
)

// ValidCoordinates reports whether lat/lon are within range.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Distance returns the haversine distance in meters between two points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadius * c
}

// ValidateLocation checks coordinates and radius settings of an office.
func ValidateLocation(loc models.OfficeLocation) error {
	if !ValidCoordinates(loc.Latitude, loc.Longitude) {
		return ErrInvalidCoordinates
	}
	if loc.AllowedRadius <= 0 {
		return ErrInvalidRadius
	}
	if loc.AllowFlexibleRadius && loc.FlexibleRadius < loc.AllowedRadius {
		return ErrInvalidRadius
	}
	return nil
}

// Match is the outcome of a location check.
type Match struct {
	Location models.OfficeLocation `json:"location"`
	Distance float64               `json:"distance"`
	Allowed  bool                  `json:"allowed"`
}

// Nearest finds the closest office to lat/lon and whether the point falls
// inside its radius. The flexible radius applies only where the office
// allows it.
func Nearest(locations []models.OfficeLocation, lat, lon float64) (Match, error) {
	if !ValidCoordinates(lat, lon) {
		return Match{}, ErrInvalidCoordinates
	}
	if len(locations) == 0 {
		return Match{}, ErrNoLocations
	}

	best := Match{Distance: math.Inf(1)}
	for _, loc := range locations {
		d := Distance(lat, lon, loc.Latitude, loc.Longitude)
		if d < best.Distance {
			best = Match{Location: loc, Distance: d}
		}
	}
	best.Allowed = Within(best.Location, best.Distance)
	return best, nil
}

// Within reports whether a distance is inside the office radius.
func Within(loc models.OfficeLocation, distance float64) bool {
	radius := loc.AllowedRadius
	if loc.AllowFlexibleRadius && loc.FlexibleRadius > radius {
		radius = loc.FlexibleRadius
	}
	return distance <= float64(radius)
}
