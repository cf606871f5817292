// Package geo provides great-circle distance and radius filtering over
// provider locations. Pure functions; the category/availability part of
// candidate search lives in the provider store query.
package geo

import (
	"math"

	"github.com/taskradar/taskradar/internal/domain"
)

// earthRadiusKm is the spherical-Earth radius used for haversine distance.
const earthRadiusKm = 6371.0

// Distance returns the great-circle distance in kilometres between two
// coordinates using the haversine formula. Symmetric, zero for identical
// points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// WithinRadius filters providers to those at most radiusKm from the centre.
// A radius of zero or less means unlimited (the final broadcast stage).
func WithinRadius(providers []*domain.Provider, lat, lon, radiusKm float64) []*domain.Provider {
	if radiusKm <= 0 {
		return providers
	}
	out := make([]*domain.Provider, 0, len(providers))
	for _, p := range providers {
		if Distance(lat, lon, p.Latitude, p.Longitude) <= radiusKm {
			out = append(out, p)
		}
	}
	return out
}

// TierOnly filters providers to the given tier.
func TierOnly(providers []*domain.Provider, tier domain.ProviderTier) []*domain.Provider {
	out := make([]*domain.Provider, 0, len(providers))
	for _, p := range providers {
		if p.Tier == tier {
			out = append(out, p)
		}
	}
	return out
}

// ValidCoordinates reports whether lat/lon fall inside WGS84 bounds.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
