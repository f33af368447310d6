package geo

import (
	"context"
	"math"
	"strings"

	"photocatalog/models"
	"photocatalog/repository"
)

const (
	// EarthRadiusKM is the sphere radius used for great-circle distances
	EarthRadiusKM = 6371.0

	// DefaultMaxDistanceKM is the default nearest-place search radius
	DefaultMaxDistanceKM = 50.0

	// one degree of latitude spans roughly 111 km; the bounding box trades
	// this approximation for an index-friendly range query
	kmPerDegreeLat = 111.0

	// a candidate closer than this ends the scan early
	earlyExitKM = 0.5
)

// Haversine returns the great-circle distance in kilometers between two
// latitude/longitude points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusKM * 2 * math.Asin(math.Sqrt(a))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// FormatPlace renders "Name, Admin1, CC", omitting absent segments
func FormatPlace(name string, admin1, country *string) string {
	parts := []string{name}
	if admin1 != nil && *admin1 != "" {
		parts = append(parts, *admin1)
	}
	if country != nil && *country != "" {
		parts = append(parts, *country)
	}
	return strings.Join(parts, ", ")
}

// Resolver finds the nearest imported place for a coordinate using a
// bounding-box prefilter over the indexed locations table followed by an
// exact haversine tie-break.
type Resolver struct {
	places        *repository.PlaceRepository
	maxDistanceKM float64
}

// NewResolver builds a resolver with the given search radius; a
// non-positive radius falls back to DefaultMaxDistanceKM.
func NewResolver(places *repository.PlaceRepository, maxDistanceKM float64) *Resolver {
	if maxDistanceKM <= 0 {
		maxDistanceKM = DefaultMaxDistanceKM
	}
	return &Resolver{places: places, maxDistanceKM: maxDistanceKM}
}

// Nearest returns the formatted nearest place within the search radius, or
// ok=false when nothing is in range. A candidate at exactly the radius is
// included. The context is checked before the query and before each distance
// computation; on cancellation the lookup gives up and reports not-found.
func (r *Resolver) Nearest(ctx context.Context, lat, lon float64) (string, bool, error) {
	if ctx.Err() != nil {
		return "", false, nil
	}

	latBuffer := r.maxDistanceKM / kmPerDegreeLat
	lonBuffer := 0.0
	// at the poles the cosine term vanishes; use a degenerate box instead of
	// dividing by zero
	if cosLat := math.Abs(math.Cos(radians(lat))); cosLat > 1e-9 {
		lonBuffer = r.maxDistanceKM / (kmPerDegreeLat * cosLat)
	}

	candidates, err := r.places.FindWithinBox(lat-latBuffer, lat+latBuffer, lon-lonBuffer, lon+lonBuffer)
	if err != nil {
		return "", false, err
	}
	if len(candidates) == 0 {
		return "", false, nil
	}

	var nearest *models.Place
	minDistance := math.Inf(1)
	for i := range candidates {
		if ctx.Err() != nil {
			return "", false, nil
		}
		d := Haversine(lat, lon, candidates[i].Latitude, candidates[i].Longitude)
		if d < minDistance {
			minDistance = d
			nearest = &candidates[i]
			// a sub-500m match is close enough to stop scanning
			if d < earlyExitKM {
				break
			}
		}
	}

	if nearest == nil || minDistance > r.maxDistanceKM {
		return "", false, nil
	}
	return FormatPlace(nearest.Name, nearest.Admin1Code, nearest.CountryCode), true, nil
}
