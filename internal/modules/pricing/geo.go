package pricing

import (
	"context"
	"math"

	"ridebook/internal/types"
)

const earthRadiusKm = 6371.0

// HaversineDistance is the offline DistanceProvider.
type HaversineDistance struct{}

func (HaversineDistance) DistanceKm(_ context.Context, from, to types.Point) (float64, error) {
	return haversineKm(from.Lat, from.Lng, to.Lat, to.Lng), nil
}

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func validPoint(p types.Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
