// README: Road distance lookups through the Google Maps Distance Matrix API.
package maps

import (
	"context"
	"fmt"
	"strconv"

	"googlemaps.github.io/maps"

	"ridebook/internal/types"
)

type DistanceService struct {
	client *maps.Client
}

func NewDistanceService(apiKey string) (*DistanceService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &DistanceService{client: client}, nil
}

// DistanceKm returns the driving distance between two points in kilometres.
func (s *DistanceService) DistanceKm(ctx context.Context, from, to types.Point) (float64, error) {
	resp, err := s.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{formatLatLng(from)},
		Destinations: []string{formatLatLng(to)},
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsMetric,
	})
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}
	return firstElementKm(resp)
}

func firstElementKm(resp *maps.DistanceMatrixResponse) (float64, error) {
	if resp == nil || len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, fmt.Errorf("no route found")
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return 0, fmt.Errorf("no route found: %s", el.Status)
	}
	return float64(el.Distance.Meters) / 1000, nil
}

func formatLatLng(p types.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}
