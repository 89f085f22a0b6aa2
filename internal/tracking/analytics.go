package tracking

import (
	"time"

	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/shared/geo"
)

// A breadcrumb whose nearest directory resolved inside this radius counts as
// a visit to that directory.
const visitRadiusKm = 0.2

// ComputeSummary produces the trip analytics for a finished session.
// Distance is the haversine sum over consecutive breadcrumbs in receipt
// order. Zero-duration sessions report zero average speed.
func ComputeSummary(points []LocationPoint, startedAt, endedAt time.Time) Summary {
	var distanceKm float64
	for i := 1; i < len(points); i++ {
		distanceKm += geo.HaversineKm(
			points[i-1].Latitude, points[i-1].Longitude,
			points[i].Latitude, points[i].Longitude,
		)
	}

	minutes := endedAt.Sub(startedAt).Minutes()
	if minutes < 0 {
		minutes = 0
	}

	var speedKmh float64
	if minutes > 0 {
		speedKmh = distanceKm / minutes * 60
	}

	visited := map[string]struct{}{}
	for _, p := range points {
		if p.NearestDirectory != nil && p.NearestDirectory.DistanceKm <= visitRadiusKm {
			visited[p.NearestDirectory.ID] = struct{}{}
		}
	}

	return Summary{
		TotalDistanceKm:      distanceKm,
		TotalDurationMinutes: minutes,
		AverageSpeedKmh:      speedKmh,
		DirectoriesVisited:   len(visited),
	}
}
