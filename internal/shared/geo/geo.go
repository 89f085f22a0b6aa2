package geo

import "math"

const earthRadiusKm = 6371

// HaversineKm returns the great-circle distance between two points in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Stop is a candidate destination for proximity resolution. Lat/Lng are nil
// when the backing directory record carries no coordinates.
type Stop struct {
	ID   string
	Type string
	Name string
	Lat  *float64
	Lng  *float64
}

// NearestResult identifies the stop closest to a location point.
type NearestResult struct {
	ID         string  `json:"directoryId"`
	Type       string  `json:"directoryType"`
	Name       string  `json:"name"`
	DistanceKm float64 `json:"distanceKm"`
}

// NearestStop resolves the closest stop to (lat, lng) by linear scan.
// Stops without coordinates are skipped. Ties keep the earliest stop in the
// slice, so callers control the tie-break by listing order. Returns nil when
// no stop has coordinates.
func NearestStop(lat, lng float64, stops []Stop) *NearestResult {
	var best *NearestResult
	for _, stop := range stops {
		if stop.Lat == nil || stop.Lng == nil {
			continue
		}
		d := HaversineKm(lat, lng, *stop.Lat, *stop.Lng)
		if best == nil || d < best.DistanceKm {
			best = &NearestResult{
				ID:         stop.ID,
				Type:       stop.Type,
				Name:       stop.Name,
				DistanceKm: d,
			}
		}
	}
	return best
}
