package tracking

import (
	"time"

	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/shared/geo"
)

const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
)

// Address is an optional reverse-geocode result attached by the client.
type Address struct {
	Street     *string `json:"street,omitempty"`
	City       *string `json:"city,omitempty"`
	District   *string `json:"district,omitempty"`
	PostalCode *string `json:"postalCode,omitempty"`
	Country    *string `json:"country,omitempty"`
}

// LocationPoint is one recorded breadcrumb. NearestDirectory is resolved at
// insertion time and never recomputed.
type LocationPoint struct {
	Latitude         float64            `json:"latitude"`
	Longitude        float64            `json:"longitude"`
	Accuracy         *float64           `json:"accuracy,omitempty"`
	Speed            *float64           `json:"speed,omitempty"`
	Heading          *float64           `json:"heading,omitempty"`
	Timestamp        time.Time          `json:"timestamp"`
	Address          *Address           `json:"address,omitempty"`
	NearestDirectory *geo.NearestResult `json:"nearestDirectory,omitempty"`
}

type Summary struct {
	TotalDistanceKm      float64 `json:"totalDistanceKm"`
	TotalDurationMinutes float64 `json:"totalDurationMinutes"`
	AverageSpeedKmh      float64 `json:"averageSpeedKmh"`
	DirectoriesVisited   int     `json:"directoriesVisited"`
}

// Session is one tracking run for a (beatPlanId, userId) pair. Locations is
// hydrated only by breadcrumb queries; list endpoints leave it nil.
type Session struct {
	ID               string          `json:"id"`
	BeatPlanID       string          `json:"beatPlanId"`
	UserID           string          `json:"userId"`
	OrganizationID   string          `json:"organizationId"`
	Status           string          `json:"status"`
	SessionStartedAt time.Time       `json:"sessionStartedAt"`
	SessionEndedAt   *time.Time      `json:"sessionEndedAt,omitempty"`
	CurrentLocation  *LocationPoint  `json:"currentLocation,omitempty"`
	LocationsCount   int             `json:"locationsCount"`
	Locations        []LocationPoint `json:"locations,omitempty"`
	Summary          *Summary        `json:"summary,omitempty"`
}

// Snapshot is the point-in-time view sent to a new watcher. No historical
// breadcrumbs are pushed; those go through the breadcrumb query.
type Snapshot struct {
	SessionID       string         `json:"trackingSessionId"`
	BeatPlanID      string         `json:"beatPlanId"`
	UserID          string         `json:"userId"`
	Status          string         `json:"status"`
	StartedAt       time.Time      `json:"sessionStartedAt"`
	CurrentLocation *LocationPoint `json:"currentLocation,omitempty"`
	LocationsCount  int            `json:"locationsCount"`
}

// LocationInput is a validated update-location request.
type LocationInput struct {
	Latitude  float64
	Longitude float64
	Accuracy  *float64
	Speed     *float64
	Heading   *float64
	Timestamp time.Time
	Address   *Address
}
