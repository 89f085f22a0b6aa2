package stream

import (
	"encoding/json"
	"time"

	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/tracking"
	"github.com/go-playground/validator/v10"
)

// Inbound realtime message kinds.
const (
	MsgStartTracking  = "start-tracking"
	MsgUpdateLocation = "update-location"
	MsgPauseTracking  = "pause-tracking"
	MsgResumeTracking = "resume-tracking"
	MsgStopTracking   = "stop-tracking"
	MsgWatchBeatPlan  = "watch-beatplan"
	MsgUnwatch        = "unwatch-beatplan"
)

// Unicast reply kinds.
const (
	EventTrackingPaused  = "tracking-paused"
	EventTrackingResumed = "tracking-resumed"
	EventTrackingStopped = "tracking-stopped"
	EventWatchStarted    = "watch-started"
	EventTrackingError   = "tracking-error"
)

// Inbound is the request envelope read off the wire. Data is decoded into a
// tagged payload per event kind and validated before anything reaches the
// state machine.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type PlanRequest struct {
	BeatPlanID string `json:"beatPlanId" validate:"required"`
}

type LocationRequest struct {
	BeatPlanID string            `json:"beatPlanId" validate:"required"`
	Latitude   *float64          `json:"latitude" validate:"required,latitude"`
	Longitude  *float64          `json:"longitude" validate:"required,longitude"`
	Accuracy   *float64          `json:"accuracy"`
	Speed      *float64          `json:"speed"`
	Heading    *float64          `json:"heading"`
	Timestamp  *time.Time        `json:"timestamp"`
	Address    *tracking.Address `json:"address"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type WatchPayload struct {
	BeatPlanID    string             `json:"beatPlanId"`
	ActiveSession *tracking.Snapshot `json:"activeSession"`
}

var validate = validator.New()

func decodePayload[T any](raw json.RawMessage) (T, error) {
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, &tracking.ValidationError{Msg: "malformed payload"}
	}
	if err := validate.Struct(payload); err != nil {
		return payload, &tracking.ValidationError{Msg: err.Error()}
	}
	return payload, nil
}
