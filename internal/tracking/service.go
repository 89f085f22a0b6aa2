package tracking

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/shared/geo"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Room event kinds fanned out by the broadcaster.
const (
	EventTrackingStarted = "tracking-started"
	EventLocationUpdate  = "location-update"
	EventStatusUpdate    = "tracking-status-update"
)

// PlanSource is the beat-plan boundary the state machine depends on.
// Implementations signal an absent plan with pgx.ErrNoRows.
type PlanSource interface {
	Exists(ctx context.Context, orgID, beatPlanID string) (bool, error)
	IsAssigned(ctx context.Context, orgID, beatPlanID, userID string) (bool, error)
	Stops(ctx context.Context, orgID, beatPlanID string) ([]geo.Stop, error)
}

// Broadcaster fans room events out to watchers. Dispatch is best-effort and
// never fails the originating operation.
type Broadcaster interface {
	Broadcast(beatPlanID, event string, payload any)
}

type StartedEvent struct {
	TrackingSessionID string    `json:"trackingSessionId"`
	BeatPlanID        string    `json:"beatPlanId"`
	UserID            string    `json:"userId"`
	SessionStartedAt  time.Time `json:"sessionStartedAt"`
}

type LocationEvent struct {
	BeatPlanID       string             `json:"beatPlanId"`
	UserID           string             `json:"userId"`
	Location         LocationPoint      `json:"location"`
	NearestDirectory *geo.NearestResult `json:"nearestDirectory,omitempty"`
}

type StatusEvent struct {
	TrackingSessionID string   `json:"trackingSessionId"`
	BeatPlanID        string   `json:"beatPlanId"`
	UserID            string   `json:"userId"`
	Status            string   `json:"status"`
	Summary           *Summary `json:"summary,omitempty"`
}

// Service is the tracking-session state machine. Mutating operations on one
// (beatPlanId, userId) key are serialized through a per-key lock; the partial
// unique index in the store backs that up across processes.
type Service struct {
	store       *Store
	plans       PlanSource
	registry    *Registry
	broadcaster Broadcaster

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

func NewService(store *Store, plans PlanSource, registry *Registry, b Broadcaster) *Service {
	return &Service{
		store:       store,
		plans:       plans,
		registry:    registry,
		broadcaster: b,
		keyLocks:    map[string]*sync.Mutex{},
	}
}

func (s *Service) lockKey(beatPlanID, userID string) func() {
	key := beatPlanID + ":" + userID
	s.mu.Lock()
	l, ok := s.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Service) broadcast(beatPlanID, event string, payload any) {
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(beatPlanID, event, payload)
	}
}

// Start creates an ACTIVE session for (plan, user). Fails when the user is
// not assigned to the plan or a session is already open for the key.
func (s *Service) Start(ctx context.Context, orgID, userID, beatPlanID string) (Session, error) {
	unlock := s.lockKey(beatPlanID, userID)
	defer unlock()

	assigned, err := s.plans.IsAssigned(ctx, orgID, beatPlanID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, &NotFoundError{Msg: "beat plan not found"}
		}
		return Session{}, &PersistenceError{Op: "check assignment", Err: err}
	}
	if !assigned {
		return Session{}, &StateError{Msg: "user is not assigned to this beat plan"}
	}

	if _, err := s.store.FindOpen(ctx, orgID, beatPlanID, userID); err == nil {
		return Session{}, &StateError{Msg: "tracking already in progress for this beat plan"}
	} else if !isNotFound(err) {
		return Session{}, err
	}

	sess := Session{
		ID:               uuid.NewString(),
		BeatPlanID:       beatPlanID,
		UserID:           userID,
		OrganizationID:   orgID,
		Status:           StatusActive,
		SessionStartedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return Session{}, err
	}

	s.registry.Track(ctx, beatPlanID, RegistryEntry{
		SessionID:      sess.ID,
		UserID:         userID,
		OrganizationID: orgID,
	})

	s.broadcast(beatPlanID, EventTrackingStarted, StartedEvent{
		TrackingSessionID: sess.ID,
		BeatPlanID:        beatPlanID,
		UserID:            userID,
		SessionStartedAt:  sess.SessionStartedAt,
	})
	return sess, nil
}

// UpdateLocation resolves the nearest stop, appends one breadcrumb, and
// refreshes the current location. Only ACTIVE sessions accept updates.
// Breadcrumbs keep receipt order; out-of-order client timestamps are stored
// as received.
func (s *Service) UpdateLocation(ctx context.Context, orgID, userID, beatPlanID string, in LocationInput) (LocationPoint, error) {
	if err := validateCoordinates(in.Latitude, in.Longitude); err != nil {
		return LocationPoint{}, err
	}

	unlock := s.lockKey(beatPlanID, userID)
	defer unlock()

	sess, err := s.store.FindOpen(ctx, orgID, beatPlanID, userID)
	if err != nil {
		if isNotFound(err) {
			return LocationPoint{}, &NotFoundError{Msg: "no active tracking session for this beat plan"}
		}
		return LocationPoint{}, err
	}
	if sess.Status != StatusActive {
		return LocationPoint{}, &StateError{Msg: "tracking session is paused"}
	}

	stops, err := s.plans.Stops(ctx, orgID, beatPlanID)
	if err != nil {
		return LocationPoint{}, &PersistenceError{Op: "load beat plan stops", Err: err}
	}

	point := LocationPoint{
		Latitude:         in.Latitude,
		Longitude:        in.Longitude,
		Accuracy:         in.Accuracy,
		Speed:            in.Speed,
		Heading:          in.Heading,
		Timestamp:        in.Timestamp,
		Address:          in.Address,
		NearestDirectory: geo.NearestStop(in.Latitude, in.Longitude, stops),
	}
	if point.Timestamp.IsZero() {
		point.Timestamp = time.Now().UTC()
	}

	// A failed write discards this point; the client is told via
	// tracking-error and nothing is retried server-side.
	if err := s.store.AppendLocation(ctx, orgID, sess.ID, point); err != nil {
		return LocationPoint{}, err
	}

	s.broadcast(beatPlanID, EventLocationUpdate, LocationEvent{
		BeatPlanID:       beatPlanID,
		UserID:           userID,
		Location:         point,
		NearestDirectory: point.NearestDirectory,
	})
	return point, nil
}

// Pause transitions ACTIVE -> PAUSED.
func (s *Service) Pause(ctx context.Context, orgID, userID, beatPlanID string) (Session, error) {
	return s.setStatus(ctx, orgID, userID, beatPlanID, StatusActive, StatusPaused, "tracking session is not active")
}

// Resume transitions PAUSED -> ACTIVE.
func (s *Service) Resume(ctx context.Context, orgID, userID, beatPlanID string) (Session, error) {
	return s.setStatus(ctx, orgID, userID, beatPlanID, StatusPaused, StatusActive, "tracking session is not paused")
}

func (s *Service) setStatus(ctx context.Context, orgID, userID, beatPlanID, from, to, stateMsg string) (Session, error) {
	unlock := s.lockKey(beatPlanID, userID)
	defer unlock()

	sess, err := s.store.FindOpen(ctx, orgID, beatPlanID, userID)
	if err != nil {
		return Session{}, err
	}
	if sess.Status != from {
		return Session{}, &StateError{Msg: stateMsg}
	}
	if err := s.store.UpdateStatus(ctx, orgID, sess.ID, to); err != nil {
		return Session{}, err
	}
	sess.Status = to

	s.broadcast(beatPlanID, EventStatusUpdate, StatusEvent{
		TrackingSessionID: sess.ID,
		BeatPlanID:        beatPlanID,
		UserID:            userID,
		Status:            to,
	})
	return sess, nil
}

// Stop completes an ACTIVE or PAUSED session and computes the summary exactly
// once. COMPLETED is terminal: a second stop finds no open session and fails
// without touching the stored summary.
func (s *Service) Stop(ctx context.Context, orgID, userID, beatPlanID string) (Session, error) {
	unlock := s.lockKey(beatPlanID, userID)
	defer unlock()

	sess, err := s.store.FindOpen(ctx, orgID, beatPlanID, userID)
	if err != nil {
		return Session{}, err
	}

	points, err := s.store.Locations(ctx, orgID, sess.ID)
	if err != nil {
		return Session{}, err
	}

	endedAt := time.Now().UTC()
	sum := ComputeSummary(points, sess.SessionStartedAt, endedAt)
	if err := s.store.Complete(ctx, orgID, sess.ID, endedAt, sum); err != nil {
		return Session{}, err
	}

	s.registry.Untrack(ctx, beatPlanID)

	sess.Status = StatusCompleted
	sess.SessionEndedAt = &endedAt
	sess.Summary = &sum

	s.broadcast(beatPlanID, EventStatusUpdate, StatusEvent{
		TrackingSessionID: sess.ID,
		BeatPlanID:        beatPlanID,
		UserID:            userID,
		Status:            StatusCompleted,
		Summary:           &sum,
	})
	return sess, nil
}

// WatchSnapshot returns the point-in-time view for a new watcher, or nil when
// no session is open on the plan. The plan itself must be visible to the
// tenant.
func (s *Service) WatchSnapshot(ctx context.Context, orgID, beatPlanID string) (*Snapshot, error) {
	visible, err := s.plans.Exists(ctx, orgID, beatPlanID)
	if err != nil {
		return nil, &PersistenceError{Op: "check beat plan", Err: err}
	}
	if !visible {
		return nil, &NotFoundError{Msg: "beat plan not found"}
	}

	sess, err := s.store.FindOpenByPlan(ctx, orgID, beatPlanID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &Snapshot{
		SessionID:       sess.ID,
		BeatPlanID:      sess.BeatPlanID,
		UserID:          sess.UserID,
		Status:          sess.Status,
		StartedAt:       sess.SessionStartedAt,
		CurrentLocation: sess.CurrentLocation,
		LocationsCount:  sess.LocationsCount,
	}, nil
}

// CurrentSession returns the open session on a plan.
func (s *Service) CurrentSession(ctx context.Context, orgID, beatPlanID string) (Session, error) {
	return s.store.FindOpenByPlan(ctx, orgID, beatPlanID)
}

// History returns all sessions recorded against a plan.
func (s *Service) History(ctx context.Context, orgID, beatPlanID string) ([]Session, error) {
	return s.store.History(ctx, orgID, beatPlanID)
}

// Breadcrumbs returns a session's full location trail.
func (s *Service) Breadcrumbs(ctx context.Context, orgID, sessionID string) ([]LocationPoint, error) {
	if _, err := s.store.GetByID(ctx, orgID, sessionID); err != nil {
		return nil, err
	}
	return s.store.Locations(ctx, orgID, sessionID)
}

// CurrentLocation returns a session's last known point, which may be nil.
func (s *Service) CurrentLocation(ctx context.Context, orgID, sessionID string) (*LocationPoint, error) {
	sess, err := s.store.GetByID(ctx, orgID, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.CurrentLocation, nil
}

// SessionSummary returns the stored summary for a completed session. A
// completed session whose stored distance is zero is recomputed from its
// breadcrumbs and persisted, which also re-runs for legitimately zero-distance
// trips.
func (s *Service) SessionSummary(ctx context.Context, orgID, sessionID string) (Summary, error) {
	sess, err := s.store.GetByID(ctx, orgID, sessionID)
	if err != nil {
		return Summary{}, err
	}
	if sess.Status != StatusCompleted {
		return Summary{}, &StateError{Msg: "tracking session is not completed"}
	}
	if sess.Summary != nil && sess.Summary.TotalDistanceKm > 0 {
		return *sess.Summary, nil
	}

	points, err := s.store.Locations(ctx, orgID, sessionID)
	if err != nil {
		return Summary{}, err
	}
	endedAt := sess.SessionStartedAt
	if sess.SessionEndedAt != nil {
		endedAt = *sess.SessionEndedAt
	}
	sum := ComputeSummary(points, sess.SessionStartedAt, endedAt)
	if err := s.store.SaveSummary(ctx, orgID, sessionID, sum); err != nil {
		return Summary{}, err
	}
	return sum, nil
}

// ActiveSessions lists every open session in the tenant.
func (s *Service) ActiveSessions(ctx context.Context, orgID string) ([]Session, error) {
	return s.store.OpenSessions(ctx, orgID)
}

// DeleteSession removes a session outside the state machine. Administrative
// use only.
func (s *Service) DeleteSession(ctx context.Context, orgID, sessionID string) error {
	sess, err := s.store.GetByID(ctx, orgID, sessionID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, orgID, sessionID); err != nil {
		return err
	}
	if sess.Status != StatusCompleted {
		// Only drop the routing entry if it points at this session; the
		// plan may have routed to another tracker since.
		if entry, ok := s.registry.Lookup(ctx, sess.BeatPlanID); ok && entry.SessionID == sess.ID {
			s.registry.Untrack(ctx, sess.BeatPlanID)
		}
	}
	return nil
}

// DropRouting removes the advisory routing entry when a tracker disconnects.
// The session itself stays open until an explicit stop.
func (s *Service) DropRouting(ctx context.Context, beatPlanID string) {
	s.registry.Untrack(ctx, beatPlanID)
}

// RebuildRegistry repopulates the routing cache from the store, used after a
// process restart. The org filter is optional; empty means all tenants.
func (s *Service) RebuildRegistry(ctx context.Context, orgID string) error {
	sessions, err := s.store.OpenSessionsAll(ctx, orgID)
	if err != nil {
		return err
	}
	s.registry.Rebuild(ctx, sessions)
	return nil
}

func validateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return &ValidationError{Msg: "latitude and longitude must be finite"}
	}
	if lat < -90 || lat > 90 {
		return &ValidationError{Msg: "latitude out of range"}
	}
	if lng < -180 || lng > 180 {
		return &ValidationError{Msg: "longitude out of range"}
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
