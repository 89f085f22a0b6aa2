package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/shared/geo"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
)

type planStub struct {
	exists   bool
	assigned bool
	stops    []geo.Stop
	err      error
}

func (p *planStub) Exists(_ context.Context, _, _ string) (bool, error) {
	return p.exists, p.err
}

func (p *planStub) IsAssigned(_ context.Context, _, _, _ string) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	return p.assigned, nil
}

func (p *planStub) Stops(_ context.Context, _, _ string) ([]geo.Stop, error) {
	return p.stops, p.err
}

type recordedEvent struct {
	room    string
	event   string
	payload any
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Broadcast(room, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{room: room, event: event, payload: payload})
}

func (r *recorder) last(t *testing.T) recordedEvent {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		t.Fatalf("no events broadcast")
	}
	return r.events[len(r.events)-1]
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

var sessionCols = []string{
	"id", "beat_plan_id", "user_id", "organization_id", "status", "started_at", "ended_at",
	"current_location", "locations_count", "total_distance_km", "total_duration_minutes",
	"average_speed_kmh", "directories_visited",
}

func sessionRow(id, status string, startedAt time.Time, count int, distanceKm float64, current []byte) *pgxmock.Rows {
	var ended *time.Time
	if status == StatusCompleted {
		t := startedAt.Add(time.Hour)
		ended = &t
	}
	return pgxmock.NewRows(sessionCols).
		AddRow(id, "plan-1", "user-1", "org-1", status, startedAt, ended, current, count, distanceKm, 0.0, 0.0, 0)
}

func locationJSON(t *testing.T, lat, lng float64, nearest *geo.NearestResult) []byte {
	t.Helper()
	raw, err := json.Marshal(LocationPoint{
		Latitude:         lat,
		Longitude:        lng,
		Timestamp:        time.Now(),
		NearestDirectory: nearest,
	})
	if err != nil {
		t.Fatalf("marshal point: %v", err)
	}
	return raw
}

func TestStartCreatesActiveSession(t *testing.T) {
	mock := newMock(t)
	registry := NewRegistry(nil)
	rec := &recorder{}
	svc := NewService(NewStore(mock), &planStub{assigned: true}, registry, rec)

	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "plan-1", "user-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO tracking_sessions`).
		WithArgs(pgxmock.AnyArg(), "plan-1", "user-1", "org-1", StatusActive, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sess, err := svc.Start(context.Background(), "org-1", "user-1", "plan-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sess.Status != StatusActive || sess.ID == "" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	entry, ok := registry.Lookup(context.Background(), "plan-1")
	if !ok || entry.SessionID != sess.ID {
		t.Fatalf("expected registry entry, got %+v", entry)
	}

	ev := rec.last(t)
	if ev.room != "plan-1" || ev.event != EventTrackingStarted {
		t.Fatalf("unexpected broadcast: %+v", ev)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStartNotAssigned(t *testing.T) {
	mock := newMock(t)
	svc := NewService(NewStore(mock), &planStub{assigned: false}, NewRegistry(nil), nil)

	_, err := svc.Start(context.Background(), "org-1", "user-2", "plan-1")
	var st *StateError
	if err == nil || !asError(err, &st) {
		t.Fatalf("expected StateError, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no session should be written: %v", err)
	}
}

func TestStartPlanMissing(t *testing.T) {
	mock := newMock(t)
	svc := NewService(NewStore(mock), &planStub{err: pgx.ErrNoRows}, NewRegistry(nil), nil)

	_, err := svc.Start(context.Background(), "org-1", "user-1", "plan-x")
	var nf *NotFoundError
	if err == nil || !asError(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestStartAlreadyOpen(t *testing.T) {
	mock := newMock(t)
	svc := NewService(NewStore(mock), &planStub{assigned: true}, NewRegistry(nil), nil)

	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "plan-1", "user-1").
		WillReturnRows(sessionRow("sess-1", StatusActive, time.Now(), 0, 0, nil))

	_, err := svc.Start(context.Background(), "org-1", "user-1", "plan-1")
	var st *StateError
	if err == nil || !asError(err, &st) {
		t.Fatalf("expected StateError, got %v", err)
	}
}

func TestStartUniqueViolationMapsToStateError(t *testing.T) {
	mock := newMock(t)
	svc := NewService(NewStore(mock), &planStub{assigned: true}, NewRegistry(nil), nil)

	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "plan-1", "user-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO tracking_sessions`).
		WithArgs(pgxmock.AnyArg(), "plan-1", "user-1", "org-1", StatusActive, pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "tracking_sessions_open_key"})

	_, err := svc.Start(context.Background(), "org-1", "user-1", "plan-1")
	var st *StateError
	if err == nil || !asError(err, &st) {
		t.Fatalf("expected StateError, got %v", err)
	}
}

// Two racing starts for one (plan, user) must produce exactly one ACTIVE
// session; the loser is turned away by the unique index.
func TestConcurrentStartSingleWinner(t *testing.T) {
	mock := newMock(t)
	mock.MatchExpectationsInOrder(false)
	svc := NewService(NewStore(mock), &planStub{assigned: true}, NewRegistry(nil), nil)

	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`FROM tracking_sessions`).
			WithArgs("org-1", "plan-1", "user-1").
			WillReturnError(pgx.ErrNoRows)
	}
	mock.ExpectExec(`INSERT INTO tracking_sessions`).
		WithArgs(pgxmock.AnyArg(), "plan-1", "user-1", "org-1", StatusActive, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO tracking_sessions`).
		WithArgs(pgxmock.AnyArg(), "plan-1", "user-1", "org-1", StatusActive, pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Start(context.Background(), "org-1", "user-1", "plan-1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, failures int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		failures++
		var st *StateError
		if !asError(err, &st) {
			t.Fatalf("loser should see StateError, got %v", err)
		}
	}
	if successes != 1 || failures != 1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d failures", successes, failures)
	}
}

func TestUpdateLocationAppendsAndResolvesNearest(t *testing.T) {
	mock := newMock(t)
	rec := &recorder{}
	lat, lng := 27.7010, 85.3010
	plans := &planStub{stops: []geo.Stop{{ID: "party-1", Type: "party", Name: "New Road Traders", Lat: &lat, Lng: &lng}}}
	svc := NewService(NewStore(mock), plans, NewRegistry(nil), rec)

	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "plan-1", "user-1").
		WillReturnRows(sessionRow("sess-1", StatusActive, time.Now().Add(-time.Minute), 0, 0, nil))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO session_locations`).
		WithArgs("sess-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE tracking_sessions`).
		WithArgs("org-1", "sess-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	point, err := svc.UpdateLocation(context.Background(), "org-1", "user-1", "plan-1", LocationInput{
		Latitude:  27.7000,
		Longitude: 85.3000,
	})
	if err != nil {
		t.Fatalf("update location: %v", err)
	}
	if point.NearestDirectory == nil || point.NearestDirectory.ID != "party-1" {
		t.Fatalf("expected nearest directory, got %+v", point.NearestDirectory)
	}
	if math.Abs(point.NearestDirectory.DistanceKm-0.15) > 0.02 {
		t.Fatalf("unexpected distance: %v", point.NearestDirectory.DistanceKm)
	}

	ev := rec.last(t)
	if ev.event != EventLocationUpdate {
		t.Fatalf("expected location-update broadcast, got %s", ev.event)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// A failed current-location update rolls back the breadcrumb insert, so the
// denormalized count never drifts from the trail.
func TestUpdateLocationRollsBackOnPartialWrite(t *testing.T) {
	mock := newMock(t)
	svc := NewService(NewStore(mock), &planStub{}, NewRegistry(nil), nil)

	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "plan-1", "user-1").
		WillReturnRows(sessionRow("sess-1", StatusActive, time.Now().Add(-time.Minute), 0, 0, nil))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO session_locations`).
		WithArgs("sess-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE tracking_sessions`).
		WithArgs("org-1", "sess-1", pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := svc.UpdateLocation(context.Background(), "org-1", "user-1", "plan-1", LocationInput{
		Latitude:  27.7000,
		Longitude: 85.3000,
	})
	var pe *PersistenceError
	if err == nil || !asError(err, &pe) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expected rollback, got: %v", err)
	}
}

func TestUpdateLocationPausedSession(t *testing.T) {
	mock := newMock(t)
	svc := NewService(NewStore(mock), &planStub{}, NewRegistry(nil), nil)

	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "plan-1", "user-1").
		WillReturnRows(sessionRow("sess-1", StatusPaused, time.Now(), 0, 0, nil))

	_, err := svc.UpdateLocation(context.Background(), "org-1", "user-1", "plan-1", LocationInput{Latitude: 27.7, Longitude: 85.3})
	var st *StateError
	if err == nil || !asError(err, &st) {
		t.Fatalf("expected StateError, got %v", err)
	}
}

func TestUpdateLocationNoSession(t *testing.T) {
	mock := newMock(t)
	svc := NewService(NewStore(mock), &planStub{}, NewRegistry(nil), nil)

	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "plan-1", "user-1").
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.UpdateLocation(context.Background(), "org-1", "user-1", "plan-1", LocationInput{Latitude: 27.7, Longitude: 85.3})
	var nf *NotFoundError
	if err == nil || !asError(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestUpdateLocationRejectsBadCoordinates(t *testing.T) {
	mock := newMock(t)
	svc := NewService(NewStore(mock), &planStub{}, NewRegistry(nil), nil)

	cases := []LocationInput{
		{Latitude: math.NaN(), Longitude: 85.3},
		{Latitude: 27.7, Longitude: math.Inf(1)},
		{Latitude: 91, Longitude: 85.3},
		{Latitude: 27.7, Longitude: -181},
	}
	for _, in := range cases {
		_, err := svc.UpdateLocation(context.Background(), "org-1", "user-1", "plan-1", in)
		var va *ValidationError
		if err == nil || !asError(err, &va) {
			t.Fatalf("expected ValidationError for %+v, got %v", in, err)
		}
	}
	// rejected before any read or write
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected db activity: %v", err)
	}
}

func TestPauseAndResume(t *testing.T) {
	mock := newMock(t)
	rec := &recorder{}
	svc := NewService(NewStore(mock), &planStub{}, NewRegistry(nil), rec)

	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "plan-1", "user-1").
		WillReturnRows(sessionRow("sess-1", StatusActive, time.Now(), 2, 0, nil))
	mock.ExpectExec(`UPDATE tracking_sessions SET status`).
		WithArgs("org-1", "sess-1", StatusPaused).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	sess, err := svc.Pause(context.Background(), "org-1", "user-1", "plan-1")
	if err != nil || sess.Status != StatusPaused {
		t.Fatalf("pause: %v (%+v)", err, sess)
	}
	if ev := rec.last(t); ev.event != EventStatusUpdate {
		t.Fatalf("expected status update broadcast, got %s", ev.event)
	}

	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "plan-1", "user-1").
		WillReturnRows(sessionRow("sess-1", StatusPaused, time.Now(), 2, 0, nil))
	mock.ExpectExec(`UPDATE tracking_sessions SET status`).
		WithArgs("org-1", "sess-1", StatusActive).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	sess, err = svc.Resume(context.Background(), "org-1", "user-1", "plan-1")
	if err != nil || sess.Status != StatusActive {
		t.Fatalf("resume: %v (%+v)", err, sess)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPauseRequiresActive(t *testing.T) {
	mock := newMock(t)
	svc := NewService(NewStore(mock), &planStub{}, NewRegistry(nil), nil)

	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "plan-1", "user-1").
		WillReturnRows(sessionRow("sess-1", StatusPaused, time.Now(), 0, 0, nil))

	_, err := svc.Pause(context.Background(), "org-1", "user-1", "plan-1")
	var st *StateError
	if err == nil || !asError(err, &st) {
		t.Fatalf("expected StateError, got %v", err)
	}
}

func TestStopComputesSummary(t *testing.T) {
	mock := newMock(t)
	rec := &recorder{}
	registry := NewRegistry(nil)
	registry.Track(context.Background(), "plan-1", RegistryEntry{SessionID: "sess-1", UserID: "user-1"})
	svc := NewService(NewStore(mock), &planStub{}, registry, rec)

	started := time.Now().Add(-time.Hour)
	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "plan-1", "user-1").
		WillReturnRows(sessionRow("sess-1", StatusActive, started, 2, 0, nil))
	mock.ExpectQuery(`SELECT l.point`).
		WithArgs("org-1", "sess-1").
		WillReturnRows(pgxmock.NewRows([]string{"point"}).
			AddRow(locationJSON(t, 0, 0, nil)).
			AddRow(locationJSON(t, 1, 0, nil)))
	mock.ExpectExec(`UPDATE tracking_sessions`).
		WithArgs("org-1", "sess-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	sess, err := svc.Stop(context.Background(), "org-1", "user-1", "plan-1")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if sess.Status != StatusCompleted || sess.SessionEndedAt == nil || sess.Summary == nil {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.Summary.TotalDistanceKm < 100 {
		t.Fatalf("unexpected distance: %v", sess.Summary.TotalDistanceKm)
	}

	if _, ok := registry.Lookup(context.Background(), "plan-1"); ok {
		t.Fatalf("expected registry entry removed")
	}

	ev := rec.last(t)
	if ev.event != EventStatusUpdate {
		t.Fatalf("expected status update broadcast")
	}
	status, ok := ev.payload.(StatusEvent)
	if !ok || status.Status != StatusCompleted || status.Summary == nil {
		t.Fatalf("unexpected payload: %+v", ev.payload)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// A second stop finds no open session and fails before any write, so a
// previously computed summary is never clobbered.
func TestStopTwiceLeavesSummaryAlone(t *testing.T) {
	mock := newMock(t)
	svc := NewService(NewStore(mock), &planStub{}, NewRegistry(nil), nil)

	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "plan-1", "user-1").
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.Stop(context.Background(), "org-1", "user-1", "plan-1")
	var nf *NotFoundError
	if err == nil || !asError(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("nothing should be written: %v", err)
	}
}

func TestWatchSnapshot(t *testing.T) {
	mock := newMock(t)
	svc := NewService(NewStore(mock), &planStub{exists: true}, NewRegistry(nil), nil)

	current := locationJSON(t, 27.71, 85.31, nil)
	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "plan-1").
		WillReturnRows(sessionRow("sess-1", StatusActive, time.Now().Add(-10*time.Minute), 3, 0, current))

	snap, err := svc.WatchSnapshot(context.Background(), "org-1", "plan-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap == nil || snap.LocationsCount != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.CurrentLocation == nil || snap.CurrentLocation.Latitude != 27.71 {
		t.Fatalf("expected current location in snapshot, got %+v", snap.CurrentLocation)
	}
}

func TestWatchSnapshotNoOpenSession(t *testing.T) {
	mock := newMock(t)
	svc := NewService(NewStore(mock), &planStub{exists: true}, NewRegistry(nil), nil)

	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "plan-1").
		WillReturnError(pgx.ErrNoRows)

	snap, err := svc.WatchSnapshot(context.Background(), "org-1", "plan-1")
	if err != nil || snap != nil {
		t.Fatalf("expected nil snapshot, got %+v (%v)", snap, err)
	}
}

func TestWatchSnapshotPlanMissing(t *testing.T) {
	mock := newMock(t)
	svc := NewService(NewStore(mock), &planStub{exists: false}, NewRegistry(nil), nil)

	_, err := svc.WatchSnapshot(context.Background(), "org-1", "plan-x")
	var nf *NotFoundError
	if err == nil || !asError(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSessionSummaryLazyRecompute(t *testing.T) {
	mock := newMock(t)
	svc := NewService(NewStore(mock), &planStub{}, NewRegistry(nil), nil)

	started := time.Now().Add(-2 * time.Hour)
	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "sess-1").
		WillReturnRows(sessionRow("sess-1", StatusCompleted, started, 2, 0, nil))
	mock.ExpectQuery(`SELECT l.point`).
		WithArgs("org-1", "sess-1").
		WillReturnRows(pgxmock.NewRows([]string{"point"}).
			AddRow(locationJSON(t, 0, 0, nil)).
			AddRow(locationJSON(t, 1, 0, nil)))
	mock.ExpectExec(`UPDATE tracking_sessions`).
		WithArgs("org-1", "sess-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	sum, err := svc.SessionSummary(context.Background(), "org-1", "sess-1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalDistanceKm < 100 {
		t.Fatalf("expected recomputed distance, got %v", sum.TotalDistanceKm)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionSummaryStored(t *testing.T) {
	mock := newMock(t)
	svc := NewService(NewStore(mock), &planStub{}, NewRegistry(nil), nil)

	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "sess-1").
		WillReturnRows(sessionRow("sess-1", StatusCompleted, time.Now().Add(-time.Hour), 5, 12.5, nil))

	sum, err := svc.SessionSummary(context.Background(), "org-1", "sess-1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalDistanceKm != 12.5 {
		t.Fatalf("expected stored summary, got %v", sum.TotalDistanceKm)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no recompute expected: %v", err)
	}
}

func TestSessionSummaryRequiresCompleted(t *testing.T) {
	mock := newMock(t)
	svc := NewService(NewStore(mock), &planStub{}, NewRegistry(nil), nil)

	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "sess-1").
		WillReturnRows(sessionRow("sess-1", StatusActive, time.Now(), 1, 0, nil))

	_, err := svc.SessionSummary(context.Background(), "org-1", "sess-1")
	var st *StateError
	if err == nil || !asError(err, &st) {
		t.Fatalf("expected StateError, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	mock := newMock(t)
	registry := NewRegistry(nil)
	registry.Track(context.Background(), "plan-1", RegistryEntry{SessionID: "sess-1"})
	svc := NewService(NewStore(mock), &planStub{}, registry, nil)

	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "sess-1").
		WillReturnRows(sessionRow("sess-1", StatusActive, time.Now(), 1, 0, nil))
	mock.ExpectExec(`DELETE FROM session_locations`).
		WithArgs("org-1", "sess-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM tracking_sessions`).
		WithArgs("org-1", "sess-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := svc.DeleteSession(context.Background(), "org-1", "sess-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := registry.Lookup(context.Background(), "plan-1"); ok {
		t.Fatalf("expected registry entry removed")
	}
}

// Deleting one session must not drop a routing entry that points at a
// different tracker's session on the same plan.
func TestDeleteSessionKeepsOtherTrackersRouting(t *testing.T) {
	mock := newMock(t)
	registry := NewRegistry(nil)
	registry.Track(context.Background(), "plan-1", RegistryEntry{SessionID: "sess-other", UserID: "user-2"})
	svc := NewService(NewStore(mock), &planStub{}, registry, nil)

	mock.ExpectQuery(`FROM tracking_sessions`).
		WithArgs("org-1", "sess-1").
		WillReturnRows(sessionRow("sess-1", StatusActive, time.Now(), 1, 0, nil))
	mock.ExpectExec(`DELETE FROM session_locations`).
		WithArgs("org-1", "sess-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM tracking_sessions`).
		WithArgs("org-1", "sess-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := svc.DeleteSession(context.Background(), "org-1", "sess-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	entry, ok := registry.Lookup(context.Background(), "plan-1")
	if !ok || entry.SessionID != "sess-other" {
		t.Fatalf("routing entry for the other tracker should survive, got %+v ok=%v", entry, ok)
	}
}

func asError[T error](err error, target *T) bool {
	return errors.As(err, target)
}
