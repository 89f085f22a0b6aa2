package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store is the durable source of truth for tracking sessions. Every query is
// scoped by organization_id.
type Store struct {
	db db.Querier
}

func NewStore(q db.Querier) *Store {
	return &Store{db: q}
}

const sessionColumns = `id, beat_plan_id, user_id, organization_id, status, started_at, ended_at,
	current_location, locations_count, total_distance_km, total_duration_minutes, average_speed_kmh, directories_visited`

// Create inserts a fresh ACTIVE session. A concurrent open session for the
// same (beat plan, user) trips the partial unique index and surfaces as a
// StateError, which closes the check-then-create race.
func (st *Store) Create(ctx context.Context, s Session) error {
	_, err := st.db.Exec(ctx, `
		INSERT INTO tracking_sessions (id, beat_plan_id, user_id, organization_id, status, started_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, s.ID, s.BeatPlanID, s.UserID, s.OrganizationID, s.Status, s.SessionStartedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return &StateError{Msg: "tracking already in progress for this beat plan"}
		}
		return &PersistenceError{Op: "create session", Err: err}
	}
	return nil
}

// FindOpen returns the ACTIVE or PAUSED session for (plan, user), if any.
func (st *Store) FindOpen(ctx context.Context, orgID, beatPlanID, userID string) (Session, error) {
	row := st.db.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM tracking_sessions
		WHERE organization_id=$1 AND beat_plan_id=$2 AND user_id=$3 AND status IN ('active','paused')
	`, orgID, beatPlanID, userID)
	return scanSession(row, "find open session")
}

// FindOpenByPlan returns the open session on a plan regardless of tracker.
func (st *Store) FindOpenByPlan(ctx context.Context, orgID, beatPlanID string) (Session, error) {
	row := st.db.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM tracking_sessions
		WHERE organization_id=$1 AND beat_plan_id=$2 AND status IN ('active','paused')
		ORDER BY started_at DESC
		LIMIT 1
	`, orgID, beatPlanID)
	return scanSession(row, "find open session by plan")
}

func (st *Store) GetByID(ctx context.Context, orgID, id string) (Session, error) {
	row := st.db.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM tracking_sessions
		WHERE organization_id=$1 AND id=$2
	`, orgID, id)
	return scanSession(row, "get session")
}

// AppendLocation records one breadcrumb and refreshes the denormalized
// current location in one transaction, so locations_count can never drift
// from the trail. Breadcrumbs are append-only; receipt order is preserved by
// the serial primary key.
func (st *Store) AppendLocation(ctx context.Context, orgID, sessionID string, p LocationPoint) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return &PersistenceError{Op: "encode location", Err: err}
	}

	tx, err := st.db.Begin(ctx)
	if err != nil {
		return &PersistenceError{Op: "append location", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO session_locations (session_id, point)
		VALUES ($1,$2)
	`, sessionID, payload); err != nil {
		return &PersistenceError{Op: "append location", Err: err}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE tracking_sessions
		SET current_location=$3, locations_count=locations_count+1
		WHERE organization_id=$1 AND id=$2
	`, orgID, sessionID, payload); err != nil {
		return &PersistenceError{Op: "update current location", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &PersistenceError{Op: "append location", Err: err}
	}
	return nil
}

func (st *Store) UpdateStatus(ctx context.Context, orgID, id, status string) error {
	tag, err := st.db.Exec(ctx, `
		UPDATE tracking_sessions SET status=$3
		WHERE organization_id=$1 AND id=$2
	`, orgID, id, status)
	if err != nil {
		return &PersistenceError{Op: "update status", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Msg: "tracking session not found"}
	}
	return nil
}

// Complete finalizes a session: terminal status, end time, and the summary
// computed exactly once at the stop transition.
func (st *Store) Complete(ctx context.Context, orgID, id string, endedAt time.Time, sum Summary) error {
	tag, err := st.db.Exec(ctx, `
		UPDATE tracking_sessions
		SET status='completed', ended_at=$3, total_distance_km=$4,
		    total_duration_minutes=$5, average_speed_kmh=$6, directories_visited=$7
		WHERE organization_id=$1 AND id=$2
	`, orgID, id, endedAt, sum.TotalDistanceKm, sum.TotalDurationMinutes, sum.AverageSpeedKmh, sum.DirectoriesVisited)
	if err != nil {
		return &PersistenceError{Op: "complete session", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Msg: "tracking session not found"}
	}
	return nil
}

// SaveSummary persists a lazily recomputed summary for a completed session.
func (st *Store) SaveSummary(ctx context.Context, orgID, id string, sum Summary) error {
	_, err := st.db.Exec(ctx, `
		UPDATE tracking_sessions
		SET total_distance_km=$3, total_duration_minutes=$4, average_speed_kmh=$5, directories_visited=$6
		WHERE organization_id=$1 AND id=$2
	`, orgID, id, sum.TotalDistanceKm, sum.TotalDurationMinutes, sum.AverageSpeedKmh, sum.DirectoriesVisited)
	if err != nil {
		return &PersistenceError{Op: "save summary", Err: err}
	}
	return nil
}

// Locations returns the full breadcrumb trail in receipt order.
func (st *Store) Locations(ctx context.Context, orgID, sessionID string) ([]LocationPoint, error) {
	rows, err := st.db.Query(ctx, `
		SELECT l.point
		FROM session_locations l
		JOIN tracking_sessions s ON s.id = l.session_id
		WHERE s.organization_id=$1 AND l.session_id=$2
		ORDER BY l.id
	`, orgID, sessionID)
	if err != nil {
		return nil, &PersistenceError{Op: "load locations", Err: err}
	}
	defer rows.Close()

	var points []LocationPoint
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, &PersistenceError{Op: "scan location", Err: err}
		}
		var p LocationPoint
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &PersistenceError{Op: "decode location", Err: err}
		}
		points = append(points, p)
	}
	return points, nil
}

// History returns all sessions recorded against a plan, newest first.
func (st *Store) History(ctx context.Context, orgID, beatPlanID string) ([]Session, error) {
	rows, err := st.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM tracking_sessions
		WHERE organization_id=$1 AND beat_plan_id=$2
		ORDER BY started_at DESC
	`, orgID, beatPlanID)
	if err != nil {
		return nil, &PersistenceError{Op: "load history", Err: err}
	}
	defer rows.Close()
	return collectSessions(rows)
}

// OpenSessions returns every ACTIVE or PAUSED session in the tenant. Also
// the rebuild source for the routing registry.
func (st *Store) OpenSessions(ctx context.Context, orgID string) ([]Session, error) {
	rows, err := st.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM tracking_sessions
		WHERE organization_id=$1 AND status IN ('active','paused')
		ORDER BY started_at DESC
	`, orgID)
	if err != nil {
		return nil, &PersistenceError{Op: "load open sessions", Err: err}
	}
	defer rows.Close()
	return collectSessions(rows)
}

// OpenSessionsAll is the registry rebuild source: open sessions across all
// tenants when orgID is empty, one tenant otherwise. Not exposed to tenant
// queries.
func (st *Store) OpenSessionsAll(ctx context.Context, orgID string) ([]Session, error) {
	if orgID != "" {
		return st.OpenSessions(ctx, orgID)
	}
	rows, err := st.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM tracking_sessions
		WHERE status IN ('active','paused')
		ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, &PersistenceError{Op: "load open sessions", Err: err}
	}
	defer rows.Close()
	return collectSessions(rows)
}

// Delete removes a session and its breadcrumbs, bypassing the state machine.
// Administrative use only.
func (st *Store) Delete(ctx context.Context, orgID, id string) error {
	if _, err := st.db.Exec(ctx, `
		DELETE FROM session_locations
		WHERE session_id IN (SELECT id FROM tracking_sessions WHERE organization_id=$1 AND id=$2)
	`, orgID, id); err != nil {
		return &PersistenceError{Op: "delete locations", Err: err}
	}

	tag, err := st.db.Exec(ctx, `
		DELETE FROM tracking_sessions WHERE organization_id=$1 AND id=$2
	`, orgID, id)
	if err != nil {
		return &PersistenceError{Op: "delete session", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Msg: "tracking session not found"}
	}
	return nil
}

func scanSession(row pgx.Row, op string) (Session, error) {
	s, err := scanSessionFrom(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, &NotFoundError{Msg: "tracking session not found"}
		}
		return Session{}, &PersistenceError{Op: op, Err: err}
	}
	return s, nil
}

func collectSessions(rows pgx.Rows) ([]Session, error) {
	var sessions []Session
	for rows.Next() {
		s, err := scanSessionFrom(rows.Scan)
		if err != nil {
			return nil, &PersistenceError{Op: "scan session", Err: err}
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func scanSessionFrom(scan func(dest ...any) error) (Session, error) {
	var (
		s       Session
		ended   *time.Time
		current []byte
		sum     Summary
	)
	if err := scan(&s.ID, &s.BeatPlanID, &s.UserID, &s.OrganizationID, &s.Status,
		&s.SessionStartedAt, &ended, &current, &s.LocationsCount,
		&sum.TotalDistanceKm, &sum.TotalDurationMinutes, &sum.AverageSpeedKmh, &sum.DirectoriesVisited); err != nil {
		return Session{}, err
	}
	s.SessionEndedAt = ended
	if len(current) > 0 {
		var p LocationPoint
		if err := json.Unmarshal(current, &p); err != nil {
			return Session{}, err
		}
		s.CurrentLocation = &p
	}
	if s.Status == StatusCompleted {
		s.Summary = &sum
	}
	return s, nil
}
