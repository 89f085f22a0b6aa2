package beatplan

import (
	"context"
	"time"

	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/db"
	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/shared/geo"
	"github.com/google/uuid"
)

type Service struct {
	db db.Querier
}

func NewService(q db.Querier) *Service {
	return &Service{db: q}
}

func (s *Service) Create(ctx context.Context, input BeatPlan) (BeatPlan, error) {
	input.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO beat_plans (id, organization_id, name, start_date, end_date, created_by)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, input.ID, input.OrganizationID, input.Name, timePtr(input.StartDate), timePtr(input.EndDate), input.CreatedBy)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return BeatPlan{}, err
	}
	return input, nil
}

func (s *Service) Get(ctx context.Context, orgID, id string) (BeatPlan, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, organization_id, name, start_date, end_date, created_by, created_at
		FROM beat_plans WHERE organization_id=$1 AND id=$2
	`, orgID, id)
	var plan BeatPlan
	if err := row.Scan(&plan.ID, &plan.OrganizationID, &plan.Name, &plan.StartDate, &plan.EndDate, &plan.CreatedBy, &plan.CreatedAt); err != nil {
		return BeatPlan{}, err
	}
	return plan, nil
}

func (s *Service) Exists(ctx context.Context, orgID, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM beat_plans WHERE organization_id=$1 AND id=$2)
	`, orgID, id).Scan(&exists)
	return exists, err
}

func (s *Service) Assign(ctx context.Context, beatPlanID, userID string) (Assignment, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO beat_plan_assignees (beat_plan_id, user_id)
		VALUES ($1,$2)
		ON CONFLICT (beat_plan_id, user_id) DO UPDATE SET user_id=EXCLUDED.user_id
		RETURNING assigned_at
	`, beatPlanID, userID)
	assignment := Assignment{BeatPlanID: beatPlanID, UserID: userID}
	if err := row.Scan(&assignment.AssignedAt); err != nil {
		return Assignment{}, err
	}
	return assignment, nil
}

func (s *Service) Assignees(ctx context.Context, beatPlanID string) ([]Assignment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT beat_plan_id, user_id, assigned_at
		FROM beat_plan_assignees WHERE beat_plan_id=$1
		ORDER BY assigned_at
	`, beatPlanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.BeatPlanID, &a.UserID, &a.AssignedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, nil
}

// IsAssigned reports whether the user is on the plan's employee list. An
// absent plan surfaces as pgx.ErrNoRows from the first query.
func (s *Service) IsAssigned(ctx context.Context, orgID, beatPlanID, userID string) (bool, error) {
	var planID string
	if err := s.db.QueryRow(ctx, `
		SELECT id FROM beat_plans WHERE organization_id=$1 AND id=$2
	`, orgID, beatPlanID).Scan(&planID); err != nil {
		return false, err
	}

	var assigned bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM beat_plan_assignees WHERE beat_plan_id=$1 AND user_id=$2)
	`, beatPlanID, userID).Scan(&assigned)
	return assigned, err
}

func (s *Service) AddStop(ctx context.Context, ref StopRef) (StopRef, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO beat_plan_stops (beat_plan_id, directory_id, position)
		VALUES ($1,$2,$3)
		ON CONFLICT (beat_plan_id, directory_id) DO UPDATE SET position=EXCLUDED.position
	`, ref.BeatPlanID, ref.DirectoryID, ref.Position)
	if err != nil {
		return StopRef{}, err
	}
	return ref, nil
}

// Stops lists the plan's stops in canonical order: parties, then sites, then
// prospects, then listing position. The proximity resolver's tie-break
// depends on this ordering.
func (s *Service) Stops(ctx context.Context, orgID, beatPlanID string) ([]geo.Stop, error) {
	rows, err := s.db.Query(ctx, `
		SELECT d.id, d.type, d.name, d.latitude, d.longitude
		FROM beat_plan_stops bps
		JOIN directories d ON d.id = bps.directory_id
		JOIN beat_plans bp ON bp.id = bps.beat_plan_id
		WHERE bp.organization_id=$1 AND bps.beat_plan_id=$2
		ORDER BY CASE d.type WHEN 'party' THEN 1 WHEN 'site' THEN 2 ELSE 3 END, bps.position
	`, orgID, beatPlanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []geo.Stop
	for rows.Next() {
		var stop geo.Stop
		if err := rows.Scan(&stop.ID, &stop.Type, &stop.Name, &stop.Lat, &stop.Lng); err != nil {
			return nil, err
		}
		stops = append(stops, stop)
	}
	return stops, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
