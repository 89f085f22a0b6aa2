package directory

import (
	"context"

	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/db"
	"github.com/google/uuid"
)

type Service struct {
	db db.Querier
}

func NewService(q db.Querier) *Service {
	return &Service{db: q}
}

func (s *Service) Create(ctx context.Context, input Directory) (Directory, error) {
	input.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO directories (id, organization_id, type, name, latitude, longitude)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, input.ID, input.OrganizationID, input.Type, input.Name, input.Latitude, input.Longitude)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Directory{}, err
	}
	return input, nil
}

func (s *Service) Get(ctx context.Context, orgID, id string) (Directory, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, organization_id, type, name, latitude, longitude, created_at
		FROM directories WHERE organization_id=$1 AND id=$2
	`, orgID, id)
	var d Directory
	if err := row.Scan(&d.ID, &d.OrganizationID, &d.Type, &d.Name, &d.Latitude, &d.Longitude, &d.CreatedAt); err != nil {
		return Directory{}, err
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, orgID string) ([]Directory, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, organization_id, type, name, latitude, longitude, created_at
		FROM directories WHERE organization_id=$1
		ORDER BY CASE type WHEN 'party' THEN 1 WHEN 'site' THEN 2 ELSE 3 END, created_at
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dirs []Directory
	for rows.Next() {
		var d Directory
		if err := rows.Scan(&d.ID, &d.OrganizationID, &d.Type, &d.Name, &d.Latitude, &d.Longitude, &d.CreatedAt); err != nil {
			return nil, err
		}
		dirs = append(dirs, d)
	}
	return dirs, nil
}
