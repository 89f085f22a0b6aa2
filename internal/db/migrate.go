package db

import (
	"errors"
	"fmt"

	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies pending schema migrations from cfg.MigrationsDir.
// Already-at-latest is not an error.
func Migrate(cfg config.Config) error {
	if cfg.MigrationsDir == "" {
		return nil
	}

	m, err := migrate.New("file://"+cfg.MigrationsDir, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
