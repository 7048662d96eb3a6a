package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,

	// Operator actions taken from the dashboard. camera_id is the backend id
	// and is not a foreign key: cameras live in the recognition backend.
	`CREATE TABLE IF NOT EXISTS dashboard_activity (
		id          UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		action      TEXT NOT NULL,
		camera_id   INT,
		subject     TEXT NOT NULL DEFAULT '',
		outcome     TEXT NOT NULL,
		detail      JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_dashboard_activity_action ON dashboard_activity(action);`,
	`CREATE INDEX IF NOT EXISTS idx_dashboard_activity_created_at ON dashboard_activity(created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_dashboard_activity_camera_id ON dashboard_activity(camera_id) WHERE camera_id IS NOT NULL;`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
