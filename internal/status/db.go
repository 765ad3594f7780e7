package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iot-sensordata/stageload/internal/runstate"
)

const (
	saveStatusQuery = `
INSERT INTO run_status (key, status, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`

	loadStatusQuery = `SELECT status FROM run_status WHERE key = $1`
)

// dbStatusPersistence stores the latest report as JSONB in the run_status table
type dbStatusPersistence struct {
	db runstate.DBTX
}

// NewDBStatusPersistence creates a database-backed status persistence
func NewDBStatusPersistence(db runstate.DBTX) StatusPersistence {
	return &dbStatusPersistence{db: db}
}

func (d *dbStatusPersistence) SaveStatus(ctx context.Context, key string, report *RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal run report for '%s': %w", key, err)
	}
	if _, err := d.db.Exec(ctx, saveStatusQuery, key, data); err != nil {
		return fmt.Errorf("failed to save run report for '%s': %w", key, err)
	}
	return nil
}

func (d *dbStatusPersistence) LoadStatus(ctx context.Context, key string) (*RunReport, error) {
	var data []byte
	err := d.db.QueryRow(ctx, loadStatusQuery, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run report for '%s': %w", key, err)
	}

	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run report for '%s': %w", key, err)
	}
	return &report, nil
}
