package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const insertReadingSQL = `INSERT INTO "SensorData" ` +
	`("DeviceID", "DateTime", "Temperature", "Humidity", "WindDirection", "WindIntensity", "RainHeight") ` +
	`VALUES ($1, $2, $3, $4, $5, $6, $7)`

const uniqueViolation = "23505"

//go:generate mockgen -destination=mocks/mock_writer.go -package=mocks -source=writer.go Execer

// Execer is the subset of pgxpool.Pool and pgx.Tx used by Writer
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Writer inserts readings into the SensorData table
type Writer struct {
	db Execer
}

// NewWriter creates a Writer over db
func NewWriter(db Execer) *Writer {
	return &Writer{db: db}
}

// Insert stores one reading. A reading that is already stored returns false
// with no error.
func (w *Writer) Insert(ctx context.Context, r *Reading) (bool, error) {
	ts, err := r.Time()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidReading, err)
	}

	_, err = w.db.Exec(ctx, insertReadingSQL,
		r.DeviceID,
		ts,
		float64(r.Temperature),
		float64(r.Humidity),
		float64(r.WindDirection),
		float64(r.WindIntensity),
		float64(r.RainHeight),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert reading for device %s: %w", r.DeviceID, err)
	}
	return true, nil
}
