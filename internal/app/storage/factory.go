// Package storage provides factory functions for creating storage-dependent components.
// It implements the Abstract Factory pattern to ensure related components (run state
// store, lease, run report persistence) are created with the same backend.
package storage

import (
	"context"
	"fmt"

	"github.com/iot-sensordata/stageload/internal/config"
	"github.com/iot-sensordata/stageload/internal/runstate"
	"github.com/iot-sensordata/stageload/internal/status"
)

// Factory creates storage-dependent components as a family.
// Implementations ensure all components are compatible with each other
// (e.g., all use DynamoDB or all use the local filesystem).
//
// The factory encapsulates the creation of:
// - Store: Holds the single run state record
// - Locker: Grants the cross-replica run lease
// - StatusPersistence: Keeps the latest run report
//
// It also manages the lifecycle of storage resources (e.g., database connections).
type Factory interface {
	// CreateStateStore creates the run state store
	CreateStateStore(ctx context.Context) (runstate.Store, error)

	// CreateLocker creates the lease provider guarding the run state record
	CreateLocker(ctx context.Context) (runstate.Locker, error)

	// CreateStatusPersistence creates the run report persistence
	CreateStatusPersistence(ctx context.Context) (status.StatusPersistence, error)

	// Cleanup releases any resources held by this factory.
	// For database factories, this closes the connection pool.
	// For other factories, this is a no-op.
	// Should be called when the application shuts down.
	Cleanup()
}

// NewStorageFactory creates a storage factory based on the configured state backend
func NewStorageFactory(ctx context.Context, cfg *config.Config) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.State.Backend {
	case config.StateBackendDynamoDB:
		return NewDynamoDBFactory(ctx, cfg)
	case config.StateBackendDatabase:
		return NewDatabaseFactory(ctx, cfg)
	case config.StateBackendFile:
		return NewFileFactory(cfg)
	default:
		return nil, fmt.Errorf("unknown state backend: %s", cfg.State.Backend)
	}
}
