// Package status provides run report tracking and persistence for the coordinator.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go StatusPersistence

const (
	// StatusFileName is the name of the status file
	StatusFileName = "status.json"
)

// StatusPersistence defines the interface for run report persistence
//
//nolint:revive // This name is fine
type StatusPersistence interface {
	// SaveStatus stores the latest report for the given run state key
	SaveStatus(ctx context.Context, key string, report *RunReport) error

	// LoadStatus loads the latest report for the given run state key.
	// Returns nil and no error when no run has been recorded yet.
	LoadStatus(ctx context.Context, key string) (*RunReport, error)
}

// fileStatusPersistence implements StatusPersistence using local filesystem
type fileStatusPersistence struct {
	basePath string
}

// NewFileStatusPersistence creates a new file-based status persistence.
// basePath is the base directory under which one directory per key is created.
func NewFileStatusPersistence(basePath string) StatusPersistence {
	return &fileStatusPersistence{
		basePath: basePath,
	}
}

func (f *fileStatusPersistence) keyDir(key string) (string, error) {
	if !filepath.IsLocal(key) {
		return "", fmt.Errorf("invalid status key %q", key)
	}
	return filepath.Join(f.basePath, key), nil
}

// SaveStatus writes the report as JSON, atomically replacing the previous one
func (f *fileStatusPersistence) SaveStatus(_ context.Context, key string, report *RunReport) error {
	dir, err := f.keyDir(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create status directory for '%s': %w", key, err)
	}

	filePath := filepath.Join(dir, StatusFileName)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run report for '%s': %w", key, err)
	}

	// Write to temporary file first for atomic operation
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file for '%s': %w", key, err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file for '%s': %w", key, err)
	}

	return nil
}

// LoadStatus reads the report file. A missing file yields nil.
func (f *fileStatusPersistence) LoadStatus(_ context.Context, key string) (*RunReport, error) {
	dir, err := f.keyDir(key)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- filePath is built from the configured base path and a validated key
	data, err := os.ReadFile(filepath.Join(dir, StatusFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read status file for '%s': %w", key, err)
	}

	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run report for '%s': %w", key, err)
	}

	return &report, nil
}
