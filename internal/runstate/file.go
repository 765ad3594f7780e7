package runstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

type fileRecord struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FileStore keeps the run state as a JSON document under a data directory.
// The lease is an exclusive OS lock on a sibling lock file, so it only
// excludes processes on the same host.
type FileStore struct {
	dir string
	key string
	now func() time.Time
}

var (
	_ Store  = (*FileStore)(nil)
	_ Locker = (*FileStore)(nil)
)

// NewFileStore creates a store that writes <dir>/<key>.json
func NewFileStore(dir, key string) (*FileStore, error) {
	if key == "" {
		key = DefaultKey
	}
	if !filepath.IsLocal(key) {
		return nil, fmt.Errorf("run state key %q is not a valid file name", key)
	}
	return &FileStore{dir: dir, key: key, now: time.Now}, nil
}

func (s *FileStore) path() string {
	return filepath.Join(s.dir, s.key+".json")
}

// Get reads the state file. A missing file is Fresh.
func (s *FileStore) Get(_ context.Context) (State, error) {
	// #nosec G304 -- path is built from the configured data dir and a validated key
	data, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Fresh(), nil
		}
		return State{}, fmt.Errorf("failed to read run state file: %w", err)
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return State{}, fmt.Errorf("failed to unmarshal run state file: %w", err)
	}
	state, err := Decode(rec.Value)
	if err != nil {
		return State{}, fmt.Errorf("run state file %s: %w", s.path(), err)
	}
	return state, nil
}

// Put writes the state file atomically
func (s *FileStore) Put(_ context.Context, state State) error {
	if state.Kind == KindFresh {
		return fmt.Errorf("cannot write a fresh run state, use Clear instead")
	}
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("failed to create run state directory: %w", err)
	}

	data, err := json.MarshalIndent(fileRecord{
		Key:       s.key,
		Value:     state.Encode(),
		UpdatedAt: s.now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	filePath := s.path()
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary run state file: %w", err)
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename run state file: %w", err)
	}
	return nil
}

// Clear removes the state file
func (s *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove run state file: %w", err)
	}
	return nil
}

// Acquire takes an exclusive lock on <dir>/<key>.lock. The ttl is ignored:
// the OS drops the lock when the holding process exits.
func (s *FileStore) Acquire(_ context.Context, _ string, _ time.Duration) (Lease, error) {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create run state directory: %w", err)
	}

	lock := flock.New(filepath.Join(s.dir, s.key+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock run state: %w", err)
	}
	if !locked {
		return nil, ErrLeaseHeld
	}
	return &fileLease{lock: lock}, nil
}

type fileLease struct {
	lock *flock.Flock
}

func (l *fileLease) Release(_ context.Context) error {
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock run state: %w", err)
	}
	return nil
}
