package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// localTempSuffix marks the store's own in-flight writes. Keys may not end with it.
const localTempSuffix = ".stageload-partial"

// LocalStore implements Store over directories: each container is a
// directory under root and keys are slash-separated paths inside it.
type LocalStore struct {
	root string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates a store rooted at root
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) containerPath(container string) (string, error) {
	if container == "" || !filepath.IsLocal(container) || strings.ContainsAny(container, `/\`) {
		return "", wrapError(CodeContainerNotFound, false, fmt.Errorf("invalid container name %q", container))
	}
	return filepath.Join(s.root, container), nil
}

func (s *LocalStore) objectPath(container, key string) (string, error) {
	dir, err := s.containerPath(container)
	if err != nil {
		return "", err
	}
	rel := filepath.FromSlash(key)
	if key == "" || !filepath.IsLocal(rel) || strings.HasSuffix(key, localTempSuffix) {
		return "", wrapError(CodeObjectNotFound, false, fmt.Errorf("invalid object key %q", key))
	}
	return filepath.Join(dir, rel), nil
}

// List walks the container directory. The store's own in-flight writes are skipped.
func (s *LocalStore) List(ctx context.Context, container string) ([]string, error) {
	dir, err := s.containerPath(container)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to list container %s: %w", container, wrapError(CodeContainerNotFound, false, err))
	}

	var keys []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasSuffix(path, localTempSuffix) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list container %s: %w", container, classifyLocalError(err))
	}

	sort.Strings(keys)
	return keys, nil
}

// Copy reads the source object and writes it to the destination container
func (s *LocalStore) Copy(ctx context.Context, srcContainer, key, dstContainer string) error {
	src, err := s.objectPath(srcContainer, key)
	if err != nil {
		return err
	}
	if _, err := s.containerPath(dstContainer); err != nil {
		return err
	}

	// #nosec G304 -- path is validated to stay within the container directory
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to copy %s/%s to %s: %w", srcContainer, key, dstContainer, classifyLocalError(err))
	}
	return s.Put(ctx, dstContainer, key, data, "")
}

// Delete removes each key. Keys that do not exist are ignored.
func (s *LocalStore) Delete(ctx context.Context, container string, keys []string) error {
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, err := s.objectPath(container, key)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete %s/%s: %w", container, key, classifyLocalError(err))
		}
	}
	return nil
}

// Get opens the object file
func (s *LocalStore) Get(_ context.Context, container, key string) (io.ReadCloser, error) {
	path, err := s.objectPath(container, key)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path is validated to stay within the container directory
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", container, key, classifyLocalError(err))
	}
	return f, nil
}

// Put writes the object atomically, creating the container and key directories as needed
func (s *LocalStore) Put(_ context.Context, container, key string, data []byte, _ string) error {
	path, err := s.objectPath(container, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s/%s: %w", container, key, classifyLocalError(err))
	}

	tempPath := path + localTempSuffix
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", container, key, classifyLocalError(err))
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename %s/%s: %w", container, key, classifyLocalError(err))
	}
	return nil
}

func classifyLocalError(err error) *Error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return wrapError(CodeObjectNotFound, false, err)
	case errors.Is(err, os.ErrPermission):
		return wrapError(CodePermissionDenied, false, err)
	}
	return classifyFallback(err)
}
