// Package objectstore moves opaque objects between named containers (buckets).
// The coordinator only needs listing, same-key copies and bulk deletes; the
// catalog transform additionally reads and writes whole objects.
package objectstore

import (
	"context"
	"io"
)

//go:generate mockgen -destination=mocks/mock_objectstore.go -package=mocks github.com/iot-sensordata/stageload/internal/objectstore Stager,Store

// Stager is the narrow view of an object store used by the coordinator
type Stager interface {
	// List returns every object key in the container
	List(ctx context.Context, container string) ([]string, error)
	// Copy copies srcContainer/key to dstContainer/key, overwriting any existing object
	Copy(ctx context.Context, srcContainer, key, dstContainer string) error
	// Delete removes the given keys from the container. Missing keys are not an error.
	Delete(ctx context.Context, container string, keys []string) error
}

// Store adds whole-object reads and writes to Stager
type Store interface {
	Stager
	// Get opens the object for reading. The caller closes the reader.
	Get(ctx context.Context, container, key string) (io.ReadCloser, error)
	// Put writes data to container/key
	Put(ctx context.Context, container, key string, data []byte, contentType string) error
}
