package loadjob

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/segmentio/ksuid"

	"github.com/iot-sensordata/stageload/internal/objectstore"
)

const jobMarkerPrefix = "_jobs/"

// ObjectStoreTrigger is a development load engine. Submit synchronously copies
// every staged object into <target>/<jobID>/<key> and records a job marker;
// Status reads the marker back.
type ObjectStoreTrigger struct {
	store   objectstore.Store
	staging string
	target  string
}

var _ Trigger = (*ObjectStoreTrigger)(nil)

// NewObjectStoreTrigger creates a trigger loading from staging into target
func NewObjectStoreTrigger(store objectstore.Store, staging, target string) *ObjectStoreTrigger {
	return &ObjectStoreTrigger{store: store, staging: staging, target: target}
}

// Submit copies the staged objects and marks the job SUCCEEDED
func (t *ObjectStoreTrigger) Submit(ctx context.Context) (string, error) {
	jobID := ksuid.New().String()

	keys, err := t.store.List(ctx, t.staging)
	if err != nil {
		return "", fmt.Errorf("failed to list staged objects: %w", err)
	}

	status := StatusSucceeded
	for _, key := range keys {
		if err := t.copyObject(ctx, key, path.Join(jobID, key)); err != nil {
			status = StatusFailed
			break
		}
	}

	if err := t.store.Put(ctx, t.target, jobMarkerPrefix+jobID, []byte(status), "text/plain"); err != nil {
		return "", fmt.Errorf("failed to record job %s: %w", jobID, err)
	}
	return jobID, nil
}

func (t *ObjectStoreTrigger) copyObject(ctx context.Context, key, dstKey string) error {
	rc, err := t.store.Get(ctx, t.staging, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	return t.store.Put(ctx, t.target, dstKey, data, "application/json")
}

// Status reads the job marker. A missing marker is StatusUnknown.
func (t *ObjectStoreTrigger) Status(ctx context.Context, jobID string) (Status, error) {
	rc, err := t.store.Get(ctx, t.target, jobMarkerPrefix+jobID)
	if err != nil {
		if objectstore.CodeOf(err) == objectstore.CodeObjectNotFound {
			return StatusUnknown, nil
		}
		return StatusUnknown, fmt.Errorf("failed to read job %s: %w", jobID, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return StatusUnknown, fmt.Errorf("failed to read job %s: %w", jobID, err)
	}
	return ParseStatus(string(data)), nil
}
