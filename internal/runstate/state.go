// Package runstate holds the single persisted marker the staged-load
// coordinator uses to recover across invocations.
package runstate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/iot-sensordata/stageload/internal/runstate Store,Locker,Lease

const (
	// InProgressMarker is the value written once objects have been staged but
	// before the load job reference is known.
	InProgressMarker = "IN_PROGRESS"

	// legacyInProgressMarker is accepted when decoding records written by
	// earlier deployments of the pipeline.
	legacyInProgressMarker = "ETLINPROGRESS"

	// DefaultKey is the fixed identifier of the run state record
	DefaultKey = "query_id"
)

var (
	// ErrLeaseHeld is returned by Locker.Acquire when another live owner holds the lease.
	ErrLeaseHeld = errors.New("run lease is held by another owner")

	// ErrMalformedRecord means a run state record exists but carries no usable value
	ErrMalformedRecord = errors.New("run state record is malformed")
)

// Kind enumerates the states a run state record can be in
type Kind int

const (
	// KindFresh means no record exists: no prior run has staged anything
	KindFresh Kind = iota
	// KindInProgress means a prior run staged objects but never recorded a load job
	KindInProgress
	// KindSubmitted means a load job was submitted and its reference recorded
	KindSubmitted
)

// String returns a lower-case name for the kind
func (k Kind) String() string {
	switch k {
	case KindFresh:
		return "fresh"
	case KindInProgress:
		return "in_progress"
	case KindSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// State is the decoded run state record
type State struct {
	Kind  Kind
	JobID string
}

// Fresh returns the state used when no record exists
func Fresh() State {
	return State{Kind: KindFresh}
}

// InProgress returns the state written before objects are removed from incoming
func InProgress() State {
	return State{Kind: KindInProgress}
}

// Submitted returns the state recording a submitted load job
func Submitted(jobID string) State {
	return State{Kind: KindSubmitted, JobID: jobID}
}

// Encode returns the string stored in the record's value attribute.
// Fresh encodes to the empty string; stores never write it.
func (s State) Encode() string {
	switch s.Kind {
	case KindInProgress:
		return InProgressMarker
	case KindSubmitted:
		return s.JobID
	default:
		return ""
	}
}

// String implements fmt.Stringer
func (s State) String() string {
	if s.Kind == KindSubmitted {
		return fmt.Sprintf("submitted(%s)", s.JobID)
	}
	return s.Kind.String()
}

// Decode parses the value of an existing record. Anything that is not an
// in-progress marker is a load job reference. An empty value is malformed:
// only a missing record means Fresh, and stores handle that before decoding.
func Decode(value string) (State, error) {
	switch value {
	case "":
		return State{}, ErrMalformedRecord
	case InProgressMarker, legacyInProgressMarker:
		return InProgress(), nil
	default:
		return Submitted(value), nil
	}
}

// Store reads and writes the single run state record
type Store interface {
	// Get returns the current state. A missing record yields Fresh and no error.
	Get(ctx context.Context) (State, error)
	// Put overwrites the record with the given state
	Put(ctx context.Context, state State) error
	// Clear removes the record. Only operators call this; the coordinator never does.
	Clear(ctx context.Context) error
}

// Locker grants a time-bounded exclusive lease over the run state record
type Locker interface {
	// Acquire takes the lease for owner, or extends it if owner already holds it.
	// Returns ErrLeaseHeld when a different owner holds an unexpired lease.
	Acquire(ctx context.Context, owner string, ttl time.Duration) (Lease, error)
}

// Lease is a held lease
type Lease interface {
	// Release gives the lease up. Releasing a lease that has already expired
	// and been taken by someone else is not an error.
	Release(ctx context.Context) error
}
