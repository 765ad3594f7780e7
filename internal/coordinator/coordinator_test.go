package coordinator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"

	"github.com/iot-sensordata/stageload/internal/loadjob"
	loadjobmocks "github.com/iot-sensordata/stageload/internal/loadjob/mocks"
	objectstoremocks "github.com/iot-sensordata/stageload/internal/objectstore/mocks"
	"github.com/iot-sensordata/stageload/internal/otel"
	"github.com/iot-sensordata/stageload/internal/runstate"
	runstatemocks "github.com/iot-sensordata/stageload/internal/runstate/mocks"
	"github.com/iot-sensordata/stageload/internal/status"
	statusmocks "github.com/iot-sensordata/stageload/internal/status/mocks"
)

const (
	testIncoming = "iot-sensordata-messages"
	testStaging  = "iot-sensordata-staging"
)

type testMocks struct {
	store   *runstatemocks.MockStore
	stager  *objectstoremocks.MockStager
	trigger *loadjobmocks.MockTrigger
}

func newTestCoordinator(t *testing.T, opts ...Option) (*defaultCoordinator, testMocks) {
	t.Helper()

	ctrl := gomock.NewController(t)
	m := testMocks{
		store:   runstatemocks.NewMockStore(ctrl),
		stager:  objectstoremocks.NewMockStager(ctrl),
		trigger: loadjobmocks.NewMockTrigger(ctrl),
	}

	coord, err := New(m.store, m.stager, m.trigger, Config{
		IncomingContainer: testIncoming,
		StagingContainer:  testStaging,
	}, opts...)
	require.NoError(t, err)

	return coord.(*defaultCoordinator), m
}

func TestNew(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := runstatemocks.NewMockStore(ctrl)
	stager := objectstoremocks.NewMockStager(ctrl)
	trigger := loadjobmocks.NewMockTrigger(ctrl)

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing containers",
			cfg:     Config{},
			wantErr: "containers are required",
		},
		{
			name:    "same container twice",
			cfg:     Config{IncomingContainer: "bucket", StagingContainer: "bucket"},
			wantErr: "must differ",
		},
		{
			name: "valid config",
			cfg:  Config{IncomingContainer: testIncoming, StagingContainer: testStaging},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			coord, err := New(store, stager, trigger, tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, coord)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, coord)
		})
	}

	_, err := New(nil, stager, trigger, Config{IncomingContainer: testIncoming, StagingContainer: testStaging})
	assert.Error(t, err)
}

func TestConfig_ApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	cfg.applyDefaults()
	assert.Equal(t, runstate.DefaultKey, cfg.StateKey)
	assert.Equal(t, DefaultInterval, cfg.Interval)
	assert.Equal(t, DefaultLeaseTTL, cfg.LeaseTTL)

	cfg = Config{Interval: time.Minute, Jitter: 2 * time.Minute}
	cfg.applyDefaults()
	assert.Equal(t, 30*time.Second, cfg.Jitter, "jitter is capped below the interval")
}

func TestNextInterval(t *testing.T) {
	t.Parallel()

	coord, _ := newTestCoordinator(t)
	coord.config.Interval = time.Hour
	coord.config.Jitter = 30 * time.Second

	for range 100 {
		interval := coord.nextInterval()
		assert.GreaterOrEqual(t, interval, time.Hour-30*time.Second)
		assert.Less(t, interval, time.Hour+30*time.Second)
	}

	coord.config.Jitter = 0
	assert.Equal(t, time.Hour, coord.nextInterval())
}

func TestRun_FreshStart(t *testing.T) {
	t.Parallel()

	coord, m := newTestCoordinator(t)
	ctx := context.Background()

	gomock.InOrder(
		m.store.EXPECT().Get(gomock.Any()).Return(runstate.Fresh(), nil),
		m.stager.EXPECT().List(gomock.Any(), testIncoming).Return([]string{"a.json", "b.json"}, nil),
		m.stager.EXPECT().Copy(gomock.Any(), testIncoming, "a.json", testStaging).Return(nil),
		m.stager.EXPECT().Copy(gomock.Any(), testIncoming, "b.json", testStaging).Return(nil),
		m.stager.EXPECT().List(gomock.Any(), testStaging).Return([]string{"a.json", "b.json"}, nil),
		m.store.EXPECT().Put(gomock.Any(), runstate.InProgress()).Return(nil),
		m.stager.EXPECT().Delete(gomock.Any(), testIncoming, []string{"a.json", "b.json"}).Return(nil),
		m.trigger.EXPECT().Submit(gomock.Any()).Return("q-1", nil),
		m.store.EXPECT().Put(gomock.Any(), runstate.Submitted("q-1")).Return(nil),
	)

	report, err := coord.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, status.RunPhaseComplete, report.Phase)
	assert.Equal(t, "stage", report.Decision)
	assert.Equal(t, "fresh", report.PriorState)
	assert.Equal(t, 2, report.CopiedCount)
	assert.Equal(t, 2, report.StagedCount)
	assert.Equal(t, "q-1", report.SubmittedJobID)
	assert.NotEmpty(t, report.RunID)
	assert.NotNil(t, report.FinishedAt)
	assert.False(t, coord.Running())
}

// Previous load succeeded: staging is emptied before new objects are staged.
func TestRun_PreviousLoadSucceeded(t *testing.T) {
	t.Parallel()

	coord, m := newTestCoordinator(t)

	gomock.InOrder(
		m.store.EXPECT().Get(gomock.Any()).Return(runstate.Submitted("q-1"), nil),
		m.trigger.EXPECT().Status(gomock.Any(), "q-1").Return(loadjob.StatusSucceeded, nil),
		m.stager.EXPECT().List(gomock.Any(), testStaging).Return([]string{"old-1", "old-2"}, nil),
		m.stager.EXPECT().Delete(gomock.Any(), testStaging, []string{"old-1", "old-2"}).Return(nil),
		m.stager.EXPECT().List(gomock.Any(), testIncoming).Return([]string{"new-1"}, nil),
		m.stager.EXPECT().Copy(gomock.Any(), testIncoming, "new-1", testStaging).Return(nil),
		m.stager.EXPECT().List(gomock.Any(), testStaging).Return([]string{"new-1"}, nil),
		m.store.EXPECT().Put(gomock.Any(), runstate.InProgress()).Return(nil),
		m.stager.EXPECT().Delete(gomock.Any(), testIncoming, []string{"new-1"}).Return(nil),
		m.trigger.EXPECT().Submit(gomock.Any()).Return("q-2", nil),
		m.store.EXPECT().Put(gomock.Any(), runstate.Submitted("q-2")).Return(nil),
	)

	report, err := coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "clear_and_stage", report.Decision)
	assert.Equal(t, "SUCCEEDED", report.JobStatus)
	assert.Equal(t, 2, report.ClearedCount)
	assert.Equal(t, 1, report.StagedCount)
	assert.Equal(t, "q-2", report.SubmittedJobID)
}

// Previous load failed: staging keeps its objects and they are loaded again
// together with the new arrivals.
func TestRun_PreviousLoadFailed(t *testing.T) {
	t.Parallel()

	for _, jobStatus := range []loadjob.Status{loadjob.StatusFailed, loadjob.StatusCancelled} {
		t.Run(string(jobStatus), func(t *testing.T) {
			t.Parallel()

			coord, m := newTestCoordinator(t)

			gomock.InOrder(
				m.store.EXPECT().Get(gomock.Any()).Return(runstate.Submitted("q-1"), nil),
				m.trigger.EXPECT().Status(gomock.Any(), "q-1").Return(jobStatus, nil),
				m.stager.EXPECT().List(gomock.Any(), testIncoming).Return([]string{"new"}, nil),
				m.stager.EXPECT().Copy(gomock.Any(), testIncoming, "new", testStaging).Return(nil),
				m.stager.EXPECT().List(gomock.Any(), testStaging).Return([]string{"new", "old"}, nil),
				m.store.EXPECT().Put(gomock.Any(), runstate.InProgress()).Return(nil),
				m.stager.EXPECT().Delete(gomock.Any(), testIncoming, []string{"new", "old"}).Return(nil),
				m.trigger.EXPECT().Submit(gomock.Any()).Return("q-2", nil),
				m.store.EXPECT().Put(gomock.Any(), runstate.Submitted("q-2")).Return(nil),
			)

			report, err := coord.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "stage", report.Decision)
			assert.Zero(t, report.ClearedCount)
			assert.Equal(t, 2, report.StagedCount)
		})
	}
}

// A run interrupted after the in-progress marker stages again without clearing.
func TestRun_ResumesAfterInProgress(t *testing.T) {
	t.Parallel()

	coord, m := newTestCoordinator(t)

	gomock.InOrder(
		m.store.EXPECT().Get(gomock.Any()).Return(runstate.InProgress(), nil),
		m.stager.EXPECT().List(gomock.Any(), testIncoming).Return(nil, nil),
		m.stager.EXPECT().List(gomock.Any(), testStaging).Return([]string{"left-over"}, nil),
		m.store.EXPECT().Put(gomock.Any(), runstate.InProgress()).Return(nil),
		m.stager.EXPECT().Delete(gomock.Any(), testIncoming, []string{"left-over"}).Return(nil),
		m.trigger.EXPECT().Submit(gomock.Any()).Return("q-3", nil),
		m.store.EXPECT().Put(gomock.Any(), runstate.Submitted("q-3")).Return(nil),
	)

	report, err := coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "in_progress", report.PriorState)
	assert.Zero(t, report.CopiedCount)
	assert.Equal(t, 1, report.StagedCount)
}

func TestRun_JobPending(t *testing.T) {
	t.Parallel()

	for _, jobStatus := range []loadjob.Status{loadjob.StatusQueued, loadjob.StatusRunning} {
		t.Run(string(jobStatus), func(t *testing.T) {
			t.Parallel()

			coord, m := newTestCoordinator(t)

			// Nothing else may be touched
			m.store.EXPECT().Get(gomock.Any()).Return(runstate.Submitted("q-1"), nil)
			m.trigger.EXPECT().Status(gomock.Any(), "q-1").Return(jobStatus, nil)

			report, err := coord.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, status.RunPhaseSkipped, report.Phase)
			assert.Equal(t, "none", report.Decision)
			assert.Empty(t, report.Warning)
		})
	}
}

func TestRun_UnknownJobStatus(t *testing.T) {
	t.Parallel()

	coord, m := newTestCoordinator(t)

	m.store.EXPECT().Get(gomock.Any()).Return(runstate.Submitted("q-1"), nil)
	m.trigger.EXPECT().Status(gomock.Any(), "q-1").Return(loadjob.StatusUnknown, nil)

	report, err := coord.Run(context.Background())
	require.NoError(t, err, "an unrecognized status is reported, not returned")
	assert.Equal(t, status.RunPhaseSkipped, report.Phase)
	assert.Equal(t, "none", report.Decision)
	assert.Contains(t, report.Warning, ErrLoadStatusUnknown.Error())
}

func TestRun_NothingToStage(t *testing.T) {
	t.Parallel()

	coord, m := newTestCoordinator(t)

	// No state write, no delete and no submission
	m.store.EXPECT().Get(gomock.Any()).Return(runstate.Fresh(), nil)
	m.stager.EXPECT().List(gomock.Any(), testIncoming).Return(nil, nil)
	m.stager.EXPECT().List(gomock.Any(), testStaging).Return(nil, nil)

	report, err := coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, status.RunPhaseSkipped, report.Phase)
	assert.Zero(t, report.StagedCount)
}

// Objects that failed to reach staging are never deleted from incoming.
func TestRun_DeletionSetComesFromStaging(t *testing.T) {
	t.Parallel()

	coord, m := newTestCoordinator(t)

	gomock.InOrder(
		m.store.EXPECT().Get(gomock.Any()).Return(runstate.Fresh(), nil),
		m.stager.EXPECT().List(gomock.Any(), testIncoming).Return([]string{"a", "b", "c"}, nil),
		m.stager.EXPECT().Copy(gomock.Any(), testIncoming, gomock.Any(), testStaging).Return(nil).Times(3),
		// "c" arrived in incoming but is not visible in staging yet
		m.stager.EXPECT().List(gomock.Any(), testStaging).Return([]string{"a", "b"}, nil),
		m.store.EXPECT().Put(gomock.Any(), runstate.InProgress()).Return(nil),
		m.stager.EXPECT().Delete(gomock.Any(), testIncoming, []string{"a", "b"}).Return(nil),
		m.trigger.EXPECT().Submit(gomock.Any()).Return("q-1", nil),
		m.store.EXPECT().Put(gomock.Any(), runstate.Submitted("q-1")).Return(nil),
	)

	report, err := coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.CopiedCount)
	assert.Equal(t, 2, report.StagedCount)
}

func TestRun_Failures(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	tests := []struct {
		name    string
		setup   func(m testMocks)
		wantErr error
	}{
		{
			name: "state read fails",
			setup: func(m testMocks) {
				m.store.EXPECT().Get(gomock.Any()).Return(runstate.State{}, boom)
			},
			wantErr: ErrStateRead,
		},
		{
			name: "status query fails",
			setup: func(m testMocks) {
				m.store.EXPECT().Get(gomock.Any()).Return(runstate.Submitted("q-1"), nil)
				m.trigger.EXPECT().Status(gomock.Any(), "q-1").Return(loadjob.StatusUnknown, boom)
			},
			wantErr: ErrLoadStatusQuery,
		},
		{
			name: "clearing staging fails",
			setup: func(m testMocks) {
				m.store.EXPECT().Get(gomock.Any()).Return(runstate.Submitted("q-1"), nil)
				m.trigger.EXPECT().Status(gomock.Any(), "q-1").Return(loadjob.StatusSucceeded, nil)
				m.stager.EXPECT().List(gomock.Any(), testStaging).Return([]string{"old"}, nil)
				m.stager.EXPECT().Delete(gomock.Any(), testStaging, []string{"old"}).Return(boom)
			},
			wantErr: ErrStagingTransfer,
		},
		{
			name: "listing incoming fails",
			setup: func(m testMocks) {
				m.store.EXPECT().Get(gomock.Any()).Return(runstate.Fresh(), nil)
				m.stager.EXPECT().List(gomock.Any(), testIncoming).Return(nil, boom)
			},
			wantErr: ErrStagingTransfer,
		},
		{
			name: "copy fails before any state write",
			setup: func(m testMocks) {
				m.store.EXPECT().Get(gomock.Any()).Return(runstate.Fresh(), nil)
				m.stager.EXPECT().List(gomock.Any(), testIncoming).Return([]string{"a"}, nil)
				m.stager.EXPECT().Copy(gomock.Any(), testIncoming, "a", testStaging).Return(boom)
			},
			wantErr: ErrStagingTransfer,
		},
		{
			name: "in-progress write fails before delete",
			setup: func(m testMocks) {
				m.store.EXPECT().Get(gomock.Any()).Return(runstate.Fresh(), nil)
				m.stager.EXPECT().List(gomock.Any(), testIncoming).Return([]string{"a"}, nil)
				m.stager.EXPECT().Copy(gomock.Any(), testIncoming, "a", testStaging).Return(nil)
				m.stager.EXPECT().List(gomock.Any(), testStaging).Return([]string{"a"}, nil)
				m.store.EXPECT().Put(gomock.Any(), runstate.InProgress()).Return(boom)
			},
			wantErr: ErrStateWrite,
		},
		{
			name: "delete from incoming fails",
			setup: func(m testMocks) {
				m.store.EXPECT().Get(gomock.Any()).Return(runstate.Fresh(), nil)
				m.stager.EXPECT().List(gomock.Any(), testIncoming).Return([]string{"a"}, nil)
				m.stager.EXPECT().Copy(gomock.Any(), testIncoming, "a", testStaging).Return(nil)
				m.stager.EXPECT().List(gomock.Any(), testStaging).Return([]string{"a"}, nil)
				m.store.EXPECT().Put(gomock.Any(), runstate.InProgress()).Return(nil)
				m.stager.EXPECT().Delete(gomock.Any(), testIncoming, []string{"a"}).Return(boom)
			},
			wantErr: ErrStagingTransfer,
		},
		{
			name: "submission fails and state stays in progress",
			setup: func(m testMocks) {
				m.store.EXPECT().Get(gomock.Any()).Return(runstate.Fresh(), nil)
				m.stager.EXPECT().List(gomock.Any(), testIncoming).Return([]string{"a"}, nil)
				m.stager.EXPECT().Copy(gomock.Any(), testIncoming, "a", testStaging).Return(nil)
				m.stager.EXPECT().List(gomock.Any(), testStaging).Return([]string{"a"}, nil)
				m.store.EXPECT().Put(gomock.Any(), runstate.InProgress()).Return(nil)
				m.stager.EXPECT().Delete(gomock.Any(), testIncoming, []string{"a"}).Return(nil)
				m.trigger.EXPECT().Submit(gomock.Any()).Return("", boom)
			},
			wantErr: ErrLoadSubmission,
		},
		{
			name: "recording the job id fails",
			setup: func(m testMocks) {
				m.store.EXPECT().Get(gomock.Any()).Return(runstate.Fresh(), nil)
				m.stager.EXPECT().List(gomock.Any(), testIncoming).Return([]string{"a"}, nil)
				m.stager.EXPECT().Copy(gomock.Any(), testIncoming, "a", testStaging).Return(nil)
				m.stager.EXPECT().List(gomock.Any(), testStaging).Return([]string{"a"}, nil)
				m.store.EXPECT().Put(gomock.Any(), runstate.InProgress()).Return(nil)
				m.stager.EXPECT().Delete(gomock.Any(), testIncoming, []string{"a"}).Return(nil)
				m.trigger.EXPECT().Submit(gomock.Any()).Return("q-9", nil)
				m.store.EXPECT().Put(gomock.Any(), runstate.Submitted("q-9")).Return(boom)
			},
			wantErr: ErrStateWrite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			coord, m := newTestCoordinator(t)
			tt.setup(m)

			report, err := coord.Run(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, boom)
			require.NotNil(t, report)
			assert.Equal(t, status.RunPhaseFailed, report.Phase)
			assert.Equal(t, err.Error(), report.Error)
		})
	}
}

// A state record that exists but carries no value aborts the run before any
// object is touched or job submitted.
func TestRun_MalformedStateRecord(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, runstate.DefaultKey+".json"), []byte(`{"key":"query_id"}`), 0600))
	store, err := runstate.NewFileStore(dir, runstate.DefaultKey)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	stager := objectstoremocks.NewMockStager(ctrl)
	trigger := loadjobmocks.NewMockTrigger(ctrl)
	stager.EXPECT().List(gomock.Any(), gomock.Any()).Times(0)
	stager.EXPECT().Copy(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	stager.EXPECT().Delete(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	trigger.EXPECT().Status(gomock.Any(), gomock.Any()).Times(0)
	trigger.EXPECT().Submit(gomock.Any()).Times(0)

	coord, err := New(store, stager, trigger, Config{
		IncomingContainer: testIncoming,
		StagingContainer:  testStaging,
	})
	require.NoError(t, err)

	_, err = coord.Run(context.Background())
	require.ErrorIs(t, err, ErrStateRead)
	assert.ErrorIs(t, err, runstate.ErrMalformedRecord)

	data, err := os.ReadFile(filepath.Join(dir, runstate.DefaultKey+".json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"query_id"}`, string(data))
}

func TestRun_Lease(t *testing.T) {
	t.Parallel()

	t.Run("held by another owner", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		locker := runstatemocks.NewMockLocker(ctrl)
		coord, _ := newTestCoordinator(t, WithLocker(locker), WithOwner("me"))

		// Run state must not be touched
		locker.EXPECT().Acquire(gomock.Any(), "me", DefaultLeaseTTL).Return(nil, runstate.ErrLeaseHeld)

		report, err := coord.Run(context.Background())
		assert.ErrorIs(t, err, ErrLeaseHeld)
		assert.Nil(t, report)
	})

	t.Run("acquired and released", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		locker := runstatemocks.NewMockLocker(ctrl)
		lease := runstatemocks.NewMockLease(ctrl)
		coord, m := newTestCoordinator(t, WithLocker(locker), WithOwner("me"))

		gomock.InOrder(
			locker.EXPECT().Acquire(gomock.Any(), "me", DefaultLeaseTTL).Return(lease, nil),
			m.store.EXPECT().Get(gomock.Any()).Return(runstate.Submitted("q-1"), nil),
			m.trigger.EXPECT().Status(gomock.Any(), "q-1").Return(loadjob.StatusRunning, nil),
			lease.EXPECT().Release(gomock.Any()).Return(nil),
		)

		_, err := coord.Run(context.Background())
		require.NoError(t, err)
	})

	t.Run("released on failure", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		locker := runstatemocks.NewMockLocker(ctrl)
		lease := runstatemocks.NewMockLease(ctrl)
		coord, m := newTestCoordinator(t, WithLocker(locker))

		locker.EXPECT().Acquire(gomock.Any(), gomock.Any(), gomock.Any()).Return(lease, nil)
		m.store.EXPECT().Get(gomock.Any()).Return(runstate.State{}, errors.New("unreachable"))
		lease.EXPECT().Release(gomock.Any()).Return(nil)

		_, err := coord.Run(context.Background())
		assert.ErrorIs(t, err, ErrStateRead)
	})

	t.Run("acquire error", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		locker := runstatemocks.NewMockLocker(ctrl)
		coord, _ := newTestCoordinator(t, WithLocker(locker))

		locker.EXPECT().Acquire(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("throttled"))

		_, err := coord.Run(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrLeaseHeld)
	})
}

// runSteps returns the run.step events recorded on the named span, in order
func runSteps(t *testing.T, exporter *tracetest.InMemoryExporter, spanName string) []string {
	t.Helper()

	var steps []string
	for _, span := range exporter.GetSpans() {
		if span.Name != spanName {
			continue
		}
		for _, event := range span.Events {
			for _, kv := range event.Attributes {
				if kv.Key == otel.AttrStep {
					steps = append(steps, kv.Value.AsString())
				}
			}
		}
	}
	return steps
}

func TestRun_TracesWriteOrder(t *testing.T) {
	t.Parallel()

	newTraced := func(t *testing.T) (*defaultCoordinator, testMocks, *tracetest.InMemoryExporter) {
		exporter := tracetest.NewInMemoryExporter()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
		coord, m := newTestCoordinator(t, WithTracer(tp.Tracer("stageload/coordinator")))
		return coord, m, exporter
	}

	t.Run("submitted run records every step", func(t *testing.T) {
		t.Parallel()

		coord, m, exporter := newTraced(t)
		gomock.InOrder(
			m.store.EXPECT().Get(gomock.Any()).Return(runstate.Fresh(), nil),
			m.stager.EXPECT().List(gomock.Any(), testIncoming).Return([]string{"a.json"}, nil),
			m.stager.EXPECT().Copy(gomock.Any(), testIncoming, "a.json", testStaging).Return(nil),
			m.stager.EXPECT().List(gomock.Any(), testStaging).Return([]string{"a.json"}, nil),
			m.store.EXPECT().Put(gomock.Any(), runstate.InProgress()).Return(nil),
			m.stager.EXPECT().Delete(gomock.Any(), testIncoming, []string{"a.json"}).Return(nil),
			m.trigger.EXPECT().Submit(gomock.Any()).Return("q-7", nil),
			m.store.EXPECT().Put(gomock.Any(), runstate.Submitted("q-7")).Return(nil),
		)

		_, err := coord.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{
			otel.StepObjectsCopied,
			otel.StepInProgressRecorded,
			otel.StepIncomingCleared,
			otel.StepJobSubmitted,
			otel.StepSubmittedRecorded,
		}, runSteps(t, exporter, "coordinator.stageAndTrigger"))
	})

	t.Run("failed delete stops after the in-progress write", func(t *testing.T) {
		t.Parallel()

		coord, m, exporter := newTraced(t)
		gomock.InOrder(
			m.store.EXPECT().Get(gomock.Any()).Return(runstate.Fresh(), nil),
			m.stager.EXPECT().List(gomock.Any(), testIncoming).Return([]string{"a.json"}, nil),
			m.stager.EXPECT().Copy(gomock.Any(), testIncoming, "a.json", testStaging).Return(nil),
			m.stager.EXPECT().List(gomock.Any(), testStaging).Return([]string{"a.json"}, nil),
			m.store.EXPECT().Put(gomock.Any(), runstate.InProgress()).Return(nil),
			m.stager.EXPECT().Delete(gomock.Any(), testIncoming, []string{"a.json"}).Return(errors.New("access denied")),
		)
		m.trigger.EXPECT().Submit(gomock.Any()).Times(0)

		_, err := coord.Run(context.Background())
		require.ErrorIs(t, err, ErrStagingTransfer)
		assert.Equal(t, []string{otel.StepObjectsCopied, otel.StepInProgressRecorded},
			runSteps(t, exporter, "coordinator.stageAndTrigger"))
	})
}

func TestRun_SavesReports(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	persistence := statusmocks.NewMockStatusPersistence(ctrl)
	coord, m := newTestCoordinator(t, WithStatusPersistence(persistence))

	m.store.EXPECT().Get(gomock.Any()).Return(runstate.Submitted("q-1"), nil)
	m.trigger.EXPECT().Status(gomock.Any(), "q-1").Return(loadjob.StatusQueued, nil)

	var phases []status.RunPhase
	persistence.EXPECT().
		SaveStatus(gomock.Any(), runstate.DefaultKey, gomock.Any()).
		Do(func(_ context.Context, _ string, report *status.RunReport) {
			phases = append(phases, report.Phase)
		}).
		Return(nil).
		Times(2)

	_, err := coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []status.RunPhase{status.RunPhaseRunning, status.RunPhaseSkipped}, phases)
}

func TestRun_SaveReportFailureIgnored(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	persistence := statusmocks.NewMockStatusPersistence(ctrl)
	coord, m := newTestCoordinator(t, WithStatusPersistence(persistence))

	m.store.EXPECT().Get(gomock.Any()).Return(runstate.Submitted("q-1"), nil)
	m.trigger.EXPECT().Status(gomock.Any(), "q-1").Return(loadjob.StatusRunning, nil)
	persistence.EXPECT().SaveStatus(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("disk full")).Times(2)

	_, err := coord.Run(context.Background())
	assert.NoError(t, err)
}

func TestRun_OneAtATime(t *testing.T) {
	t.Parallel()

	coord, _ := newTestCoordinator(t)

	coord.runMu.Lock()
	defer coord.runMu.Unlock()

	report, err := coord.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Nil(t, report)
}

func TestCoordinator_Stop_BeforeStart(t *testing.T) {
	t.Parallel()

	coord, _ := newTestCoordinator(t)

	// Stop should not panic if called before Start
	assert.NoError(t, coord.Stop())
	assert.ErrorIs(t, coord.TriggerNow(), ErrNotStarted)
}

func TestCoordinator_StartTriggerStop(t *testing.T) {
	t.Parallel()

	coord, m := newTestCoordinator(t)
	coord.config.Interval = time.Hour
	coord.config.Jitter = 0

	runs := make(chan struct{}, 10)
	m.store.EXPECT().Get(gomock.Any()).DoAndReturn(func(context.Context) (runstate.State, error) {
		runs <- struct{}{}
		return runstate.Submitted("q-1"), nil
	}).AnyTimes()
	m.trigger.EXPECT().Status(gomock.Any(), "q-1").Return(loadjob.StatusRunning, nil).AnyTimes()

	errCh := make(chan error, 1)
	go func() {
		errCh <- coord.Start(context.Background())
	}()

	// Initial run on startup
	select {
	case <-runs:
	case <-time.After(5 * time.Second):
		t.Fatal("initial run did not happen")
	}

	require.Eventually(t, func() bool {
		return coord.TriggerNow() == nil
	}, 5*time.Second, 10*time.Millisecond)

	select {
	case <-runs:
	case <-time.After(5 * time.Second):
		t.Fatal("triggered run did not happen")
	}

	require.NoError(t, coord.Stop())
	require.NoError(t, <-errCh)
	assert.ErrorIs(t, coord.TriggerNow(), ErrNotStarted)
}

func TestTriggerNow_Pending(t *testing.T) {
	t.Parallel()

	coord, _ := newTestCoordinator(t)

	// Simulate a started loop that has not drained its trigger channel yet
	coord.cancelFunc = func() {}
	coord.triggerCh <- struct{}{}

	assert.ErrorIs(t, coord.TriggerNow(), ErrRunPending)

	coord.running.Store(true)
	assert.ErrorIs(t, coord.TriggerNow(), ErrRunInProgress)
}

func TestStart_CancelledContext(t *testing.T) {
	t.Parallel()

	coord, m := newTestCoordinator(t)
	m.store.EXPECT().Get(gomock.Any()).Return(runstate.State{}, context.Canceled).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Should return nil when context is cancelled
	assert.NoError(t, coord.Start(ctx))
}
