package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"

	"github.com/iot-sensordata/stageload/internal/coordinator"
	coordmocks "github.com/iot-sensordata/stageload/internal/coordinator/mocks"
	"github.com/iot-sensordata/stageload/internal/runstate"
	statemocks "github.com/iot-sensordata/stageload/internal/runstate/mocks"
	"github.com/iot-sensordata/stageload/internal/service"
	"github.com/iot-sensordata/stageload/internal/status"
	statusmocks "github.com/iot-sensordata/stageload/internal/status/mocks"
)

type serviceMocks struct {
	store       *statemocks.MockStore
	reports     *statusmocks.MockStatusPersistence
	coordinator *coordmocks.MockCoordinator
}

func newTestService(t *testing.T, opts ...service.Option) (service.RunService, serviceMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := serviceMocks{
		store:       statemocks.NewMockStore(ctrl),
		reports:     statusmocks.NewMockStatusPersistence(ctrl),
		coordinator: coordmocks.NewMockCoordinator(ctrl),
	}
	svc, err := service.New(m.store, m.reports, "", opts...)
	require.NoError(t, err)
	return svc, m
}

func TestNew(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := statemocks.NewMockStore(ctrl)
	reports := statusmocks.NewMockStatusPersistence(ctrl)

	_, err := service.New(nil, reports, "")
	require.Error(t, err)
	_, err = service.New(store, nil, "")
	require.Error(t, err)
	svc, err := service.New(store, reports, "custom")
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestCheckReadiness(t *testing.T) {
	t.Parallel()

	t.Run("ready", func(t *testing.T) {
		t.Parallel()
		svc, m := newTestService(t)
		m.store.EXPECT().Get(gomock.Any()).Return(runstate.Fresh(), nil)
		require.NoError(t, svc.CheckReadiness(context.Background()))
	})

	t.Run("backend unreachable", func(t *testing.T) {
		t.Parallel()
		svc, m := newTestService(t)
		boom := errors.New("connection refused")
		m.store.EXPECT().Get(gomock.Any()).Return(runstate.State{}, boom)
		err := svc.CheckReadiness(context.Background())
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "not ready")
	})
}

func TestGetState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		state    runstate.State
		withCoor bool
		running  bool
		expected service.StateView
	}{
		{
			name:     "fresh without scheduler",
			state:    runstate.Fresh(),
			expected: service.StateView{Kind: "fresh"},
		},
		{
			name:     "in progress while running",
			state:    runstate.InProgress(),
			withCoor: true,
			running:  true,
			expected: service.StateView{Kind: "in_progress", Running: true},
		},
		{
			name:     "submitted job",
			state:    runstate.Submitted("q-42"),
			withCoor: true,
			expected: service.StateView{Kind: "submitted", JobID: "q-42"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			store := statemocks.NewMockStore(ctrl)
			reports := statusmocks.NewMockStatusPersistence(ctrl)
			var opts []service.Option
			if tt.withCoor {
				coord := coordmocks.NewMockCoordinator(ctrl)
				coord.EXPECT().Running().Return(tt.running)
				opts = append(opts, service.WithCoordinator(coord))
			}
			svc, err := service.New(store, reports, "", opts...)
			require.NoError(t, err)

			store.EXPECT().Get(gomock.Any()).Return(tt.state, nil)

			view, err := svc.GetState(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, *view)
		})
	}
}

func TestGetLastRun(t *testing.T) {
	t.Parallel()

	t.Run("returns the report for the state key", func(t *testing.T) {
		t.Parallel()
		svc, m := newTestService(t)
		report := &status.RunReport{RunID: "run-1", Phase: status.RunPhaseComplete}
		m.reports.EXPECT().LoadStatus(gomock.Any(), runstate.DefaultKey).Return(report, nil)

		got, err := svc.GetLastRun(context.Background())
		require.NoError(t, err)
		assert.Equal(t, report, got)
	})

	t.Run("no runs yet", func(t *testing.T) {
		t.Parallel()
		svc, m := newTestService(t)
		m.reports.EXPECT().LoadStatus(gomock.Any(), runstate.DefaultKey).Return(nil, nil)

		_, err := svc.GetLastRun(context.Background())
		require.ErrorIs(t, err, service.ErrNoRuns)
	})

	t.Run("persistence error", func(t *testing.T) {
		t.Parallel()
		svc, m := newTestService(t)
		boom := errors.New("corrupt")
		m.reports.EXPECT().LoadStatus(gomock.Any(), runstate.DefaultKey).Return(nil, boom)

		_, err := svc.GetLastRun(context.Background())
		require.ErrorIs(t, err, boom)
	})
}

func TestRequestRun(t *testing.T) {
	t.Parallel()

	t.Run("without scheduler", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t)
		_, err := svc.RequestRun(context.Background())
		require.ErrorIs(t, err, service.ErrSchedulerDisabled)
	})

	tests := []struct {
		name    string
		trigger error
	}{
		{name: "accepted"},
		{name: "run in progress", trigger: coordinator.ErrRunInProgress},
		{name: "run pending", trigger: coordinator.ErrRunPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			coord := coordmocks.NewMockCoordinator(ctrl)
			coord.EXPECT().TriggerNow().Return(tt.trigger)

			recorder := tracetest.NewSpanRecorder()
			tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))

			svc, err := service.New(
				statemocks.NewMockStore(ctrl),
				statusmocks.NewMockStatusPersistence(ctrl),
				"",
				service.WithCoordinator(coord),
				service.WithTracer(tp.Tracer(service.ServiceTracerName)),
			)
			require.NoError(t, err)

			req, err := svc.RequestRun(context.Background())
			if tt.trigger != nil {
				require.ErrorIs(t, err, tt.trigger)
				assert.Nil(t, req)
			} else {
				require.NoError(t, err)
				assert.False(t, req.RequestedAt.IsZero())
			}

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, "service.RequestRun", spans[0].Name())
		})
	}
}
