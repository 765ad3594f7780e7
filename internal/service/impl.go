package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iot-sensordata/stageload/internal/coordinator"
	"github.com/iot-sensordata/stageload/internal/otel"
	"github.com/iot-sensordata/stageload/internal/runstate"
	"github.com/iot-sensordata/stageload/internal/status"
)

// ServiceTracerName is the name used for the run service tracer
const ServiceTracerName = "github.com/iot-sensordata/stageload/service"

type runService struct {
	coordinator coordinator.Coordinator
	store       runstate.Store
	reports     status.StatusPersistence
	stateKey    string
	tracer      trace.Tracer
	now         func() time.Time
}

var _ RunService = (*runService)(nil)

// Option configures the run service
type Option func(*runService)

// WithTracer enables tracing of service calls
func WithTracer(tracer trace.Tracer) Option {
	return func(s *runService) {
		s.tracer = tracer
	}
}

// WithCoordinator lets RequestRun trigger the scheduler. Without it every
// run request fails with ErrSchedulerDisabled.
func WithCoordinator(c coordinator.Coordinator) Option {
	return func(s *runService) {
		s.coordinator = c
	}
}

// New creates a run service over the run state store and report persistence
func New(store runstate.Store, reports status.StatusPersistence, stateKey string, opts ...Option) (RunService, error) {
	if store == nil {
		return nil, fmt.Errorf("run state store is required")
	}
	if reports == nil {
		return nil, fmt.Errorf("status persistence is required")
	}
	if stateKey == "" {
		stateKey = runstate.DefaultKey
	}

	s := &runService{
		store:    store,
		reports:  reports,
		stateKey: stateKey,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *runService) CheckReadiness(ctx context.Context) error {
	ctx, span := otel.StartSpan(ctx, s.tracer, "service.CheckReadiness")
	defer span.End()

	if _, err := s.store.Get(ctx); err != nil {
		otel.RecordError(span, err)
		return fmt.Errorf("run state backend not ready: %w", err)
	}
	return nil
}

func (s *runService) GetState(ctx context.Context) (*StateView, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "service.GetState")
	defer span.End()

	state, err := s.store.Get(ctx)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(otel.AttrPriorState.String(state.Kind.String()))

	view := &StateView{
		Kind:  state.Kind.String(),
		JobID: state.JobID,
	}
	if s.coordinator != nil {
		view.Running = s.coordinator.Running()
	}
	return view, nil
}

func (s *runService) GetLastRun(ctx context.Context) (*status.RunReport, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "service.GetLastRun")
	defer span.End()

	report, err := s.reports.LoadStatus(ctx, s.stateKey)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	if report == nil {
		return nil, ErrNoRuns
	}
	span.SetAttributes(
		otel.AttrRunID.String(report.RunID),
		attribute.String("run.phase", string(report.Phase)),
	)
	return report, nil
}

func (s *runService) RequestRun(ctx context.Context) (*RunRequest, error) {
	_, span := otel.StartSpan(ctx, s.tracer, "service.RequestRun")
	defer span.End()

	if s.coordinator == nil {
		return nil, ErrSchedulerDisabled
	}
	if err := s.coordinator.TriggerNow(); err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	return &RunRequest{RequestedAt: s.now().UTC()}, nil
}
