package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/iot-sensordata/stageload/internal/loadjob"
	"github.com/iot-sensordata/stageload/internal/objectstore"
	"github.com/iot-sensordata/stageload/internal/runstate"
	"github.com/iot-sensordata/stageload/internal/status"
	"github.com/iot-sensordata/stageload/internal/telemetry"
)

const (
	// DefaultInterval is the base interval between scheduled runs
	DefaultInterval = time.Hour
	// DefaultJitter is the maximum random offset applied to the interval
	DefaultJitter = 30 * time.Second
	// DefaultLeaseTTL bounds how long a crashed holder blocks other runs
	DefaultLeaseTTL = 15 * time.Minute
)

//go:generate mockgen -destination=mocks/mock_coordinator.go -package=mocks github.com/iot-sensordata/stageload/internal/coordinator Coordinator

// Coordinator runs the staged-load protocol, either once per call to Run or
// on a schedule between Start and Stop
type Coordinator interface {
	// Run performs exactly one invocation and returns its report.
	// The report is non-nil whenever the run got as far as starting.
	Run(ctx context.Context) (*status.RunReport, error)

	// Start runs once immediately and then on every tick until ctx is
	// cancelled or Stop is called. Run errors are logged, not returned.
	Start(ctx context.Context) error

	// Stop cancels the loop and waits for it to exit
	Stop() error

	// TriggerNow asks the running loop for an immediate run
	TriggerNow() error

	// Running reports whether a run is executing right now
	Running() bool
}

// Config names the containers and timing the coordinator works with
type Config struct {
	// IncomingContainer receives new objects from producers
	IncomingContainer string
	// StagingContainer is what the load job reads from
	StagingContainer string
	// StateKey identifies the run state record; also keys the persisted report
	StateKey string
	// Interval is the base time between scheduled runs
	Interval time.Duration
	// Jitter is the maximum random offset applied to each interval
	Jitter time.Duration
	// LeaseTTL is the lease duration used when a Locker is configured
	LeaseTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.StateKey == "" {
		c.StateKey = runstate.DefaultKey
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.Jitter >= c.Interval {
		c.Jitter = c.Interval / 2
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = DefaultLeaseTTL
	}
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	store   runstate.Store
	stager  objectstore.Stager
	trigger loadjob.Trigger
	config  Config

	locker            runstate.Locker
	owner             string
	statusPersistence status.StatusPersistence
	runMetrics        *telemetry.RunMetrics
	tracer            trace.Tracer
	now               func() time.Time

	// One run at a time per process
	runMu   sync.Mutex
	running atomic.Bool

	// Lifecycle management
	lifecycleMu sync.Mutex
	cancelFunc  context.CancelFunc
	done        chan struct{}
	triggerCh   chan struct{}
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithLocker makes every run hold a lease on the run state record
func WithLocker(locker runstate.Locker) Option {
	return func(c *defaultCoordinator) {
		c.locker = locker
	}
}

// WithOwner sets the lease owner id. Defaults to a random UUID.
func WithOwner(owner string) Option {
	return func(c *defaultCoordinator) {
		if owner != "" {
			c.owner = owner
		}
	}
}

// WithStatusPersistence records a report for every run
func WithStatusPersistence(persistence status.StatusPersistence) Option {
	return func(c *defaultCoordinator) {
		c.statusPersistence = persistence
	}
}

// WithRunMetrics sets the run metrics for the coordinator
func WithRunMetrics(metrics *telemetry.RunMetrics) Option {
	return func(c *defaultCoordinator) {
		c.runMetrics = metrics
	}
}

// WithTracer sets the tracer used for run spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *defaultCoordinator) {
		c.tracer = tracer
	}
}

// New creates a new coordinator with injected dependencies
func New(
	store runstate.Store,
	stager objectstore.Stager,
	trigger loadjob.Trigger,
	cfg Config,
	opts ...Option,
) (Coordinator, error) {
	if store == nil || stager == nil || trigger == nil {
		return nil, fmt.Errorf("run state store, object stager and load trigger are required")
	}
	if cfg.IncomingContainer == "" || cfg.StagingContainer == "" {
		return nil, fmt.Errorf("incoming and staging containers are required")
	}
	if cfg.IncomingContainer == cfg.StagingContainer {
		return nil, fmt.Errorf("incoming and staging containers must differ, both are %q", cfg.IncomingContainer)
	}
	cfg.applyDefaults()

	c := &defaultCoordinator{
		store:     store,
		stager:    stager,
		trigger:   trigger,
		config:    cfg,
		owner:     uuid.NewString(),
		now:       time.Now,
		triggerCh: make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// nextInterval returns the base interval with a random jitter applied
func (c *defaultCoordinator) nextInterval() time.Duration {
	if c.config.Jitter == 0 {
		return c.config.Interval
	}
	// Generate a random offset between -jitter and +jitter
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for scheduling jitter
	jitterOffset := time.Duration(rand.Int64N(int64(2*c.config.Jitter))) - c.config.Jitter
	return c.config.Interval + jitterOffset
}

// Start begins scheduled runs
func (c *defaultCoordinator) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	if c.cancelFunc != nil {
		c.lifecycleMu.Unlock()
		return fmt.Errorf("coordinator is already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	c.done = make(chan struct{})
	done := c.done
	c.lifecycleMu.Unlock()

	defer func() {
		close(done)
		slog.Info("Staged-load coordinator shutting down")
	}()

	interval := c.nextInterval()
	slog.Info("Starting staged-load coordinator",
		"incoming", c.config.IncomingContainer,
		"staging", c.config.StagingContainer,
		"base_interval", c.config.Interval,
		"actual_interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Perform initial run
	c.scheduledRun(loopCtx, "startup")

	for {
		select {
		case <-ticker.C:
			c.scheduledRun(loopCtx, "schedule")

			// Recalculate interval with new jitter for next iteration
			ticker.Reset(c.nextInterval())
		case <-c.triggerCh:
			c.scheduledRun(loopCtx, "manual")
		case <-loopCtx.Done():
			slog.Info("Staged-load coordinator stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	c.lifecycleMu.Lock()
	cancel, done := c.cancelFunc, c.done
	c.cancelFunc = nil
	c.lifecycleMu.Unlock()

	if cancel != nil {
		slog.Info("Stopping staged-load coordinator")
		cancel()
		// Wait for the loop to finish its current run
		<-done
	}
	return nil
}

// TriggerNow queues an immediate run for the loop
func (c *defaultCoordinator) TriggerNow() error {
	c.lifecycleMu.Lock()
	started := c.cancelFunc != nil
	c.lifecycleMu.Unlock()

	if !started {
		return ErrNotStarted
	}
	if c.running.Load() {
		return ErrRunInProgress
	}
	select {
	case c.triggerCh <- struct{}{}:
		return nil
	default:
		return ErrRunPending
	}
}

// Running reports whether a run is executing
func (c *defaultCoordinator) Running() bool {
	return c.running.Load()
}

// scheduledRun performs one run from the loop and logs its outcome
func (c *defaultCoordinator) scheduledRun(ctx context.Context, reason string) {
	report, err := c.Run(ctx)
	if errors.Is(err, ErrLeaseHeld) {
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "Staged-load run failed", "trigger", reason, "error", err)
		return
	}
	slog.InfoContext(ctx, "Staged-load run finished",
		"trigger", reason,
		"run_id", report.RunID,
		"phase", report.Phase,
		"decision", report.Decision)
}
