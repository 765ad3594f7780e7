package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/iot-sensordata/stageload/internal/api"
	"github.com/iot-sensordata/stageload/internal/app/storage"
	"github.com/iot-sensordata/stageload/internal/auth"
	"github.com/iot-sensordata/stageload/internal/authz"
	"github.com/iot-sensordata/stageload/internal/config"
	"github.com/iot-sensordata/stageload/internal/coordinator"
	"github.com/iot-sensordata/stageload/internal/loadjob"
	"github.com/iot-sensordata/stageload/internal/objectstore"
	"github.com/iot-sensordata/stageload/internal/service"
	"github.com/iot-sensordata/stageload/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	coordinatorTracerName = "github.com/iot-sensordata/stageload/coordinator"
)

// StageloadAppOptions is a function that configures the app builder
type StageloadAppOptions func(*stageloadAppConfig) error

// stageloadAppConfig collects the builder inputs.
// It supports dependency injection for testing while providing sensible defaults for production.
type stageloadAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	storageFactory storage.Factory
	objectStore    objectstore.Store
	trigger        loadjob.Trigger
	tokenValidator auth.ValidatorFactory

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...StageloadAppOptions) (*stageloadAppConfig, error) {
	cfg := &stageloadAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	return cfg, nil
}

// NewStageloadApp builds the scheduler, the run service and the HTTP server
func NewStageloadApp(
	ctx context.Context,
	opts ...StageloadAppOptions,
) (*StageloadApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	coord, runSvc, err := buildComponents(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Ensure cleanup happens on error
	var cleanupNeeded = true
	defer func() {
		if cleanupNeeded {
			cfg.storageFactory.Cleanup()
		}
	}()

	// Build HTTP server
	httpServer, err := buildHTTPServer(ctx, cfg, runSvc)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	// Create application context
	appCtx, cancel := context.WithCancel(ctx)

	// Cleanup is now handled by the app, not in defer
	cleanupNeeded = false

	cancelFunc := func() {
		cfg.storageFactory.Cleanup()
		cancel()
	}

	return &StageloadApp{
		config: cfg.config,
		components: &AppComponents{
			Coordinator: coord,
			RunService:  runSvc,
		},
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancelFunc,
	}, nil
}

// BuildCoordinator builds a coordinator for a single invocation, as used by
// the run command and the serverless handler. The returned cleanup releases
// storage resources.
func BuildCoordinator(ctx context.Context, opts ...StageloadAppOptions) (coordinator.Coordinator, func(), error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	coord, _, err := buildComponents(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return coord, cfg.storageFactory.Cleanup, nil
}

// buildComponents creates the storage family, the coordinator and the run service.
// On error every storage resource created so far is released.
func buildComponents(
	ctx context.Context,
	b *stageloadAppConfig,
) (coordinator.Coordinator, service.RunService, error) {
	var err error

	// Create storage factory (single decision point for the state backend)
	if b.storageFactory == nil {
		b.storageFactory, err = storage.NewStorageFactory(ctx, b.config)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	coord, runSvc, err := buildCoordinatorComponents(ctx, b)
	if err != nil {
		b.storageFactory.Cleanup()
		return nil, nil, fmt.Errorf("failed to build coordinator components: %w", err)
	}
	return coord, runSvc, nil
}

// buildCoordinatorComponents builds the coordinator and the run service over it
func buildCoordinatorComponents(
	ctx context.Context,
	b *stageloadAppConfig,
) (coordinator.Coordinator, service.RunService, error) {
	slog.Info("Initializing coordinator components")

	store, err := b.storageFactory.CreateStateStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create run state store: %w", err)
	}

	reports, err := b.storageFactory.CreateStatusPersistence(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create status persistence: %w", err)
	}

	if b.objectStore == nil {
		b.objectStore, err = storage.NewObjectStore(ctx, b.config)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create object store: %w", err)
		}
	}

	if b.trigger == nil {
		b.trigger, err = storage.NewTrigger(ctx, b.config, b.objectStore)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create load trigger: %w", err)
		}
	}

	coordOpts := []coordinator.Option{
		coordinator.WithStatusPersistence(reports),
	}

	if ttl := b.config.GetLeaseTTL(); ttl > 0 {
		locker, err := b.storageFactory.CreateLocker(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create locker: %w", err)
		}
		coordOpts = append(coordOpts, coordinator.WithLocker(locker))
		slog.Info("Run lease enabled", "ttl", ttl)
	}

	// Create run metrics if meter provider is configured
	if b.meterProvider != nil {
		runMetrics, err := telemetry.NewRunMetrics(b.meterProvider)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create run metrics: %w", err)
		}
		if runMetrics != nil {
			coordOpts = append(coordOpts, coordinator.WithRunMetrics(runMetrics))
			slog.Info("Run metrics enabled")
		}
	}

	var svcOpts []service.Option
	if b.tracerProvider != nil {
		coordOpts = append(coordOpts, coordinator.WithTracer(b.tracerProvider.Tracer(coordinatorTracerName)))
		svcOpts = append(svcOpts, service.WithTracer(b.tracerProvider.Tracer(service.ServiceTracerName)))
	}

	coord, err := coordinator.New(store, b.objectStore, b.trigger, coordinator.Config{
		IncomingContainer: b.config.Stage.IncomingContainer,
		StagingContainer:  b.config.Stage.StagingContainer,
		StateKey:          b.config.State.Key,
		Interval:          b.config.GetInterval(),
		Jitter:            b.config.GetJitter(),
		LeaseTTL:          b.config.GetLeaseTTL(),
	}, coordOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create coordinator: %w", err)
	}

	svcOpts = append(svcOpts, service.WithCoordinator(coord))
	runSvc, err := service.New(store, reports, b.config.State.Key, svcOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create run service: %w", err)
	}

	slog.Info("Coordinator components initialized successfully")
	return coord, runSvc, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) StageloadAppOptions {
	return func(cfg *stageloadAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) StageloadAppOptions {
	return func(cfg *stageloadAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		parts := strings.SplitN(addr, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		host := parts[0]
		port := parts[1]

		if port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) StageloadAppOptions {
	return func(cfg *stageloadAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) StageloadAppOptions {
	return func(cfg *stageloadAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithObjectStore allows injecting a custom object store (for testing)
func WithObjectStore(s objectstore.Store) StageloadAppOptions {
	return func(cfg *stageloadAppConfig) error {
		cfg.objectStore = s
		return nil
	}
}

// WithTrigger allows injecting a custom load trigger (for testing)
func WithTrigger(t loadjob.Trigger) StageloadAppOptions {
	return func(cfg *stageloadAppConfig) error {
		cfg.trigger = t
		return nil
	}
}

// WithValidatorFactory overrides how bearer token validators are built (for testing)
func WithValidatorFactory(f auth.ValidatorFactory) StageloadAppOptions {
	return func(cfg *stageloadAppConfig) error {
		cfg.tokenValidator = f
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for run and HTTP metrics
func WithMeterProvider(mp metric.MeterProvider) StageloadAppOptions {
	return func(cfg *stageloadAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for run and HTTP tracing
func WithTracerProvider(tp trace.TracerProvider) StageloadAppOptions {
	return func(cfg *stageloadAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves the given handler on /metrics
func WithMetricsHandler(h http.Handler) StageloadAppOptions {
	return func(cfg *stageloadAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(
	ctx context.Context,
	b *stageloadAppConfig,
	svc service.RunService,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Tracing wraps everything so spans cover the whole request
	if b.tracerProvider != nil {
		b.middlewares = append([]func(http.Handler) http.Handler{telemetry.TracingMiddleware(b.tracerProvider)}, b.middlewares...)
		slog.Info("HTTP tracing middleware enabled")
	}

	// Add metrics middleware if meter provider is configured
	// This should be added early in the chain to capture all requests
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		if metricsMiddleware != nil {
			b.middlewares = append([]func(http.Handler) http.Handler{metricsMiddleware}, b.middlewares...)
			slog.Info("HTTP metrics middleware enabled")
		}
	}

	var authCfg *config.AuthConfig
	if b.config != nil {
		authCfg = b.config.Server.Auth
	}
	authMw, protectedResource, err := auth.NewAuthMiddleware(ctx, authCfg, b.tokenValidator)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth middleware: %w", err)
	}

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(b.middlewares...),
		api.WithAuth(authMw, protectedResource),
	}
	if authCfg != nil && authCfg.Mode == config.AuthModeOAuth {
		authzMw, err := buildAuthorization(authCfg, b.config.State.Key)
		if err != nil {
			return nil, err
		}
		serverOpts = append(serverOpts, api.WithAuthorization(authzMw))
	}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.metricsHandler))
	}
	router := api.NewServer(svc, serverOpts...)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}

// buildAuthorization loads the Cedar policies guarding the pipeline's routes
func buildAuthorization(cfg *config.AuthConfig, pipeline string) (func(http.Handler) http.Handler, error) {
	policies, err := cfg.ReadPolicies()
	if err != nil {
		return nil, err
	}
	authorizer, err := authz.NewCedarAuthorizer(policies)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorizer: %w", err)
	}
	slog.Info("Authorization enabled", "pipeline", pipeline, "custom_policies", policies != nil)
	return authz.Middleware(authorizer, cfg.GetScopeMapping(), pipeline), nil
}
