// Package api provides the REST API of the staged-load coordinator.
package api

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/yaml.v3"

	"github.com/iot-sensordata/stageload/internal/api/common"
	v1 "github.com/iot-sensordata/stageload/internal/api/v1"
	"github.com/iot-sensordata/stageload/internal/auth"
	"github.com/iot-sensordata/stageload/internal/service"
	"github.com/iot-sensordata/stageload/internal/versions"
)

//go:embed openapi.yaml
var openAPIYAML []byte

// cachedOpenAPIJSON is the embedded OpenAPI document converted to JSON once at package load
var cachedOpenAPIJSON []byte

func init() {
	var spec map[string]any
	if err := yaml.Unmarshal(openAPIYAML, &spec); err != nil {
		slog.Error("Failed to parse embedded OpenAPI specification", "error", err)
		return
	}
	data, err := json.Marshal(spec)
	if err != nil {
		slog.Error("Failed to convert OpenAPI specification to JSON", "error", err)
		return
	}
	cachedOpenAPIJSON = data
}

// ServerOption configures the API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares       []func(http.Handler) http.Handler
	metricsHandler    http.Handler
	authMiddleware    func(http.Handler) http.Handler
	authzMiddleware   func(http.Handler) http.Handler
	protectedResource http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithMetricsHandler serves h on /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// WithAuth authenticates requests with mw, which is expected to let public
// paths through. A non-nil protectedResource is served as RFC 9728 metadata.
func WithAuth(mw func(http.Handler) http.Handler, protectedResource http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.authMiddleware = mw
		cfg.protectedResource = protectedResource
	}
}

// WithAuthorization checks permissions after authentication
func WithAuthorization(mw func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.authzMiddleware = mw
	}
}

// NewServer creates and configures the HTTP router with the given service and options
func NewServer(svc service.RunService, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		middlewares: []func(http.Handler) http.Handler{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}
	if cfg.authMiddleware != nil {
		r.Use(cfg.authMiddleware)
	}
	if cfg.authzMiddleware != nil {
		r.Use(cfg.authzMiddleware)
	}

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(svc))
	r.Get("/version", versionHandler)
	r.Get("/openapi.json", openAPIHandler)
	if cfg.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metricsHandler)
	}

	if cfg.protectedResource != nil {
		r.Method(http.MethodGet, auth.ProtectedResourcePath, cfg.protectedResource)
	}

	r.Mount("/v1", v1.Router(svc))

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// healthHandler handles liveness checks
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

// readinessHandler reports whether the run state backend is reachable
func readinessHandler(svc service.RunService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CheckReadiness(r.Context()); err != nil {
			common.WriteErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, ReadinessResponse{Status: "ready"}, http.StatusOK)
	}
}

// versionHandler handles version information requests
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}

// openAPIHandler serves the OpenAPI specification as JSON
func openAPIHandler(w http.ResponseWriter, _ *http.Request) {
	if cachedOpenAPIJSON == nil {
		common.WriteErrorResponse(w, "OpenAPI specification unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(cachedOpenAPIJSON)
}
