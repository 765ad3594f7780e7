// Package v1 provides the versioned REST handlers for the run state, the
// latest run report and on-demand runs.
package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iot-sensordata/stageload/internal/api/common"
	"github.com/iot-sensordata/stageload/internal/coordinator"
	"github.com/iot-sensordata/stageload/internal/service"
)

// Routes defines the v1 routes with dependency injection
type Routes struct {
	service service.RunService
}

// NewRoutes creates a new Routes instance with the provided service
func NewRoutes(svc service.RunService) *Routes {
	return &Routes{service: svc}
}

// Router creates the v1 router
func Router(svc service.RunService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()
	r.Get("/state", routes.getState)
	r.Get("/status", routes.getStatus)
	r.Post("/runs", routes.requestRun)

	return r
}

// getState handles GET /v1/state
func (rr *Routes) getState(w http.ResponseWriter, r *http.Request) {
	state, err := rr.service.GetState(r.Context())
	if err != nil {
		slog.Error("Failed to read run state", "error", err)
		common.WriteErrorResponse(w, "Failed to read run state", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, state, http.StatusOK)
}

// getStatus handles GET /v1/status
func (rr *Routes) getStatus(w http.ResponseWriter, r *http.Request) {
	report, err := rr.service.GetLastRun(r.Context())
	if errors.Is(err, service.ErrNoRuns) {
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to load run report", "error", err)
		common.WriteErrorResponse(w, "Failed to load run report", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, report, http.StatusOK)
}

// requestRun handles POST /v1/runs
func (rr *Routes) requestRun(w http.ResponseWriter, r *http.Request) {
	req, err := rr.service.RequestRun(r.Context())
	switch {
	case err == nil:
		common.WriteJSONResponse(w, req, http.StatusAccepted)
	case errors.Is(err, coordinator.ErrRunInProgress), errors.Is(err, coordinator.ErrRunPending):
		common.WriteErrorResponse(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrSchedulerDisabled), errors.Is(err, coordinator.ErrNotStarted):
		common.WriteErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
	default:
		slog.Error("Failed to request run", "error", err)
		common.WriteErrorResponse(w, "Failed to request run", http.StatusInternalServerError)
	}
}
