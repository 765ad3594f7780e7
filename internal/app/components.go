package app

import (
	"github.com/iot-sensordata/stageload/internal/coordinator"
	"github.com/iot-sensordata/stageload/internal/service"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Coordinator runs the staged-load protocol on a schedule
	Coordinator coordinator.Coordinator

	// RunService backs the HTTP API
	RunService service.RunService
}
