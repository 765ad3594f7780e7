package authz

import (
	"net/http"
	"strings"

	"github.com/iot-sensordata/stageload/internal/config"
)

// Action aliases from config for convenience within the authz package.
const (
	ActionRead  = config.ActionRead
	ActionRun   = config.ActionRun
	ActionAdmin = config.ActionAdmin
)

// RouteAction determines the required action from the HTTP method and path.
// Reads need read, requesting a run needs run, and any other mutation needs admin.
func RouteAction(method, path string) string {
	if method == http.MethodPost && strings.TrimSuffix(path, "/") == "/v1/runs" {
		return ActionRun
	}
	if method == http.MethodGet || method == http.MethodHead {
		return ActionRead
	}
	return ActionAdmin
}
