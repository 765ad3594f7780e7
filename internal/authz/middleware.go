package authz

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/iot-sensordata/stageload/internal/auth"
	"github.com/iot-sensordata/stageload/internal/config"
)

// ForbiddenResponse is the JSON body returned when authorization is denied.
type ForbiddenResponse struct {
	Error   string           `json:"error"`
	Message string           `json:"message"`
	Details *ForbiddenDetail `json:"details,omitempty"`
}

// ForbiddenDetail tells the caller which action was required and which
// scopes would grant it.
type ForbiddenDetail struct {
	RequiredAction string   `json:"required_action"`
	UserScopes     []string `json:"user_scopes"`
	Hint           string   `json:"hint"`
}

// Middleware creates an HTTP middleware that performs Cedar-based authorization
// on requests carrying claims from the auth middleware. Requests without
// claims arrived on a public path and pass through unchecked. Every route
// acts on the single pipeline named by pipeline.
func Middleware(authorizer Authorizer, scopeMapping []config.ScopeMappingEntry, pipeline string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			subject, _ := claims["sub"].(string)
			scopes := ExtractScopes(claims)
			grantedActions := MapScopesToActions(scopes, scopeMapping)
			requiredAction := RouteAction(r.Method, r.URL.Path)

			decision, err := authorizer.Authorize(r.Context(), Request{
				Subject:        subject,
				GrantedActions: grantedActions,
				Action:         requiredAction,
				Pipeline:       pipeline,
			})
			if err != nil {
				slog.Error("Authorization evaluation failed",
					"error", err,
					"action", requiredAction,
					"path", r.URL.Path,
					"subject", subject,
				)
				writeJSONError(w, http.StatusInternalServerError, "authorization evaluation failed")
				return
			}

			if !decision.Allowed {
				slog.Warn("Authorization denied",
					"action", requiredAction,
					"path", r.URL.Path,
					"method", r.Method,
					"subject", subject,
					"scopes", scopes,
					"granted_actions", grantedActions,
				)
				writeForbidden(w, requiredAction, scopes, scopeMapping)
				return
			}

			slog.Debug("Authorization permitted",
				"action", requiredAction,
				"path", r.URL.Path,
				"subject", subject,
				"reasons", decision.Reasons,
			)
			next.ServeHTTP(w, r)
		})
	}
}

func writeForbidden(w http.ResponseWriter, requiredAction string, userScopes []string, scopeMapping []config.ScopeMappingEntry) {
	if userScopes == nil {
		userScopes = []string{}
	}
	resp := ForbiddenResponse{
		Error:   "forbidden",
		Message: "You do not have permission to perform this action.",
		Details: &ForbiddenDetail{
			RequiredAction: requiredAction,
			UserScopes:     userScopes,
			Hint:           buildHint(requiredAction, scopeMapping),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode forbidden response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	resp := struct {
		Error string `json:"error"`
	}{Error: message}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// buildHint names the scopes that would grant requiredAction
func buildHint(requiredAction string, scopeMapping []config.ScopeMappingEntry) string {
	var matchingScopes []string
	for _, entry := range scopeMapping {
		if slices.Contains(entry.Actions, requiredAction) {
			matchingScopes = append(matchingScopes, entry.Scope)
		}
	}

	if len(matchingScopes) == 0 {
		return "No configured scopes grant the required action."
	}
	return "This operation requires one of the following scopes: " + strings.Join(matchingScopes, ", ")
}
