package authz

import (
	"slices"
	"strings"

	"github.com/iot-sensordata/stageload/internal/config"
)

// ExtractScopes extracts OAuth scopes from JWT claims. It reads "scope" as a
// space-separated string (RFC 6749) and falls back to "scp" as a string array.
func ExtractScopes(claims map[string]any) []string {
	if scopeStr, ok := claims["scope"].(string); ok && scopeStr != "" {
		return strings.Fields(scopeStr)
	}

	switch scp := claims["scp"].(type) {
	case []any:
		scopes := make([]string, 0, len(scp))
		for _, s := range scp {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
		return scopes
	case []string:
		return scp
	}

	return nil
}

// MapScopesToActions maps OAuth scopes to granted actions. The result is sorted.
func MapScopesToActions(scopes []string, mapping []config.ScopeMappingEntry) []string {
	var actions []string
	for _, entry := range mapping {
		if !slices.Contains(scopes, entry.Scope) {
			continue
		}
		for _, action := range entry.Actions {
			if !slices.Contains(actions, action) {
				actions = append(actions, action)
			}
		}
	}
	slices.Sort(actions)
	return actions
}
