package auth

import (
	"path"
	"strings"

	"github.com/iot-sensordata/stageload/internal/config"
)

// DefaultPublicPaths are served without credentials so probes, scrapers and
// clients discovering the authorization server keep working
var DefaultPublicPaths = []string{
	"/health",
	"/readiness",
	"/version",
	"/openapi.json",
	"/metrics",
	"/.well-known",
}

// PublicPaths returns the default public paths plus any configured in cfg
func PublicPaths(cfg *config.AuthConfig) []string {
	paths := append([]string{}, DefaultPublicPaths...)
	if cfg != nil {
		paths = append(paths, cfg.PublicPaths...)
	}
	return paths
}

// IsPublicPath checks if a path should bypass authentication.
// Paths carrying encoded separators are never public. The request path is
// cleaned before matching, and a public path matches itself and anything
// below it on a segment boundary, so /health matches /health/live but not
// /healthz.
func IsPublicPath(requestPath string, publicPaths []string) bool {
	// %2f = /, %2e = .
	lowerPath := strings.ToLower(requestPath)
	if strings.Contains(lowerPath, "%2f") || strings.Contains(lowerPath, "%2e") {
		return false
	}

	cleanPath := cleanAbs(requestPath)
	for _, publicPath := range publicPaths {
		cleanPublicPath := cleanAbs(publicPath)

		// "/" makes everything public
		if cleanPublicPath == "/" {
			return true
		}
		if cleanPath == cleanPublicPath || strings.HasPrefix(cleanPath, cleanPublicPath+"/") {
			return true
		}
	}
	return false
}

func cleanAbs(p string) string {
	p = path.Clean(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
