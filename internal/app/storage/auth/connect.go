package auth

import (
	"context"
	"fmt"

	"github.com/iot-sensordata/stageload/internal/config"
)

// MigrationConnectionString builds a PostgreSQL connection string suitable for
// running migrations. It resolves a dynamic auth token (if configured) and
// embeds it in the connection string so that both pgx.Connect and golang-migrate
// (which opens its own internal connection) can authenticate.
//
// Without dynamic auth the configured static password is used when there is
// one; otherwise the string has no password and ~/.pgpass applies.
func MigrationConnectionString(ctx context.Context, cfg *config.DatabaseConfig) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("database configuration is required")
	}

	user := cfg.GetMigrationUser()

	token, err := ResolveAuthToken(ctx, cfg, user)
	if err != nil {
		return "", fmt.Errorf("failed to resolve auth token for migration user: %w", err)
	}

	if token == "" && cfg.DynamicAuth == nil {
		if password, err := cfg.GetPassword(); err == nil {
			token = password
		}
	}

	return cfg.BuildConnectionStringWithAuth(user, token), nil
}
