package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/iot-sensordata/stageload/internal/config"
)

// ValidatorFactory builds the validator for one provider
type ValidatorFactory func(ctx context.Context, p config.OAuthProviderConfig) (TokenValidator, error)

// DefaultValidatorFactory validates against the provider's published JWKS
var DefaultValidatorFactory ValidatorFactory = func(ctx context.Context, p config.OAuthProviderConfig) (TokenValidator, error) {
	return NewJWKSValidator(ctx, p)
}

// NewAuthMiddleware creates the authentication middleware described by cfg.
// It returns the middleware, already wrapped so public paths skip it, and
// the RFC 9728 metadata handler, which is nil in anonymous mode.
func NewAuthMiddleware(
	ctx context.Context,
	cfg *config.AuthConfig,
	factory ValidatorFactory,
) (func(http.Handler) http.Handler, http.Handler, error) {
	if cfg == nil {
		slog.Info("auth: anonymous mode (no auth config)")
		return anonymousMiddleware, nil, nil
	}

	switch cfg.Mode {
	case config.AuthModeAnonymous, "":
		slog.Info("auth: anonymous mode")
		return anonymousMiddleware, nil, nil
	case config.AuthModeOAuth:
		return createOAuthMiddleware(ctx, cfg, factory)
	default:
		return nil, nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}
}

func createOAuthMiddleware(
	ctx context.Context,
	cfg *config.AuthConfig,
	factory ValidatorFactory,
) (func(http.Handler) http.Handler, http.Handler, error) {
	if cfg.OAuth == nil {
		return nil, nil, errors.New("oauth configuration is required for oauth mode")
	}
	if factory == nil {
		factory = DefaultValidatorFactory
	}
	oauth := cfg.OAuth

	validators := make([]NamedValidator, 0, len(oauth.Providers))
	issuerURLs := make([]string, 0, len(oauth.Providers))
	for _, p := range oauth.Providers {
		v, err := factory(ctx, p)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create validator for provider %q: %w", p.Name, err)
		}
		validators = append(validators, NamedValidator{Name: p.Name, Validator: v})
		issuerURLs = append(issuerURLs, p.IssuerURL)
	}

	m, err := NewMultiProviderMiddleware(validators, oauth.ResourceURL, oauth.Realm)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create multi-provider middleware: %w", err)
	}

	handler, err := newProtectedResourceHandler(oauth.ResourceURL, issuerURLs, oauth.ScopesSupported)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create protected resource handler: %w", err)
	}

	slog.Info("auth: OAuth mode", "providers", len(validators))
	return WrapWithPublicPaths(m.Middleware, PublicPaths(cfg)), handler, nil
}

// anonymousMiddleware passes requests through without authentication
func anonymousMiddleware(next http.Handler) http.Handler {
	return next
}
