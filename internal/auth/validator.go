package auth

//go:generate mockgen -destination=mocks/mock_validator.go -package=mocks -source=validator.go TokenValidator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/iot-sensordata/stageload/internal/config"
)

// ErrNoSigningKey is returned when the issuer publishes no key matching the token
var ErrNoSigningKey = errors.New("no signing key matches the token")

// jwksRefreshInterval bounds how often a key set is refetched
const jwksRefreshInterval = 5 * time.Minute

// signingMethods are the asymmetric algorithms accepted from an issuer
var signingMethods = []string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512", "ES256", "ES384", "ES512"}

// TokenValidator checks a bearer token and returns its claims
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (jwt.MapClaims, error)
}

// JWKSValidator validates tokens signed with keys published at a JWKS URL.
// The key set is cached and refreshed in the background.
type JWKSValidator struct {
	jwksURL string
	cache   *jwk.Cache
	parser  *jwt.Parser
}

// NewJWKSValidator registers the provider's key set and returns a validator
// bound to its issuer and audience. The cache goroutines stop when ctx is done.
func NewJWKSValidator(ctx context.Context, p config.OAuthProviderConfig) (*JWKSValidator, error) {
	if p.JWKSURL == "" {
		return nil, fmt.Errorf("provider %q has no jwksUrl", p.Name)
	}

	cache, err := jwk.NewCache(ctx, httprc.NewClient())
	if err != nil {
		return nil, fmt.Errorf("failed to start key cache: %w", err)
	}
	// Registration does not wait for the first fetch so an unreachable
	// issuer does not keep the server from starting
	if err := cache.Register(ctx, p.JWKSURL,
		jwk.WithMinInterval(jwksRefreshInterval),
		jwk.WithWaitReady(false),
	); err != nil {
		return nil, fmt.Errorf("failed to register key set %s: %w", p.JWKSURL, err)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(signingMethods),
		jwt.WithIssuer(p.IssuerURL),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if p.Audience != "" {
		opts = append(opts, jwt.WithAudience(p.Audience))
	}

	return &JWKSValidator{
		jwksURL: p.JWKSURL,
		cache:   cache,
		parser:  jwt.NewParser(opts...),
	}, nil
}

// ValidateToken verifies the token signature, issuer, audience and expiry
func (v *JWKSValidator) ValidateToken(ctx context.Context, token string) (jwt.MapClaims, error) {
	if !v.cache.Ready(ctx, v.jwksURL) {
		return nil, fmt.Errorf("key set %s is not available", v.jwksURL)
	}
	set, err := v.cache.Lookup(ctx, v.jwksURL)
	if err != nil {
		return nil, err
	}

	claims := jwt.MapClaims{}
	if _, err := v.parser.ParseWithClaims(token, claims, keyFunc(set)); err != nil {
		return nil, err
	}
	return claims, nil
}

// keyFunc picks the key named by the token's kid header. Tokens without a
// kid are accepted only when the set holds a single key.
func keyFunc(set jwk.Set) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		var key jwk.Key
		var ok bool
		if kid, _ := token.Header["kid"].(string); kid != "" {
			key, ok = set.LookupKeyID(kid)
		} else if set.Len() == 1 {
			key, ok = set.Key(0)
		}
		if !ok {
			return nil, ErrNoSigningKey
		}

		var raw any
		if err := jwk.Export(key, &raw); err != nil {
			return nil, fmt.Errorf("failed to export signing key: %w", err)
		}
		return raw, nil
	}
}
