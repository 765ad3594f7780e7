// Package auth provides bearer token authentication for the status API.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// errAllProvidersFailed indicates every provider rejected the token
	errAllProvidersFailed = errors.New("all providers failed to validate token")
	// errMissingToken indicates the Authorization header is absent or not a bearer token
	errMissingToken = errors.New("missing or malformed bearer token")
)

// RFC 6750 Section 3 error codes
const (
	errorCodeInvalidRequest = "invalid_request"
	errorCodeInvalidToken   = "invalid_token"
)

// defaultRealm is the default protection space identifier
const defaultRealm = "stageload"

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying the authenticated caller's claims
func WithClaims(ctx context.Context, claims jwt.MapClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims of the authenticated caller, if any
func ClaimsFromContext(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(jwt.MapClaims)
	return claims, ok
}

// NamedValidator pairs a validator with the provider it belongs to
type NamedValidator struct {
	Name      string
	Validator TokenValidator
}

type providerError struct {
	Provider string
	Error    error
}

type validationResult struct {
	Provider string
	Claims   jwt.MapClaims
	Error    error
	Errors   []providerError
}

// MultiProviderMiddleware authenticates requests against several token issuers
type MultiProviderMiddleware struct {
	validators  []NamedValidator
	resourceURL string
	realm       string
}

// NewMultiProviderMiddleware creates the middleware. Validators are tried in order.
func NewMultiProviderMiddleware(validators []NamedValidator, resourceURL, realm string) (*MultiProviderMiddleware, error) {
	if len(validators) == 0 {
		return nil, errors.New("at least one provider must be configured")
	}
	if realm == "" {
		realm = defaultRealm
	}
	return &MultiProviderMiddleware{
		validators:  validators,
		resourceURL: resourceURL,
		realm:       realm,
	}, nil
}

// Middleware returns an HTTP middleware function that performs authentication
func (m *MultiProviderMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r)
		if err != nil {
			slog.Warn("Token extraction failed",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path)
			m.writeError(w, http.StatusUnauthorized, errorCodeInvalidRequest, "missing or malformed authorization header")
			return
		}

		result := m.validateToken(r.Context(), token)
		if result.Error != nil {
			slog.Warn("Token validation failed",
				"error", result.Error,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path)
			m.writeError(w, http.StatusUnauthorized, errorCodeInvalidToken, "token validation failed")
			return
		}

		slog.Debug("Authentication successful",
			"provider", result.Provider,
			"subject", result.Claims["sub"],
			"path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), result.Claims)))
	})
}

func (m *MultiProviderMiddleware) validateToken(ctx context.Context, token string) validationResult {
	providerErrors := make([]providerError, 0, len(m.validators))

	for _, nv := range m.validators {
		claims, err := nv.Validator.ValidateToken(ctx, token)
		if err != nil {
			providerErrors = append(providerErrors, providerError{Provider: nv.Name, Error: err})
			slog.Debug("Provider failed to validate token", "provider", nv.Name, "error", err)
			continue
		}
		return validationResult{Provider: nv.Name, Claims: claims, Errors: providerErrors}
	}

	return validationResult{Error: errAllProvidersFailed, Errors: providerErrors}
}

func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}

// sanitizeHeaderValue strips CR and LF and escapes quotes so the value can
// sit inside a quoted-string
func sanitizeHeaderValue(s string) string {
	if !strings.ContainsAny(s, "\r\n\"") {
		return s
	}
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return strings.ReplaceAll(s, `"`, `\"`)
}

// writeError writes a JSON error with an RFC 6750 WWW-Authenticate challenge
func (m *MultiProviderMiddleware) writeError(w http.ResponseWriter, status int, errCode, description string) {
	wwwAuth := fmt.Sprintf(`Bearer realm="%s", error="%s", error_description="%s"`,
		sanitizeHeaderValue(m.realm), errCode, sanitizeHeaderValue(description))
	if m.resourceURL != "" {
		wwwAuth += fmt.Sprintf(`, resource_metadata="%s%s"`,
			sanitizeHeaderValue(strings.TrimSuffix(m.resourceURL, "/")), ProtectedResourcePath)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", wwwAuth)
	w.WriteHeader(status)

	resp := struct {
		Error string `json:"error"`
	}{Error: description}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// WrapWithPublicPaths wraps authMw so requests to public paths skip it
func WrapWithPublicPaths(
	authMw func(http.Handler) http.Handler,
	publicPaths []string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		authWrappedNext := authMw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicPath(r.URL.Path, publicPaths) {
				next.ServeHTTP(w, r)
				return
			}
			authWrappedNext.ServeHTTP(w, r)
		})
	}
}
