package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iot-sensordata/stageload/internal/config"
)

const (
	testIssuer   = "https://idp.example.com"
	testAudience = "stageload"
	testKeyID    = "sensor-key-1"
)

// jwksServer publishes the public half of key under testKeyID
func jwksServer(t *testing.T, key *rsa.PrivateKey) *httptest.Server {
	t.Helper()

	pub, err := jwk.Import(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, pub.Set(jwk.KeyIDKey, testKeyID))

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	body, err := json.Marshal(set)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestJWKSValidator_ValidateToken(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := jwksServer(t, key)

	validator, err := NewJWKSValidator(t.Context(), config.OAuthProviderConfig{
		Name:      "corp",
		IssuerURL: testIssuer,
		Audience:  testAudience,
		JWKSURL:   srv.URL,
	})
	require.NoError(t, err)

	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss": testIssuer,
			"aud": testAudience,
			"sub": "scheduler",
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	tests := []struct {
		name    string
		token   func() string
		wantErr bool
	}{
		{
			name:  "valid token",
			token: func() string { return signToken(t, key, testKeyID, valid()) },
		},
		{
			name:  "single key without kid",
			token: func() string { return signToken(t, key, "", valid()) },
		},
		{
			name: "expired",
			token: func() string {
				c := valid()
				c["exp"] = time.Now().Add(-time.Hour).Unix()
				return signToken(t, key, testKeyID, c)
			},
			wantErr: true,
		},
		{
			name: "missing expiry",
			token: func() string {
				c := valid()
				delete(c, "exp")
				return signToken(t, key, testKeyID, c)
			},
			wantErr: true,
		},
		{
			name: "wrong issuer",
			token: func() string {
				c := valid()
				c["iss"] = "https://elsewhere.example.com"
				return signToken(t, key, testKeyID, c)
			},
			wantErr: true,
		},
		{
			name: "wrong audience",
			token: func() string {
				c := valid()
				c["aud"] = "billing"
				return signToken(t, key, testKeyID, c)
			},
			wantErr: true,
		},
		{
			name:    "unknown kid",
			token:   func() string { return signToken(t, key, "rotated-away", valid()) },
			wantErr: true,
		},
		{
			name:    "signed by another key",
			token:   func() string { return signToken(t, otherKey, testKeyID, valid()) },
			wantErr: true,
		},
		{
			name: "symmetric algorithm",
			token: func() string {
				signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, valid()).SignedString([]byte("secret"))
				require.NoError(t, err)
				return signed
			},
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   func() string { return "not-a-jwt" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			claims, err := validator.ValidateToken(t.Context(), tt.token())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "scheduler", claims["sub"])
		})
	}
}

func TestNewJWKSValidator_RequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewJWKSValidator(t.Context(), config.OAuthProviderConfig{Name: "corp", IssuerURL: testIssuer})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no jwksUrl")
}
