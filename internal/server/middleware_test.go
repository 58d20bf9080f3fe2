package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajkumarpandit/macrofin/internal/common"
)

func signTestToken(t *testing.T, secret, sub string, expiry time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  sub,
		"role": "user",
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(expiry).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func userEcho() (http.Handler, *string) {
	var seen string
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = common.ResolveUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}), &seen
}

func TestBearerTokenMiddleware(t *testing.T) {
	config := common.NewDefaultConfig()
	inner, seen := userEcho()
	handler := bearerTokenMiddleware(config)(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/ledgers", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, config.Auth.JWTSecret, "alice", time.Hour))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", *seen)
}

func TestBearerTokenMiddlewareRejectsBadToken(t *testing.T) {
	config := common.NewDefaultConfig()
	inner, _ := userEcho()
	handler := bearerTokenMiddleware(config)(inner)

	for name, token := range map[string]string{
		"garbage": "not-a-token",
		"expired": signTestToken(t, config.Auth.JWTSecret, "alice", -time.Hour),
		"wrong key": signTestToken(t, "some-other-secret", "alice", time.Hour),
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/ledgers", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
}

func TestBearerTokenMiddlewarePassesThroughWithoutHeader(t *testing.T) {
	config := common.NewDefaultConfig()
	inner, seen := userEcho()
	handler := userContextMiddleware(bearerTokenMiddleware(config)(inner))

	// No auth headers at all: single-tenant fallback.
	req := httptest.NewRequest(http.MethodGet, "/api/ledgers", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "default", *seen)
}

func TestUserContextMiddlewareHeader(t *testing.T) {
	inner, seen := userEcho()
	handler := userContextMiddleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/ledgers", nil)
	req.Header.Set("X-Macrofin-User-ID", "bob")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "bob", *seen)
}

func TestCORSPreflight(t *testing.T) {
	inner, _ := userEcho()
	handler := corsMiddleware(inner)

	req := httptest.NewRequest(http.MethodOptions, "/api/ledgers", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(common.NewSilentLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/ledgers", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
