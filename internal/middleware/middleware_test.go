package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestValidateToken(t *testing.T) {
	viper.Set("jwt.secret_key", "secret")
	defer viper.Set("jwt.secret_key", "")
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name    string
		claims  jwt.MapClaims
		want    Identity
		wantErr bool
	}{
		{"subject and role", jwt.MapClaims{"sub": "reader-1", "role": "admin", "exp": exp}, Identity{AccountID: "reader-1", Role: "admin"}, false},
		{"legacy user_id", jwt.MapClaims{"user_id": 42, "exp": exp}, Identity{AccountID: "42"}, false},
		{"no subject", jwt.MapClaims{"exp": exp}, Identity{}, true},
		{"no expiry", jwt.MapClaims{"sub": "reader-1"}, Identity{}, true},
		{"expired", jwt.MapClaims{"sub": "reader-1", "exp": time.Now().Add(-time.Minute).Unix()}, Identity{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validateToken(signed(t, jwt.SigningMethodHS256, []byte("secret"), tt.claims))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("other algorithm", func(t *testing.T) {
		_, err := validateToken(signed(t, jwt.SigningMethodHS512, []byte("secret"), jwt.MapClaims{"sub": "x", "exp": exp}))
		assert.Error(t, err)
	})
}

func TestAuthMiddleware_SetsIdentity(t *testing.T) {
	viper.Set("jwt.secret_key", "secret")
	defer viper.Set("jwt.secret_key", "")

	var gotID string
	var gotAdmin bool
	handler := AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = AccountIDFrom(r.Context())
		gotAdmin = IsAdmin(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, jwt.SigningMethodHS256, []byte("secret"),
		jwt.MapClaims{"sub": "fan-1", "exp": time.Now().Add(time.Hour).Unix()}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "fan-1", gotID)
	assert.False(t, gotAdmin)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req.WithContext(WithIdentity(req.Context(), Identity{AccountID: "fan"})))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req.WithContext(WithIdentity(req.Context(), Identity{AccountID: "ops", Role: RoleAdmin})))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rr.Header().Get(RequestIDHeader))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "req-123", seen)
	assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}
