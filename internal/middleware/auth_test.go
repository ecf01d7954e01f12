package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestParseTokenWorkerClaims(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", testSecret)

	signed := signToken(t, jwt.MapClaims{
		"user_id": 123456789,
		"role":    "worker",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	claims, err := ParseToken(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(123456789), claims.UserID)
	assert.Equal(t, "worker", claims.Role)
	assert.Equal(t, "", claims.AdminID)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "other-secret")

	signed := signToken(t, jwt.MapClaims{"user_id": 1, "role": "worker"})

	_, err := ParseToken(signed)
	assert.Error(t, err)
}

func TestAuthMiddlewarePassesClaimsThrough(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", testSecret)

	var got UserClaims
	handler := Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetUserFromContext(r)
	}))

	signed := signToken(t, jwt.MapClaims{
		"user_id": 100,
		"role":    "worker",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/shift/current", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(100), got.UserID)
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", testSecret)

	handler := Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/shift/current", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleBlocksWorkers(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", testSecret)

	handler := Auth(RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})))

	signed := signToken(t, jwt.MapClaims{
		"user_id": 100,
		"role":    "worker",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/manager/shifts/clear", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
