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

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func callAdminJWT(header string) (*httptest.ResponseRecorder, string) {
	adminID := ""
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adminID, _ = AdminFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/organizations", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	AdminJWT(testSecret)(next).ServeHTTP(rec, req)
	return rec, adminID
}

func TestAdminJWT_ValidToken(t *testing.T) {
	token := signedToken(t, testSecret, jwt.MapClaims{
		"admin_id": "admin-1",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	rec, adminID := callAdminJWT("Bearer " + token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-1", adminID)
}

func TestAdminJWT_Rejections(t *testing.T) {
	wrongKey := signedToken(t, "other-secret", jwt.MapClaims{"admin_id": "admin-1"})
	expired := signedToken(t, testSecret, jwt.MapClaims{
		"admin_id": "admin-1",
		"exp":      time.Now().Add(-time.Hour).Unix(),
	})
	noClaim := signedToken(t, testSecret, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"wrong key":      "Bearer " + wrongKey,
		"expired":        "Bearer " + expired,
		"no admin claim": "Bearer " + noClaim,
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec, adminID := callAdminJWT(header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, adminID)
		})
	}
}
