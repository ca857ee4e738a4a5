package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend/pkg/jwt"
)

const testSecret = "middleware-test-secret"

func signToken(t *testing.T, secret, tokenType string, userID string) string {
	t.Helper()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"user_id": userID,
		"type":    tokenType,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authTestRouter() (*gin.Engine, *uuid.UUID) {
	gin.SetMode(gin.TestMode)

	var seenUserID uuid.UUID
	router := gin.New()
	router.GET("/protected", AuthMiddleware(jwt.NewManager(testSecret)), func(c *gin.Context) {
		seenUserID = c.MustGet("userID").(uuid.UUID)
		c.JSON(200, gin.H{"ok": true})
	})
	return router, &seenUserID
}

func TestAuthMiddlewareAcceptsAccessToken(t *testing.T) {
	router, seenUserID := authTestRouter()
	userID := uuid.New()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "access", userID.String()))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, *seenUserID)
}

func TestAuthMiddlewareRejections(t *testing.T) {
	router, _ := authTestRouter()

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc123"},
		{"refresh token", "Bearer " + signToken(t, testSecret, "refresh", uuid.NewString())},
		{"wrong secret", "Bearer " + signToken(t, "another-secret", "access", uuid.NewString())},
		{"user id not a uuid", "Bearer " + signToken(t, testSecret, "access", "not-a-uuid")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}
