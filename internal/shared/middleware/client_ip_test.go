package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestClientIPMiddlewareSetsGinKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seenIP string
	router := gin.New()
	router.GET("/ping", ClientIPMiddleware(), func(c *gin.Context) {
		seenIP = c.GetString("client_ip")
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "203.0.113.7", seenIP)
}
