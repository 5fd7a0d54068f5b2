package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/x", func(c *gin.Context) {
		rid, _ := c.Get("request_id")
		c.JSON(http.StatusOK, gin.H{"request_id": rid})
	})
	return r
}

func get(r http.Handler, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := newRouter(RequestID())

	w := get(r, nil)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	w = get(r, map[string]string{RequestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Contains(t, w.Body.String(), "abc-123")
}

func TestAdminAuth(t *testing.T) {
	r := newRouter(AdminAuth("key-1"))

	assert.Equal(t, http.StatusUnauthorized, get(r, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, map[string]string{"Authorization": "Bearer nope"}).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, map[string]string{"Authorization": "key-1"}).Code)
	assert.Equal(t, http.StatusOK, get(r, map[string]string{"Authorization": "Bearer key-1"}).Code)

	open := newRouter(AdminAuth(""))
	assert.Equal(t, http.StatusUnauthorized, get(open, map[string]string{"Authorization": "Bearer "}).Code)
}

func TestIPRateLimiter(t *testing.T) {
	r := newRouter(NewIPRateLimiter(0.001, 2).Middleware())

	assert.Equal(t, http.StatusOK, get(r, nil).Code)
	assert.Equal(t, http.StatusOK, get(r, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, nil).Code)

	unlimited := newRouter(NewIPRateLimiter(0, 1).Middleware())
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get(unlimited, nil).Code)
	}
}

func TestIPRateLimiterDropsIdleBuckets(t *testing.T) {
	l := NewIPRateLimiter(1, 2) // a full refill takes 2s
	l.maxEntries = 2
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.get("10.0.0.1")
	l.get("10.0.0.2")
	assert.Len(t, l.limiters, 2)

	now = now.Add(time.Second)
	l.get("10.0.0.2")
	now = now.Add(1500 * time.Millisecond)

	// 10.0.0.1 has been idle for 2.5s, 10.0.0.2 only 1.5s.
	l.get("10.0.0.3")
	assert.Len(t, l.limiters, 2)
	_, kept := l.limiters["10.0.0.2"]
	assert.True(t, kept)
	_, stale := l.limiters["10.0.0.1"]
	assert.False(t, stale)
}
