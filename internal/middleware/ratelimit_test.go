package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterPerKey(t *testing.T) {
	rl := NewRateLimiter(2)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	require.True(t, rl.Allow("a"))
	require.True(t, rl.Allow("a"))
	require.False(t, rl.Allow("a"))
	require.True(t, rl.Allow("b"))

	now = now.Add(30 * time.Second)
	require.True(t, rl.Allow("a"))
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(5)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(2 * time.Hour)
	rl.Allow("fresh")

	require.Equal(t, 1, rl.Cleanup())
	require.Len(t, rl.limiters, 1)
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1)
	r := gin.New()
	r.GET("/gen", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/gen", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	require.Equal(t, http.StatusOK, send())
	require.Equal(t, http.StatusTooManyRequests, send())
}
