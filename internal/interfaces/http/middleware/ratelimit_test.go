package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestTokenBucketLimiter_Burst(t *testing.T) {
	l := NewTokenBucketLimiter(1, 2, 0)
	defer l.Stop()

	ok1, _ := l.Allow("a")
	ok2, info := l.Allow("a")
	ok3, _ := l.Allow("a")
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, 0, info.Remaining)
	assert.False(t, ok3)

	okB, _ := l.Allow("b")
	assert.True(t, okB, "keys have independent buckets")
	assert.Equal(t, 2, l.BucketCount())
}

func TestTokenBucketLimiter_Refill(t *testing.T) {
	l := NewTokenBucketLimiter(100, 1, 0)
	defer l.Stop()

	ok, _ := l.Allow("a")
	assert.True(t, ok)
	ok, _ = l.Allow("a")
	assert.False(t, ok)
	time.Sleep(20 * time.Millisecond)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
}

func TestTokenBucketLimiter_Cleanup(t *testing.T) {
	l := NewTokenBucketLimiter(1000, 1, time.Millisecond)
	defer l.Stop()
	l.Allow("a")
	assert.Eventually(t, func() bool { return l.BucketCount() == 0 }, time.Second, 5*time.Millisecond)
	l.Stop()
}

func TestRateLimitMiddleware(t *testing.T) {
	l := NewTokenBucketLimiter(0.001, 1, 0)
	defer l.Stop()
	r := gin.New()
	r.Use(RateLimit(l))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = serve(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "COMMON_017")
}
