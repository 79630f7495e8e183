package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func rateLimitedRouter(rate int, window time.Duration) *gin.Engine {
	router := gin.New()
	router.Use(RateLimit(rate, window))
	router.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRateLimitAllowsUnderLimit(t *testing.T) {
	router := rateLimitedRouter(3, time.Minute)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Request %d: expected status 200, got %d", i+1, w.Code)
		}
	}
}

func TestRateLimitBlocksOverLimit(t *testing.T) {
	router := rateLimitedRouter(2, time.Minute)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", w.Code)
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	limiter := NewRateLimiter(1, 20*time.Millisecond)

	if !limiter.Allow("1.2.3.4") {
		t.Error("Expected first request to be allowed")
	}
	if limiter.Allow("1.2.3.4") {
		t.Error("Expected second request to be blocked")
	}

	time.Sleep(30 * time.Millisecond)

	if !limiter.Allow("1.2.3.4") {
		t.Error("Expected request to be allowed after window reset")
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)

	if !limiter.Allow("1.1.1.1") {
		t.Error("Expected first client to be allowed")
	}
	if !limiter.Allow("2.2.2.2") {
		t.Error("Expected second client to be allowed independently")
	}
}
