package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestLimiterAllow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := PerMinute(2)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("Expected burst of 2 to be allowed")
	}
	if l.Allow("a") {
		t.Error("Expected third event inside the minute to be refused")
	}
	if !l.Allow("b") {
		t.Error("Expected independent key to be allowed")
	}

	now = now.Add(31 * time.Second)
	if !l.Allow("a") {
		t.Error("Expected a token to refill after half a minute")
	}
}

func TestLimiterDisabled(t *testing.T) {
	l := PerMinute(0)
	for i := 0; i < 100; i++ {
		if !l.Allow("x") {
			t.Fatal("Expected disabled limiter to allow everything")
		}
	}
	if l.Len() != 0 {
		t.Errorf("Disabled limiter should not track keys, got %d", l.Len())
	}
}

func TestLimiterSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := PerMinute(5)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(time.Hour)
	l.Allow("new")
	l.Sweep()

	if l.Len() != 1 {
		t.Errorf("Expected only the fresh key to survive, got %d keys", l.Len())
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := PerHour(1)

	r := gin.New()
	r.POST("/contact", Middleware(l, ByClientIP), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/contact", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		r.ServeHTTP(w, req)
		return w
	}

	if w := send(); w.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d", w.Code)
	}
	w := send()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
}
