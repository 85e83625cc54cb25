package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestAllow_PerKeyBuckets(t *testing.T) {
	rl := NewRateLimiter(0, 2) // no refill: exactly burst events per key

	if !rl.Allow("sender:+17158826516") || !rl.Allow("sender:+17158826516") {
		t.Fatalf("burst of 2 must be allowed")
	}
	if rl.Allow("sender:+17158826516") {
		t.Fatalf("third event must be throttled")
	}
	// A different sender has its own bucket.
	if !rl.Allow("sender:+918826516009") {
		t.Fatalf("second sender must not share the first sender's bucket")
	}
}

func TestNewRateLimiter_CoercesBurst(t *testing.T) {
	rl := NewRateLimiter(1, 0)
	if !rl.Allow("k") {
		t.Fatalf("burst 0 must coerce to 1 and allow one event")
	}
}

func TestHandler_Returns429WhenExhausted(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.Use(NewRateLimiter(0, 1).Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/", nil))
	if w1.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w1.Code)
	}

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/", nil))
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d; want 429", w2.Code)
	}
	if w2.Header().Get("Retry-After") == "" {
		t.Fatalf("Retry-After header not set")
	}
}
