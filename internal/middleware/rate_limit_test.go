package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestIPRateLimiterReturnsRateLimitedEnvelope(t *testing.T) {
	limiter := NewIPRateLimiterWithMaxEntries(1, time.Minute, 32)
	handler := limiter.Middleware("Too many requests")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	req1 := httptest.NewRequest(http.MethodGet, "/api/products?search=milk", nil)
	req1.RemoteAddr = "127.0.0.1:12345"
	handler.ServeHTTP(first, req1)
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request status 200, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/api/products?search=milk", nil)
	req2.RemoteAddr = "127.0.0.1:12345"
	handler.ServeHTTP(second, req2)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request status 429, got %d", second.Code)
	}
	body := second.Body.String()
	if !strings.Contains(body, `"code":"rate_limited"`) {
		t.Fatalf("expected rate_limited error code in response body, got %s", body)
	}
}

func TestIPRateLimiterBoundsTrackedAddresses(t *testing.T) {
	limiter := NewIPRateLimiterWithMaxEntries(1, time.Minute, 2)
	handler := limiter.Middleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i, addr := range []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1", "10.0.0.4:1"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = addr
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 for a fresh address, got %d", i, rr.Code)
		}
	}
	if got := len(limiter.inner.attempt); got > 2 {
		t.Fatalf("expected at most 2 tracked addresses, got %d", got)
	}
}
