package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	limiter := NewRateLimiter(NewMemoryRateLimitStore(), RateLimitConfig{
		Requests: 3,
		Window:   time.Minute,
		KeyFunc:  IPKeyFunc("test"),
	})

	handler := limiter.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 over the limit, got %d", rec.Code)
	}

	// A different address has its own window.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected independent window per IP, got %d", rec.Code)
	}
}

func TestConfirmKeyFuncCombinesIPAndTicket(t *testing.T) {
	keyFunc := ConfirmKeyFunc(func(r *http.Request) string { return "abc123" })

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	keys := keyFunc(req)
	if len(keys) != 2 {
		t.Fatalf("expected ip and ticket keys, got %v", keys)
	}
	if keys[0] != "confirm:ip:10.0.0.1" || keys[1] != "confirm:ticket:abc123" {
		t.Errorf("unexpected keys: %v", keys)
	}
}

func TestGetClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if ip := GetClientIP(req); ip != "203.0.113.7" {
		t.Errorf("expected first forwarded address, got %q", ip)
	}
}
