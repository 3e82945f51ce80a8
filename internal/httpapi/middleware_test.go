package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vntrieu/voidthreat/internal/auth"
	"github.com/vntrieu/voidthreat/internal/httpapi/handler"
	"github.com/vntrieu/voidthreat/internal/ratelimit"
)

// denyAllLimiter denies every request (for testing 429).
type denyAllLimiter struct{}

func (denyAllLimiter) Allow(key string) (bool, int) { return false, 60 }

func TestRateLimitMiddleware_Returns429WhenDenied(t *testing.T) {
	var lim ratelimit.Limiter = denyAllLimiter{}
	handler := RateLimitMiddleware(lim, RateLimitKeyByIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After 60, got %q", w.Header().Get("Retry-After"))
	}
}

func TestRateLimitMiddleware_ProxiesWhenAllowed(t *testing.T) {
	handler := RateLimitMiddleware(&ratelimit.Noop{}, RateLimitKeyByIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("expected body ok, got %q", w.Body.String())
	}
}

func TestRequireGameToken(t *testing.T) {
	secret := []byte("test-secret")
	valid, _, err := auth.GenerateToken("game-1", "p1", false, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	var seen string
	h := RequireGameToken(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = handler.ClaimsFromRequest(r).PlayerID
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"tampered", "Bearer " + valid + "x", http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
			if tt.want == http.StatusOK && seen != "p1" {
				t.Errorf("claims not in context, got player %q", seen)
			}
		})
	}

	noSecret := RequireGameToken(nil)(h)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+valid)
	w := httptest.NewRecorder()
	noSecret.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("empty secret: expected 401, got %d", w.Code)
	}
}

func TestRateLimitKeyByPlayer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := RateLimitKeyByPlayer(req); got != "ip:10.0.0.1" {
		t.Errorf("without claims: got %q", got)
	}
	req = req.WithContext(handler.WithClaims(req.Context(), &auth.Claims{GameID: "g", PlayerID: "p1"}))
	if got := RateLimitKeyByPlayer(req); got != "player:p1" {
		t.Errorf("with claims: got %q", got)
	}
}

func TestRateLimitKeyByIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"remote addr", "10.0.0.1:1234", nil, "ip:10.0.0.1"},
		{"remote addr without port", "10.0.0.1", nil, "ip:10.0.0.1"},
		{"real ip", "10.0.0.1:1234", map[string]string{"X-Real-IP": "203.0.113.7"}, "ip:203.0.113.7"},
		{"first forwarded hop", "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2"}, "ip:203.0.113.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := RateLimitKeyByIP(req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
