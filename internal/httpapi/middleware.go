package httpapi

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/vntrieu/voidthreat/internal/auth"
	"github.com/vntrieu/voidthreat/internal/httpapi/handler"
	"github.com/vntrieu/voidthreat/internal/ratelimit"
)

// RateLimitMiddleware returns a middleware that limits by key extracted from the request (e.g. IP).
// When over limit, responds with 429 and optional Retry-After header.
func RateLimitMiddleware(limiter ratelimit.Limiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				key = "unknown"
			}
			allowed, retryAfter := limiter.Allow(key)
			if !allowed {
				if retryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				}
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitKeyByIP keys by client IP: X-Real-IP, then the first
// X-Forwarded-For hop, then RemoteAddr without its port.
func RateLimitKeyByIP(r *http.Request) string {
	if x := strings.TrimSpace(r.Header.Get("X-Real-IP")); x != "" {
		return "ip:" + x
	}
	if x := r.Header.Get("X-Forwarded-For"); x != "" {
		first, _, _ := strings.Cut(x, ",")
		if first = strings.TrimSpace(first); first != "" {
			return "ip:" + first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// DefaultMaxBodyBytes caps JSON request bodies.
const DefaultMaxBodyBytes = 1 << 20 // 1MB

// LimitRequestBody returns middleware that limits request body size; over-size requests get 413.
func LimitRequestBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// RequireGameToken returns middleware that requires a valid player token
// (Authorization Bearer or ?token=). Claims are stored in the request context.
func RequireGameToken(tokenSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(tokenSecret) == 0 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			token := auth.TokenFromRequest(r)
			if token == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			claims, err := auth.VerifyToken(token, tokenSecret)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(handler.WithClaims(r.Context(), claims)))
		})
	}
}

// RateLimitKeyByPlayer keys by the token's player, falling back to the client IP.
func RateLimitKeyByPlayer(r *http.Request) string {
	if c := handler.ClaimsFromRequest(r); c != nil {
		return "player:" + c.PlayerID
	}
	return RateLimitKeyByIP(r)
}
