package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/vntrieu/voidthreat/internal/auth"
)

// contextKey type for request context keys (avoids collisions with other packages).
type contextKey string

// ClaimsContextKey is the context key for verified player token claims (set by RequireGameToken).
const ClaimsContextKey contextKey = "claims"

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}

// ClaimsFromRequest returns the token claims set by the auth middleware, or nil.
func ClaimsFromRequest(r *http.Request) *auth.Claims {
	c, _ := r.Context().Value(ClaimsContextKey).(*auth.Claims)
	return c
}

// requestID returns the request ID from chi's context for logging.
func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(middleware.RequestIDKey).(string); ok {
		return id
	}
	return ""
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[%s] encode response error: %v", requestID(r), err)
	}
}
