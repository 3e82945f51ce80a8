package handler

import (
	"context"
	"log"
	"net/http"
	"time"
)

// healthResponse is the JSON body for GET /healthz and GET /readyz.
type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Store   string `json:"store,omitempty"`
}

// Pinger reports whether the backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

const readyTimeout = 2 * time.Second

// Healthz handles GET /healthz.
//
// @Summary      Health check
// @Description  Liveness check. No authentication required.
// @Tags         health
// @Produce      json
// @Success      200  {object}  healthResponse
// @Router       /healthz [get]
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok", Service: "voidthreat"})
}

// Readyz returns the GET /readyz handler: 503 while the store does not answer a ping.
//
// @Summary      Readiness check
// @Description  Pings the store. No authentication required.
// @Tags         health
// @Produce      json
// @Success      200  {object}  healthResponse
// @Failure      503  {object}  healthResponse
// @Router       /readyz [get]
func Readyz(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			log.Printf("[%s] readiness ping failed: %v", requestID(r), err)
			writeJSON(w, r, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Service: "voidthreat", Store: "down"})
			return
		}
		writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok", Service: "voidthreat", Store: "up"})
	}
}
