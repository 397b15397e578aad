package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthEnvelope is the /health response.
type HealthEnvelope struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
}

// HealthHandler handles liveness and readiness endpoints.
type HealthHandler struct {
	store   Pinger
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewHealthHandler(store Pinger, log *zap.Logger) *HealthHandler {
	return &HealthHandler{store: store, log: log, timeout: 2 * time.Second, now: time.Now}
}

// Health pings the store and answers 503 when it is unreachable.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthEnvelope{Status: "ok", Timestamp: h.now().UTC(), Database: "connected"}
	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		resp.Status, resp.Database = "error", "disconnected"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Ping is a liveness probe that never touches the store.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "action") == "ping" {
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
		return
	}
	writeError(w, h.log, errUnknownAction)
}
