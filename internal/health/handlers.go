package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingRedis(ctx context.Context, timeout time.Duration) error
	PingCRM(ctx context.Context, timeout time.Duration) error
}

var accepting atomic.Bool

func init() {
	accepting.Store(true)
}

// SetReady flips the readiness gate. Shutdown hooks call SetReady(false)
// so load balancers drain the instance before connections are closed.
func SetReady(ready bool) {
	accepting.Store(ready)
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	RedisTimeout time.Duration
	CRMTimeout   time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !accepting.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if h.Checker == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()
	redisStatus := "ok"
	if err := h.Checker.PingRedis(ctx, h.redisTimeout()); err != nil {
		redisStatus = err.Error()
	}
	crmStatus := "ok"
	if err := h.Checker.PingCRM(ctx, h.crmTimeout()); err != nil {
		crmStatus = err.Error()
	}
	status := map[string]string{
		"redis": redisStatus,
		"crm":   crmStatus,
	}
	if redisStatus != "ok" || crmStatus != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}

func (h Handler) crmTimeout() time.Duration {
	if h.CRMTimeout <= 0 {
		return 800 * time.Millisecond
	}
	return h.CRMTimeout
}
