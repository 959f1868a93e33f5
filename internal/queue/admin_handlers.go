package queue

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/centuary/backend-dealer/internal/common"
)

// AdminHandler exposes dead-letter queue inspection and replay endpoints.
// Mounted under an operator-only route group.
type AdminHandler struct {
	R        *redis.Client
	Prefix   string
	Queue    Enqueuer
	PageSize int
	Logger   zerolog.Logger
}

func (h *AdminHandler) pageSize() int {
	if h == nil || h.PageSize <= 0 {
		return 50
	}
	return h.PageSize
}

func (h *AdminHandler) dlqKey(kind string) string {
	w := Worker{Prefix: h.Prefix}
	return w.dlqKey(kind)
}

// ListDLQ returns dead-lettered tasks for a kind, newest first.
func (h *AdminHandler) ListDLQ(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.R == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queue redis unavailable", nil)
		return
	}
	kind := sanitizeKind(strings.TrimSpace(r.URL.Query().Get("kind")))
	if kind == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "valid kind query parameter required", nil)
		return
	}
	limit := int64(common.AtoiDefault(r.URL.Query().Get("limit"), h.pageSize()))
	raws, err := h.R.LRange(r.Context(), h.dlqKey(kind), 0, limit-1).Result()
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to read dlq", nil)
		return
	}
	entries := make([]map[string]any, 0, len(raws))
	for _, raw := range raws {
		msg, err := decodeMessage(raw)
		if err != nil {
			continue
		}
		entries = append(entries, map[string]any{
			"kind":     msg.Kind,
			"key":      msg.Key,
			"payload":  json.RawMessage(msg.Payload),
			"attempts": msg.Attempt,
		})
	}
	size, _ := h.R.LLen(r.Context(), h.dlqKey(kind)).Result()
	QueueDLQSize.WithLabelValues(kind).Set(float64(size))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"entries": entries, "total": size},
	})
}

// ReplayDLQ re-enqueues up to count dead-lettered tasks, oldest first, with a
// fresh attempt budget.
func (h *AdminHandler) ReplayDLQ(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.R == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queue redis unavailable", nil)
		return
	}
	var payload struct {
		Kind  string `json:"kind"`
		Count int    `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	kind := sanitizeKind(strings.TrimSpace(payload.Kind))
	if kind == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "valid kind required", nil)
		return
	}
	count := payload.Count
	if count <= 0 {
		count = 1
	}
	replayed := 0
	for i := 0; i < count; i++ {
		raw, err := h.R.RPop(r.Context(), h.dlqKey(kind)).Result()
		if err != nil {
			break
		}
		msg, err := decodeMessage(raw)
		if err != nil {
			continue
		}
		task := Task{
			Kind:           msg.Kind,
			Payload:        msg.Payload,
			IdempotencyKey: msg.Key,
			MaxAttempts:    msg.MaxAttempts,
		}
		if err := h.Queue.Enqueue(r.Context(), task); err != nil {
			h.Logger.Error().Err(err).Str("kind", kind).Msg("dlq_replay_failed")
			// put it back so nothing is lost
			_ = h.R.RPush(r.Context(), h.dlqKey(kind), raw).Err()
			break
		}
		replayed++
	}
	h.Logger.Info().Str("kind", kind).Int("replayed", replayed).Msg("dlq_replay")
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"replayed": replayed, "at": time.Now().UTC()},
	})
}

// PurgeDLQ drops all dead-lettered tasks for a kind.
func (h *AdminHandler) PurgeDLQ(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.R == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queue redis unavailable", nil)
		return
	}
	kind := sanitizeKind(strings.TrimSpace(r.URL.Query().Get("kind")))
	if kind == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "valid kind query parameter required", nil)
		return
	}
	removed, err := h.R.Del(r.Context(), h.dlqKey(kind)).Result()
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to purge dlq", nil)
		return
	}
	QueueDLQSize.WithLabelValues(kind).Set(0)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"purged": removed > 0}})
}
