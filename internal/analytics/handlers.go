package analytics

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/centuary/backend-dealer/internal/common"
)

// Handler exposes the dealer report endpoints.
type Handler struct {
	Svc *Service
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/sales", h.sales)
	r.Get("/top-products", h.topProducts)
	r.Get("/targets", h.targets)
	return r
}

func (h *Handler) window(r *http.Request) (time.Time, time.Time, error) {
	query := r.URL.Query()
	fromStr := query.Get("from")
	toStr := query.Get("to")
	now := h.Svc.now()
	if fromStr != "" && toStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid from date")
		}
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid to date")
		}
		if !from.Before(to) {
			return time.Time{}, time.Time{}, errors.New("from must be before to")
		}
		return from, to, nil
	}
	days := h.Svc.DefaultRange
	if days <= 0 {
		days = 30
	}
	if raw := query.Get("days"); raw != "" {
		parsed := common.AtoiDefault(raw, days)
		if parsed > 0 {
			days = parsed
		}
	}
	return now.AddDate(0, 0, -days), now, nil
}

func (h *Handler) sales(w http.ResponseWriter, r *http.Request) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	from, to, err := h.window(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	summary, err := h.Svc.SalesRange(r.Context(), dealer.ID, from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

func (h *Handler) topProducts(w http.ResponseWriter, r *http.Request) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	from, to, err := h.window(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 10)
	rows, err := h.Svc.TopProducts(r.Context(), dealer.ID, from, to, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

func (h *Handler) targets(w http.ResponseWriter, r *http.Request) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	rows, err := h.Svc.Targets(r.Context(), dealer.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, common.ErrUnavailable) {
		common.JSONError(w, http.StatusBadGateway, "CRM_UNAVAILABLE", "reports are temporarily unavailable", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
