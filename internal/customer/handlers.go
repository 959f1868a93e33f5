package customer

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/centuary/backend-dealer/internal/common"
)

type Handler struct {
	Svc *Service
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.upsert)
	r.Get("/{customerID}", h.get)
	r.Put("/{customerID}", h.update)
	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	customers, err := h.Svc.List(r.Context(), dealer.ID, r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": customers})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	c, err := h.Svc.Get(r.Context(), dealer.ID, chi.URLParam(r, "customerID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "")
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, chi.URLParam(r, "customerID"))
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, customerID string) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var in UpsertInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if customerID != "" {
		in.ID = customerID
	}
	saved, err := h.Svc.Upsert(r.Context(), dealer.ID, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if in.ID == "" {
		status = http.StatusCreated
	}
	common.JSON(w, status, map[string]any{"data": saved})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_CUSTOMER", err.Error(), nil)
	case errors.Is(err, common.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "customer not found", nil)
	case errors.Is(err, common.ErrUnavailable):
		common.JSONError(w, http.StatusBadGateway, "CRM_UNAVAILABLE", "customer directory is temporarily unavailable", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
