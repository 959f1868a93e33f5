package grn

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/centuary/backend-dealer/internal/common"
)

// Handler wires goods receipt reconciliation to HTTP.
type Handler struct {
	Svc *Service
}

// Routes registers the GRN endpoints on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{recordID}", h.Get)
	r.Put("/{recordID}/lines/{productID}", h.SetReceived)
	r.Post("/{recordID}/lines/{productID}/accept-all", h.AcceptAll)
}

// List returns all receipts with reconciliation status.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "dealer session required", nil)
		return
	}
	views, err := h.Svc.List(r.Context(), dealer.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"receipts": views}})
}

// Get returns one receipt.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "dealer session required", nil)
		return
	}
	view, err := h.Svc.Get(r.Context(), dealer.ID, chi.URLParam(r, "recordID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"receipt": view}})
}

// SetReceived updates the received quantity on one line.
func (h *Handler) SetReceived(w http.ResponseWriter, r *http.Request) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "dealer session required", nil)
		return
	}
	var payload struct {
		Received *int `json:"received"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Received == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "received quantity is required", nil)
		return
	}
	view, err := h.Svc.SetReceived(r.Context(), dealer.ID, chi.URLParam(r, "recordID"), chi.URLParam(r, "productID"), *payload.Received)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"receipt": view}})
}

// AcceptAll receives the full ordered quantity for one line.
func (h *Handler) AcceptAll(w http.ResponseWriter, r *http.Request) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "dealer session required", nil)
		return
	}
	view, err := h.Svc.AcceptAll(r.Context(), dealer.ID, chi.URLParam(r, "recordID"), chi.URLParam(r, "productID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"receipt": view}})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_QUANTITY", err.Error(), nil)
	case errors.Is(err, common.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, common.ErrUnavailable):
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM", "crm unavailable", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "grn operation failed", nil)
	}
}
