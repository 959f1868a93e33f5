package checkout

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/lock"
)

type Handler struct {
	Svc *Service
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.placeOrder)
	return r
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	out, err := h.Svc.PlaceOrder(r.Context(), dealer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMissingCustomer):
		common.JSONError(w, http.StatusUnprocessableEntity, "NO_CUSTOMER", err.Error(), nil)
	case errors.Is(err, ErrMissingPaymentTerms):
		common.JSONError(w, http.StatusUnprocessableEntity, "NO_PAYMENT_TERMS", err.Error(), nil)
	case errors.Is(err, ErrMissingDeliveryMode):
		common.JSONError(w, http.StatusUnprocessableEntity, "NO_DELIVERY_MODE", err.Error(), nil)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", err.Error(), nil)
	case errors.Is(err, lock.ErrHeld):
		common.JSONError(w, http.StatusConflict, "ORDER_IN_FLIGHT", "an order submission is already in progress", nil)
	case errors.Is(err, common.ErrUnavailable):
		common.JSONError(w, http.StatusBadGateway, "CRM_UNAVAILABLE", "order could not be submitted, your cart is unchanged", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order could not be submitted, your cart is unchanged", nil)
	}
}
