package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/pricing"
)

// ProductResolver looks up catalog products when lines are added.
type ProductResolver interface {
	Product(ctx context.Context, id string) (crm.Product, error)
}

// Handler wires the cart service to HTTP.
type Handler struct {
	Svc      *Service
	Products ProductResolver
	TaxBps   int
}

// Routes registers the cart endpoints on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Clear)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{productID}/quantity", h.UpdateQuantity)
	r.Patch("/items/{productID}/discount", h.SetDiscount)
	r.Delete("/items/{productID}", h.RemoveItem)
	r.Put("/customer", h.SetCustomer)
	r.Put("/payment-terms", h.SetPaymentTerms)
	r.Put("/delivery-mode", h.SetDeliveryMode)
}

// Get returns cart contents with a pricing preview.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "dealer session required", nil)
		return
	}
	c, err := h.Svc.Get(r.Context(), dealer.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.renderCart(w, http.StatusOK, c)
}

// AddItem adds a catalog product to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "dealer session required", nil)
		return
	}
	var payload struct {
		ProductID string `json:"productId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || strings.TrimSpace(payload.ProductID) == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "productId is required", nil)
		return
	}
	product, err := h.Products.Product(r.Context(), payload.ProductID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	c, err := h.Svc.AddItem(r.Context(), dealer.ID, product)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.renderCart(w, http.StatusOK, c)
}

// UpdateQuantity shifts a line quantity by the provided delta.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "dealer session required", nil)
		return
	}
	var payload struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	c, err := h.Svc.UpdateQuantity(r.Context(), dealer.ID, chi.URLParam(r, "productID"), payload.Delta)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.renderCart(w, http.StatusOK, c)
}

// SetDiscount sets a line discount percentage. Non-numeric input is treated
// as zero, mirroring the portal's discount field behaviour.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "dealer session required", nil)
		return
	}
	var payload struct {
		Percent json.Number `json:"percent"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	percent, err := payload.Percent.Float64()
	if err != nil {
		percent = 0
	}
	c, err := h.Svc.SetDiscount(r.Context(), dealer.ID, chi.URLParam(r, "productID"), percent)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.renderCart(w, http.StatusOK, c)
}

// RemoveItem drops a line from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "dealer session required", nil)
		return
	}
	c, err := h.Svc.RemoveItem(r.Context(), dealer.ID, chi.URLParam(r, "productID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.renderCart(w, http.StatusOK, c)
}

// Clear empties the cart and selections.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "dealer session required", nil)
		return
	}
	if err := h.Svc.Clear(r.Context(), dealer.ID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"cleared": true}})
}

// SetCustomer selects the customer for the order being built.
func (h *Handler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "dealer session required", nil)
		return
	}
	var payload struct {
		CustomerID   string `json:"customerId"`
		CustomerName string `json:"customerName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	c, err := h.Svc.SetCustomer(r.Context(), dealer.ID, strings.TrimSpace(payload.CustomerID), strings.TrimSpace(payload.CustomerName))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.renderCart(w, http.StatusOK, c)
}

// SetPaymentTerms records the payment terms selection.
func (h *Handler) SetPaymentTerms(w http.ResponseWriter, r *http.Request) {
	h.setSelection(w, r, func(c *Service, dealerID, value string) (Cart, error) {
		return c.SetPaymentTerms(r.Context(), dealerID, value)
	})
}

// SetDeliveryMode records the delivery mode selection.
func (h *Handler) SetDeliveryMode(w http.ResponseWriter, r *http.Request) {
	h.setSelection(w, r, func(c *Service, dealerID, value string) (Cart, error) {
		return c.SetDeliveryMode(r.Context(), dealerID, value)
	})
}

func (h *Handler) setSelection(w http.ResponseWriter, r *http.Request, apply func(*Service, string, string) (Cart, error)) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "dealer session required", nil)
		return
	}
	var payload struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	c, err := apply(h.Svc, dealer.ID, strings.TrimSpace(payload.Value))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.renderCart(w, http.StatusOK, c)
}

func (h *Handler) renderCart(w http.ResponseWriter, status int, c Cart) {
	summary := pricing.Compute(Lines(c), h.TaxBps)
	common.JSON(w, status, map[string]any{
		"data": map[string]any{
			"cart": c,
			"summary": map[string]any{
				"subtotal": summary.Subtotal,
				"discount": summary.Discount,
				"tax":      summary.Tax,
				"total":    summary.Total,
			},
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoCustomer):
		common.JSONError(w, http.StatusUnprocessableEntity, "NO_CUSTOMER", ErrNoCustomer.Error(), nil)
	case errors.Is(err, common.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	case errors.Is(err, common.ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, common.ErrUnavailable):
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM", "catalog unavailable", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart operation failed", nil)
	}
}
