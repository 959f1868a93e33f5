package catalog

import (
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
	r.Get("/categories", h.categories)
	r.Get("/price-list", h.priceList)
	r.Post("/refresh", h.refresh)
	r.Get("/{productID}", h.get)
	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	params := ListParams{
		Query:    r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
	}
	products, err := h.Svc.List(r.Context(), params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	total := len(products)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": products[start:end],
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Svc.Categories(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": categories})
}

func (h *Handler) priceList(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Svc.PriceList(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	product, err := h.Svc.Product(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Refresh(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"data": "catalog cache cleared"})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	case errors.Is(err, common.ErrUnavailable):
		common.JSONError(w, http.StatusBadGateway, "CRM_UNAVAILABLE", "catalog is temporarily unavailable", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
