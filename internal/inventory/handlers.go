package inventory

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
	r.Get("/", h.snapshot)
	return r
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	view, err := h.Svc.Snapshot(r.Context(), dealer.ID, r.URL.Query().Get("q"))
	if err != nil {
		if errors.Is(err, common.ErrUnavailable) {
			common.JSONError(w, http.StatusBadGateway, "CRM_UNAVAILABLE", "inventory is temporarily unavailable", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}
