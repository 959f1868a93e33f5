package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/centuary/backend-dealer/internal/common"
)

// Handler exposes the activity trail to authenticated dealers.
type Handler struct {
	Store Store
}

// Routes returns the router for the activity endpoints.
func (h Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	return r
}

// List returns the newest activity entries for the calling dealer.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "activity store not configured", nil)
		return
	}
	dealer, ok := common.DealerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	entries, err := h.Store.Recent(r.Context(), dealer.ID, limit)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch activity", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}
