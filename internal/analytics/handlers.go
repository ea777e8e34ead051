package analytics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/awibowo/backend-storefront/internal/common"
)

// Handler exposes the admin dashboard endpoints.
type Handler struct {
	Service *Service
}

// Sales handles GET /api/v1/admin/analytics/sales?from=2026-08-01&to=2026-09-01.
// The range defaults to the trailing 30 days.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	to := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	from := to.AddDate(0, 0, -30)
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "from must be YYYY-MM-DD", nil)
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "to must be YYYY-MM-DD", nil)
			return
		}
		to = parsed.Add(24 * time.Hour)
	}
	if !from.Before(to) {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "from must precede to", nil)
		return
	}
	points, err := h.Service.Sales(r.Context(), from, to)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, points)
}

// TopProducts handles GET /api/v1/admin/analytics/top-products.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	rows, err := h.Service.TopProducts(r.Context(), int32(limit))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, rows)
}

// Overview handles GET /api/v1/admin/analytics/overview.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Service.Overview(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, overview)
}
