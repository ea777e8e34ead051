package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/awibowo/backend-storefront/internal/common"
)

// Handler exposes the public catalog endpoints.
type Handler struct {
	Service *Service
}

// ListCategories handles GET /api/v1/categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Service.ListCategories(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, categories)
}

// ListBanners handles GET /api/v1/banners.
func (h *Handler) ListBanners(w http.ResponseWriter, r *http.Request) {
	banners, err := h.Service.ListBanners(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, banners)
}

// ListProducts handles GET /api/v1/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params, err := h.Service.ParseListParams(r.URL.Query())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Service.ListProducts(r.Context(), params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": result.Items,
		"meta": common.Pagination{Page: result.Page, PerPage: result.Limit, TotalItems: int(result.Total)},
	})
}

// GetProduct handles GET /api/v1/products/{slug}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Service.GetProductDetail(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, detail)
}

// ListRelated handles GET /api/v1/products/{slug}/related.
func (h *Handler) ListRelated(w http.ResponseWriter, r *http.Request) {
	limit := int32(0)
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 24 {
		limit = int32(v)
	}
	items, err := h.Service.ListRelatedProducts(r.Context(), chi.URLParam(r, "slug"), limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, items)
}
