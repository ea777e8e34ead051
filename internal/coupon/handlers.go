package coupon

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/awibowo/backend-storefront/internal/common"
)

// Handler exposes the admin coupon endpoints.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

type couponRequest struct {
	Code        string          `json:"code" validate:"required"`
	Kind        string          `json:"kind" validate:"required,oneof=percentage fixed_amount free_shipping"`
	Value       decimal.Decimal `json:"value"`
	MinSubtotal decimal.Decimal `json:"min_subtotal"`
	Active      bool            `json:"active"`
	StartsAt    *time.Time      `json:"starts_at"`
	EndsAt      *time.Time      `json:"ends_at"`
}

type previewRequest struct {
	Code     string          `json:"code" validate:"required"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// List handles GET /api/v1/admin/coupons.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20, 100)
	items, total, err := h.Service.List(r.Context(), int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": items,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// Create handles POST /api/v1/admin/coupons.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	created, err := h.Service.Create(r.Context(), Coupon{
		Code:        req.Code,
		Kind:        Kind(req.Kind),
		Value:       req.Value,
		MinSubtotal: req.MinSubtotal,
		Active:      req.Active,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, created)
}

// Update handles PUT /api/v1/admin/coupons/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	updated, err := h.Service.Update(r.Context(), Coupon{
		ID:          chi.URLParam(r, "id"),
		Kind:        Kind(req.Kind),
		Value:       req.Value,
		MinSubtotal: req.MinSubtotal,
		Active:      req.Active,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/v1/admin/coupons/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Preview handles POST /api/v1/admin/coupons/preview. It resolves the code
// against a hypothetical subtotal without touching any cart.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	resolved, err := h.Service.Resolve(r.Context(), req.Code, req.Subtotal)
	if err != nil {
		common.WriteError(w, AsAppError(err))
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{
		"code":          resolved.Rule.Code,
		"kind":          resolved.Rule.Kind,
		"discount":      resolved.Discount.Round(2),
		"free_shipping": resolved.FreeShipping(),
	})
}
