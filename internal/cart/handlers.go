package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/awibowo/backend-storefront/internal/common"
)

// Handler exposes cart endpoints. Authenticated users operate on their own
// cart; guests identify theirs with the X-Cart-Token header.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Qty       int32  `json:"qty" validate:"required,min=1"`
}

type updateQtyRequest struct {
	Qty int32 `json:"qty" validate:"required,min=1"`
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required"`
}

func ownerFromRequest(r *http.Request) Owner {
	owner := Owner{AnonToken: r.Header.Get("X-Cart-Token")}
	if userID, ok := common.UserID(r.Context()); ok {
		owner.UserID = userID
		owner.AnonToken = ""
	}
	return owner
}

// Get handles GET /api/v1/cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.GetOrCreate(r.Context(), ownerFromRequest(r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// AddItem handles POST /api/v1/cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.Service.AddItem(r.Context(), ownerFromRequest(r), req.ProductID, req.Qty)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// UpdateItem handles PATCH /api/v1/cart/items/{productID}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateQtyRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.Service.UpdateQty(r.Context(), ownerFromRequest(r), chi.URLParam(r, "productID"), req.Qty)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// RemoveItem handles DELETE /api/v1/cart/items/{productID}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.RemoveItem(r.Context(), ownerFromRequest(r), chi.URLParam(r, "productID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// Clear handles DELETE /api/v1/cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.Clear(r.Context(), ownerFromRequest(r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// ApplyCoupon handles POST /api/v1/cart/coupon.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.Service.ApplyCoupon(r.Context(), ownerFromRequest(r), req.Code)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// RemoveCoupon handles DELETE /api/v1/cart/coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.RemoveCoupon(r.Context(), ownerFromRequest(r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}
