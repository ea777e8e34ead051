package wishlist

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/awibowo/backend-storefront/internal/common"
)

// Handler exposes the wishlist endpoints. All routes require authentication.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

type addRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

// List handles GET /api/v1/wishlist.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	items, err := h.Service.List(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, items)
}

// Add handles POST /api/v1/wishlist.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	userID, _ := common.UserID(r.Context())
	if err := h.Service.Add(r.Context(), userID, req.ProductID); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, map[string]any{"product_id": req.ProductID, "saved": true})
}

// Toggle handles POST /api/v1/wishlist/toggle.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	userID, _ := common.UserID(r.Context())
	saved, err := h.Service.Toggle(r.Context(), userID, req.ProductID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"product_id": req.ProductID, "saved": saved})
}

// Remove handles DELETE /api/v1/wishlist/{productID}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	if err := h.Service.Remove(r.Context(), userID, chi.URLParam(r, "productID")); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveToCart handles POST /api/v1/wishlist/{productID}/move-to-cart.
func (h *Handler) MoveToCart(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	view, err := h.Service.MoveToCart(r.Context(), userID, chi.URLParam(r, "productID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}
