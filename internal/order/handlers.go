package order

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/awibowo/backend-storefront/internal/common"
)

// Handler exposes customer order endpoints and the admin status machine.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

// List handles GET /api/v1/orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	page, perPage := common.ParsePagination(r, 20, 100)
	rows, total, err := h.Service.List(r.Context(), userID, page, perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": rows,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// Get handles GET /api/v1/orders/{orderID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	detail, err := h.Service.Get(r.Context(), userID, chi.URLParam(r, "orderID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, detail)
}

// Tracking handles GET /api/v1/orders/{orderID}/tracking.
func (h *Handler) Tracking(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	entries, err := h.Service.Tracking(r.Context(), userID, chi.URLParam(r, "orderID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, entries)
}

// Cancel handles POST /api/v1/orders/{orderID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	detail, err := h.Service.Cancel(r.Context(), userID, chi.URLParam(r, "orderID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, detail)
}

// AdminList handles GET /api/v1/admin/orders.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20, 100)
	rows, total, err := h.Service.AdminList(r.Context(), r.URL.Query().Get("status"), page, perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": rows,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// AdminGet handles GET /api/v1/admin/orders/{orderID}.
func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Service.AdminGet(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, detail)
}

// AdminSetStatus handles PATCH /api/v1/admin/orders/{orderID}/status.
func (h *Handler) AdminSetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	detail, err := h.Service.AdminSetStatus(r.Context(), chi.URLParam(r, "orderID"), req.Status, req.Note)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, detail)
}
