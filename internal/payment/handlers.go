package payment

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/awibowo/backend-storefront/internal/common"
)

// Handler exposes the payment endpoints.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

type callbackRequest struct {
	IntentID string `json:"intent_id" validate:"required"`
	Outcome  string `json:"outcome" validate:"required"`
}

// CreateIntent handles POST /api/v1/orders/{orderID}/payment.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	intent, err := h.Service.CreateIntent(r.Context(), userID, chi.URLParam(r, "orderID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, intent)
}

// GetStatus handles GET /api/v1/orders/{orderID}/payment.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	intent, err := h.Service.GetStatus(r.Context(), userID, chi.URLParam(r, "orderID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, intent)
}

// Callback handles POST /api/v1/payments/callback, the provider-facing
// notification endpoint.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	intent, err := h.Service.ApplyCallback(r.Context(), req.IntentID, req.Outcome)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, intent)
}
