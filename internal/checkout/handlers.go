package checkout

import (
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/awibowo/backend-storefront/internal/common"
)

// Handler exposes POST /api/v1/checkout.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

type placeRequest struct {
	AddressID string `json:"address_id" validate:"required"`
}

// Place converts the authenticated user's cart into an order.
func (h *Handler) Place(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	userID, _ := common.UserID(r.Context())
	conf, err := h.Service.Place(r.Context(), userID, req.AddressID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, conf)
}
