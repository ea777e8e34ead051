package user

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/awibowo/backend-storefront/internal/common"
)

// Handler exposes the profile and address book endpoints.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

type updateProfileRequest struct {
	FullName  string  `json:"full_name" validate:"required,max=128"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url,max=512"`
}

// GetProfile handles GET /api/v1/me/profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	profile, err := h.Service.GetProfile(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, profile)
}

// UpdateProfile handles PUT /api/v1/me/profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	userID, _ := common.UserID(r.Context())
	profile, err := h.Service.UpdateProfile(r.Context(), userID, req.FullName, req.Phone, req.AvatarURL)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, profile)
}

// ListAddresses handles GET /api/v1/me/addresses.
func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	addresses, err := h.Service.ListAddresses(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, addresses)
}

// CreateAddress handles POST /api/v1/me/addresses.
func (h *Handler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	var req AddressInput
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	userID, _ := common.UserID(r.Context())
	address, err := h.Service.CreateAddress(r.Context(), userID, req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, address)
}

// UpdateAddress handles PUT /api/v1/me/addresses/{addressID}.
func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	var req AddressInput
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	userID, _ := common.UserID(r.Context())
	address, err := h.Service.UpdateAddress(r.Context(), userID, chi.URLParam(r, "addressID"), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, address)
}

// DeleteAddress handles DELETE /api/v1/me/addresses/{addressID}.
func (h *Handler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	if err := h.Service.DeleteAddress(r.Context(), userID, chi.URLParam(r, "addressID")); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
