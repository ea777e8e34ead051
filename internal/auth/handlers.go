package auth

import (
	"context"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/awibowo/backend-storefront/internal/common"
)

// CartMerger folds a guest cart into the user's cart after login.
type CartMerger interface {
	MergeGuestCart(ctx context.Context, userID, anonToken string) error
}

// Handler exposes HTTP handlers for authentication and account endpoints.
type Handler struct {
	Service    *Service
	Validate   *validator.Validate
	CartMerger CartMerger
}

type registerRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type otpRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type otpVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	user, err := h.Service.Register(r.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, user)
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	pair, err := h.Service.Login(r.Context(), req.Email, req.Password, r.UserAgent(), common.ClientIP(r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.mergeGuestCart(r, pair.User.ID)
	common.JSONData(w, http.StatusOK, pair)
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	pair, err := h.Service.Refresh(r.Context(), req.RefreshToken, r.UserAgent(), common.ClientIP(r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, pair)
}

// Logout handles POST /api/v1/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	// Logout succeeds even without a parsable body.
	_ = common.DecodeJSON(r, nil, &req)
	_ = h.Service.Logout(r.Context(), req.RefreshToken)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.WriteError(w, errUnauthorized(nil))
		return
	}
	user, err := h.Service.Me(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, user)
}

// RequestOTP handles POST /api/v1/auth/otp/request.
func (h *Handler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Service.RequestOTP(r.Context(), req.Email); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusAccepted, map[string]string{
		"message": "if the account exists, a code has been sent",
	})
}

// VerifyOTP handles POST /api/v1/auth/otp/verify.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	pair, err := h.Service.VerifyOTP(r.Context(), req.Email, req.Code, r.UserAgent(), common.ClientIP(r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.mergeGuestCart(r, pair.User.ID)
	common.JSONData(w, http.StatusOK, pair)
}

// ForgotPassword handles POST /api/v1/auth/password/forgot.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Service.InitiatePasswordReset(r.Context(), req.Email); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusAccepted, map[string]string{
		"message": "if the email exists, a reset link has been sent",
	})
}

// ResetPassword handles POST /api/v1/auth/password/reset.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := common.DecodeJSON(r, h.Validate, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// Guest carts travel in the X-Cart-Token header; merge failures never block
// a successful login.
func (h *Handler) mergeGuestCart(r *http.Request, userID string) {
	if h.CartMerger == nil {
		return
	}
	token := r.Header.Get("X-Cart-Token")
	if token == "" {
		return
	}
	_ = h.CartMerger.MergeGuestCart(r.Context(), userID, token)
}
