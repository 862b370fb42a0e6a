package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/HabitGo/internal/domain"
	"github.com/utafrali/HabitGo/internal/service"
	"github.com/utafrali/HabitGo/pkg/httputil"
)

// AuthHandler handles HTTP requests for registration, sessions and password reset.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for user registration.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

// LoginRequest is the JSON request body for user login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,min=3,max=255"`
	Password string `json:"password" validate:"required,min=6,max=68"`
}

// RefreshRequest is the JSON request body for logout and token refresh.
// A blank token is reported by the service with its own message.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// ResetRequest is the JSON request body for requesting a reset email.
type ResetRequest struct {
	Email       string `json:"email" validate:"required,email,min=3,max=255"`
	RedirectURL string `json:"redirect_url" validate:"omitempty,max=500"`
}

// SetPasswordRequest is the JSON request body for completing a reset.
type SetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6,max=68"`
	Token    string `json:"token" validate:"required"`
	UIDB64   string `json:"uidb64" validate:"required"`
}

// --- Response types ---

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Email  string            `json:"email"`
	Tokens *domain.TokenPair `json:"tokens"`
}

// AccessResponse is returned by token refresh.
type AccessResponse struct {
	Access string `json:"access"`
}

// ResetTicketResponse is returned when a reset link checks out.
type ResetTicketResponse struct {
	Message string `json:"message"`
	UIDB64  string `json:"uidb64"`
	Token   string `json:"token"`
}

// --- Handlers ---

// Register handles POST /register/
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, tokens, err := h.service.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, AuthResponse{Email: u.Email, Tokens: tokens})
}

// Login handles POST /login/
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, tokens, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, AuthResponse{Email: u.Email, Tokens: tokens})
}

// Logout handles POST /logout/
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}

	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.Logout(r.Context(), id.UserID, req.Refresh); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteNoContent(w)
}

// Refresh handles POST /token/refresh/
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	access, err := h.service.Refresh(r.Context(), req.Refresh)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, AccessResponse{Access: access})
}

// RequestPasswordReset handles POST /request_reset_password/
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.service.RequestPasswordReset(r.Context(), service.ResetRequestInput{
		Email:       req.Email,
		RedirectURL: req.RedirectURL,
		Host:        r.Host,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"success": msg})
}

// PasswordResetConfirm handles GET /password_reset_confirm/{uidb64}/{token}/
func (h *AuthHandler) PasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	uidb64 := chi.URLParam(r, "uidb64")
	token := chi.URLParam(r, "token")

	msg, err := h.service.CheckResetTicket(r.Context(), uidb64, token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ResetTicketResponse{Message: msg, UIDB64: uidb64, Token: token})
}

// PasswordResetComplete handles PATCH /password_reset_complete/
func (h *AuthHandler) PasswordResetComplete(w http.ResponseWriter, r *http.Request) {
	var req SetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.service.SetNewPassword(r.Context(), service.SetPasswordInput{
		Password: req.Password,
		Token:    req.Token,
		UIDB64:   req.UIDB64,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": msg})
}
