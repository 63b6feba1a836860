package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sdmusic/service/internal/response"
	"github.com/sdmusic/service/internal/user"
)

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type signupRequest struct {
	Name     string `json:"name"     example:"Ann Listener"`
	Email    string `json:"email"    example:"ann@example.com"`
	Password string `json:"password" example:"hunter22"`
}

type loginRequest struct {
	Email    string `json:"email"    example:"ann@example.com"`
	Password string `json:"password" example:"hunter22"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" example:"ann@example.com"`
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword" example:"correct-horse"`
}

type verifyResetTokenRequest struct {
	Token string `json:"token" example:"9f86d081884c7d65..."`
}

type verifyResetTokenData struct {
	Email string `json:"email" example:"ann@example.com"`
}

type sessionData struct {
	Token string     `json:"token" example:"eyJhbGci..."`
	User  *user.User `json:"user"`
}

// Signup godoc
//
//	@Summary		Sign up
//	@Description	Create a listener account and return an access token.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		signupRequest	true	"Account details"
//	@Success		201		{object}	response.Envelope{data=sessionData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		response.BadRequest(w, "name is required")
		return
	}
	if !validEmail(req.Email) {
		response.BadRequest(w, "invalid email address")
		return
	}

	token, u, err := h.svc.Signup(r.Context(), req.Name, req.Email, req.Password)
	switch {
	case errors.Is(err, ErrWeakPassword):
		response.BadRequest(w, "password must be at least 6 characters")
		return
	case errors.Is(err, user.ErrAlreadyExists):
		response.Conflict(w, "email already registered")
		return
	case err != nil:
		response.InternalError(w)
		return
	}

	response.Created(w, "account created", sessionData{Token: token, User: u})
}

// Login godoc
//
//	@Summary		Log in
//	@Description	Exchange email and password for an access token.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		loginRequest	true	"Credentials"
//	@Success		200		{object}	response.Envelope{data=sessionData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		response.BadRequest(w, "email and password are required")
		return
	}

	token, u, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		response.Unauthorized(w, "invalid email or password")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OKMessage(w, "logged in", sessionData{Token: token, User: u})
}

// ForgotPassword godoc
//
//	@Summary		Request password reset
//	@Description	Issue a one-hour reset token for the account. Always succeeds so account existence is not revealed. In development the token is printed to server logs.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		forgotPasswordRequest	true	"Account email"
//	@Success		200		{object}	response.Envelope
//	@Failure		400		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if !validEmail(req.Email) {
		response.BadRequest(w, "invalid email address")
		return
	}

	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		response.InternalError(w)
		return
	}

	response.OKMessage(w, "if the account exists, a reset link has been sent", nil)
}

// ResetPassword godoc
//
//	@Summary		Reset password
//	@Description	Set a new password using a reset token. Each token works once.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			token	path		string					true	"Reset token"
//	@Param			request	body		resetPasswordRequest	true	"New password"
//	@Success		200		{object}	response.Envelope
//	@Failure		400		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/reset-password/{token} [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	err := h.svc.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.NewPassword)
	switch {
	case errors.Is(err, ErrWeakPassword):
		response.BadRequest(w, "password must be at least 6 characters")
		return
	case errors.Is(err, ErrInvalidResetToken):
		response.BadRequest(w, "invalid or expired reset token")
		return
	case err != nil:
		response.InternalError(w)
		return
	}

	response.OKMessage(w, "password updated", nil)
}

// VerifyResetToken godoc
//
//	@Summary		Verify reset token
//	@Description	Check that a reset token is still usable and return the account email. The token is not consumed.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		verifyResetTokenRequest	true	"Reset token"
//	@Success		200		{object}	response.Envelope{data=verifyResetTokenData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/verify-reset-token [post]
func (h *Handler) VerifyResetToken(w http.ResponseWriter, r *http.Request) {
	var req verifyResetTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		response.BadRequest(w, "token is required")
		return
	}

	email, err := h.svc.VerifyResetToken(r.Context(), strings.TrimSpace(req.Token))
	if errors.Is(err, ErrInvalidResetToken) {
		response.BadRequest(w, "invalid or expired reset token")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OKMessage(w, "token is valid", verifyResetTokenData{Email: email})
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	return err == nil && addr.Name == ""
}
