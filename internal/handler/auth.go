package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/news-api/internal/auth"
	"github.com/sakif/news-api/internal/model"
	"github.com/sakif/news-api/internal/service"
)

// AuthHandler serves the /api/auth endpoints.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister / HandleLogin      → account creation and the login gate
//   - HandleRefresh / HandleLogout      → refresh token lifecycle
//   - HandleVerifyEmail / HandleResend  → email verification tokens
//   - HandleMe / HandleUpdateMe / HandleChangePassword → the caller's account
//
// Every rule lives in the service layer; the handler decodes, calls, encodes.
type AuthHandler struct {
	auth         *service.AuthService
	verification *service.VerificationService
	logger       *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, verification *service.VerificationService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         authService,
		verification: verification,
		logger:       logger,
	}
}

type registerRequest struct {
	Email           string `json:"email"            validate:"required"`
	Username        string `json:"username"         validate:"required"`
	Password        string `json:"password"         validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

type registerResponse struct {
	User                  *model.User `json:"user"`
	Tokens                auth.Pair   `json:"tokens"`
	VerificationEmailSent bool        `json:"verification_email_sent"`
	Message               string      `json:"message"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"email", "username", "password", "password_confirm", "first_name", "last_name"}
// RESPONSE: 201 {"user", "tokens": {"access", "refresh"}, "verification_email_sent", "message"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.auth.Register(r.Context(), service.RegisterInput{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	msg := "Registration successful. Please check your email to verify your account."
	if !res.EmailSent {
		msg = "Registration successful, but the verification email could not be sent. Request a new one."
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		User:                  res.User,
		Tokens:                res.Tokens,
		VerificationEmailSent: res.EmailSent,
		Message:               msg,
	})
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	User    *model.User `json:"user"`
	Tokens  auth.Pair   `json:"tokens"`
	Message string      `json:"message"`
}

// HandleLogin exchanges credentials for a token pair.
//
// HTTP: POST /api/auth/login
// Failures (bad credentials, disabled, unverified) are 400s naming the reason.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{User: res.User, Tokens: res.Tokens, Message: "Login successful"})
}

type refreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// HandleRefresh mints a new access token.
//
// HTTP: POST /api/auth/token/refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	access, err := h.auth.Refresh(r.Context(), req.Refresh)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

// HandleLogout revokes the caller's refresh token.
//
// HTTP: POST /api/auth/logout (bearer)
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.auth.Logout(r.Context(), userID, req.Refresh); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logout successful"})
}

type verifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// HandleVerifyEmail consumes a verification token.
//
// HTTP: POST /api/auth/verify-email
// RESPONSE: 200 {"message", "user"} or 400 with field "token".
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.verification.Consume(r.Context(), req.Token)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Email verified successfully. You can now log in.",
		"user":    user,
	})
}

type resendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// HandleResendVerification issues a fresh verification token.
//
// HTTP: POST /api/auth/resend-verification
// A mail failure is a 500: the whole point of the call was the email.
func (h *AuthHandler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	sent, err := h.verification.Resend(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !sent {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "email_not_sent",
			Message: "Failed to send verification email. Please try again later.",
		})
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Verification email sent successfully."})
}

// HandleMe returns the caller's account.
//
// HTTP: GET /api/auth/profile (bearer)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	user, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateMeRequest struct {
	Username  *string `json:"username"`
	FirstName *string `json:"first_name" validate:"omitnil,max=150"`
	LastName  *string `json:"last_name"  validate:"omitnil,max=150"`
}

// HandleUpdateMe edits username and names. Omitted fields are unchanged.
//
// HTTP: PUT /api/auth/profile (bearer)
func (h *AuthHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req updateMeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.auth.UpdateMe(r.Context(), userID, service.AccountUpdate{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type changePasswordRequest struct {
	OldPassword        string `json:"old_password"         validate:"required"`
	NewPassword        string `json:"new_password"         validate:"required"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required"`
}

// HandleChangePassword replaces the caller's password.
//
// HTTP: POST /api/auth/change-password (bearer)
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	err = h.auth.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword, req.NewPasswordConfirm)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password changed successfully"})
}
