package server

import (
	"net/http"

	"crates/logger"
	"crates/model"
)

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string            `json:"message"`
	Token   string            `json:"token"`
	User    model.UserSummary `json:"user"`
}

const resetAcknowledgement = "If an account with that email exists, a password reset link has been sent."

// RegisterHandler creates an unverified account.
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeServiceError(w, "Register", err, "Registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully. Please check your email to verify your account.",
		"userId":  userID,
	})
}

// LoginHandler issues a session token for a verified account.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, "Login", err, "Login failed")
		return
	}

	logger.Info("[Login] login succeeded", logger.Int64("userId", user.ID))
	writeJSON(w, http.StatusOK, loginResponse{
		Message: "Login successful",
		Token:   token,
		User:    user.Summary(),
	})
}

// VerifyEmailHandler consumes the token from a verification link.
func (h *APIHandler) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.VerifyEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		writeServiceError(w, "VerifyEmail", err, "Email verification failed")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Email verified successfully"})
}

// ForgotPasswordHandler answers the same way whether or not the account
// exists.
func (h *APIHandler) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, "ForgotPassword", err, "Password reset request failed")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: resetAcknowledgement})
}

func (h *APIHandler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeServiceError(w, "ResetPassword", err, "Password reset failed")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password reset successfully"})
}

func (h *APIHandler) ResendVerificationHandler(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.ResendVerification(r.Context(), req.Email); err != nil {
		writeServiceError(w, "ResendVerification", err, "Failed to resend verification email")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Verification email sent successfully"})
}
