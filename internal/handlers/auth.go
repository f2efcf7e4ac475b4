package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/eventmgr/apiserver/internal/services"
	"github.com/eventmgr/apiserver/internal/store"
	"github.com/eventmgr/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const genericResetMessage = "If a user with that email exists, a password reset link has been sent."

// AuthHandler provides the login, registration, and password-reset
// endpoints.
type AuthHandler struct {
	userService *services.UserService
	log         *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		log:         log,
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	ManagerSecret string `json:"managerSecret"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// AuthResponse is the successful login payload. The user profile never
// includes the password hash.
type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// Login verifies credentials and returns a signed token alongside the
// public profile. Unknown usernames and wrong passwords produce the
// same response.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Username and password are required.")
		return
	}

	token, user, err := h.userService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeMessage(w, http.StatusUnauthorized, "Invalid username or password.")
			return
		}
		h.log.Error("login failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred during login.")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// Register creates an account. The manager role is granted only for an
// exact manager-secret match; the user row and manager row persist
// together or not at all.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Name == "" || req.Email == "" || req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "All fields are required.")
		return
	}

	user, err := h.userService.Register(r.Context(), services.RegisterParams{
		Name:          req.Name,
		Email:         req.Email,
		Username:      req.Username,
		Password:      req.Password,
		ManagerSecret: req.ManagerSecret,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeMessage(w, http.StatusConflict, "Username or email already in use.")
			return
		}
		h.log.Error("registration failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred during registration.")
		return
	}

	message := "User created successfully. Please log in."
	if user.IsManager {
		message = "Manager account created successfully. Please log in."
	}
	writeMessage(w, http.StatusCreated, message)
}

// ForgotPassword issues a reset grant for known emails. The response is
// identical whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := h.userService.RequestPasswordReset(r.Context(), strings.TrimSpace(req.Email)); err != nil {
		h.log.Error("forgot password failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred.")
		return
	}

	writeMessage(w, http.StatusOK, genericResetMessage)
}

// ResetPassword consumes a reset grant. Unknown, mismatched, and
// expired tokens all yield the same 400 response.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Password is required.")
		return
	}

	if err := h.userService.ResetPassword(r.Context(), token, req.Password); err != nil {
		if errors.Is(err, services.ErrInvalidResetToken) {
			writeMessage(w, http.StatusBadRequest, "Password reset token is invalid or has expired.")
			return
		}
		h.log.Error("reset password failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred.")
		return
	}

	writeMessage(w, http.StatusOK, "Password has been updated successfully.")
}
