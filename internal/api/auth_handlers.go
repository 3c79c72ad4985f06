// Package api provides HTTP handlers for the poem map API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nabeul-archive/poemap/internal/auth"
	"github.com/nabeul-archive/poemap/internal/middleware"
	"github.com/nabeul-archive/poemap/internal/profile"
	"github.com/nabeul-archive/poemap/internal/session"
)

// SignupRequest represents the request body for POST /auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents the request body for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse carries a fresh token pair plus the caller's profile.
type TokenResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	Profile      *profile.Profile `json:"profile"`
}

// AuthHandlers holds dependencies for authentication HTTP handlers.
type AuthHandlers struct {
	creds    *auth.Credentials
	jwt      *auth.JWTService
	sessions *session.Manager
}

// NewAuthHandlers creates a new AuthHandlers instance.
func NewAuthHandlers(creds *auth.Credentials, jwtService *auth.JWTService, sessions *session.Manager) *AuthHandlers {
	return &AuthHandlers{creds: creds, jwt: jwtService, sessions: sessions}
}

// Signup handles POST /auth/signup - registers a credential and returns tokens.
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	userID, err := h.creds.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeEmailTaken)
			WriteError(w, ctx, http.StatusConflict, ErrCodeEmailTaken, "Email is already registered")
		case errors.Is(err, auth.ErrWeakPassword):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Password does not meet the minimum length")
		default:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		}
		return
	}

	h.issueTokens(w, r, userID)
}

// Login handles POST /auth/login - authenticates a credential and returns tokens.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	userID, err := h.creds.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid email or password")
		return
	}

	h.issueTokens(w, r, userID)
}

// Refresh handles POST /auth/refresh - exchanges a refresh token for a new pair.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	claims, err := h.jwt.ValidateToken(req.RefreshToken)
	if err != nil || claims.Type != auth.TokenTypeRefresh {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid or expired refresh token")
		return
	}

	h.issueTokens(w, r, claims.Subject)
}

// Logout handles POST /auth/logout - closes the caller's session. The
// client discards its tokens; session subscribers see the cleared state.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	h.sessions.Logout(id.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// issueTokens opens a session (creating the profile with defaults on first
// login) and writes a token pair carrying the profile's current role.
func (h *AuthHandlers) issueTokens(w http.ResponseWriter, r *http.Request, userID string) {
	s, err := h.sessions.Login(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to resolve profile", "user_id", userID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to resolve profile")
		return
	}
	p := s.Profile

	access, err := h.jwt.GenerateAccessToken(userID, p.Role)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate access token")
		return
	}
	refresh, err := h.jwt.GenerateRefreshToken(userID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate refresh token")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		Profile:      p,
	})
}
