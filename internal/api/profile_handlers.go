package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nabeul-archive/poemap/internal/middleware"
	"github.com/nabeul-archive/poemap/internal/profile"
)

// ProfileHandlers holds dependencies for profile HTTP handlers.
type ProfileHandlers struct {
	profiles profile.Repository
}

// NewProfileHandlers creates a new ProfileHandlers instance.
func NewProfileHandlers(profiles profile.Repository) *ProfileHandlers {
	return &ProfileHandlers{profiles: profiles}
}

// Get handles GET /profile - returns the caller's profile, creating it with
// defaults on first access.
func (h *ProfileHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())

	p, err := h.profiles.GetOrCreate(r.Context(), id.UserID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Update handles PATCH /profile - updates display fields. Role and balance
// are not client-writable.
func (h *ProfileHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())

	var upd profile.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	p, err := h.profiles.UpdateDisplay(r.Context(), id.UserID, upd)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Profile not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
