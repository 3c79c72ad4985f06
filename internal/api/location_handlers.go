package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/nabeul-archive/poemap/internal/location"
	"github.com/nabeul-archive/poemap/internal/middleware"
	"github.com/nabeul-archive/poemap/internal/purchase"
	"github.com/nabeul-archive/poemap/internal/validate"
)

// LocationView is the client-facing shape of a location. Locked locations
// carry only the preview; FullPoem and AudioURL appear after unlock.
type LocationView struct {
	*location.Location
	Unlocked bool `json:"unlocked"`
}

// CreateLocationRequest represents the admin request body for creating or
// replacing a location.
type CreateLocationRequest struct {
	Name        string  `json:"name"`
	Poet        string  `json:"poet"`
	Description string  `json:"description,omitempty"`
	FullPoem    string  `json:"fullPoem"`
	Price       int64   `json:"price"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	AudioURL    string  `json:"audioUrl,omitempty"`
	MuralURL    string  `json:"muralUrl,omitempty"`
	MuralType   string  `json:"muralType,omitempty"`
	DriveFileID string  `json:"drive_file_id,omitempty"`
}

// LocationHandlers holds dependencies for location HTTP handlers.
type LocationHandlers struct {
	repo      location.Repository
	purchases *purchase.Service
	views     *location.ViewCounter

	// publicBaseURL is the origin share links are built on.
	publicBaseURL string
}

// NewLocationHandlers creates a new LocationHandlers instance.
func NewLocationHandlers(repo location.Repository, purchases *purchase.Service, views *location.ViewCounter, publicBaseURL string) *LocationHandlers {
	return &LocationHandlers{
		repo:          repo,
		purchases:     purchases,
		views:         views,
		publicBaseURL: publicBaseURL,
	}
}

// redact strips the paid content from a location copy when the viewer has
// not unlocked it. The preview and mural stay visible on the map.
func redact(loc *location.Location, unlocked bool) *LocationView {
	cp := *loc
	if !unlocked {
		cp.FullPoem = ""
		cp.AudioURL = ""
	}
	return &LocationView{Location: &cp, Unlocked: unlocked}
}

// List handles GET /locations - the full catalog, redacted per viewer.
func (h *LocationHandlers) List(w http.ResponseWriter, r *http.Request) {
	viewerID := ""
	if id := IdentityFromContext(r.Context()); id != nil {
		viewerID = id.UserID
	}

	locs, err := h.repo.List(r.Context())
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list locations")
		return
	}

	unlocked, err := h.purchases.UnlockedSet(r.Context(), viewerID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to resolve unlocks")
		return
	}

	views := make([]*LocationView, 0, len(locs))
	for _, loc := range locs {
		views = append(views, redact(loc, unlocked[loc.ID]))
	}
	writeJSON(w, http.StatusOK, views)
}

// Get handles GET /locations/{id} - one location, redacted per viewer.
func (h *LocationHandlers) Get(w http.ResponseWriter, r *http.Request) {
	locID := r.PathValue("id")
	viewerID := ""
	if id := IdentityFromContext(r.Context()); id != nil {
		viewerID = id.UserID
	}

	loc, err := h.repo.GetByID(r.Context(), locID)
	if err != nil {
		if errors.Is(err, location.ErrLocationNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Location not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load location")
		return
	}

	unlocked, err := h.purchases.Unlocked(r.Context(), viewerID, locID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to resolve unlock state")
		return
	}
	writeJSON(w, http.StatusOK, redact(loc, unlocked))
}

// AddView handles POST /locations/{id}/views - bumps the view counter.
// Fire-and-forget from the client's perspective; counting failures never
// block the reading experience.
func (h *LocationHandlers) AddView(w http.ResponseWriter, r *http.Request) {
	locID := r.PathValue("id")
	if _, err := h.repo.GetByID(r.Context(), locID); err != nil {
		if errors.Is(err, location.ErrLocationNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Location not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load location")
		return
	}

	h.views.Increment(r.Context(), locID)
	w.WriteHeader(http.StatusAccepted)
}

// Create handles POST /locations - admin-only curated insert.
func (h *LocationHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if msg := validateLocationRequest(&req); msg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, msg)
		return
	}

	now := time.Now()
	loc := &location.Location{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Poet:        req.Poet,
		Description: req.Description,
		FullPoem:    req.FullPoem,
		Preview:     location.PreviewOf(req.FullPoem),
		Price:       req.Price,
		Lat:         req.Lat,
		Lng:         req.Lng,
		AudioURL:    req.AudioURL,
		MuralURL:    req.MuralURL,
		MuralType:   req.MuralType,
		DriveFileID: req.DriveFileID,
		PublishDate: &now,
	}
	if loc.DriveFileID != "" {
		loc.ThumbnailURL = location.DriveThumbnailURL(loc.DriveFileID)
	} else {
		loc.ThumbnailURL = loc.MuralURL
	}

	if err := h.repo.Insert(r.Context(), loc); err != nil {
		slog.ErrorContext(r.Context(), "failed to insert location", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create location")
		return
	}
	writeJSON(w, http.StatusCreated, redact(loc, true))
}

// Update handles PUT /locations/{id} - admin-only curated update.
func (h *LocationHandlers) Update(w http.ResponseWriter, r *http.Request) {
	locID := r.PathValue("id")

	var req CreateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if msg := validateLocationRequest(&req); msg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, msg)
		return
	}

	existing, err := h.repo.GetByID(r.Context(), locID)
	if err != nil {
		if errors.Is(err, location.ErrLocationNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Location not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load location")
		return
	}

	existing.Name = req.Name
	existing.Poet = req.Poet
	existing.Description = req.Description
	existing.FullPoem = req.FullPoem
	existing.Preview = location.PreviewOf(req.FullPoem)
	existing.Price = req.Price
	existing.Lat = req.Lat
	existing.Lng = req.Lng
	existing.AudioURL = req.AudioURL
	existing.MuralURL = req.MuralURL
	existing.MuralType = req.MuralType
	existing.DriveFileID = req.DriveFileID
	if existing.DriveFileID != "" {
		existing.ThumbnailURL = location.DriveThumbnailURL(existing.DriveFileID)
	} else {
		existing.ThumbnailURL = existing.MuralURL
	}

	if err := h.repo.Update(r.Context(), existing); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update location")
		return
	}
	writeJSON(w, http.StatusOK, redact(existing, true))
}

// Delete handles DELETE /locations/{id} - admin-only removal.
func (h *LocationHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	locID := r.PathValue("id")
	if err := h.repo.Delete(r.Context(), locID); err != nil {
		if errors.Is(err, location.ErrLocationNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Location not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to delete location")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Share handles GET /share?id={id} - resolves a deep link to its location
// payload and canonical URL. Used by the client to focus the map on a
// shared pin.
func (h *LocationHandlers) Share(w http.ResponseWriter, r *http.Request) {
	locID := r.URL.Query().Get("id")
	if locID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "id query parameter is required")
		return
	}

	loc, err := h.repo.GetByID(r.Context(), locID)
	if err != nil {
		if errors.Is(err, location.ErrLocationNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Location not found")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load location")
		return
	}

	viewerID := ""
	if id := IdentityFromContext(r.Context()); id != nil {
		viewerID = id.UserID
	}
	unlocked, err := h.purchases.Unlocked(r.Context(), viewerID, locID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to resolve unlock state")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"location": redact(loc, unlocked),
		"url":      h.publicBaseURL + "/?id=" + url.QueryEscape(locID),
	})
}

func validateLocationRequest(req *CreateLocationRequest) string {
	name, err := validate.LocationName(req.Name)
	if err != nil {
		return "name must be 1 to 120 characters"
	}
	req.Name = name

	poet, err := validate.PoetName(req.Poet)
	if err != nil {
		return "poet must be 1 to 80 characters"
	}
	req.Poet = poet

	if req.Price < 0 {
		return "price must not be negative"
	}
	if req.Lat < 0 || req.Lat > location.CanvasHeight {
		return "lat is outside the canvas"
	}
	if req.Lng < 0 || req.Lng > location.CanvasWidth {
		return "lng is outside the canvas"
	}
	return ""
}
