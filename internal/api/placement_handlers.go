package api

import (
	"encoding/json"
	"net/http"

	"github.com/nabeul-archive/poemap/internal/location"
	"github.com/nabeul-archive/poemap/internal/middleware"
	"github.com/nabeul-archive/poemap/internal/viewport"
)

// PlacementRequest resolves a click on the rendered map into logical canvas
// coordinates. ViewBox is the client's current camera; when omitted the full
// canvas is assumed.
type PlacementRequest struct {
	ViewBox *viewport.ViewBox `json:"viewbox,omitempty"`
	ScreenX float64           `json:"screen_x"`
	ScreenY float64           `json:"screen_y"`
	ClientW float64           `json:"client_w"`
	ClientH float64           `json:"client_h"`
}

// PlacementResponse carries the pending pin coordinates for a new location.
// OnCanvas is false when the click lands outside the logical canvas; such
// coordinates will be rejected by the submission details step.
type PlacementResponse struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	OnCanvas bool    `json:"on_canvas"`
}

// ResolvePlacement handles POST /locations/placement - translates an admin's
// map click into the lat/lng a new submission should carry. The catalog uses
// a logical canvas, so the server owns the screen-to-canvas transform.
func (h *LocationHandlers) ResolvePlacement(w http.ResponseWriter, r *http.Request) {
	var req PlacementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if req.ClientW <= 0 || req.ClientH <= 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "client_w and client_h must be positive")
		return
	}

	box := viewport.DefaultViewBox()
	if req.ViewBox != nil {
		if req.ViewBox.W <= 0 || req.ViewBox.H <= 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "viewbox dimensions must be positive")
			return
		}
		box = *req.ViewBox
	}

	vp := &viewport.Viewport{Box: box, PlacementMode: true}
	lng, lat, _ := vp.Click(req.ScreenX, req.ScreenY, req.ClientW, req.ClientH)

	writeJSON(w, http.StatusOK, PlacementResponse{
		Lat: lat,
		Lng: lng,
		OnCanvas: lat >= 0 && lat <= location.CanvasHeight &&
			lng >= 0 && lng <= location.CanvasWidth,
	})
}
