package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nabeul-archive/poemap/internal/audio"
	"github.com/nabeul-archive/poemap/internal/gen"
	"github.com/nabeul-archive/poemap/internal/middleware"
)

// maxNarrationRunes bounds a single narration request.
const maxNarrationRunes = 4000

// NarrateRequest represents the request body for POST /narrate.
type NarrateRequest struct {
	Text string `json:"text"`
}

// NarrateResponse carries the synthesized narration as base64 PCM.
type NarrateResponse struct {
	AudioBase64 string  `json:"audio_base64"`
	SampleRate  int     `json:"sample_rate"`
	Duration    float64 `json:"duration_seconds"`
}

// NarrationHandlers holds dependencies for narration HTTP handlers.
type NarrationHandlers struct {
	synth *gen.Client
}

// NewNarrationHandlers creates a new NarrationHandlers instance.
func NewNarrationHandlers(synth *gen.Client) *NarrationHandlers {
	return &NarrationHandlers{synth: synth}
}

// Narrate handles POST /narrate - synthesizes spoken audio for poem text.
// The response is raw PCM (24kHz mono 16-bit) encoded as base64, decoded
// once server-side to validate the payload and report its duration.
func (h *NarrationHandlers) Narrate(w http.ResponseWriter, r *http.Request) {
	var req NarrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "text is required")
		return
	}
	if len([]rune(text)) > maxNarrationRunes {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "text exceeds the narration length limit")
		return
	}

	b64, err := h.synth.Narrate(r.Context(), text)
	if err != nil {
		slog.ErrorContext(r.Context(), "narration synthesis failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeInternal, "Narration synthesis failed")
		return
	}

	clip, err := audio.DecodePCM(b64)
	if err != nil {
		slog.ErrorContext(r.Context(), "narration payload is not valid PCM", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeInternal, "Narration payload was malformed")
		return
	}

	writeJSON(w, http.StatusOK, NarrateResponse{
		AudioBase64: b64,
		SampleRate:  clip.SampleRate,
		Duration:    clip.Duration(),
	})
}
