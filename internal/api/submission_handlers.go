package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/nabeul-archive/poemap/internal/location"
	"github.com/nabeul-archive/poemap/internal/middleware"
	"github.com/nabeul-archive/poemap/internal/submission"
)

// maxSubmissionFormSize bounds the multipart details request (poet image,
// narration audio, and mural video combined).
const maxSubmissionFormSize = 128 << 20

// formFileFields maps multipart field names to attachment kinds.
var formFileFields = map[string]string{
	"poet_image": submission.KindPoetImage,
	"audio":      submission.KindAudio,
	"video":      submission.KindVideo,
}

// BeginSubmissionRequest represents the request body for POST /submissions.
// EditID re-opens an existing location in the wizard.
type BeginSubmissionRequest struct {
	EditID string `json:"edit_id,omitempty"`
}

// SubmissionHandlers holds dependencies for submission wizard HTTP handlers.
type SubmissionHandlers struct {
	wizard *submission.Service
}

// NewSubmissionHandlers creates a new SubmissionHandlers instance.
func NewSubmissionHandlers(wizard *submission.Service) *SubmissionHandlers {
	return &SubmissionHandlers{wizard: wizard}
}

// Begin handles POST /submissions - opens a draft, optionally pre-populated
// from an existing location for editing.
func (h *SubmissionHandlers) Begin(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())

	var req BeginSubmissionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
			return
		}
	}

	if req.EditID == "" {
		writeJSON(w, http.StatusCreated, h.wizard.Begin(id.UserID))
		return
	}

	draft, err := h.wizard.BeginEdit(r.Context(), id.UserID, req.EditID)
	if err != nil {
		h.writeWizardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

// Get handles GET /submissions/{id} - returns the draft with its upload
// task states and any launch status message.
func (h *SubmissionHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())

	draft, err := h.wizard.Get(id.UserID, r.PathValue("id"))
	if err != nil {
		h.writeWizardError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// SubmitDetails handles POST /submissions/{id}/details - records the wizard
// fields and runs the attachment uploads. The draft lands on review with
// per-file task outcomes; failed uploads never block the workflow.
//
// Accepts multipart/form-data with a "details" JSON field plus optional
// poet_image, audio, and video file fields, or a plain JSON body when there
// is nothing to upload.
func (h *SubmissionHandlers) SubmitDetails(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	draftID := r.PathValue("id")

	det, ok := h.parseDetails(w, r)
	if !ok {
		return
	}

	draft, err := h.wizard.SubmitDetails(r.Context(), id.UserID, draftID, *det)
	if err != nil {
		h.writeWizardError(w, r, err)
		return
	}

	if draft.State == submission.StateUploadingFiles {
		if draft, err = h.wizard.UploadFiles(r.Context(), id.UserID, draftID); err != nil {
			h.writeWizardError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, draft)
}

// Launch handles POST /submissions/{id}/launch - publishes the draft into
// the catalog. On failure the draft falls back to review carrying the error
// in its status message.
func (h *SubmissionHandlers) Launch(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	draftID := r.PathValue("id")

	loc, err := h.wizard.Launch(r.Context(), id.UserID, draftID)
	if err != nil {
		if errors.Is(err, submission.ErrInvalidTransition) ||
			errors.Is(err, submission.ErrDraftNotFound) ||
			errors.Is(err, submission.ErrNotOwner) {
			h.writeWizardError(w, r, err)
			return
		}
		// The draft fell back to review with the error as its status message.
		draft, gerr := h.wizard.Get(id.UserID, draftID)
		if gerr != nil {
			h.writeWizardError(w, r, gerr)
			return
		}
		slog.WarnContext(r.Context(), "launch failed, draft back in review",
			"draft_id", draftID, "error", err)
		writeJSON(w, http.StatusConflict, draft)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

// Archive handles GET /archive - the caller's published locations.
func (h *SubmissionHandlers) Archive(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())

	locs, err := h.wizard.ListOwn(r.Context(), id.UserID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list submissions")
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

// DeleteOwn handles DELETE /archive/{id} - removes one of the caller's
// published locations.
func (h *SubmissionHandlers) DeleteOwn(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())

	if err := h.wizard.Delete(r.Context(), id.UserID, r.PathValue("id")); err != nil {
		h.writeWizardError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseDetails decodes the details payload from either a multipart form or
// a JSON body. Writes the error response itself on failure.
func (h *SubmissionHandlers) parseDetails(w http.ResponseWriter, r *http.Request) (*submission.Details, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType != "multipart/form-data" {
		var det submission.Details
		if err := json.NewDecoder(r.Body).Decode(&det); err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
			return nil, false
		}
		return &det, true
	}

	if err := r.ParseMultipartForm(maxSubmissionFormSize); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid multipart form")
		return nil, false
	}

	var det submission.Details
	if err := json.Unmarshal([]byte(r.FormValue("details")), &det); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "details field must be valid JSON")
		return nil, false
	}

	for field, kind := range formFileFields {
		file, header, err := r.FormFile(field)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				continue
			}
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Failed to read uploaded file")
			return nil, false
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to read uploaded file")
			return nil, false
		}
		det.Attachments = append(det.Attachments, submission.Attachment{
			Kind:     kind,
			Filename: header.Filename,
			Data:     data,
		})
	}
	return &det, true
}

// writeWizardError maps submission workflow errors to HTTP responses.
func (h *SubmissionHandlers) writeWizardError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, location.ErrLocationNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Location not found")
	case errors.Is(err, submission.ErrDraftNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Draft not found")
	case errors.Is(err, submission.ErrNotOwner):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Submission belongs to another user")
	case errors.Is(err, submission.ErrInvalidTransition):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidTransition)
		WriteError(w, ctx, http.StatusConflict, ErrCodeInvalidTransition, err.Error())
	case errors.Is(err, submission.ErrInvalidDetails):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		slog.ErrorContext(r.Context(), "submission request failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Submission request failed")
	}
}
