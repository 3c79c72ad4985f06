package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/nabeul-archive/poemap/internal/middleware"
	"github.com/nabeul-archive/poemap/internal/upload"
)

// SignUploadRequest represents the request body for POST /uploads/sign.
type SignUploadRequest struct {
	Folder      string `json:"folder"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// SignUploadResponse represents the response for POST /uploads/sign.
type SignUploadResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	PublicURL string `json:"publicUrl"`
	ExpiresAt string `json:"expiresAt"` // ISO 8601 format
}

// DirectUploadResponse represents the response for POST /uploads/{folder}.
type DirectUploadResponse struct {
	URL string `json:"url"`
}

// UploadHandlers holds dependencies for upload HTTP handlers.
type UploadHandlers struct {
	uploadService *upload.Service
}

// NewUploadHandlers creates a new UploadHandlers instance.
func NewUploadHandlers(uploadService *upload.Service) *UploadHandlers {
	return &UploadHandlers{uploadService: uploadService}
}

// configured reports whether object storage is wired; without it both
// endpoints answer 503.
func (h *UploadHandlers) configured(w http.ResponseWriter, r *http.Request) bool {
	if h.uploadService == nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeBadRequest, "Object storage is not configured")
		return false
	}
	return true
}

// SignUpload handles POST /uploads/sign - generates a pre-signed upload URL
// so large files go straight to object storage.
func (h *UploadHandlers) SignUpload(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w, r) {
		return
	}

	var req SignUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if req.ContentType == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "contentType is required")
		return
	}
	if req.SizeBytes <= 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "sizeBytes must be positive")
		return
	}

	signed, err := h.uploadService.GenerateSignedURL(r.Context(), upload.SignedURLRequest{
		Folder:      req.Folder,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
	})
	if err != nil {
		h.writeUploadError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SignUploadResponse{
		URL:       signed.URL,
		Key:       signed.Key,
		PublicURL: signed.PublicURL,
		ExpiresAt: signed.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"), // ISO 8601
	})
}

// DirectUpload handles POST /uploads/{folder} - accepts the raw file body
// and stores it server-side. Small assets (poet portraits, short audio) use
// this path; the filename comes from the X-Filename header.
func (h *UploadHandlers) DirectUpload(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w, r) {
		return
	}

	folder := r.PathValue("folder")
	filename := r.Header.Get("X-Filename")
	if filename == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "X-Filename header is required")
		return
	}

	if contentType := r.Header.Get("Content-Type"); contentType != "" {
		if err := upload.ValidateContentType(contentType); err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnsupportedType)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeUnsupportedType,
				"Unsupported content type. Allowed types: image/jpeg, image/png, audio/mpeg, audio/wav, video/mp4")
			return
		}
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.uploadService.MaxSizeBytes()))
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodeValidation, "File size exceeds maximum allowed")
		return
	}

	url, err := h.uploadService.UploadObject(r.Context(), folder, filename, data)
	if err != nil {
		h.writeUploadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, DirectUploadResponse{URL: url})
}

// writeUploadError maps upload service errors to HTTP responses.
func (h *UploadHandlers) writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, upload.ErrUnsupportedType):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnsupportedType)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeUnsupportedType,
			"Unsupported content type. Allowed types: image/jpeg, image/png, audio/mpeg, audio/wav, video/mp4")
	case errors.Is(err, upload.ErrFileTooLarge):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "File size exceeds maximum allowed")
	case errors.Is(err, upload.ErrInvalidFolder), errors.Is(err, upload.ErrEmptyFilename):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		slog.ErrorContext(r.Context(), "upload failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Upload failed")
	}
}
