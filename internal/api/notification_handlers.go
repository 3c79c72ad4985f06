package api

import (
	"net/http"

	"github.com/nabeul-archive/poemap/internal/notify"
)

// NotificationHandlers holds dependencies for the single-slot notification
// center endpoints.
type NotificationHandlers struct {
	center *notify.Center
}

// NewNotificationHandlers creates a new NotificationHandlers instance.
func NewNotificationHandlers(center *notify.Center) *NotificationHandlers {
	return &NotificationHandlers{center: center}
}

// Current handles GET /notifications/current - the latest notification, or
// 204 when the slot is empty.
func (h *NotificationHandlers) Current(w http.ResponseWriter, r *http.Request) {
	n := h.center.Current()
	if n == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// Dismiss handles DELETE /notifications/current - clears the slot.
func (h *NotificationHandlers) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.center.Dismiss()
	w.WriteHeader(http.StatusNoContent)
}
