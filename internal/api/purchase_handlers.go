package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nabeul-archive/poemap/internal/catalog"
	"github.com/nabeul-archive/poemap/internal/location"
	"github.com/nabeul-archive/poemap/internal/middleware"
	"github.com/nabeul-archive/poemap/internal/notify"
	"github.com/nabeul-archive/poemap/internal/purchase"
	"github.com/nabeul-archive/poemap/internal/session"
)

// PurchaseHandlers holds dependencies for unlock HTTP handlers.
type PurchaseHandlers struct {
	purchases *purchase.Service
	catalog   *catalog.Catalog
	notifier  *notify.Center
	sessions  *session.Manager
}

// NewPurchaseHandlers creates a new PurchaseHandlers instance. catalog,
// notifier, and sessions may be nil; unlock events are then not fanned out.
func NewPurchaseHandlers(purchases *purchase.Service, cat *catalog.Catalog, notifier *notify.Center, sessions *session.Manager) *PurchaseHandlers {
	return &PurchaseHandlers{purchases: purchases, catalog: cat, notifier: notifier, sessions: sessions}
}

// Unlock handles POST /locations/{id}/unlock - spends balance to reveal the
// full content. The debit and the grant are one atomic step.
func (h *PurchaseHandlers) Unlock(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	locID := r.PathValue("id")

	receipt, err := h.purchases.Purchase(r.Context(), id.UserID, locID)
	if err != nil {
		switch {
		case errors.Is(err, location.ErrLocationNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Location not found")
		case errors.Is(err, purchase.ErrInsufficientFunds):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInsufficientFunds)
			WriteError(w, ctx, http.StatusPaymentRequired, ErrCodeInsufficientFunds, "Balance does not cover the unlock price")
		case errors.Is(err, purchase.ErrAlreadyPurchased):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeAlreadyPurchased)
			WriteError(w, ctx, http.StatusConflict, ErrCodeAlreadyPurchased, "Location is already unlocked")
		default:
			slog.ErrorContext(r.Context(), "unlock failed", "location_id", locID, "error", err)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to unlock location")
		}
		return
	}

	if h.catalog != nil {
		h.catalog.NotifyUnlocked(locID)
	}
	if h.sessions != nil {
		// The debit changed the balance; push the fresh profile to session
		// subscribers.
		if _, err := h.sessions.Refresh(r.Context(), id.UserID); err != nil {
			slog.WarnContext(r.Context(), "session refresh failed", "user_id", id.UserID, "error", err)
		}
	}
	if h.notifier != nil && !receipt.AdminBypass {
		if loc, err := h.purchases.Location(r.Context(), locID); err == nil {
			h.notifier.Publish(notify.Notification{
				Title:       "Poem unlocked",
				Description: loc.Name + " by " + loc.Poet,
				AssetURL:    loc.ThumbnailURL,
			})
		}
	}

	writeJSON(w, http.StatusOK, receipt)
}
