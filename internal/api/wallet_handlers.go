package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nabeul-archive/poemap/internal/middleware"
	"github.com/nabeul-archive/poemap/internal/payment"
)

// TopUpRequest represents the request body for POST /wallet/topup.
type TopUpRequest struct {
	PackID string `json:"pack_id"`
}

// TopUpResponse carries the Stripe Checkout URL the client redirects to.
type TopUpResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

// WalletHandlers holds dependencies for wallet top-up HTTP handlers.
type WalletHandlers struct {
	topups *payment.Service
}

// NewWalletHandlers creates a new WalletHandlers instance.
func NewWalletHandlers(topups *payment.Service) *WalletHandlers {
	return &WalletHandlers{topups: topups}
}

// Packs handles GET /wallet/packs - lists the purchasable coin packs.
func (h *WalletHandlers) Packs(w http.ResponseWriter, r *http.Request) {
	packs := make([]payment.Pack, 0, len(payment.Packs))
	for _, p := range payment.Packs {
		packs = append(packs, p)
	}
	writeJSON(w, http.StatusOK, packs)
}

// TopUp handles POST /wallet/topup - starts a Stripe Checkout for a pack.
func (h *WalletHandlers) TopUp(w http.ResponseWriter, r *http.Request) {
	if h.topups == nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeBadRequest, "Top-ups are not configured")
		return
	}

	id := IdentityFromContext(r.Context())

	var req TopUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	url, err := h.topups.Begin(r.Context(), id.UserID, req.PackID)
	if err != nil {
		if errors.Is(err, payment.ErrUnknownPack) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnknownPack)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeUnknownPack, "Unknown coin pack")
			return
		}
		slog.ErrorContext(r.Context(), "failed to start top-up", "pack_id", req.PackID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to start checkout")
		return
	}

	writeJSON(w, http.StatusOK, TopUpResponse{CheckoutURL: url})
}
