package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/nabeul-archive/poemap/internal/middleware"
	"github.com/nabeul-archive/poemap/internal/payment"
)

// WebhookHandlers holds dependencies for Stripe webhook handlers.
type WebhookHandlers struct {
	webhookSecret string
	topups        *payment.Service
}

// NewWebhookHandlers creates a new WebhookHandlers instance.
func NewWebhookHandlers(webhookSecret string, topups *payment.Service) *WebhookHandlers {
	return &WebhookHandlers{webhookSecret: webhookSecret, topups: topups}
}

// HandleStripeWebhook processes Stripe webhook events with signature verification.
// POST /internal/stripe
func (h *WebhookHandlers) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "missing Stripe-Signature header")
		return
	}

	event, err := webhook.ConstructEvent(body, signature, h.webhookSecret)
	if err != nil {
		slog.WarnContext(ctx, "webhook signature verification failed", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid signature")
		return
	}

	// Log minimal event info (type and ID only, not full payload)
	slog.InfoContext(ctx, "webhook event received", "event_type", event.Type, "event_id", event.ID)

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(w, r, event)
	case "checkout.session.expired":
		h.handleCheckoutExpired(w, r, event)
	default:
		// Unknown event type - log and ignore
		slog.InfoContext(ctx, "ignoring unhandled webhook event type", "event_type", event.Type, "event_id", event.ID)
		w.WriteHeader(http.StatusOK)
	}
}

// handleCheckoutCompleted settles the top-up. The event log inside the
// service absorbs duplicate deliveries, so the credit lands exactly once.
func (h *WebhookHandlers) handleCheckoutCompleted(w http.ResponseWriter, r *http.Request, event stripe.Event) {
	ctx := r.Context()

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		slog.ErrorContext(ctx, "failed to parse checkout session", "event_id", event.ID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "malformed event payload")
		return
	}

	if err := h.topups.Complete(ctx, event.ID, session.ID); err != nil {
		slog.ErrorContext(ctx, "failed to complete top-up",
			"event_id", event.ID,
			"session_id", session.ID,
			"error", err)
		// Non-2xx makes Stripe retry the delivery.
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to process webhook")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleCheckoutExpired marks the pending top-up canceled.
func (h *WebhookHandlers) handleCheckoutExpired(w http.ResponseWriter, r *http.Request, event stripe.Event) {
	ctx := r.Context()

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		slog.ErrorContext(ctx, "failed to parse checkout session", "event_id", event.ID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "malformed event payload")
		return
	}

	if err := h.topups.Cancel(ctx, session.ID); err != nil && !errors.Is(err, payment.ErrRecordNotFound) {
		slog.ErrorContext(ctx, "failed to cancel top-up",
			"event_id", event.ID,
			"session_id", session.ID,
			"error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to process webhook")
		return
	}
	w.WriteHeader(http.StatusOK)
}
