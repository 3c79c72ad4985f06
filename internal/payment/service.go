package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nabeul-archive/poemap/internal/profile"
)

// ErrUnknownPack is returned for a top-up request naming no known pack.
var ErrUnknownPack = errors.New("unknown coin pack")

// Service runs the top-up lifecycle: checkout creation and webhook-driven
// completion.
type Service struct {
	records  TopUpRepository
	webhooks WebhookRepository
	profiles profile.Repository
	stripe   Client
	logger   *slog.Logger

	successURL string
	cancelURL  string
}

// NewService creates a top-up service.
func NewService(records TopUpRepository, webhooks WebhookRepository, profiles profile.Repository, stripeClient Client, successURL, cancelURL string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		records:    records,
		webhooks:   webhooks,
		profiles:   profiles,
		stripe:     stripeClient,
		logger:     logger,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// Begin creates a Checkout Session for the pack and records the provisional
// top-up. Returns the checkout URL the client should redirect to.
func (s *Service) Begin(ctx context.Context, userID, packID string) (string, error) {
	pack, ok := Packs[packID]
	if !ok {
		return "", ErrUnknownPack
	}

	sess, err := s.stripe.CreateCheckoutSession(&CheckoutParams{
		Pack:       pack,
		UserID:     userID,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	record := &TopUpRecord{
		SessionID: sess.ID,
		Status:    StatusPending,
		PackID:    pack.ID,
		Coins:     pack.Coins,
		Amount:    pack.AmountCents,
		UserID:    userID,
	}
	if err := s.records.Insert(record); err != nil {
		return "", fmt.Errorf("failed to record top-up: %w", err)
	}

	s.logger.Info("top-up started",
		slog.String("user_id", userID),
		slog.String("pack_id", pack.ID),
		slog.String("session_id", sess.ID))
	return sess.URL, nil
}

// Complete settles a finished Checkout Session: the record flips to
// succeeded and the coins land on the balance. Duplicate webhook deliveries
// are absorbed by the event log, so the credit happens exactly once. The
// event is claimed up front and released again on failure, so a Stripe
// retry after a transient error still delivers the coins.
func (s *Service) Complete(ctx context.Context, eventID, sessionID string) error {
	if err := s.webhooks.RecordEvent(eventID, "checkout.session.completed"); err != nil {
		if errors.Is(err, ErrEventAlreadyProcessed) {
			return nil
		}
		return err
	}

	record, err := s.records.GetBySessionID(sessionID)
	if err != nil {
		s.releaseEvent(eventID)
		return err
	}
	if record.Status != StatusPending {
		return nil
	}

	record.Status = StatusSucceeded
	if err := s.records.Update(record); err != nil {
		s.releaseEvent(eventID)
		return err
	}

	balance, err := s.profiles.Credit(ctx, record.UserID, record.Coins)
	if err != nil {
		record.Status = StatusPending
		if uerr := s.records.Update(record); uerr != nil {
			s.logger.Error("failed to revert top-up record after credit failure",
				slog.String("session_id", sessionID),
				slog.String("error", uerr.Error()))
		}
		s.releaseEvent(eventID)
		return fmt.Errorf("failed to credit balance: %w", err)
	}

	s.logger.Info("top-up completed",
		slog.String("user_id", record.UserID),
		slog.Int64("coins", record.Coins),
		slog.Int64("balance", balance))
	return nil
}

// releaseEvent drops the idempotency claim after a failed completion so the
// next delivery attempt is not absorbed as a duplicate.
func (s *Service) releaseEvent(eventID string) {
	if err := s.webhooks.Remove(eventID); err != nil {
		s.logger.Error("failed to release webhook event claim",
			slog.String("event_id", eventID),
			slog.String("error", err.Error()))
	}
}

// Cancel marks a pending top-up as canceled. No coins move.
func (s *Service) Cancel(ctx context.Context, sessionID string) error {
	record, err := s.records.GetBySessionID(sessionID)
	if err != nil {
		return err
	}
	if record.Status != StatusPending {
		return nil
	}
	record.Status = StatusCanceled
	return s.records.Update(record)
}
