// Package payment provides wallet top-ups through Stripe Checkout: the only
// way coins enter the system besides the signup allowance.
package payment

import "time"

// Top-up record statuses.
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// Pack is a purchasable coin bundle.
type Pack struct {
	ID          string `json:"id"`
	Coins       int64  `json:"coins"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// Packs lists the available bundles, keyed by pack ID.
var Packs = map[string]Pack{
	"starter": {ID: "starter", Coins: 100, AmountCents: 300, Currency: "usd"},
	"poet":    {ID: "poet", Coins: 350, AmountCents: 900, Currency: "usd"},
	"patron":  {ID: "patron", Coins: 1000, AmountCents: 2200, Currency: "usd"},
}

// TopUpRecord is a provisional wallet top-up tied to a Stripe Checkout
// Session.
type TopUpRecord struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"` // Stripe Checkout Session ID
	Status    string     `json:"status"`     // pending, succeeded, failed, canceled
	PackID    string     `json:"pack_id"`
	Coins     int64      `json:"coins"`        // Wallet units credited on success
	Amount    int64      `json:"amount_cents"` // Charge amount in cents
	UserID    string     `json:"user_id"`      // Profile receiving the coins
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
