// Package purchase implements the unlock workflow: spending wallet balance
// to reveal a location's full content. The debit and the durable grant are
// a single atomic step, so a refreshed session or a second device sees the
// same unlocked state.
package purchase

import (
	"time"

	"github.com/nabeul-archive/poemap/internal/profile"
)

// Grant records that a user has unlocked a location.
type Grant struct {
	UserID      string     `json:"user_id"`
	LocationID  string     `json:"location_id"`
	PricePaid   int64      `json:"price_paid"`
	PurchasedAt *time.Time `json:"purchased_at,omitempty"`
}

// Receipt is the outcome of a successful Purchase call.
type Receipt struct {
	LocationID string `json:"location_id"`
	PricePaid  int64  `json:"price_paid"`
	NewBalance int64  `json:"new_balance"`

	// AdminBypass is set when the viewer's admin role made the purchase
	// unnecessary; nothing was debited.
	AdminBypass bool `json:"admin_bypass,omitempty"`
}

// Unlocked reports the content-visibility invariant: a location's full
// content is visible iff the viewer holds a grant or has the admin role.
func Unlocked(hasGrant bool, role string) bool {
	return hasGrant || role == profile.RoleAdmin
}
