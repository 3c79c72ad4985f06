// Package profile provides models and repositories for user profiles,
// including roles and wallet balances.
package profile

// Role values for a profile. Admins bypass purchases and see all content;
// poets may submit locations; readers unlock content with their balance.
const (
	RoleAdmin  = "admin"
	RoleReader = "reader"
	RolePoet   = "poet"
	RoleNone   = ""
)

// Defaults applied when a profile is lazily created on first fetch.
const (
	DefaultRole    = RoleReader
	DefaultBalance = 200
)

// Profile represents a user profile keyed by the auth identity.
type Profile struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Balance int64  `json:"balance"`
	Name    string `json:"name,omitempty"`
	Bio     string `json:"bio,omitempty"`
}

// IsAdmin reports whether the profile has the admin role.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// ProfileUpdate carries the mutable display fields of a profile.
// Nil fields are left unchanged.
type ProfileUpdate struct {
	Name *string `json:"name,omitempty"`
	Bio  *string `json:"bio,omitempty"`
}
