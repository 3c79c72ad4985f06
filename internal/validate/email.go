package validate

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidEmail reports a malformed email address.
var ErrInvalidEmail = errors.New("invalid email format")

// emailPattern accepts the common email shapes. Deliverability is a mail
// server concern, not ours.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Email validates an address and returns it normalized (trimmed, lowercased).
// Length limits follow RFC 5321.
func Email(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmpty
	}
	if len(email) > 254 {
		return "", ErrStringTooLong
	}
	if !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "", ErrInvalidEmail
	}
	if len(local) > 64 || len(domain) > 255 {
		return "", ErrStringTooLong
	}
	if !strings.Contains(domain, ".") {
		return "", ErrInvalidEmail
	}

	return email, nil
}
