// Package validate provides input validation and sanitization for the poemap
// API: location and poet names, poem text, emails, upload metadata, and
// outbound URLs.
package validate

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors.
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrSQLKeyword        = errors.New("string contains SQL keywords")
	ErrEmpty             = errors.New("string is empty")
)

// sqlKeywords is a heuristic screen for injection attempts in free-text
// fields. Parameterized queries remain the primary defense.
var sqlKeywords = []string{
	"SELECT", "INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
	"TRUNCATE", "EXEC", "EXECUTE", "UNION", "JOIN", "WHERE", "FROM",
	"--", "/*", "*/", ";--", "xp_", "sp_",
}

// StringConstraints defines validation constraints for a string field.
type StringConstraints struct {
	MinLength        int            // minimum rune count, 0 means none
	MaxLength        int            // maximum rune count, 0 means none
	AllowedPattern   *regexp.Regexp // optional whole-string pattern
	DisallowedWords  []string       // case-insensitive substring blocklist
	CheckSQLKeywords bool
	AllowEmpty       bool
	TrimSpace        bool
}

// String validates s against the constraints and returns the (optionally
// trimmed) value.
func (c StringConstraints) check(s string) (string, error) {
	if c.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !c.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Rune count, not bytes: poem text and names are mostly Arabic.
	length := utf8.RuneCountInString(s)
	if c.MinLength > 0 && length < c.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, c.MinLength)
	}
	if c.MaxLength > 0 && length > c.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, c.MaxLength)
	}

	if c.AllowedPattern != nil && !c.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	if c.CheckSQLKeywords {
		upper := strings.ToUpper(s)
		for _, keyword := range sqlKeywords {
			if strings.Contains(upper, keyword) {
				return "", fmt.Errorf("%w: contains %q", ErrSQLKeyword, keyword)
			}
		}
	}

	if len(c.DisallowedWords) > 0 {
		upper := strings.ToUpper(s)
		for _, word := range c.DisallowedWords {
			if strings.Contains(upper, strings.ToUpper(word)) {
				return "", fmt.Errorf("string contains disallowed word: %q", word)
			}
		}
	}

	return s, nil
}

// String validates s against the given constraints.
func String(s string, constraints StringConstraints) (string, error) {
	return constraints.check(s)
}

// SanitizeHTML escapes HTML special characters. Call it on user text that
// ends up rendered in markup.
func SanitizeHTML(s string) string {
	return html.EscapeString(s)
}

// SanitizeString validates then HTML-escapes a string.
func SanitizeString(s string, constraints StringConstraints) (string, error) {
	validated, err := String(s, constraints)
	if err != nil {
		return "", err
	}
	return SanitizeHTML(validated), nil
}

// LocationName validates a catalog location name: 1 to 120 characters with
// no SQL keywords.
func LocationName(name string) (string, error) {
	return SanitizeString(name, StringConstraints{
		MinLength:        1,
		MaxLength:        120,
		CheckSQLKeywords: true,
		TrimSpace:        true,
	})
}

// PoetName validates a poet attribution: 1 to 80 characters.
func PoetName(name string) (string, error) {
	return SanitizeString(name, StringConstraints{
		MinLength:        1,
		MaxLength:        80,
		CheckSQLKeywords: true,
		TrimSpace:        true,
	})
}

// PoemText validates poem body text: required, up to 5000 characters. No
// keyword screening since verse quotes punctuation freely.
func PoemText(text string) (string, error) {
	return SanitizeString(text, StringConstraints{
		MinLength:  1,
		MaxLength:  5000,
		AllowEmpty: false,
		TrimSpace:  true,
	})
}

// Description validates an optional description field, up to 5000 characters.
func Description(desc string) (string, error) {
	return SanitizeString(desc, StringConstraints{
		MaxLength:  5000,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}
