package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-0123456789abcdef"

// signExpired issues a token whose expiry is already in the past.
func signExpired(t *testing.T, secret string, age time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(now.Add(-age - AccessTokenExpiry)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-age)),
		},
		Type: TokenTypeAccess,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing expired token: %v", err)
	}
	return signed
}

func TestGenerateAccessToken(t *testing.T) {
	svc := NewJWTService(testSecret)

	token, err := svc.GenerateAccessToken("user-1", "admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() failed: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want user-1", claims.Subject)
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %q, want admin", claims.Role)
	}
	if claims.Type != TokenTypeAccess {
		t.Errorf("Type = %q, want %q", claims.Type, TokenTypeAccess)
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl < AccessTokenExpiry-time.Minute || ttl > AccessTokenExpiry {
		t.Errorf("access token TTL = %v, want about %v", ttl, AccessTokenExpiry)
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	svc := NewJWTService(testSecret)

	token, err := svc.GenerateRefreshToken("user-1")
	if err != nil {
		t.Fatalf("GenerateRefreshToken() failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() failed: %v", err)
	}
	if claims.Type != TokenTypeRefresh {
		t.Errorf("Type = %q, want %q", claims.Type, TokenTypeRefresh)
	}
	if claims.Role != "" {
		t.Errorf("Role = %q, want empty on refresh tokens", claims.Role)
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl < RefreshTokenExpiry-time.Minute || ttl > RefreshTokenExpiry {
		t.Errorf("refresh token TTL = %v, want about %v", ttl, RefreshTokenExpiry)
	}
}

func TestGenerateEmptyUserID(t *testing.T) {
	svc := NewJWTService(testSecret)

	if _, err := svc.GenerateAccessToken("", "reader"); !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("GenerateAccessToken(\"\") error = %v, want %v", err, ErrEmptyUserID)
	}
	if _, err := svc.GenerateRefreshToken(""); !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("GenerateRefreshToken(\"\") error = %v, want %v", err, ErrEmptyUserID)
	}
}

func TestValidateTokenMalformed(t *testing.T) {
	svc := NewJWTService(testSecret)

	for _, tokenString := range []string{
		"",
		"not-a-jwt",
		"aaa.bbb.ccc",
		"eyJhbGciOiJIUzI1NiJ9.e30.",
	} {
		if _, err := svc.ValidateToken(tokenString); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ValidateToken(%q) error = %v, want %v", tokenString, err, ErrInvalidToken)
		}
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a-0123456789abcdef").GenerateAccessToken("user-1", "reader")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	if _, err := NewJWTService("secret-b-0123456789abcdef").ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken() with wrong secret error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestValidateTokenWrongAlgorithm(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: TokenTypeAccess,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing HS512 token: %v", err)
	}

	if _, err := NewJWTService(testSecret).ValidateToken(signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken() with HS512 token error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewJWTService(testSecret).WithLeeway(0)
	token := signExpired(t, testSecret, time.Minute)

	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("ValidateToken() expired error = %v, want %v", err, ErrExpiredToken)
	}
}

func TestValidateTokenLeeway(t *testing.T) {
	// Expired 10s ago: within the default 30s leeway, outside zero leeway.
	token := signExpired(t, testSecret, 10*time.Second)

	if _, err := NewJWTService(testSecret).ValidateToken(token); err != nil {
		t.Errorf("ValidateToken() within leeway failed: %v", err)
	}
	if _, err := NewJWTService(testSecret).WithLeeway(0).ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("ValidateToken() with zero leeway error = %v, want %v", err, ErrExpiredToken)
	}
}

func TestRotationAcceptsPreviousSecret(t *testing.T) {
	oldSvc := NewJWTService("old-secret-0123456789abcdef")
	token, err := oldSvc.GenerateAccessToken("user-1", "reader")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	rotated := NewJWTServiceWithRotation("new-secret-0123456789abcdef", "old-secret-0123456789abcdef")
	claims, err := rotated.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() with previous secret failed: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want user-1", claims.Subject)
	}
}

func TestRotationSignsWithCurrentSecret(t *testing.T) {
	rotated := NewJWTServiceWithRotation("new-secret-0123456789abcdef", "old-secret-0123456789abcdef")
	token, err := rotated.GenerateAccessToken("user-1", "reader")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	// A service that only knows the new secret must accept it.
	if _, err := NewJWTService("new-secret-0123456789abcdef").ValidateToken(token); err != nil {
		t.Errorf("token not signed with current secret: %v", err)
	}
}

func TestRotationRejectsUnknownSecret(t *testing.T) {
	token, err := NewJWTService("third-secret-0123456789abcdef").GenerateAccessToken("user-1", "reader")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	rotated := NewJWTServiceWithRotation("new-secret-0123456789abcdef", "old-secret-0123456789abcdef")
	if _, err := rotated.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken() with unknown secret error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestRotationEmptyPreviousSecret(t *testing.T) {
	svc := NewJWTServiceWithRotation(testSecret, "")
	token, err := svc.GenerateAccessToken("user-1", "reader")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}
	if _, err := svc.ValidateToken(token); err != nil {
		t.Errorf("ValidateToken() failed: %v", err)
	}
	if svc.previousSecret != nil {
		t.Error("empty previous secret should not be retained")
	}
}

func TestRotationExpiredUnderPreviousSecret(t *testing.T) {
	rotated := NewJWTServiceWithRotation("new-secret-0123456789abcdef", "old-secret-0123456789abcdef").WithLeeway(0)
	token := signExpired(t, "old-secret-0123456789abcdef", time.Minute)

	if _, err := rotated.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("ValidateToken() error = %v, want %v", err, ErrExpiredToken)
	}
}
