package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/nabeul-archive/poemap/internal/auth"
	"github.com/nabeul-archive/poemap/internal/middleware"
	"github.com/nabeul-archive/poemap/internal/profile"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller extracted from a bearer token.
type Identity struct {
	UserID string
	Role   string
}

// IdentityFromContext returns the authenticated identity, or nil for an
// anonymous request.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuth rejects requests without a valid access token and attaches the
// identity to the request context.
func RequireAuth(jwtService *auth.JWTService, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
			WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Missing bearer token")
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil || claims.Type != auth.TokenTypeAccess {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
			WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, &Identity{
			UserID: claims.Subject,
			Role:   claims.Role,
		})
		next(w, r.WithContext(ctx))
	}
}

// OptionalAuth attaches the identity when a valid token is present and lets
// anonymous requests through unchanged. An invalid token is treated as
// anonymous rather than rejected, so public endpoints stay reachable.
func OptionalAuth(jwtService *auth.JWTService, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token != "" {
			if claims, err := jwtService.ValidateToken(token); err == nil && claims.Type == auth.TokenTypeAccess {
				ctx := context.WithValue(r.Context(), identityKey, &Identity{
					UserID: claims.Subject,
					Role:   claims.Role,
				})
				r = r.WithContext(ctx)
			}
		}
		next(w, r)
	}
}

// RequireAdmin layers an admin-role check on top of RequireAuth.
func RequireAdmin(jwtService *auth.JWTService, next http.HandlerFunc) http.HandlerFunc {
	return RequireAuth(jwtService, func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromContext(r.Context())
		if id == nil || id.Role != profile.RoleAdmin {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
			WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Admin role required")
			return
		}
		next(w, r)
	})
}
