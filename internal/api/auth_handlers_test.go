package api

import (
	"net/http"
	"testing"

	"github.com/nabeul-archive/poemap/internal/profile"
)

// TestSignupIssuesTokensAndProfile verifies signup returns a token pair and
// a freshly created profile with the signup allowance.
func TestSignupIssuesTokensAndProfile(t *testing.T) {
	env := newTestEnv(t)

	resp := env.signup(t, "leila@example.com")
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("signup did not return a token pair")
	}
	if resp.Profile == nil {
		t.Fatal("signup did not return a profile")
	}
	if resp.Profile.Role != profile.RoleReader {
		t.Errorf("role = %q, want %q", resp.Profile.Role, profile.RoleReader)
	}
	if resp.Profile.Balance != profile.DefaultBalance {
		t.Errorf("balance = %d, want %d", resp.Profile.Balance, profile.DefaultBalance)
	}

	claims, err := env.jwt.ValidateToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("access token does not validate: %v", err)
	}
	if claims.Subject == "" {
		t.Error("access token has no subject")
	}

	// The session manager observed the login.
	if env.sessions.Get(claims.Subject) == nil {
		t.Error("signup did not open a session")
	}
}

// TestSignupDuplicateEmail verifies re-registering an email is a conflict.
func TestSignupDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "leila@example.com")

	w := env.do(t, http.MethodPost, "/auth/signup", "", SignupRequest{
		Email:    "leila@example.com",
		Password: "another-long-password",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if code := errorCodeOf(t, w); code != ErrCodeEmailTaken {
		t.Errorf("error code = %q, want %q", code, ErrCodeEmailTaken)
	}
}

// TestLoginWrongPassword verifies authentication failures are uniform 401s.
func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "leila@example.com")

	w := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{
		Email:    "leila@example.com",
		Password: "wrong-password-here",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	// Unknown email reads identically to a wrong password.
	w = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{
		Email:    "nobody@example.com",
		Password: "wrong-password-here",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

// TestRefreshExchangesTokenPair verifies a refresh token yields a fresh pair
// while an access token is rejected.
func TestRefreshExchangesTokenPair(t *testing.T) {
	env := newTestEnv(t)
	first := env.signup(t, "leila@example.com")

	w := env.do(t, http.MethodPost, "/auth/refresh", "", RefreshRequest{RefreshToken: first.RefreshToken})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh returned %d: %s", w.Code, w.Body.String())
	}
	fresh := decodeBody[TokenResponse](t, w)
	if fresh.AccessToken == "" || fresh.RefreshToken == "" {
		t.Fatal("refresh did not return a token pair")
	}

	w = env.do(t, http.MethodPost, "/auth/refresh", "", RefreshRequest{RefreshToken: first.AccessToken})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh with an access token returned %d, want 401", w.Code)
	}
}

// TestLogoutClosesSession verifies POST /auth/logout removes the session and
// rejects anonymous calls.
func TestLogoutClosesSession(t *testing.T) {
	env := newTestEnv(t)
	resp := env.signup(t, "leila@example.com")

	claims, err := env.jwt.ValidateToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("access token does not validate: %v", err)
	}
	if env.sessions.Get(claims.Subject) == nil {
		t.Fatal("signup did not open a session")
	}

	w := env.do(t, http.MethodPost, "/auth/logout", resp.AccessToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout returned %d, want 204", w.Code)
	}
	if env.sessions.Get(claims.Subject) != nil {
		t.Error("session still active after logout")
	}

	w = env.do(t, http.MethodPost, "/auth/logout", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous logout returned %d, want 401", w.Code)
	}
}

// TestProfileRequiresAuth verifies the profile surface rejects anonymous and
// malformed credentials.
func TestProfileRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/profile", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous /profile returned %d, want 401", w.Code)
	}

	w = env.do(t, http.MethodGet, "/profile", "not-a-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token returned %d, want 401", w.Code)
	}
}

// TestProfileUpdate verifies PATCH /profile persists name and bio.
func TestProfileUpdate(t *testing.T) {
	env := newTestEnv(t)
	resp := env.signup(t, "leila@example.com")

	name := "ليلى"
	bio := "قارئة شعر من نابل"
	w := env.do(t, http.MethodPatch, "/profile", resp.AccessToken, profile.ProfileUpdate{Name: &name, Bio: &bio})
	if w.Code != http.StatusOK {
		t.Fatalf("update returned %d: %s", w.Code, w.Body.String())
	}
	updated := decodeBody[profile.Profile](t, w)
	if updated.Name != name || updated.Bio != bio {
		t.Errorf("update not reflected: %+v", updated)
	}

	w = env.do(t, http.MethodGet, "/profile", resp.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get returned %d", w.Code)
	}
	got := decodeBody[profile.Profile](t, w)
	if got.Name != name {
		t.Errorf("name = %q, want %q", got.Name, name)
	}
}
