package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsHandler(cfg CORSConfig) http.Handler {
	return CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}))
}

// TestCORSDisabledWhenNoOrigins verifies an empty allowlist disables CORS
// processing entirely.
func TestCORSDisabledWhenNoOrigins(t *testing.T) {
	handler := corsHandler(CORSConfig{AllowedOrigins: []string{}})

	req := httptest.NewRequest(http.MethodGet, "/locations", nil)
	req.Header.Set("Origin", "https://poemap.example")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "" {
		t.Errorf("disabled CORS still set Access-Control-Allow-Origin: %s", origin)
	}
}

// TestCORSAllowedOrigin verifies allowed origins receive the origin and
// credentials headers but not the preflight-only method and header lists.
func TestCORSAllowedOrigin(t *testing.T) {
	handler := corsHandler(CORSConfig{
		AllowedOrigins:   []string{"http://localhost:5173", "https://poemap.example"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           3600,
	})

	for _, origin := range []string{"http://localhost:5173", "https://poemap.example"} {
		t.Run(origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/locations", nil)
			req.Header.Set("Origin", origin)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != origin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, origin)
			}
			if creds := rr.Header().Get("Access-Control-Allow-Credentials"); creds != "true" {
				t.Errorf("Access-Control-Allow-Credentials = %q, want true", creds)
			}
			if methods := rr.Header().Get("Access-Control-Allow-Methods"); methods != "" {
				t.Errorf("actual request carried Allow-Methods: %s", methods)
			}
			if headers := rr.Header().Get("Access-Control-Allow-Headers"); headers != "" {
				t.Errorf("actual request carried Allow-Headers: %s", headers)
			}
		})
	}
}

// TestCORSUnauthorizedOrigin verifies disallowed origins get a 403 with no
// CORS headers.
func TestCORSUnauthorizedOrigin(t *testing.T) {
	handler := corsHandler(CORSConfig{
		AllowedOrigins: []string{"https://poemap.example"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	})

	req := httptest.NewRequest(http.MethodGet, "/locations", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "" {
		t.Errorf("rejected origin received Access-Control-Allow-Origin: %s", origin)
	}
}

// TestCORSNoOriginHeader verifies same-origin and non-browser requests pass
// through untouched.
func TestCORSNoOriginHeader(t *testing.T) {
	handler := corsHandler(CORSConfig{
		AllowedOrigins: []string{"https://poemap.example"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Content-Type"},
	})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/locations", nil))

	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Errorf("same-origin request: %d %q", rr.Code, rr.Body.String())
	}
	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "" {
		t.Errorf("same-origin request received Access-Control-Allow-Origin: %s", origin)
	}
}

// TestCORSPreflight verifies OPTIONS requests get the full preflight header
// set and never reach the wrapped handler.
func TestCORSPreflight(t *testing.T) {
	handler := CORS(CORSConfig{
		AllowedOrigins:   []string{"https://poemap.example"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           3600,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler was reached on a preflight request")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/locations", nil)
	req.Header.Set("Origin", "https://poemap.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	checks := map[string]string{
		"Access-Control-Allow-Origin":      "https://poemap.example",
		"Access-Control-Allow-Methods":     "GET, POST, PUT, DELETE",
		"Access-Control-Allow-Headers":     "Content-Type, Authorization, X-Request-ID",
		"Access-Control-Allow-Credentials": "true",
		"Access-Control-Max-Age":           "3600",
	}
	for header, want := range checks {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

// TestCORSPreflightUnauthorizedOrigin verifies preflight rejection short
// circuits before the handler.
func TestCORSPreflightUnauthorizedOrigin(t *testing.T) {
	handler := CORS(CORSConfig{
		AllowedOrigins: []string{"https://poemap.example"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler was reached on a rejected preflight")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/locations", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("preflight status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

// TestCORSCredentialsDisabled verifies the credentials header is omitted
// unless enabled.
func TestCORSCredentialsDisabled(t *testing.T) {
	handler := corsHandler(CORSConfig{
		AllowedOrigins: []string{"https://poemap.example"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Content-Type"},
	})

	req := httptest.NewRequest(http.MethodGet, "/locations", nil)
	req.Header.Set("Origin", "https://poemap.example")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if creds := rr.Header().Get("Access-Control-Allow-Credentials"); creds != "" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want unset", creds)
	}
}

// TestCORSOriginListSanitized verifies whitespace and empty entries in the
// configured allowlist are cleaned up.
func TestCORSOriginListSanitized(t *testing.T) {
	handler := corsHandler(CORSConfig{
		AllowedOrigins: []string{"", "  https://poemap.example  ", ""},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Content-Type"},
	})

	req := httptest.NewRequest(http.MethodGet, "/locations", nil)
	req.Header.Set("Origin", "https://poemap.example")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "https://poemap.example" {
		t.Errorf("Access-Control-Allow-Origin = %q", origin)
	}
}
