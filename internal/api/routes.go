package api

import (
	"net/http"

	"github.com/nabeul-archive/poemap/internal/auth"
)

// RouterConfig collects the handler groups mounted on the API mux. Optional
// groups may be nil; their routes are then not registered.
type RouterConfig struct {
	JWT *auth.JWTService

	Auth          *AuthHandlers
	Profiles      *ProfileHandlers
	Locations     *LocationHandlers
	Purchases     *PurchaseHandlers
	Submissions   *SubmissionHandlers
	Wallet        *WalletHandlers
	Webhooks      *WebhookHandlers
	Uploads       *UploadHandlers
	Narration     *NarrationHandlers
	Notifications *NotificationHandlers
	Events        *EventHandlers
	Health        *HealthHandlers
}

// NewRouter builds the API mux. Authentication is applied per route: the
// catalog read side is public (with optional viewer identity), everything
// that spends balance or mutates content requires a bearer token, and the
// curated CRUD surface requires the admin role.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	// Service metadata
	mux.HandleFunc("GET /{$}", serviceInfo)
	mux.HandleFunc("GET /manifest.webmanifest", webManifest)

	if cfg.Health != nil {
		mux.HandleFunc("GET /health", cfg.Health.Health)
		mux.HandleFunc("GET /ready", cfg.Health.Ready)
	}

	if cfg.Auth != nil {
		mux.HandleFunc("POST /auth/signup", cfg.Auth.Signup)
		mux.HandleFunc("POST /auth/login", cfg.Auth.Login)
		mux.HandleFunc("POST /auth/refresh", cfg.Auth.Refresh)
		mux.HandleFunc("POST /auth/logout", RequireAuth(cfg.JWT, cfg.Auth.Logout))
	}

	if cfg.Profiles != nil {
		mux.HandleFunc("GET /profile", RequireAuth(cfg.JWT, cfg.Profiles.Get))
		mux.HandleFunc("PATCH /profile", RequireAuth(cfg.JWT, cfg.Profiles.Update))
	}

	if cfg.Locations != nil {
		mux.HandleFunc("GET /locations", OptionalAuth(cfg.JWT, cfg.Locations.List))
		mux.HandleFunc("GET /locations/{id}", OptionalAuth(cfg.JWT, cfg.Locations.Get))
		mux.HandleFunc("POST /locations/{id}/views", cfg.Locations.AddView)
		mux.HandleFunc("GET /share", OptionalAuth(cfg.JWT, cfg.Locations.Share))

		// Curated catalog management
		mux.HandleFunc("POST /locations", RequireAdmin(cfg.JWT, cfg.Locations.Create))
		mux.HandleFunc("POST /locations/placement", RequireAdmin(cfg.JWT, cfg.Locations.ResolvePlacement))
		mux.HandleFunc("PUT /locations/{id}", RequireAdmin(cfg.JWT, cfg.Locations.Update))
		mux.HandleFunc("DELETE /locations/{id}", RequireAdmin(cfg.JWT, cfg.Locations.Delete))
	}

	if cfg.Purchases != nil {
		mux.HandleFunc("POST /locations/{id}/unlock", RequireAuth(cfg.JWT, cfg.Purchases.Unlock))
	}

	if cfg.Submissions != nil {
		mux.HandleFunc("POST /submissions", RequireAuth(cfg.JWT, cfg.Submissions.Begin))
		mux.HandleFunc("GET /submissions/{id}", RequireAuth(cfg.JWT, cfg.Submissions.Get))
		mux.HandleFunc("POST /submissions/{id}/details", RequireAuth(cfg.JWT, cfg.Submissions.SubmitDetails))
		mux.HandleFunc("POST /submissions/{id}/launch", RequireAuth(cfg.JWT, cfg.Submissions.Launch))
		mux.HandleFunc("GET /archive", RequireAuth(cfg.JWT, cfg.Submissions.Archive))
		mux.HandleFunc("DELETE /archive/{id}", RequireAuth(cfg.JWT, cfg.Submissions.DeleteOwn))
	}

	if cfg.Wallet != nil {
		mux.HandleFunc("GET /wallet/packs", cfg.Wallet.Packs)
		mux.HandleFunc("POST /wallet/topup", RequireAuth(cfg.JWT, cfg.Wallet.TopUp))
	}

	if cfg.Webhooks != nil {
		mux.HandleFunc("POST /internal/stripe", cfg.Webhooks.HandleStripeWebhook)
	}

	if cfg.Uploads != nil {
		mux.HandleFunc("POST /uploads/sign", RequireAuth(cfg.JWT, cfg.Uploads.SignUpload))
		mux.HandleFunc("POST /uploads/{folder}", RequireAuth(cfg.JWT, cfg.Uploads.DirectUpload))
	}

	if cfg.Narration != nil {
		mux.HandleFunc("POST /narrate", RequireAuth(cfg.JWT, cfg.Narration.Narrate))
	}

	if cfg.Notifications != nil {
		mux.HandleFunc("GET /notifications/current", cfg.Notifications.Current)
		mux.HandleFunc("DELETE /notifications/current", cfg.Notifications.Dismiss)
	}

	if cfg.Events != nil {
		mux.HandleFunc("GET /ws", cfg.Events.Subscribe)
	}

	return mux
}

func serviceInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "poemap-api",
		"version": "0.1.0",
	})
}

// webManifest serves the installable web app manifest.
func webManifest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/manifest+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{
  "name": "Nabeul Poetry Archive",
  "short_name": "Poemap",
  "start_url": "/",
  "display": "standalone",
  "background_color": "#1a1a2e",
  "theme_color": "#e0b04a",
  "description": "A living map of Nabeul's poems and the places that inspired them.",
  "icons": [
    {"src": "/icons/icon-192.png", "sizes": "192x192", "type": "image/png"},
    {"src": "/icons/icon-512.png", "sizes": "512x512", "type": "image/png"}
  ]
}`))
}
