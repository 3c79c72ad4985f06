package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	stripe "github.com/stripe/stripe-go/v81"

	"github.com/nabeul-archive/poemap/internal/auth"
	"github.com/nabeul-archive/poemap/internal/catalog"
	"github.com/nabeul-archive/poemap/internal/events"
	"github.com/nabeul-archive/poemap/internal/location"
	"github.com/nabeul-archive/poemap/internal/notify"
	"github.com/nabeul-archive/poemap/internal/payment"
	"github.com/nabeul-archive/poemap/internal/profile"
	"github.com/nabeul-archive/poemap/internal/purchase"
	"github.com/nabeul-archive/poemap/internal/session"
	"github.com/nabeul-archive/poemap/internal/submission"
)

const testWebhookSecret = "whsec_test_secret"

// stubSynth satisfies submission.Synthesizer without calling Gemini.
type stubSynth struct{}

func (stubSynth) Poem(ctx context.Context, locationName, poetName string) string {
	return "شعر مولد عن " + locationName
}

func (stubSynth) Mural(ctx context.Context, poemText, locationName string) string {
	return "https://cdn.example.com/murals/static.png"
}

// stubStripe satisfies payment.Client with a canned Checkout Session.
type stubStripe struct {
	lastParams *payment.CheckoutParams
}

func (s *stubStripe) CreateCheckoutSession(params *payment.CheckoutParams) (*stripe.CheckoutSession, error) {
	s.lastParams = params
	return &stripe.CheckoutSession{
		ID:  "cs_test_1",
		URL: "https://checkout.stripe.test/cs_test_1",
	}, nil
}

// testEnv is a full in-memory API stack.
type testEnv struct {
	mux      *http.ServeMux
	jwt      *auth.JWTService
	profiles *profile.InMemoryRepository
	catalog  *catalog.Catalog
	topups   *payment.Service
	notifier *notify.Center
	sessions *session.Manager
	stripe   *stubStripe
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	jwtService := auth.NewJWTService("test-secret-0123456789abcdef")
	credentials := auth.NewCredentials(auth.NewInMemoryCredentialStore())
	profiles := profile.NewInMemoryRepository()
	sessions := session.NewManager(profiles, nil)

	locRepo := location.NewInMemoryRepository()
	broadcaster := events.NewBroadcaster()
	cat := catalog.New(locRepo, nil, broadcaster, nil)
	cat.Hydrate(context.Background())

	grants := purchase.NewInMemoryGrantStore(profiles)
	purchases := purchase.NewService(profiles, cat, grants, nil)
	viewCounter := location.NewViewCounter(nil, cat, nil)
	wizard := submission.NewService(cat, nil, stubSynth{}, nil)
	notifier := notify.NewCenter()

	sc := &stubStripe{}
	topups := payment.NewService(
		payment.NewInMemoryTopUpRepository(),
		payment.NewInMemoryWebhookRepository(),
		profiles,
		sc,
		"https://poemap.example/topup/success",
		"https://poemap.example/topup/cancel",
		nil,
	)

	mux := NewRouter(RouterConfig{
		JWT:           jwtService,
		Auth:          NewAuthHandlers(credentials, jwtService, sessions),
		Profiles:      NewProfileHandlers(profiles),
		Locations:     NewLocationHandlers(cat, purchases, viewCounter, "https://poemap.example"),
		Purchases:     NewPurchaseHandlers(purchases, cat, notifier, sessions),
		Submissions:   NewSubmissionHandlers(wizard),
		Wallet:        NewWalletHandlers(topups),
		Webhooks:      NewWebhookHandlers(testWebhookSecret, topups),
		Notifications: NewNotificationHandlers(notifier),
		Events:        NewEventHandlers(broadcaster),
	})

	return &testEnv{
		mux:      mux,
		jwt:      jwtService,
		profiles: profiles,
		catalog:  cat,
		topups:   topups,
		notifier: notifier,
		sessions: sessions,
		stripe:   sc,
	}
}

// do runs one request through the router. A non-empty token is sent as a
// bearer credential; a non-nil body is JSON encoded.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}

// signup registers a user and returns the token response.
func (e *testEnv) signup(t *testing.T, email string) TokenResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/auth/signup", "", SignupRequest{Email: email, Password: "correct-horse-battery"})
	if w.Code != http.StatusOK {
		t.Fatalf("signup returned %d: %s", w.Code, w.Body.String())
	}
	return decodeBody[TokenResponse](t, w)
}

// adminToken mints an access token carrying the admin role.
func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	tok, err := e.jwt.GenerateAccessToken("admin-1", profile.RoleAdmin)
	if err != nil {
		t.Fatalf("failed to generate admin token: %v", err)
	}
	return tok
}

// seedLocation inserts a location directly into the catalog.
func (e *testEnv) seedLocation(t *testing.T, loc *location.Location) *location.Location {
	t.Helper()
	if loc.Preview == "" {
		loc.Preview = location.PreviewOf(loc.FullPoem)
	}
	if err := e.catalog.Insert(context.Background(), loc); err != nil {
		t.Fatalf("failed to seed location: %v", err)
	}
	return loc
}

func errorCodeOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode error envelope %q: %v", w.Body.String(), err)
	}
	return envelope.Error.Code
}
