package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/nabeul-archive/poemap/internal/location"
	"github.com/nabeul-archive/poemap/internal/submission"
)

// TestSubmissionWizardFlow walks the wizard end to end over HTTP: open a
// draft, submit details, review with generated poem, launch, then find the
// location in the archive.
func TestSubmissionWizardFlow(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "poet@example.com")

	w := env.do(t, http.MethodPost, "/submissions", user.AccessToken, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("begin returned %d: %s", w.Code, w.Body.String())
	}
	draft := decodeBody[submission.Draft](t, w)
	if draft.ID == "" {
		t.Fatal("draft has no ID")
	}
	if draft.State != submission.StateDetails {
		t.Fatalf("fresh draft state = %q, want %q", draft.State, submission.StateDetails)
	}

	w = env.do(t, http.MethodPost, "/submissions/"+draft.ID+"/details", user.AccessToken, submission.Details{
		Name:      "مقهى العليا",
		Poet:      "شاعر مجهول",
		Price:     15,
		Lat:       300,
		Lng:       500,
		MuralMode: submission.MuralModeAI,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("details returned %d: %s", w.Code, w.Body.String())
	}
	reviewed := decodeBody[submission.Draft](t, w)
	if reviewed.State != submission.StateReview {
		t.Fatalf("state after details = %q, want %q", reviewed.State, submission.StateReview)
	}
	if !strings.Contains(reviewed.Details.PoemText, "مقهى العليا") {
		t.Errorf("empty poem was not filled by synthesis: %q", reviewed.Details.PoemText)
	}

	w = env.do(t, http.MethodPost, "/submissions/"+draft.ID+"/launch", user.AccessToken, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("launch returned %d: %s", w.Code, w.Body.String())
	}
	loc := decodeBody[location.Location](t, w)
	if loc.ID == "" {
		t.Fatal("launched location has no ID")
	}
	if !loc.IsUserSubmitted {
		t.Error("launched location not marked user submitted")
	}
	if loc.MuralURL == "" {
		t.Error("launch did not synthesize a mural")
	}

	// The draft is consumed by the launch.
	w = env.do(t, http.MethodGet, "/submissions/"+draft.ID, user.AccessToken, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after launch returned %d, want 404", w.Code)
	}

	w = env.do(t, http.MethodGet, "/archive", user.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("archive returned %d", w.Code)
	}
	archive := decodeBody[[]*location.Location](t, w)
	if len(archive) != 1 || archive[0].ID != loc.ID {
		t.Fatalf("archive = %+v, want the launched location", archive)
	}

	w = env.do(t, http.MethodDelete, "/archive/"+loc.ID, user.AccessToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("archive delete returned %d, want 204", w.Code)
	}
	w = env.do(t, http.MethodGet, "/locations/"+loc.ID, "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted submission still in catalog, get returned %d", w.Code)
	}
}

// TestSubmissionInvalidDetails verifies validation failures keep the draft in
// the details step.
func TestSubmissionInvalidDetails(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "poet@example.com")

	w := env.do(t, http.MethodPost, "/submissions", user.AccessToken, nil)
	draft := decodeBody[submission.Draft](t, w)

	w = env.do(t, http.MethodPost, "/submissions/"+draft.ID+"/details", user.AccessToken, submission.Details{
		Poet: "شاعر",
		Lat:  100,
		Lng:  100,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("nameless details returned %d, want 400", w.Code)
	}
	if code := errorCodeOf(t, w); code != ErrCodeValidation {
		t.Errorf("error code = %q, want %q", code, ErrCodeValidation)
	}

	w = env.do(t, http.MethodGet, "/submissions/"+draft.ID, user.AccessToken, nil)
	got := decodeBody[submission.Draft](t, w)
	if got.State != submission.StateDetails {
		t.Errorf("draft state = %q after rejected details, want %q", got.State, submission.StateDetails)
	}
}

// TestSubmissionLaunchFromWrongState verifies launching before review is a
// conflict.
func TestSubmissionLaunchFromWrongState(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "poet@example.com")

	w := env.do(t, http.MethodPost, "/submissions", user.AccessToken, nil)
	draft := decodeBody[submission.Draft](t, w)

	w = env.do(t, http.MethodPost, "/submissions/"+draft.ID+"/launch", user.AccessToken, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("launch from details returned %d, want 409", w.Code)
	}
	if code := errorCodeOf(t, w); code != ErrCodeInvalidTransition {
		t.Errorf("error code = %q, want %q", code, ErrCodeInvalidTransition)
	}
}

// TestSubmissionOwnership verifies drafts are invisible to other users.
func TestSubmissionOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signup(t, "poet@example.com")
	other := env.signup(t, "other@example.com")

	w := env.do(t, http.MethodPost, "/submissions", owner.AccessToken, nil)
	draft := decodeBody[submission.Draft](t, w)

	w = env.do(t, http.MethodGet, "/submissions/"+draft.ID, other.AccessToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign draft get returned %d, want 403", w.Code)
	}
}
