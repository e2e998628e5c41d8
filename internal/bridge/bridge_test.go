package bridge

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jkaninda/samsara/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestNew_EmptyEndpointDisables(t *testing.T) {
	if b := New(Config{}, nil, testLogger()); b != nil {
		t.Fatal("expected nil bridge without an endpoint")
	}
}

func TestInfluence_BiasShiftsDominantSide(t *testing.T) {
	b := &Bridge{config: Config{Bias: 0.5}}

	merit := &domain.KarmaProfile{MeritScore: 10, PenaltyScore: 4}
	if got := b.Influence(merit); got != 6.5 {
		t.Errorf("merit-dominant influence = %v, want 6.5", got)
	}
	penalty := &domain.KarmaProfile{MeritScore: 2, PenaltyScore: 8}
	if got := b.Influence(penalty); got != -6.5 {
		t.Errorf("penalty-dominant influence = %v, want -6.5", got)
	}
	even := &domain.KarmaProfile{MeritScore: 5, PenaltyScore: 5}
	if got := b.Influence(even); got != 0 {
		t.Errorf("balanced influence = %v, want 0 unshifted", got)
	}
}

func TestPublishInfluence_PostsSignal(t *testing.T) {
	var got Signal
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b := New(Config{Endpoint: srv.URL}, nil, testLogger())
	profile := &domain.KarmaProfile{
		ID:                 domain.NewID(),
		Role:               domain.RoleSeeker,
		MeritScore:         12,
		PenaltyScore:       3,
		NetKarma:           9,
		WeightedKarmaScore: 6.3,
	}
	b.PublishInfluence(context.Background(), profile)

	if got.IdentityID != profile.ID.String() {
		t.Errorf("identity = %q, want %s", got.IdentityID, profile.ID)
	}
	if got.Role != "seeker" {
		t.Errorf("role = %q, want seeker", got.Role)
	}
	if got.Influence != 9 {
		t.Errorf("influence = %v, want 9", got.Influence)
	}
	if got.NetKarma != 9 || got.Weighted != 6.3 {
		t.Errorf("scores = (%v, %v), want (9, 6.3)", got.NetKarma, got.Weighted)
	}
}

func TestPublishInfluence_EndpointErrorIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := New(Config{Endpoint: srv.URL}, nil, testLogger())
	// Must not panic or block; the caller has already committed the event.
	b.PublishInfluence(context.Background(), &domain.KarmaProfile{ID: domain.NewID()})
}
