package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jkaninda/samsara/internal/config"
	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/engine"
)

func newTestServer(cfg *config.WebSocketGatewayConfig) *Server {
	return NewServer(cfg, nil, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

// attach registers a raw subscriber without a network connection so
// broadcast frames can be inspected directly.
func attach(s *Server) *subscriber {
	sub := &subscriber{send: make(chan []byte, subscriberBuffer)}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	return sub
}

func readFrame(t *testing.T, sub *subscriber) Event {
	t.Helper()
	select {
	case data := <-sub.send:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decoding frame: %v", err)
		}
		return ev
	default:
		t.Fatal("no frame queued")
		return Event{}
	}
}

func TestPublishFeedback_BroadcastsFrame(t *testing.T) {
	s := newTestServer(nil)
	sub := attach(s)

	profile := &domain.KarmaProfile{ID: domain.NewID(), Role: domain.RoleSeeker, NetKarma: -6}
	plan := &domain.AtonementPlan{ID: domain.NewID()}
	s.PublishFeedback(context.Background(), &engine.ActionResult{
		Profile: profile,
		Record: &domain.ActionRecord{
			Action:     "theft",
			Category:   "paapa",
			Severity:   domain.SeverityMedium,
			KarmaDelta: -6,
		},
		Plan:              plan,
		RecommendedAction: "charity",
	})

	ev := readFrame(t, sub)
	if ev.Type != "feedback" {
		t.Fatalf("type = %q, want feedback", ev.Type)
	}
	var fb FeedbackEvent
	if err := json.Unmarshal(ev.Payload, &fb); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if fb.IdentityID != profile.ID.String() || fb.Action != "theft" {
		t.Errorf("payload = %+v", fb)
	}
	if fb.Severity != "medium" || fb.KarmaDelta != -6 {
		t.Errorf("severity/delta = %q/%v", fb.Severity, fb.KarmaDelta)
	}
	if fb.PlanID != plan.ID.String() || fb.RecommendedAction != "charity" {
		t.Errorf("plan/recommendation = %q/%q", fb.PlanID, fb.RecommendedAction)
	}
}

func TestPublishLifecycle_BroadcastsFrame(t *testing.T) {
	s := newTestServer(nil)
	sub := attach(s)

	event := &domain.LifecycleEvent{
		IdentityID:      domain.NewID(),
		NewIdentityID:   domain.NewID(),
		Loka:            domain.LokaNaraka,
		NetKarmaAtDeath: -42,
		RebirthCount:    2,
	}
	s.PublishLifecycle(context.Background(), event)

	ev := readFrame(t, sub)
	if ev.Type != "lifecycle" {
		t.Fatalf("type = %q, want lifecycle", ev.Type)
	}
	var lc LifecycleStreamEvent
	if err := json.Unmarshal(ev.Payload, &lc); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if lc.Loka != "naraka" || lc.RebirthCount != 2 {
		t.Errorf("payload = %+v", lc)
	}
}

func TestBroadcast_SkipsLaggingSubscriber(t *testing.T) {
	s := newTestServer(nil)
	slow := &subscriber{send: make(chan []byte)} // unbuffered, never drained
	s.mu.Lock()
	s.subs[slow] = struct{}{}
	s.mu.Unlock()
	fast := attach(s)

	s.broadcast("feedback", FeedbackEvent{Action: "charity"})

	if len(fast.send) != 1 {
		t.Error("healthy subscriber missed the frame")
	}
	if len(slow.send) != 0 {
		t.Error("frame queued on a full subscriber")
	}
}

func TestHandler_RejectsBadToken(t *testing.T) {
	s := newTestServer(&config.WebSocketGatewayConfig{Enabled: true, Token: "s3cret"})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	for _, tt := range []struct {
		name  string
		token string
		want  int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"wrong token", "nope", http.StatusUnauthorized},
	} {
		t.Run(tt.name, func(t *testing.T) {
			url := srv.URL
			if tt.token != "" {
				url += "?token=" + tt.token
			}
			resp, err := http.Get(url)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}
