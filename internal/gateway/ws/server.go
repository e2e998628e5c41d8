// Package ws implements the WebSocket event stream. Subscribers connect,
// optionally present a shared token, and receive feedback and lifecycle
// events as JSON frames in real-time instead of polling the API.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/jkaninda/samsara/internal/config"
	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/engine"
	"github.com/jkaninda/samsara/internal/observability"
)

const (
	// subscriberBuffer bounds the per-subscriber send queue. A subscriber
	// that falls this far behind is disconnected rather than backpressuring
	// the event pipeline.
	subscriberBuffer = 64

	writeTimeout = 5 * time.Second
)

// Event is one frame pushed to subscribers.
type Event struct {
	Type    string          `json:"type"` // "feedback" or "lifecycle".
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

// FeedbackEvent is the payload of a "feedback" frame.
type FeedbackEvent struct {
	IdentityID        string  `json:"identity_id"`
	Action            string  `json:"action"`
	Category          string  `json:"category"`
	Severity          string  `json:"severity,omitempty"`
	KarmaDelta        float64 `json:"karma_delta"`
	NetKarma          float64 `json:"net_karma"`
	Role              string  `json:"role"`
	RecommendedAction string  `json:"recommended_action,omitempty"`
	PlanID            string  `json:"plan_id,omitempty"`
}

// LifecycleStreamEvent is the payload of a "lifecycle" frame.
type LifecycleStreamEvent struct {
	IdentityID      string  `json:"identity_id"`
	NewIdentityID   string  `json:"new_identity_id"`
	Loka            string  `json:"loka"`
	NetKarmaAtDeath float64 `json:"net_karma_at_death"`
	RebirthCount    int     `json:"rebirth_count"`
}

// Server fans engine events out to connected WebSocket subscribers.
// It implements the engine's feedback and lifecycle publisher interfaces.
type Server struct {
	cfg     *config.WebSocketGatewayConfig
	metrics *observability.MetricsCollector
	logger  *slog.Logger

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	send chan []byte
}

// NewServer creates a WebSocket event stream server. metrics may be nil.
func NewServer(cfg *config.WebSocketGatewayConfig, metrics *observability.MetricsCollector, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		subs:    make(map[*subscriber]struct{}),
	}
}

// Handler returns an http.Handler that upgrades connections to WebSocket.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleUpgrade)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	// Authenticate subscriber via shared token.
	if s.cfg != nil && s.cfg.Token != "" {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = r.Header.Get("Authorization")
			if len(token) > 7 && token[:7] == "Bearer " {
				token = token[7:]
			}
		}
		if token != s.cfg.Token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{"samsara-events-v1"},
	})
	if err != nil {
		s.logger.Error("websocket accept failed", slog.String("error", err.Error()))
		return
	}

	s.serveSubscriber(r.Context(), conn)
}

func (s *Server) serveSubscriber(ctx context.Context, conn *websocket.Conn) {
	sub := &subscriber{send: make(chan []byte, subscriberBuffer)}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	peers := len(s.subs)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ConnectedPeers.Set(float64(peers))
	}
	s.logger.Info("event subscriber connected", slog.Int("peers", peers))

	defer func() {
		s.mu.Lock()
		delete(s.subs, sub)
		peers := len(s.subs)
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.ConnectedPeers.Set(float64(peers))
		}
		conn.Close(websocket.StatusNormalClosure, "connection closed")
		s.logger.Info("event subscriber disconnected", slog.Int("peers", peers))
	}()

	// Subscribers are write-only; CloseRead discards inbound frames and
	// cancels the context when the peer goes away.
	ctx = conn.CloseRead(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-sub.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// broadcast queues an event frame for every connected subscriber.
// Subscribers with a full queue are skipped; they disconnect on their own
// when the close frame surfaces, and a skipped frame is not retried.
func (s *Server) broadcast(eventType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("event payload marshal failed", slog.String("error", err.Error()))
		return
	}
	frame, err := json.Marshal(Event{
		Type:    eventType,
		Time:    time.Now().UTC(),
		Payload: body,
	})
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		select {
		case sub.send <- frame:
		default:
			s.logger.Warn("event subscriber lagging, frame dropped",
				slog.String("type", eventType),
			)
		}
	}
}

// PublishFeedback pushes a per-action feedback frame to subscribers.
func (s *Server) PublishFeedback(ctx context.Context, res *engine.ActionResult) {
	ev := FeedbackEvent{
		IdentityID:        res.Profile.ID.String(),
		Action:            res.Record.Action,
		Category:          res.Record.Category,
		KarmaDelta:        res.Record.KarmaDelta,
		NetKarma:          res.Profile.NetKarma,
		Role:              string(res.Profile.Role),
		RecommendedAction: res.RecommendedAction,
	}
	if res.Record.Severity != domain.SeverityNone {
		ev.Severity = string(res.Record.Severity)
	}
	if res.Plan != nil {
		ev.PlanID = res.Plan.ID.String()
	}
	s.broadcast("feedback", ev)
}

// PublishLifecycle pushes a death/rebirth frame to subscribers.
func (s *Server) PublishLifecycle(ctx context.Context, event *domain.LifecycleEvent) {
	s.broadcast("lifecycle", LifecycleStreamEvent{
		IdentityID:      event.IdentityID.String(),
		NewIdentityID:   event.NewIdentityID.String(),
		Loka:            string(event.Loka),
		NetKarmaAtDeath: event.NetKarmaAtDeath,
		RebirthCount:    event.RebirthCount,
	})
}
