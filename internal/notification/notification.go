// Package notification delivers lifecycle and feedback messages to
// configured outbound channels (webhook, Slack, log).
//
// Channels carry tags; a message is routed to every enabled channel whose
// tags include the message kind. Delivery is best-effort and never blocks
// or fails the event that produced the message.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
)

// Message kinds used as channel tags.
const (
	KindLifecycle = "lifecycle"
	KindFeedback  = "feedback"
)

// Channel type identifiers.
const (
	TypeWebhook = "webhook"
	TypeSlack   = "slack"
	TypeLog     = "log"
)

// Sender is one outbound channel backend.
type Sender interface {
	// Type returns the channel type identifier ("webhook", "slack", "log").
	Type() string
	// Send delivers a message to the target described by the channel config.
	Send(ctx context.Context, channel *domain.NotificationChannel, msg *Message) error
}

// Message is the payload routed through a channel.
type Message struct {
	Kind     string            // KindLifecycle or KindFeedback.
	Subject  string
	Body     string
	Metadata map[string]string
}

// ChannelStore provides notification channel persistence.
type ChannelStore interface {
	GetChannel(ctx context.Context, id uuid.UUID) (*domain.NotificationChannel, error)
	GetChannelByName(ctx context.Context, name string) (*domain.NotificationChannel, error)
	ListChannels(ctx context.Context) ([]domain.NotificationChannel, error)
	CreateChannel(ctx context.Context, ch *domain.NotificationChannel) error
	UpdateChannel(ctx context.Context, ch *domain.NotificationChannel) error
	DeleteChannel(ctx context.Context, id uuid.UUID) error
}

// Dispatcher routes messages to senders by channel type and tag.
// Thread-safe after startup.
type Dispatcher struct {
	senders map[string]Sender
	store   ChannelStore
	metrics *Metrics
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(store ChannelStore, metrics *Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		senders: make(map[string]Sender),
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// RegisterSender adds a channel backend. Call at startup only.
func (d *Dispatcher) RegisterSender(s Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.senders[s.Type()] = s
}

// Dispatch sends the message to every enabled channel tagged with its kind.
// Per-channel failures are logged and counted, never propagated.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message) {
	channels, err := d.store.ListChannels(ctx)
	if err != nil {
		d.logger.WarnContext(ctx, "listing notification channels failed",
			slog.String("error", err.Error()),
		)
		return
	}

	for i := range channels {
		ch := &channels[i]
		if !ch.Enabled || !hasTag(ch.Tags, msg.Kind) {
			continue
		}
		d.send(ctx, ch, msg)
	}
}

// NotifyChannel sends a message to one channel by id, regardless of tags.
func (d *Dispatcher) NotifyChannel(ctx context.Context, channelID uuid.UUID, msg *Message) error {
	ch, err := d.store.GetChannel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("channel lookup: %w", err)
	}
	if !ch.Enabled {
		return fmt.Errorf("channel %q is disabled", ch.Name)
	}
	return d.send(ctx, ch, msg)
}

func (d *Dispatcher) send(ctx context.Context, ch *domain.NotificationChannel, msg *Message) error {
	d.mu.RLock()
	sender, ok := d.senders[ch.ChannelType]
	d.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("no sender registered for channel type %q", ch.ChannelType)
		d.count(ch.ChannelType, "failure")
		d.logger.WarnContext(ctx, "notification dropped", slog.String("error", err.Error()))
		return err
	}

	if err := sender.Send(ctx, ch, msg); err != nil {
		d.count(ch.ChannelType, "failure")
		d.logger.WarnContext(ctx, "notification send failed",
			slog.String("channel", ch.Name),
			slog.String("type", ch.ChannelType),
			slog.String("kind", msg.Kind),
			slog.String("error", err.Error()),
		)
		return err
	}

	d.count(ch.ChannelType, "success")
	d.logger.DebugContext(ctx, "notification sent",
		slog.String("channel", ch.Name),
		slog.String("type", ch.ChannelType),
		slog.String("kind", msg.Kind),
	)
	return nil
}

// Store returns the underlying ChannelStore for the management API.
func (d *Dispatcher) Store() ChannelStore {
	return d.store
}

func (d *Dispatcher) count(channelType, status string) {
	if d.metrics != nil {
		d.metrics.Sends.WithLabelValues(channelType, status).Inc()
	}
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
