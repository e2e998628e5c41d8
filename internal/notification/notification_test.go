package notification

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
)

type stubChannelStore struct {
	channels []domain.NotificationChannel
}

func (s *stubChannelStore) GetChannel(_ context.Context, id uuid.UUID) (*domain.NotificationChannel, error) {
	for i := range s.channels {
		if s.channels[i].ID == id {
			return &s.channels[i], nil
		}
	}
	return nil, fmt.Errorf("channel %s not found", id)
}

func (s *stubChannelStore) GetChannelByName(_ context.Context, name string) (*domain.NotificationChannel, error) {
	for i := range s.channels {
		if s.channels[i].Name == name {
			return &s.channels[i], nil
		}
	}
	return nil, fmt.Errorf("channel %q not found", name)
}

func (s *stubChannelStore) ListChannels(_ context.Context) ([]domain.NotificationChannel, error) {
	return s.channels, nil
}

func (s *stubChannelStore) CreateChannel(_ context.Context, ch *domain.NotificationChannel) error {
	s.channels = append(s.channels, *ch)
	return nil
}

func (s *stubChannelStore) UpdateChannel(context.Context, *domain.NotificationChannel) error {
	return nil
}

func (s *stubChannelStore) DeleteChannel(context.Context, uuid.UUID) error { return nil }

type recordingSender struct {
	typ  string
	sent []string // channel names, in order.
	fail bool
}

func (r *recordingSender) Type() string { return r.typ }

func (r *recordingSender) Send(_ context.Context, ch *domain.NotificationChannel, _ *Message) error {
	if r.fail {
		return fmt.Errorf("send failed")
	}
	r.sent = append(r.sent, ch.Name)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func channel(name, typ string, tags []string, enabled bool) domain.NotificationChannel {
	return domain.NotificationChannel{
		ID:          domain.NewID(),
		Name:        name,
		ChannelType: typ,
		Tags:        tags,
		Enabled:     enabled,
	}
}

func TestDispatch_RoutesByTag(t *testing.T) {
	store := &stubChannelStore{channels: []domain.NotificationChannel{
		channel("lifecycle-hook", TypeWebhook, []string{KindLifecycle}, true),
		channel("feedback-hook", TypeWebhook, []string{KindFeedback}, true),
		channel("everything", TypeWebhook, []string{KindLifecycle, KindFeedback}, true),
	}}
	sender := &recordingSender{typ: TypeWebhook}
	d := NewDispatcher(store, nil, testLogger())
	d.RegisterSender(sender)

	d.Dispatch(context.Background(), &Message{Kind: KindLifecycle, Subject: "death"})

	if len(sender.sent) != 2 {
		t.Fatalf("sent to %v, want 2 channels", sender.sent)
	}
	for _, name := range sender.sent {
		if name == "feedback-hook" {
			t.Error("lifecycle message routed to feedback-only channel")
		}
	}
}

func TestDispatch_SkipsDisabledChannels(t *testing.T) {
	store := &stubChannelStore{channels: []domain.NotificationChannel{
		channel("off", TypeWebhook, []string{KindFeedback}, false),
	}}
	sender := &recordingSender{typ: TypeWebhook}
	d := NewDispatcher(store, nil, testLogger())
	d.RegisterSender(sender)

	d.Dispatch(context.Background(), &Message{Kind: KindFeedback})

	if len(sender.sent) != 0 {
		t.Errorf("sent to disabled channel: %v", sender.sent)
	}
}

func TestDispatch_SenderFailureDoesNotPropagate(t *testing.T) {
	store := &stubChannelStore{channels: []domain.NotificationChannel{
		channel("flaky", TypeWebhook, []string{KindFeedback}, true),
		channel("steady", TypeLog, []string{KindFeedback}, true),
	}}
	flaky := &recordingSender{typ: TypeWebhook, fail: true}
	steady := &recordingSender{typ: TypeLog}
	d := NewDispatcher(store, nil, testLogger())
	d.RegisterSender(flaky)
	d.RegisterSender(steady)

	d.Dispatch(context.Background(), &Message{Kind: KindFeedback})

	if len(steady.sent) != 1 {
		t.Errorf("later channel skipped after earlier failure: %v", steady.sent)
	}
}

func TestNotifyChannel_IgnoresTags(t *testing.T) {
	ch := channel("untagged", TypeWebhook, nil, true)
	store := &stubChannelStore{channels: []domain.NotificationChannel{ch}}
	sender := &recordingSender{typ: TypeWebhook}
	d := NewDispatcher(store, nil, testLogger())
	d.RegisterSender(sender)

	if err := d.NotifyChannel(context.Background(), ch.ID, &Message{Kind: KindFeedback}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("sent = %v, want the untagged channel", sender.sent)
	}
}

func TestNotifyChannel_DisabledChannelErrors(t *testing.T) {
	ch := channel("off", TypeWebhook, nil, false)
	store := &stubChannelStore{channels: []domain.NotificationChannel{ch}}
	d := NewDispatcher(store, nil, testLogger())
	d.RegisterSender(&recordingSender{typ: TypeWebhook})

	if err := d.NotifyChannel(context.Background(), ch.ID, &Message{}); err == nil {
		t.Fatal("expected error for disabled channel")
	}
}

func TestSend_UnregisteredTypeDropped(t *testing.T) {
	ch := channel("slack-chan", TypeSlack, []string{KindFeedback}, true)
	store := &stubChannelStore{channels: []domain.NotificationChannel{ch}}
	d := NewDispatcher(store, nil, testLogger())

	if err := d.NotifyChannel(context.Background(), ch.ID, &Message{Kind: KindFeedback}); err == nil {
		t.Fatal("expected error for unregistered sender type")
	}
}
