package notification

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/engine"
)

// Publisher adapts the dispatcher to the engine's outbound interfaces.
// Messages are formatted here so the dispatcher stays payload-agnostic.
type Publisher struct {
	dispatcher *Dispatcher
}

// NewPublisher creates a Publisher over the dispatcher.
func NewPublisher(d *Dispatcher) *Publisher {
	return &Publisher{dispatcher: d}
}

// PublishFeedback routes a per-action feedback digest to feedback channels.
func (p *Publisher) PublishFeedback(ctx context.Context, res *engine.ActionResult) {
	body := fmt.Sprintf("%s scored %+.2f (%s/%s), net karma %.2f",
		res.Record.Action, res.Record.KarmaDelta,
		res.Record.Category, res.Record.Severity,
		res.Profile.NetKarma,
	)
	if res.Plan != nil {
		body += fmt.Sprintf("; atonement plan opened, due %s", res.Plan.Deadline.Format("2006-01-02"))
	}
	if res.RecommendedAction != "" {
		body += fmt.Sprintf("; suggested next: %s", res.RecommendedAction)
	}

	p.dispatcher.Dispatch(ctx, &Message{
		Kind:    KindFeedback,
		Subject: "Action feedback",
		Body:    body,
		Metadata: map[string]string{
			"identity_id": res.Record.IdentityID.String(),
			"action_id":   res.Record.ID.String(),
			"role":        string(res.Profile.Role),
			"net_karma":   strconv.FormatFloat(res.Profile.NetKarma, 'f', 2, 64),
		},
	})
}

// PublishLifecycle routes a committed death+rebirth event to lifecycle channels.
func (p *Publisher) PublishLifecycle(ctx context.Context, ev *domain.LifecycleEvent) {
	p.dispatcher.Dispatch(ctx, &Message{
		Kind:    KindLifecycle,
		Subject: "Lifecycle transition",
		Body: fmt.Sprintf("identity %s died at net karma %.2f, assigned %s, reborn as %s (rebirth #%d)",
			ev.IdentityID, ev.NetKarmaAtDeath, ev.Loka, ev.NewIdentityID, ev.RebirthCount,
		),
		Metadata: map[string]string{
			"identity_id":     ev.IdentityID.String(),
			"new_identity_id": ev.NewIdentityID.String(),
			"loka":            string(ev.Loka),
			"rebirth_count":   strconv.Itoa(ev.RebirthCount),
		},
	})
}
