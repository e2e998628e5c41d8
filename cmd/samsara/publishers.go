package main

import (
	"context"

	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/engine"
)

// feedbackFanout delivers per-action feedback to every configured sink
// (notification channels, websocket stream).
type feedbackFanout []engine.FeedbackPublisher

func (f feedbackFanout) PublishFeedback(ctx context.Context, res *engine.ActionResult) {
	for _, p := range f {
		p.PublishFeedback(ctx, res)
	}
}

// lifecycleFanout delivers death/rebirth events to every configured sink.
type lifecycleFanout []engine.LifecyclePublisher

func (f lifecycleFanout) PublishLifecycle(ctx context.Context, ev *domain.LifecycleEvent) {
	for _, p := range f {
		p.PublishLifecycle(ctx, ev)
	}
}
