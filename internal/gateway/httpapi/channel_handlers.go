package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jkaninda/okapi"

	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/notification"
)

func validChannelType(t string) bool {
	switch t {
	case notification.TypeWebhook, notification.TypeSlack, notification.TypeLog:
		return true
	}
	return false
}

func validChannelTags(tags []string) bool {
	for _, tag := range tags {
		if tag != notification.KindLifecycle && tag != notification.KindFeedback {
			return false
		}
	}
	return true
}

func (g *Gateway) handleChannelCreate(c *okapi.Context) error {
	var req NotificationChannelRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.Name == "" {
		return c.AbortBadRequest("name is required")
	}
	if !validChannelType(req.ChannelType) {
		return c.AbortBadRequest("channel_type must be webhook, slack, or log")
	}
	if !validChannelTags(req.Tags) {
		return c.AbortBadRequest("tags must be lifecycle or feedback")
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	now := time.Now().UTC()
	ch := &domain.NotificationChannel{
		ID:          domain.NewID(),
		Name:        req.Name,
		ChannelType: req.ChannelType,
		Tags:        req.Tags,
		Config:      req.Config,
		Enabled:     enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := g.dispatcher.Store().CreateChannel(c.Context(), ch); err != nil {
		g.logger.Error("channel creation failed", slog.String("error", err.Error()))
		return c.AbortBadRequest("channel creation failed (duplicate name?)")
	}

	return c.JSON(http.StatusCreated, toNotificationChannelResponse(ch))
}

func (g *Gateway) handleChannelList(c *okapi.Context) error {
	channels, err := g.dispatcher.Store().ListChannels(c.Context())
	if err != nil {
		return c.AbortInternalServerError("listing channels failed")
	}

	resp := make([]NotificationChannelResponse, len(channels))
	for i := range channels {
		resp[i] = toNotificationChannelResponse(&channels[i])
	}
	return c.OK(resp)
}

func (g *Gateway) handleChannelGet(c *okapi.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("invalid channel ID")
	}

	ch, err := g.dispatcher.Store().GetChannel(c.Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, okapi.M{"error": "channel not found"})
	}
	return c.OK(toNotificationChannelResponse(ch))
}

func (g *Gateway) handleChannelUpdate(c *okapi.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("invalid channel ID")
	}

	var req NotificationChannelRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.ChannelType != "" && !validChannelType(req.ChannelType) {
		return c.AbortBadRequest("channel_type must be webhook, slack, or log")
	}
	if !validChannelTags(req.Tags) {
		return c.AbortBadRequest("tags must be lifecycle or feedback")
	}

	ch, err := g.dispatcher.Store().GetChannel(c.Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, okapi.M{"error": "channel not found"})
	}

	if req.Name != "" {
		ch.Name = req.Name
	}
	if req.ChannelType != "" {
		ch.ChannelType = req.ChannelType
	}
	if req.Tags != nil {
		ch.Tags = req.Tags
	}
	if req.Config != nil {
		ch.Config = req.Config
	}
	if req.Enabled != nil {
		ch.Enabled = *req.Enabled
	}
	ch.UpdatedAt = time.Now().UTC()

	if err := g.dispatcher.Store().UpdateChannel(c.Context(), ch); err != nil {
		return c.AbortInternalServerError("channel update failed")
	}
	return c.OK(toNotificationChannelResponse(ch))
}

func (g *Gateway) handleChannelDelete(c *okapi.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("invalid channel ID")
	}

	if err := g.dispatcher.Store().DeleteChannel(c.Context(), id); err != nil {
		return c.JSON(http.StatusNotFound, okapi.M{"error": "channel not found"})
	}
	return c.OK(map[string]string{"status": "deleted"})
}

func (g *Gateway) handleChannelTest(c *okapi.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("invalid channel ID")
	}

	err = g.dispatcher.NotifyChannel(c.Context(), id, &notification.Message{
		Kind:    notification.KindFeedback,
		Subject: "Samsara test notification",
		Body:    "Channel configuration verified.",
	})
	if err != nil {
		return c.AbortBadRequest("test notification failed: " + err.Error())
	}
	return c.OK(map[string]string{"status": "sent"})
}
