package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/jkaninda/samsara/internal/domain"
)

const slackPostMessageURL = "https://slack.com/api/chat.postMessage"

// SlackSender posts lifecycle and feedback digests via the Slack Web API.
// Lifecycle messages announce a death and rebirth; feedback messages
// carry the per-action karmic delta.
type SlackSender struct {
	botToken   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackSender creates a Slack sender.
func NewSlackSender(botToken string, logger *slog.Logger) *SlackSender {
	return &SlackSender{
		botToken:   botToken,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

func (s *SlackSender) Type() string { return TypeSlack }

func (s *SlackSender) Send(ctx context.Context, ch *domain.NotificationChannel, msg *Message) error {
	channelID := ch.Config["channel_id"]
	if channelID == "" {
		return fmt.Errorf("slack channel %q missing channel_id in config", ch.Name)
	}

	body, err := json.Marshal(struct {
		Channel string `json:"channel"`
		Text    string `json:"text"`
		Mrkdwn  bool   `json:"mrkdwn"`
	}{
		Channel: channelID,
		Text:    formatSlackText(msg),
		Mrkdwn:  true,
	})
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, slackPostMessageURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.botToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack API returned %d: %s", resp.StatusCode, string(respBody))
	}

	// Slack returns 200 even on errors; check the "ok" field.
	var slackResp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err == nil && !slackResp.OK {
		return fmt.Errorf("slack API error: %s", slackResp.Error)
	}
	return nil
}

// formatSlackText renders a message as mrkdwn: a bold subject line, the
// body, and metadata as sorted key/value context lines.
func formatSlackText(msg *Message) string {
	var b strings.Builder
	if msg.Subject != "" {
		fmt.Fprintf(&b, "*%s*\n", msg.Subject)
	}
	b.WriteString(msg.Body)

	if len(msg.Metadata) > 0 {
		keys := make([]string, 0, len(msg.Metadata))
		for k := range msg.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n> %s: `%s`", k, msg.Metadata[k])
		}
	}
	return b.String()
}
