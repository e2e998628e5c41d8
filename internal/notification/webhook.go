package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/jkaninda/samsara/internal/domain"
)

// webhookPayload is the JSON body posted per event. Receivers key off
// "kind" to distinguish feedback frames from lifecycle frames.
type webhookPayload struct {
	Kind     string            `json:"kind"`
	Channel  string            `json:"channel"`
	Subject  string            `json:"subject"`
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata,omitempty"`
	SentAt   string            `json:"sent_at"`
}

// WebhookSender delivers karmic event messages via HTTP POST to the URL
// in the channel config. Hosts resolving to private or loopback ranges
// are refused. When the channel config carries a "secret", the body is
// signed with HMAC-SHA256 in the X-Samsara-Signature header.
type WebhookSender struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookSender creates a webhook sender.
func NewWebhookSender(logger *slog.Logger) *WebhookSender {
	return &WebhookSender{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			// Do not follow redirects; a redirect could point at an internal host.
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

func (s *WebhookSender) Type() string { return TypeWebhook }

func (s *WebhookSender) Send(ctx context.Context, ch *domain.NotificationChannel, msg *Message) error {
	endpoint := ch.Config["url"]
	if endpoint == "" {
		return fmt.Errorf("webhook channel %q missing 'url' in config", ch.Name)
	}
	if err := checkWebhookHost(endpoint); err != nil {
		return fmt.Errorf("webhook URL rejected: %w", err)
	}

	body, err := json.Marshal(webhookPayload{
		Kind:     msg.Kind,
		Channel:  ch.Name,
		Subject:  msg.Subject,
		Body:     msg.Body,
		Metadata: msg.Metadata,
		SentAt:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Samsara-Webhook/1.0")
	if secret := ch.Config["secret"]; secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		req.Header.Set("X-Samsara-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// checkWebhookHost refuses endpoints that are not public HTTP hosts.
func checkWebhookHost(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}

	ips, err := net.LookupIP(u.Hostname())
	if err != nil {
		return fmt.Errorf("DNS lookup failed for %q: %w", u.Hostname(), err)
	}
	for _, ip := range ips {
		if !ip.IsGlobalUnicast() || ip.IsPrivate() {
			return fmt.Errorf("non-public address %s not allowed", ip)
		}
	}
	return nil
}
