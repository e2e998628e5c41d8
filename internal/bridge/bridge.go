// Package bridge pushes per-identity influence signals to an external
// behavior system. The signal is a single scalar nudging future behavior:
// positive when merit dominates, negative when penalty does.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jkaninda/samsara/internal/domain"
)

// Signal is the payload pushed per profile update.
type Signal struct {
	IdentityID string  `json:"identityId"`
	Role       string  `json:"role"`
	Influence  float64 `json:"influence"`
	NetKarma   float64 `json:"netKarma"`
	Weighted   float64 `json:"weightedKarmaScore"`
	UpdatedAt  string  `json:"updatedAt"`
}

// Config holds bridge settings.
type Config struct {
	// Endpoint receives signal POSTs. Empty disables the bridge.
	Endpoint string
	// Bias shifts the influence toward the dominant side, mirroring the
	// predictor's behavioral bias. Zero means raw merit minus penalty.
	Bias float64
	// Timeout for one push. Default 5s.
	Timeout time.Duration
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 5 * time.Second
}

// Bridge implements the engine's influence publisher over HTTP push.
type Bridge struct {
	config     Config
	httpClient *http.Client
	metrics    *Metrics
	logger     *slog.Logger
}

// New creates a Bridge. Returns nil when no endpoint is configured, which
// the engine treats as a disabled publisher.
func New(cfg Config, metrics *Metrics, logger *slog.Logger) *Bridge {
	if cfg.Endpoint == "" {
		return nil
	}
	return &Bridge{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.timeout()},
		metrics:    metrics,
		logger:     logger,
	}
}

// Influence computes the scalar signal for a profile: merit minus penalty,
// shifted by the configured bias toward whichever side dominates.
func (b *Bridge) Influence(p *domain.KarmaProfile) float64 {
	signal := p.MeritScore - p.PenaltyScore
	switch {
	case signal > 0:
		signal += b.config.Bias
	case signal < 0:
		signal -= b.config.Bias
	}
	return signal
}

// PublishInfluence pushes the profile's current signal. Failures are
// logged and counted; the originating event is already committed.
func (b *Bridge) PublishInfluence(ctx context.Context, p *domain.KarmaProfile) {
	sig := Signal{
		IdentityID: p.ID.String(),
		Role:       string(p.Role),
		Influence:  b.Influence(p),
		NetKarma:   p.NetKarma,
		Weighted:   p.WeightedKarmaScore,
		UpdatedAt:  p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if err := b.push(ctx, sig); err != nil {
		if b.metrics != nil {
			b.metrics.PushFailures.Inc()
		}
		b.logger.WarnContext(ctx, "influence push failed",
			slog.String("identity_id", sig.IdentityID),
			slog.String("error", err.Error()),
		)
		return
	}
	if b.metrics != nil {
		b.metrics.Pushes.Inc()
	}
}

func (b *Bridge) push(ctx context.Context, sig Signal) error {
	body, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("encoding signal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bridge endpoint returned %d", resp.StatusCode)
	}
	return nil
}
