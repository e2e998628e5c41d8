package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
)

// RecentActionCounter reports how many times an identity performed a given
// action within a window. Backed by the append-only action record store.
type RecentActionCounter interface {
	CountRecentActions(ctx context.Context, identityID uuid.UUID, action string, since time.Time) (int, error)
}

// Classification is the outcome of classifying one action event.
type Classification struct {
	Action    string
	Category  *domain.TokenCategory
	Severity  domain.Severity
	BaseDelta float64
	Miss      bool // Unknown action; neutral category, zero delta.
	Escalated int  // Tiers bumped by progressive escalation.
}

// Config holds classifier tuning.
type Config struct {
	// RecencyWindow bounds progressive severity escalation: repeats of the
	// same punitive action inside this window bump the tier one step each.
	RecencyWindow time.Duration
}

// Classifier resolves actions against the active catalog.
type Classifier struct {
	provider *Provider
	recent   RecentActionCounter
	window   time.Duration
	metrics  *Metrics
	logger   *slog.Logger
}

// New creates a Classifier. recent may be nil, which disables escalation.
func New(provider *Provider, recent RecentActionCounter, cfg Config, metrics *Metrics, logger *slog.Logger) *Classifier {
	window := cfg.RecencyWindow
	if window <= 0 {
		window = 72 * time.Hour
	}
	return &Classifier{
		provider: provider,
		recent:   recent,
		window:   window,
		metrics:  metrics,
		logger:   logger,
	}
}

// Classify maps an action to its category and severity tier.
//
// An unknown action is never dropped: it resolves to the neutral category
// with a zero delta and a classification-miss diagnostic. Repeated punitive
// actions by the same identity within the recency window escalate the
// severity one tier per repeat, capped at the highest tier.
func (c *Classifier) Classify(ctx context.Context, identityID uuid.UUID, action string, role domain.Role) (Classification, error) {
	catalog := c.provider.Catalog()

	spec, ok := catalog.Action(action)
	if !ok {
		if c.metrics != nil {
			c.metrics.Misses.Inc()
		}
		c.logger.WarnContext(ctx, "classification miss",
			slog.String("action", action),
			slog.String("identity_id", identityID.String()),
			slog.Int("catalog_version", catalog.Version),
		)
		neutral, _ := catalog.Category(CategoryNeutral)
		return Classification{Action: action, Category: neutral, Miss: true}, nil
	}

	category, ok := catalog.Category(spec.Category)
	if !ok {
		return Classification{}, fmt.Errorf("catalog v%d: action %q maps to unknown category %q", catalog.Version, action, spec.Category)
	}

	cls := Classification{
		Action:    action,
		Category:  category,
		Severity:  spec.Severity,
		BaseDelta: spec.BaseDelta,
	}

	if category.Polarity == domain.PolarityNegative && c.recent != nil {
		repeats, err := c.recent.CountRecentActions(ctx, identityID, action, time.Now().UTC().Add(-c.window))
		if err != nil {
			return Classification{}, fmt.Errorf("counting recent %q actions: %w", action, err)
		}
		for i := 0; i < repeats && cls.Severity != domain.SeverityMaha; i++ {
			cls.Severity = cls.Severity.Escalate()
			cls.Escalated++
		}
		if cls.Escalated > 0 {
			if c.metrics != nil {
				c.metrics.Escalations.Add(float64(cls.Escalated))
			}
			c.logger.InfoContext(ctx, "severity escalated",
				slog.String("action", action),
				slog.String("identity_id", identityID.String()),
				slog.String("severity", string(cls.Severity)),
				slog.Int("repeats", repeats),
			)
		}
	}

	return cls, nil
}

// ReloadCatalog loads the catalog file and swaps it in atomically.
// In-flight classifications keep the version they started with.
func (c *Classifier) ReloadCatalog(path string) error {
	catalog, err := c.provider.Reload(path)
	if err != nil {
		return fmt.Errorf("reloading catalog: %w", err)
	}
	if c.metrics != nil {
		c.metrics.Reloads.Inc()
	}
	c.logger.Info("token catalog reloaded",
		slog.String("path", path),
		slog.Int("version", catalog.Version),
	)
	return nil
}
