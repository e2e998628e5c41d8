package atonement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SweepConfig configures the plan-expiry sweep.
type SweepConfig struct {
	// Schedule is a standard 5-field cron expression. Default: every 10 minutes.
	Schedule string
	// BatchSize bounds how many due plans one tick processes. Default: 200.
	BatchSize int
}

func (c SweepConfig) schedule() string {
	if c.Schedule != "" {
		return c.Schedule
	}
	return "*/10 * * * *"
}

func (c SweepConfig) batchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return 200
}

// Sweeper is the background expiry sweep. It transitions overdue plans from
// open to expired. Each transition re-validates plan state inside the store,
// so a concurrent proof submission completing the same plan wins the race.
type Sweeper struct {
	store   PlanStore
	config  SweepConfig
	metrics *Metrics
	logger  *slog.Logger
	parser  cron.Parser
}

// NewSweeper creates a Sweeper.
func NewSweeper(store PlanStore, cfg SweepConfig, metrics *Metrics, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:   store,
		config:  cfg,
		metrics: metrics,
		logger:  logger,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Start begins the sweep loop. Returns a cancel function.
func (s *Sweeper) Start(ctx context.Context) (func(), error) {
	sched, err := s.parser.Parse(s.config.schedule())
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", s.config.schedule(), err)
	}

	ctx, cancel := context.WithCancel(ctx)

	go func() {
		s.logger.InfoContext(ctx, "plan expiry sweep started",
			slog.String("schedule", s.config.schedule()),
		)
		for {
			next := sched.Next(time.Now().UTC())
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				s.logger.Info("plan expiry sweep stopped")
				return
			case <-timer.C:
				s.Tick(ctx)
			}
		}
	}()

	return cancel, nil
}

// Tick runs a single sweep cycle. Exported so tests and the CLI can drive
// the sweep without the cron loop.
func (s *Sweeper) Tick(ctx context.Context) {
	now := time.Now().UTC()

	due, err := s.store.ListDueOpenPlans(ctx, now, s.config.batchSize())
	if err != nil {
		s.logger.ErrorContext(ctx, "listing due plans failed", slog.String("error", err.Error()))
		return
	}
	if len(due) == 0 {
		return
	}

	var expired, lost int
	for i := range due {
		ok, err := s.store.ExpireIfOpen(ctx, due[i].ID, now)
		if err != nil {
			s.logger.ErrorContext(ctx, "expiring plan failed",
				slog.String("plan_id", due[i].ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			expired++
		} else {
			// Resolved by a concurrent proof submission between the list and
			// the transition.
			lost++
		}
	}

	if s.metrics != nil {
		s.metrics.PlansExpired.Add(float64(expired))
	}
	s.logger.InfoContext(ctx, "plan expiry sweep tick",
		slog.Int("expired", expired),
		slog.Int("raced", lost),
	)
}
