// Package lifecycle drives the birth→death→rebirth state machine.
//
// A death transition fires when an identity's depletion counter crosses the
// death threshold. The deceased's loka is derived from net karma at death,
// carryover is computed, and a successor identity is seeded within one
// storage transaction, so a partial transition is never observable. On any
// failure the identity simply remains alive and the transition is retried on
// the next qualifying mutation.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/ledger"
)

// Carryover fractions. Negative carryover is transferred at a higher rate
// than positive: debts follow the soul more stubbornly than merit.
const (
	CarryoverPositiveRate = 0.20
	CarryoverNegativeRate = 0.50
)

// Advanced categories seeded on the successor profile.
const (
	categoryAccumulatedPast = "accumulated-past"
	categoryAncestralDebt   = "ancestral-debt"
)

// EventStore persists lifecycle transitions.
type EventStore interface {
	// CommitRebirth atomically marks the deceased profile, creates the
	// successor, and writes the lifecycle event. Either all three commit or
	// none do.
	CommitRebirth(ctx context.Context, r *Rebirth) error
	ListLifecycleEvents(ctx context.Context, identityID uuid.UUID, from, to time.Time) ([]domain.LifecycleEvent, error)
}

// Rebirth is one computed death+rebirth pair, ready to commit.
type Rebirth struct {
	Deceased  *domain.KarmaProfile
	Successor *domain.KarmaProfile
	Event     *domain.LifecycleEvent
}

// Config holds the state machine's fixed constants.
type Config struct {
	// DeathThreshold is the (negative) depletion counter value at or below
	// which the identity dies. Zero defaults to -100.
	DeathThreshold float64
	// SwargaMin is the lowest net karma admitted to Swarga. Zero defaults to 108.
	SwargaMin float64
	// NarakaMax is the net karma below which the deceased descends to
	// Naraka. The default band edge is 0: any negative net karma condemns.
	NarakaMax float64
	// Thresholds derive the successor's starting role from its seeded karma.
	Thresholds []domain.RoleThreshold
}

func (c Config) deathThreshold() float64 {
	if c.DeathThreshold < 0 {
		return c.DeathThreshold
	}
	return -100
}

func (c Config) swargaMin() float64 {
	if c.SwargaMin != 0 {
		return c.SwargaMin
	}
	return 108
}

// Machine evaluates lifecycle transitions.
type Machine struct {
	config  Config
	metrics *Metrics
	logger  *slog.Logger
}

// NewMachine creates a lifecycle Machine.
func NewMachine(cfg Config, metrics *Metrics, logger *slog.Logger) *Machine {
	if len(cfg.Thresholds) == 0 {
		cfg.Thresholds = domain.DefaultRoleThresholds()
	}
	return &Machine{config: cfg, metrics: metrics, logger: logger}
}

// ShouldTransition reports whether the profile's depletion counter has
// crossed the death threshold.
func (m *Machine) ShouldTransition(p *domain.KarmaProfile) bool {
	return p.State == domain.StateAlive && p.DepletionCounter <= m.config.deathThreshold()
}

// LokaFor places a net karma value into one of the three ordered bands.
func (m *Machine) LokaFor(netKarma float64) domain.Loka {
	switch {
	case netKarma >= m.config.swargaMin():
		return domain.LokaSwarga
	case netKarma < m.config.NarakaMax:
		return domain.LokaNaraka
	default:
		return domain.LokaMartya
	}
}

// Transition computes the death+rebirth pair for a depleted profile. It
// mutates nothing that is persisted; the caller commits the returned
// Rebirth atomically via the EventStore, or discards it on failure.
func (m *Machine) Transition(p *domain.KarmaProfile, now time.Time) (*Rebirth, error) {
	if err := m.validate(p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLifecycleTransition, err)
	}

	carryPos := p.MeritScore * CarryoverPositiveRate
	carryNeg := p.PenaltyScore * CarryoverNegativeRate

	deceased := p.Clone()
	deceased.State = domain.StateDeceased
	deceased.UpdatedAt = now

	ancestorID := deceased.ID
	successor := &domain.KarmaProfile{
		ID:    domain.NewID(),
		Role:  domain.RoleForKarma(m.config.Thresholds, carryPos-carryNeg),
		State: domain.StateAlive,
		Balances: map[string]float64{
			categoryAccumulatedPast: carryPos,
			categoryAncestralDebt:   carryNeg,
		},
		DepletionCounter: 0,
		RebirthCount:     deceased.RebirthCount + 1,
		AncestorID:       &ancestorID,
		LastDecayedAt: map[string]time.Time{
			categoryAccumulatedPast: now,
			categoryAncestralDebt:   now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	event := &domain.LifecycleEvent{
		ID:                domain.NewID(),
		IdentityID:        deceased.ID,
		NewIdentityID:     successor.ID,
		Loka:              m.LokaFor(deceased.NetKarma),
		NetKarmaAtDeath:   deceased.NetKarma,
		CarryoverPositive: carryPos,
		CarryoverNegative: carryNeg,
		RebirthCount:      successor.RebirthCount,
		CreatedAt:         now,
	}

	m.logger.Info("lifecycle transition computed",
		slog.String("identity_id", deceased.ID.String()),
		slog.String("new_identity_id", successor.ID.String()),
		slog.String("loka", string(event.Loka)),
		slog.Float64("carryover_positive", carryPos),
		slog.Float64("carryover_negative", carryNeg),
	)
	if m.metrics != nil {
		m.metrics.Deaths.WithLabelValues(string(event.Loka)).Inc()
		m.metrics.Rebirths.Inc()
	}

	return &Rebirth{Deceased: deceased, Successor: successor, Event: event}, nil
}

// SeededKarma exposes the successor's inherited net karma.
func (r *Rebirth) SeededKarma() float64 {
	return ledger.SeededKarma(r.Successor)
}

// validate checks the profile fields the transition depends on. A profile
// that fails here aborts the transition; the identity stays alive.
func (m *Machine) validate(p *domain.KarmaProfile) error {
	if p == nil {
		return fmt.Errorf("nil profile")
	}
	if p.State != domain.StateAlive {
		return fmt.Errorf("profile %s is %s", p.ID, p.State)
	}
	if p.Balances == nil {
		return fmt.Errorf("profile %s has no balances map", p.ID)
	}
	for _, v := range []float64{p.MeritScore, p.PenaltyScore, p.NetKarma} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("profile %s has invalid score %v", p.ID, v)
		}
	}
	if domain.RoleRank(p.Role) < 0 {
		return fmt.Errorf("profile %s has unknown role %q", p.ID, p.Role)
	}
	return nil
}
