// Package atonement builds and tracks remediation plans that offset negative
// balances. Plans carry one task per mechanism; requirements scale with the
// severity tier. Completion of every task fully zeroes the originating
// negative contribution; partial progress persists but redeems nothing
// unless incremental redemption is explicitly enabled.
package atonement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
)

// PlanStore is the persistence interface for atonement plans.
type PlanStore interface {
	CreatePlan(ctx context.Context, plan *domain.AtonementPlan) error
	GetPlan(ctx context.Context, id uuid.UUID) (*domain.AtonementPlan, error)
	ListPlansByIdentity(ctx context.Context, identityID uuid.UUID) ([]domain.AtonementPlan, error)
	UpdatePlan(ctx context.Context, plan *domain.AtonementPlan) error
	// ListDueOpenPlans returns open plans whose deadline has passed.
	ListDueOpenPlans(ctx context.Context, now time.Time, limit int) ([]domain.AtonementPlan, error)
	// ExpireIfOpen transitions a plan to expired only if it is still open,
	// re-validating state immediately before the transition. Returns false
	// when a concurrent proof submission resolved the plan first.
	ExpireIfOpen(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

// Config holds atonement tuning.
type Config struct {
	Mechanisms map[domain.Mechanism]MechanismSpec
	Deadlines  map[domain.Severity]time.Duration
	// IncrementalRedemption, when true, redeems the origin balance in
	// proportion to each accepted proof instead of only on full completion.
	// Off by default; the source behaviour is full-completion-only.
	IncrementalRedemption bool
}

// MechanismSpec defines one mechanism's base unit and per-tier multipliers.
type MechanismSpec struct {
	BaseUnit        float64
	TierMultipliers map[domain.Severity]float64
}

// DefaultConfig returns the standard mechanism progression. Repetition
// counts quadruple between the lowest and highest tier; the other mechanisms
// follow their own progressions.
func DefaultConfig() Config {
	return Config{
		Mechanisms: map[domain.Mechanism]MechanismSpec{
			domain.MechanismRepetition: {
				BaseUnit: 108,
				TierMultipliers: map[domain.Severity]float64{
					domain.SeverityMinor: 1, domain.SeverityMedium: 2, domain.SeverityMajor: 3, domain.SeverityMaha: 4,
				},
			},
			domain.MechanismAbstinence: { // Fasting days.
				BaseUnit: 1,
				TierMultipliers: map[domain.Severity]float64{
					domain.SeverityMinor: 1, domain.SeverityMedium: 3, domain.SeverityMajor: 5, domain.SeverityMaha: 7,
				},
			},
			domain.MechanismDevotional: {
				BaseUnit: 1,
				TierMultipliers: map[domain.Severity]float64{
					domain.SeverityMinor: 1, domain.SeverityMedium: 2, domain.SeverityMajor: 3, domain.SeverityMaha: 5,
				},
			},
			domain.MechanismCharitable: { // Percentage of holdings.
				BaseUnit: 1,
				TierMultipliers: map[domain.Severity]float64{
					domain.SeverityMinor: 1, domain.SeverityMedium: 2.5, domain.SeverityMajor: 5, domain.SeverityMaha: 10,
				},
			},
		},
		Deadlines: map[domain.Severity]time.Duration{
			domain.SeverityMinor:  7 * 24 * time.Hour,
			domain.SeverityMedium: 14 * 24 * time.Hour,
			domain.SeverityMajor:  30 * 24 * time.Hour,
			domain.SeverityMaha:   90 * 24 * time.Hour,
		},
	}
}

// Engine builds plans and applies proof submissions.
type Engine struct {
	config  Config
	metrics *Metrics
}

// NewEngine creates an atonement Engine. Zero-valued config fields fall back
// to the defaults.
func NewEngine(cfg Config, metrics *Metrics) *Engine {
	def := DefaultConfig()
	if cfg.Mechanisms == nil {
		cfg.Mechanisms = def.Mechanisms
	}
	if cfg.Deadlines == nil {
		cfg.Deadlines = def.Deadlines
	}
	return &Engine{config: cfg, metrics: metrics}
}

// Incremental reports whether incremental redemption is enabled.
func (e *Engine) Incremental() bool { return e.config.IncrementalRedemption }

// NewPlan builds a remediation plan for a punitive action. One task is
// created per mechanism, its required amount scaled by the severity tier.
func (e *Engine) NewPlan(identityID, originActionID uuid.UUID, originAction, category string, severity domain.Severity, now time.Time) *domain.AtonementPlan {
	plan := &domain.AtonementPlan{
		ID:             domain.NewID(),
		IdentityID:     identityID,
		OriginActionID: originActionID,
		OriginAction:   originAction,
		Category:       category,
		Severity:       severity,
		Status:         domain.PlanOpen,
		CreatedAt:      now,
		Deadline:       now.Add(e.deadline(severity)),
	}
	for _, mech := range domain.Mechanisms() {
		spec, ok := e.config.Mechanisms[mech]
		if !ok {
			continue
		}
		plan.Tasks = append(plan.Tasks, domain.AtonementTask{
			Mechanism: mech,
			Required:  spec.BaseUnit * spec.multiplier(severity),
		})
	}
	if e.metrics != nil {
		e.metrics.PlansCreated.WithLabelValues(string(severity)).Inc()
	}
	return plan
}

func (spec MechanismSpec) multiplier(severity domain.Severity) float64 {
	if m, ok := spec.TierMultipliers[severity]; ok {
		return m
	}
	return 1
}

func (e *Engine) deadline(severity domain.Severity) time.Duration {
	if d, ok := e.config.Deadlines[severity]; ok {
		return d
	}
	return 30 * 24 * time.Hour
}

// ApplyProof credits a proof submission against one task of the plan.
//
// The completed amount never exceeds the required amount: an over-shooting
// submission is rejected whole with ErrOverRedemption and the plan is left
// unchanged. When every task reaches its requirement the plan transitions to
// completed. The returned redeem fraction tells the caller how much of the
// originating negative balance to debit now: 1 on completion, the submitted
// fraction under incremental redemption, 0 otherwise.
func (e *Engine) ApplyProof(plan *domain.AtonementPlan, mechanism domain.Mechanism, amount float64, now time.Time) (redeem float64, err error) {
	switch plan.Status {
	case domain.PlanExpired:
		return 0, fmt.Errorf("plan %s: %w", plan.ID, domain.ErrPlanExpired)
	case domain.PlanCompleted:
		return 0, fmt.Errorf("plan %s: %w", plan.ID, domain.ErrPlanCompleted)
	}
	if now.After(plan.Deadline) {
		// The sweep has not caught this plan yet; treat it as expired rather
		// than accepting proof past the deadline.
		return 0, fmt.Errorf("plan %s deadline passed: %w", plan.ID, domain.ErrPlanExpired)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("proof amount must be positive, got %v", amount)
	}

	task := plan.Task(mechanism)
	if task == nil {
		return 0, fmt.Errorf("plan %s has no %s task", plan.ID, mechanism)
	}
	if task.Completed+amount > task.Required {
		return 0, fmt.Errorf("plan %s task %s: %v + %v exceeds required %v: %w",
			plan.ID, mechanism, task.Completed, amount, task.Required, domain.ErrOverRedemption)
	}

	task.Completed += amount
	task.Done = task.Completed >= task.Required

	if e.metrics != nil {
		e.metrics.ProofsAccepted.WithLabelValues(string(mechanism)).Inc()
	}

	if plan.AllTasksDone() {
		plan.Status = domain.PlanCompleted
		resolved := now
		plan.ResolvedAt = &resolved
		if e.metrics != nil {
			e.metrics.PlansCompleted.Inc()
		}
		return 1, nil
	}
	if e.config.IncrementalRedemption {
		return amount / task.Required, nil
	}
	return 0, nil
}
