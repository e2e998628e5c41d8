// Package engine orchestrates event handling across the classifier, ledger,
// predictor, atonement engine, and lifecycle state machine.
//
// The engine is invoked per discrete event (one action record, one proof
// submission, one appeal) and each invocation runs to completion. All
// mutations for a single identity are serialized: a per-identity lock is
// held for the full classify→ledger→merit→predictor→atonement/lifecycle
// span, and commits carry an optimistic version check retried a bounded
// number of times. Events for different identities never block one another.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/samsara/internal/appeal"
	"github.com/jkaninda/samsara/internal/atonement"
	"github.com/jkaninda/samsara/internal/classifier"
	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/ledger"
	"github.com/jkaninda/samsara/internal/lifecycle"
	"github.com/jkaninda/samsara/internal/predictor"
)

// Config holds engine tuning.
type Config struct {
	// MaxRetries bounds optimistic-conflict retries per event. Default 3.
	MaxRetries int
	// DefaultRole is assigned to identities on first contact. Default seeker.
	DefaultRole domain.Role
}

func (c Config) maxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return 3
}

func (c Config) defaultRole() domain.Role {
	if domain.RoleRank(c.DefaultRole) >= 0 {
		return c.DefaultRole
	}
	return domain.RoleSeeker
}

// Engine is the karmic ledger and lifecycle engine.
type Engine struct {
	store      Store
	catalog    *classifier.Provider
	classifier *classifier.Classifier
	ledger     *ledger.Ledger
	calc       ledger.Calculator
	predictor  *predictor.Predictor
	atone      *atonement.Engine
	machine    *lifecycle.Machine
	appeals    *appeal.Processor
	outbound   Outbound
	locks      *identityLocks
	config     Config
	metrics    *Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
}

// New creates an Engine. tracer may be nil when tracing is disabled.
func New(
	store Store,
	catalog *classifier.Provider,
	cls *classifier.Classifier,
	lgr *ledger.Ledger,
	calc ledger.Calculator,
	pred *predictor.Predictor,
	atone *atonement.Engine,
	machine *lifecycle.Machine,
	appeals *appeal.Processor,
	outbound Outbound,
	cfg Config,
	metrics *Metrics,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		store:      store,
		catalog:    catalog,
		classifier: cls,
		ledger:     lgr,
		calc:       calc,
		predictor:  pred,
		atone:      atone,
		machine:    machine,
		appeals:    appeals,
		outbound:   outbound,
		locks:      newIdentityLocks(),
		config:     cfg,
		metrics:    metrics,
		tracer:     tracer,
		logger:     logger,
	}
}

// ActionEvent is one inbound action from the upstream gateway.
type ActionEvent struct {
	RequestID    string
	IdentityID   uuid.UUID
	Action       string
	Intensity    float64 // 0.0–2.0. Zero means unspecified and defaults to 1.
	Context      map[string]string
	Counterparty string // Affected party, for negative actions.
}

// ActionResult is the outcome of one handled action event.
type ActionResult struct {
	Record            *domain.ActionRecord
	Profile           *domain.KarmaProfile
	Classification    classifier.Classification
	RecommendedAction string
	PredictedRole     domain.Role
	Plan              *domain.AtonementPlan
	Rebirth           *lifecycle.Rebirth
	Duplicate         bool
}

// HandleAction classifies one action event, applies it to the ledger,
// updates the predictor, opens an atonement plan for punitive actions, and
// checks the lifecycle threshold, all under the identity's lock.
func (e *Engine) HandleAction(ctx context.Context, ev *ActionEvent) (*ActionResult, error) {
	if ev.RequestID == "" {
		return nil, fmt.Errorf("action event missing request id")
	}
	if ev.Action == "" {
		return nil, fmt.Errorf("action event missing action")
	}

	ctx, end := e.span(ctx, "engine.HandleAction", ev.IdentityID)
	defer end()

	unlock := e.locks.Lock(ev.IdentityID)
	defer unlock()

	start := time.Now()
	var res *ActionResult
	err := e.retry(ctx, func() error {
		var err error
		res, err = e.handleActionOnce(ctx, ev)
		return err
	})
	e.observe("action", start, err)
	return res, err
}

func (e *Engine) handleActionOnce(ctx context.Context, ev *ActionEvent) (*ActionResult, error) {
	// Late-arriving duplicates are a no-op, not an error.
	if prior, err := e.store.GetActionByRequestID(ctx, ev.RequestID); err == nil && prior != nil {
		return &ActionResult{Record: prior, Duplicate: true}, nil
	} else if err != nil && !errors.Is(err, domain.ErrActionNotFound) {
		return nil, fmt.Errorf("checking request id %q: %w", ev.RequestID, err)
	}

	profile, err := e.getOrCreateProfile(ctx, ev.IdentityID)
	if err != nil {
		return nil, err
	}
	if profile.State != domain.StateAlive {
		return nil, fmt.Errorf("identity %s: %w", ev.IdentityID, domain.ErrIdentityDeceased)
	}

	now := time.Now().UTC()
	catalog := e.catalog.Catalog()
	e.ledger.DecayAll(profile, catalog, now)

	cls, err := e.classifier.Classify(ctx, ev.IdentityID, ev.Action, profile.Role)
	if err != nil {
		return nil, err
	}

	intensity := ev.Intensity
	if intensity <= 0 {
		intensity = 1
	}
	if intensity > 2 {
		intensity = 2
	}

	record := &domain.ActionRecord{
		ID:           domain.NewID(),
		RequestID:    ev.RequestID,
		IdentityID:   ev.IdentityID,
		Action:       ev.Action,
		Role:         profile.Role,
		Intensity:    intensity,
		Category:     cls.Category.Name,
		Severity:     cls.Severity,
		Counterparty: ev.Counterparty,
		CreatedAt:    now,
	}

	if !cls.Miss && cls.Category.Polarity != domain.PolarityNeutral {
		record.TokenAmount = cls.BaseDelta * intensity
		_, record.KarmaDelta = e.ledger.Apply(profile, cls.Category, cls.Severity, record.TokenAmount, now)
	}

	e.calc.Recompute(profile, catalog)

	predicted, err := e.predictor.PredictRoleTransition(ctx, profile)
	if err != nil {
		return nil, err
	}
	qEntry, err := e.predictor.Observe(ctx, record, predicted)
	if err != nil {
		return nil, err
	}
	// The proposed transition takes effect: roles move at most one rung per action.
	profile.Role = predicted
	profile.UpdatedAt = now

	var plan *domain.AtonementPlan
	if record.KarmaDelta < 0 {
		plan = e.atone.NewPlan(ev.IdentityID, record.ID, record.Action, record.Category, record.Severity, now)
	}

	recommended, err := e.predictor.RecommendAction(ctx, ev.IdentityID, profile.Role)
	if err != nil {
		return nil, err
	}

	if err := e.store.CommitAction(ctx, &ActionOutcome{
		Profile: profile,
		Record:  record,
		QEntry:  qEntry,
		Plan:    plan,
	}); err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			return &ActionResult{Record: record, Duplicate: true}, nil
		}
		return nil, err
	}

	res := &ActionResult{
		Record:            record,
		Profile:           profile,
		Classification:    cls,
		RecommendedAction: recommended,
		PredictedRole:     predicted,
		Plan:              plan,
	}

	// Lifecycle check piggybacks on the same lock scope. A failed transition
	// leaves the identity alive; the next qualifying mutation retries it.
	if e.machine.ShouldTransition(profile) {
		rebirth, err := e.transition(ctx, profile, now)
		if err != nil {
			e.logger.ErrorContext(ctx, "lifecycle transition aborted",
				slog.String("identity_id", profile.ID.String()),
				slog.String("error", err.Error()),
			)
		} else {
			res.Rebirth = rebirth
		}
	}

	e.publishAction(ctx, res)
	return res, nil
}

// transition computes and atomically commits a death+rebirth pair.
func (e *Engine) transition(ctx context.Context, profile *domain.KarmaProfile, now time.Time) (*lifecycle.Rebirth, error) {
	rebirth, err := e.machine.Transition(profile, now)
	if err != nil {
		return nil, err
	}
	if err := e.store.CommitRebirth(ctx, rebirth); err != nil {
		return nil, fmt.Errorf("%w: committing rebirth: %v", domain.ErrLifecycleTransition, err)
	}
	if e.outbound.Lifecycle != nil {
		e.outbound.Lifecycle.PublishLifecycle(ctx, rebirth.Event)
	}
	return rebirth, nil
}

func (e *Engine) publishAction(ctx context.Context, res *ActionResult) {
	if e.outbound.Feedback != nil {
		e.outbound.Feedback.PublishFeedback(ctx, res)
	}
	if e.outbound.Influence != nil {
		e.outbound.Influence.PublishInfluence(ctx, res.Profile)
	}
	if e.outbound.Debt != nil && res.Record.KarmaDelta < 0 && res.Record.Counterparty != "" {
		e.outbound.Debt.PublishDebt(ctx, &DebtEntry{
			Debtor:   res.Record.IdentityID,
			Receiver: res.Record.Counterparty,
			Severity: res.Record.Severity,
			Amount:   -res.Record.KarmaDelta,
		})
	}
}

func (e *Engine) getOrCreateProfile(ctx context.Context, id uuid.UUID) (*domain.KarmaProfile, error) {
	profile, err := e.store.GetProfile(ctx, id)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, domain.ErrProfileNotFound) {
		return nil, fmt.Errorf("loading profile %s: %w", id, err)
	}

	now := time.Now().UTC()
	profile = &domain.KarmaProfile{
		ID:            id,
		Role:          e.config.defaultRole(),
		State:         domain.StateAlive,
		Balances:      make(map[string]float64),
		LastDecayedAt: make(map[string]time.Time),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.store.CreateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("creating profile %s: %w", id, err)
	}
	return profile, nil
}

// retry runs fn up to the configured retry budget, retrying only on
// optimistic version conflicts.
func (e *Engine) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < e.config.maxRetries(); attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, domain.ErrConcurrentConflict) {
			return err
		}
		lastErr = err
		if e.metrics != nil {
			e.metrics.Conflicts.Inc()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return fmt.Errorf("event retries exhausted: %w", lastErr)
}

func (e *Engine) observe(kind string, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.EventsTotal.WithLabelValues(kind, status).Inc()
	e.metrics.EventDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (e *Engine) span(ctx context.Context, name string, identityID uuid.UUID) (context.Context, func()) {
	if e.tracer == nil {
		return ctx, func() {}
	}
	ctx, span := e.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("identity.id", identityID.String()),
	))
	return ctx, func() { span.End() }
}
