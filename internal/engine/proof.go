package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
)

// ProofSubmission is one remediation proof against an open atonement plan.
type ProofSubmission struct {
	RequestID string
	PlanID    uuid.UUID
	Mechanism domain.Mechanism
	Amount    float64
}

// ProofResult is the outcome of one proof submission.
type ProofResult struct {
	Plan      *domain.AtonementPlan
	Profile   *domain.KarmaProfile // nil when no balance changed.
	Redeemed  float64              // Fraction of the origin contribution debited.
	Completed bool
	Duplicate bool
}

// SubmitProof applies a proof to a plan. Redemption debits the origin
// action's contribution from its balance bucket: the full amount on plan
// completion, a proportional share when incremental redemption is enabled.
// Over-redemption is rejected with the plan unchanged.
func (e *Engine) SubmitProof(ctx context.Context, sub *ProofSubmission) (*ProofResult, error) {
	if sub.RequestID == "" {
		return nil, fmt.Errorf("proof submission missing request id")
	}

	// Load once outside the lock to learn which identity to serialize on.
	plan, err := e.store.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, fmt.Errorf("loading plan %s: %w", sub.PlanID, err)
	}

	ctx, end := e.span(ctx, "engine.SubmitProof", plan.IdentityID)
	defer end()

	unlock := e.locks.Lock(plan.IdentityID)
	defer unlock()

	start := time.Now()
	var res *ProofResult
	err = e.retry(ctx, func() error {
		var err error
		res, err = e.submitProofOnce(ctx, sub)
		return err
	})
	e.observe("proof", start, err)
	return res, err
}

func (e *Engine) submitProofOnce(ctx context.Context, sub *ProofSubmission) (*ProofResult, error) {
	processed, err := e.store.IsRequestProcessed(ctx, sub.RequestID)
	if err != nil {
		return nil, fmt.Errorf("checking request id %q: %w", sub.RequestID, err)
	}

	// Reload under the lock; the pre-lock copy may be stale.
	plan, err := e.store.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, fmt.Errorf("loading plan %s: %w", sub.PlanID, err)
	}
	if processed {
		return &ProofResult{Plan: plan, Duplicate: true}, nil
	}

	now := time.Now().UTC()
	redeem, err := e.atone.ApplyProof(plan, sub.Mechanism, sub.Amount, now)
	if err != nil {
		return nil, err
	}

	res := &ProofResult{
		Plan:      plan,
		Redeemed:  redeem,
		Completed: plan.Status == domain.PlanCompleted,
	}

	var profile *domain.KarmaProfile
	if redeem > 0 {
		profile, err = e.redeemOrigin(ctx, plan, redeem, now)
		if err != nil {
			return nil, err
		}
		res.Profile = profile
	}

	if err := e.store.CommitProof(ctx, &ProofOutcome{
		RequestID: sub.RequestID,
		Plan:      plan,
		Profile:   profile,
	}); err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			return &ProofResult{Plan: plan, Duplicate: true}, nil
		}
		return nil, err
	}

	if profile != nil && e.outbound.Influence != nil {
		e.outbound.Influence.PublishInfluence(ctx, profile)
	}
	return res, nil
}

// redeemOrigin debits the redeemed share of the origin action's raw credit
// from the plan's category bucket and recomputes the merit aggregates.
func (e *Engine) redeemOrigin(ctx context.Context, plan *domain.AtonementPlan, redeem float64, now time.Time) (*domain.KarmaProfile, error) {
	profile, err := e.store.GetProfile(ctx, plan.IdentityID)
	if err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", plan.IdentityID, err)
	}

	origin, err := e.store.GetAction(ctx, plan.OriginActionID)
	if err != nil {
		return nil, fmt.Errorf("loading origin action %s: %w", plan.OriginActionID, err)
	}

	catalog := e.catalog.Catalog()
	e.ledger.DecayAll(profile, catalog, now)

	category, ok := catalog.Category(origin.Category)
	if ok {
		e.ledger.Debit(profile, category, origin.Severity, origin.TokenAmount*redeem)
	}
	e.calc.Recompute(profile, catalog)
	profile.UpdatedAt = now
	return profile, nil
}
