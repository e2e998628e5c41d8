package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
)

// AppealRequest contests one classified action.
type AppealRequest struct {
	RequestID      string
	IdentityID     uuid.UUID
	ActionRecordID uuid.UUID
	Reason         string
}

// AppealResult is the outcome of one filed appeal.
type AppealResult struct {
	Appeal    *domain.Appeal
	Profile   *domain.KarmaProfile  // nil when the appeal was rejected.
	Plan      *domain.AtonementPlan // Residual plan, nil when cleared outright.
	Duplicate bool
}

// FileAppeal reviews a contested action. Acceptance reverses the original
// ledger delta, re-applies the action at the revised severity if one
// remains, and opens a proportionally reduced atonement plan for the
// residual. The original record keeps its classification and is only
// flagged as appealed.
func (e *Engine) FileAppeal(ctx context.Context, req *AppealRequest) (*AppealResult, error) {
	if req.RequestID == "" {
		return nil, fmt.Errorf("appeal request missing request id")
	}

	ctx, end := e.span(ctx, "engine.FileAppeal", req.IdentityID)
	defer end()

	unlock := e.locks.Lock(req.IdentityID)
	defer unlock()

	start := time.Now()
	var res *AppealResult
	err := e.retry(ctx, func() error {
		var err error
		res, err = e.fileAppealOnce(ctx, req)
		return err
	})
	e.observe("appeal", start, err)
	return res, err
}

func (e *Engine) fileAppealOnce(ctx context.Context, req *AppealRequest) (*AppealResult, error) {
	processed, err := e.store.IsRequestProcessed(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("checking request id %q: %w", req.RequestID, err)
	}
	if processed {
		prior, err := e.store.GetAppealByAction(ctx, req.ActionRecordID)
		if err != nil {
			return nil, err
		}
		return &AppealResult{Appeal: prior, Duplicate: true}, nil
	}

	rec, err := e.store.GetAction(ctx, req.ActionRecordID)
	if err != nil {
		return nil, fmt.Errorf("loading action %s: %w", req.ActionRecordID, err)
	}
	if err := e.appeals.Validate(req.IdentityID, rec); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	decision := e.appeals.Review(rec, req.Reason)

	a := &domain.Appeal{
		ID:              domain.NewID(),
		RequestID:       req.RequestID,
		IdentityID:      req.IdentityID,
		ActionRecordID:  rec.ID,
		Reason:          req.Reason,
		Status:          domain.AppealRejected,
		RevisedSeverity: rec.Severity,
		CreatedAt:       now,
	}

	res := &AppealResult{Appeal: a}
	rec.Appealed = true

	var profile *domain.KarmaProfile
	var plan, superseded *domain.AtonementPlan
	if decision.Accepted {
		a.Status = domain.AppealAccepted
		a.RevisedSeverity = decision.RevisedSeverity

		profile, plan, err = e.applyRevision(ctx, rec, a, now)
		if err != nil {
			return nil, err
		}
		superseded, err = e.supersedePlan(ctx, rec, now)
		if err != nil {
			return nil, err
		}
		res.Profile = profile
		res.Plan = plan
	}

	if err := e.store.CommitAppeal(ctx, &AppealOutcome{
		Appeal:     a,
		Record:     rec,
		Profile:    profile,
		Plan:       plan,
		Superseded: superseded,
	}); err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			return &AppealResult{Appeal: a, Duplicate: true}, nil
		}
		return nil, err
	}

	if profile != nil && e.outbound.Influence != nil {
		e.outbound.Influence.PublishInfluence(ctx, profile)
	}
	return res, nil
}

// applyRevision reverses the contested contribution and, when a revised
// severity remains, re-applies the raw amount at the lower tier and opens
// a residual plan.
func (e *Engine) applyRevision(ctx context.Context, rec *domain.ActionRecord, a *domain.Appeal, now time.Time) (*domain.KarmaProfile, *domain.AtonementPlan, error) {
	profile, err := e.store.GetProfile(ctx, rec.IdentityID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading profile %s: %w", rec.IdentityID, err)
	}

	catalog := e.catalog.Catalog()
	e.ledger.DecayAll(profile, catalog, now)

	category, ok := catalog.Category(rec.Category)
	if ok {
		_, healed := e.ledger.Debit(profile, category, rec.Severity, rec.TokenAmount)
		a.ReversedDelta = healed
		if a.RevisedSeverity != domain.SeverityNone {
			_, delta := e.ledger.Apply(profile, category, a.RevisedSeverity, rec.TokenAmount, now)
			a.ReversedDelta += delta // delta is negative; the reversal is the net healing.
		}
	}

	var plan *domain.AtonementPlan
	if a.RevisedSeverity != domain.SeverityNone {
		plan = e.atone.NewPlan(rec.IdentityID, rec.ID, rec.Action, rec.Category, a.RevisedSeverity, now)
		a.NewPlanID = &plan.ID
	}

	e.calc.Recompute(profile, catalog)
	profile.UpdatedAt = now
	return profile, plan, nil
}

// supersedePlan closes the still-open plan opened by the contested action.
// The residual plan, if any, replaces it.
func (e *Engine) supersedePlan(ctx context.Context, rec *domain.ActionRecord, now time.Time) (*domain.AtonementPlan, error) {
	plans, err := e.store.ListPlansByIdentity(ctx, rec.IdentityID)
	if err != nil {
		return nil, fmt.Errorf("listing plans for %s: %w", rec.IdentityID, err)
	}
	for i := range plans {
		p := &plans[i]
		if p.OriginActionID != rec.ID || p.Status != domain.PlanOpen {
			continue
		}
		p.Status = domain.PlanExpired
		resolved := now
		p.ResolvedAt = &resolved
		return p, nil
	}
	return nil, nil
}
