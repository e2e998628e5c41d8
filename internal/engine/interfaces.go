package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/appeal"
	"github.com/jkaninda/samsara/internal/atonement"
	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/lifecycle"
	"github.com/jkaninda/samsara/internal/predictor"
)

// ProfileStore is the profile half of the engine's persistence surface.
type ProfileStore interface {
	// GetProfile returns a clone of the profile, or domain.ErrProfileNotFound.
	GetProfile(ctx context.Context, id uuid.UUID) (*domain.KarmaProfile, error)
	CreateProfile(ctx context.Context, p *domain.KarmaProfile) error
}

// ActionStore is the append-only action record surface.
type ActionStore interface {
	GetAction(ctx context.Context, id uuid.UUID) (*domain.ActionRecord, error)
	GetActionByRequestID(ctx context.Context, requestID string) (*domain.ActionRecord, error)
	ListActions(ctx context.Context, identityID uuid.UUID, from, to time.Time) ([]domain.ActionRecord, error)
	CountRecentActions(ctx context.Context, identityID uuid.UUID, action string, since time.Time) (int, error)
}

// OutcomeStore commits the mutations of one handled event atomically.
//
// Every commit performs an optimistic check on the profile's version column
// and returns domain.ErrConcurrentConflict on mismatch; CommitAction returns
// domain.ErrDuplicateEvent when the record's requestId was already applied,
// and the other commits do the same through the processed-request table.
type OutcomeStore interface {
	CommitAction(ctx context.Context, out *ActionOutcome) error
	CommitProof(ctx context.Context, out *ProofOutcome) error
	CommitAppeal(ctx context.Context, out *AppealOutcome) error
	IsRequestProcessed(ctx context.Context, requestID string) (bool, error)
}

// Store aggregates everything the engine needs from persistence. Both
// storage backends implement it.
type Store interface {
	ProfileStore
	ActionStore
	OutcomeStore
	predictor.Store
	atonement.PlanStore
	appeal.AppealStore
	lifecycle.EventStore
}

// ActionOutcome is the atomic result of one handled action event.
type ActionOutcome struct {
	Profile *domain.KarmaProfile
	Record  *domain.ActionRecord
	QEntry  *domain.QEntry
	Plan    *domain.AtonementPlan // nil when the action opened no plan.
}

// ProofOutcome is the atomic result of one proof submission.
type ProofOutcome struct {
	RequestID string
	Plan      *domain.AtonementPlan
	Profile   *domain.KarmaProfile // nil when no balance changed.
}

// AppealOutcome is the atomic result of one accepted or rejected appeal.
type AppealOutcome struct {
	Appeal     *domain.Appeal
	Record     *domain.ActionRecord  // With Appealed set.
	Profile    *domain.KarmaProfile  // nil when the appeal was rejected.
	Plan       *domain.AtonementPlan // Residual plan, nil when cleared outright.
	Superseded *domain.AtonementPlan // Original plan closed by the acceptance.
}

// DebtEntry is the payload handed to the relationship-debt ledger whenever a
// negative action names an affected counterparty.
type DebtEntry struct {
	Debtor   uuid.UUID
	Receiver string
	Severity domain.Severity
	Amount   float64
}

// FeedbackPublisher receives per-action feedback for downstream consumers.
type FeedbackPublisher interface {
	PublishFeedback(ctx context.Context, res *ActionResult)
}

// LifecyclePublisher receives committed death/rebirth events.
type LifecyclePublisher interface {
	PublishLifecycle(ctx context.Context, ev *domain.LifecycleEvent)
}

// InfluencePublisher receives updated profiles for the signal bridge.
type InfluencePublisher interface {
	PublishInfluence(ctx context.Context, profile *domain.KarmaProfile)
}

// DebtPublisher receives relationship-debt entries.
type DebtPublisher interface {
	PublishDebt(ctx context.Context, entry *DebtEntry)
}

// Outbound bundles the optional downstream collaborators. Any field may be
// nil; publishing is fire-and-forget after commit.
type Outbound struct {
	Feedback  FeedbackPublisher
	Lifecycle LifecyclePublisher
	Influence InfluencePublisher
	Debt      DebtPublisher
}
