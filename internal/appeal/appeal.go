// Package appeal reviews contested action classifications.
//
// The processor decides how a contested classification is revised; the
// engine package carries the decision through the ledger (delta reversal)
// and, when residual severity remains, into a reduced atonement plan.
// Appeals never rewrite the predictor's learned history; only future
// predictions see the corrected ledger.
package appeal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
)

// AppealStore is the persistence interface for appeals.
type AppealStore interface {
	CreateAppeal(ctx context.Context, a *domain.Appeal) error
	GetAppeal(ctx context.Context, id uuid.UUID) (*domain.Appeal, error)
	GetAppealByAction(ctx context.Context, actionRecordID uuid.UUID) (*domain.Appeal, error)
	ListAppealsByIdentity(ctx context.Context, identityID uuid.UUID, from, to time.Time) ([]domain.Appeal, error)
}

// Decision is the outcome of reviewing a contested action.
type Decision struct {
	Accepted        bool
	RevisedSeverity domain.Severity // SeverityNone = classification fully cleared.
}

// Processor reviews appeals against classified actions.
type Processor struct{}

// NewProcessor creates an appeal Processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Validate checks that the referenced action can be appealed at all:
// it must belong to the identity, carry a punitive classification, and not
// already be under appeal.
func (p *Processor) Validate(identityID uuid.UUID, rec *domain.ActionRecord) error {
	if rec.IdentityID != identityID {
		return fmt.Errorf("action %s belongs to another identity: %w", rec.ID, domain.ErrNotAppealable)
	}
	if rec.KarmaDelta >= 0 {
		return fmt.Errorf("action %s is not negative: %w", rec.ID, domain.ErrNotAppealable)
	}
	if rec.Appealed {
		return fmt.Errorf("action %s: %w", rec.ID, domain.ErrAlreadyAppealed)
	}
	return nil
}

// Review re-classifies a contested action. An accepted appeal steps the
// severity down one tier; a minor classification is cleared outright.
// An empty reason is rejected.
func (p *Processor) Review(rec *domain.ActionRecord, reason string) Decision {
	if strings.TrimSpace(reason) == "" {
		return Decision{Accepted: false, RevisedSeverity: rec.Severity}
	}
	if rec.Severity == domain.SeverityMinor || !rec.Severity.Valid() {
		return Decision{Accepted: true, RevisedSeverity: domain.SeverityNone}
	}
	tiers := domain.Severities()
	return Decision{Accepted: true, RevisedSeverity: tiers[rec.Severity.Rank()-1]}
}
