package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
)

// AuditReport compares an identity's stored merit aggregates against a
// recomputation from its persisted balance buckets.
type AuditReport struct {
	IdentityID      uuid.UUID
	StoredNetKarma  float64
	DerivedNetKarma float64
	StoredWeighted  float64
	DerivedWeighted float64
	ActionCount     int
	Consistent      bool
}

const auditTolerance = 1e-6

// AuditProfile recomputes merit, penalty, and net karma from the profile's
// balance buckets and reports any drift from the stored aggregates. Buckets
// are the source of truth; aggregates are derived.
func (e *Engine) AuditProfile(ctx context.Context, identityID uuid.UUID) (*AuditReport, error) {
	unlock := e.locks.Lock(identityID)
	defer unlock()

	profile, err := e.store.GetProfile(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", identityID, err)
	}

	records, err := e.store.ListActions(ctx, identityID, time.Time{}, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("listing actions for %s: %w", identityID, err)
	}

	report := &AuditReport{
		IdentityID:     identityID,
		StoredNetKarma: profile.NetKarma,
		StoredWeighted: profile.WeightedKarmaScore,
		ActionCount:    len(records),
	}

	derived := profile.Clone()
	e.calc.Recompute(derived, e.catalog.Catalog())
	report.DerivedNetKarma = derived.NetKarma
	report.DerivedWeighted = derived.WeightedKarmaScore
	report.Consistent = math.Abs(report.StoredNetKarma-report.DerivedNetKarma) < auditTolerance &&
		math.Abs(report.StoredWeighted-report.DerivedWeighted) < auditTolerance

	if !report.Consistent {
		e.logger.WarnContext(ctx, "merit aggregates drifted from balance buckets",
			slog.String("identity_id", identityID.String()),
			slog.Float64("stored_net", report.StoredNetKarma),
			slog.Float64("derived_net", report.DerivedNetKarma),
		)
	}
	return report, nil
}
