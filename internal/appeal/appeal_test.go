package appeal

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
)

func punitiveRecord(identityID uuid.UUID, severity domain.Severity) *domain.ActionRecord {
	return &domain.ActionRecord{
		ID:         domain.NewID(),
		IdentityID: identityID,
		Action:     "theft",
		Category:   "paapa",
		Severity:   severity,
		KarmaDelta: -12,
	}
}

func TestValidate(t *testing.T) {
	p := NewProcessor()
	owner := uuid.New()

	t.Run("appealable", func(t *testing.T) {
		if err := p.Validate(owner, punitiveRecord(owner, domain.SeverityMedium)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("wrong identity", func(t *testing.T) {
		err := p.Validate(uuid.New(), punitiveRecord(owner, domain.SeverityMedium))
		if !errors.Is(err, domain.ErrNotAppealable) {
			t.Fatalf("error = %v, want ErrNotAppealable", err)
		}
	})

	t.Run("merit action", func(t *testing.T) {
		rec := punitiveRecord(owner, domain.SeverityNone)
		rec.KarmaDelta = 5
		err := p.Validate(owner, rec)
		if !errors.Is(err, domain.ErrNotAppealable) {
			t.Fatalf("error = %v, want ErrNotAppealable", err)
		}
	})

	t.Run("already appealed", func(t *testing.T) {
		rec := punitiveRecord(owner, domain.SeverityMedium)
		rec.Appealed = true
		err := p.Validate(owner, rec)
		if !errors.Is(err, domain.ErrAlreadyAppealed) {
			t.Fatalf("error = %v, want ErrAlreadyAppealed", err)
		}
	})
}

func TestReview_StepsDownOneTier(t *testing.T) {
	p := NewProcessor()
	owner := uuid.New()

	tests := []struct {
		severity domain.Severity
		want     domain.Severity
	}{
		{domain.SeverityMaha, domain.SeverityMajor},
		{domain.SeverityMajor, domain.SeverityMedium},
		{domain.SeverityMedium, domain.SeverityMinor},
	}
	for _, tc := range tests {
		d := p.Review(punitiveRecord(owner, tc.severity), "mistaken identity")
		if !d.Accepted {
			t.Errorf("severity %q: appeal rejected", tc.severity)
		}
		if d.RevisedSeverity != tc.want {
			t.Errorf("severity %q revised to %q, want %q", tc.severity, d.RevisedSeverity, tc.want)
		}
	}
}

func TestReview_MinorClearedOutright(t *testing.T) {
	p := NewProcessor()
	d := p.Review(punitiveRecord(uuid.New(), domain.SeverityMinor), "provocation")
	if !d.Accepted {
		t.Fatal("appeal rejected")
	}
	if d.RevisedSeverity != domain.SeverityNone {
		t.Errorf("revised severity = %q, want cleared", d.RevisedSeverity)
	}
}

func TestReview_EmptyReasonRejected(t *testing.T) {
	p := NewProcessor()
	for _, reason := range []string{"", "   ", "\t\n"} {
		d := p.Review(punitiveRecord(uuid.New(), domain.SeverityMedium), reason)
		if d.Accepted {
			t.Errorf("reason %q: appeal accepted, want rejected", reason)
		}
		if d.RevisedSeverity != domain.SeverityMedium {
			t.Errorf("reason %q: severity changed on rejection", reason)
		}
	}
}
