package debt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/engine"
)

type stubDebtStore struct {
	records []Record
	fail    bool
}

func (s *stubDebtStore) CreateDebt(_ context.Context, r *Record) error {
	if s.fail {
		return errors.New("store down")
	}
	s.records = append(s.records, *r)
	return nil
}

func (s *stubDebtStore) ListDebtsByDebtor(_ context.Context, debtor uuid.UUID) ([]Record, error) {
	var out []Record
	for _, r := range s.records {
		if r.Debtor == debtor {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubDebtStore) ListDebtsByReceiver(_ context.Context, receiver string) ([]Record, error) {
	var out []Record
	for _, r := range s.records {
		if r.Receiver == receiver {
			out = append(out, r)
		}
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestPublishDebt_PersistsRecord(t *testing.T) {
	store := &stubDebtStore{}
	l := NewLedger(store, nil, testLogger())
	debtor := domain.NewID()

	l.PublishDebt(context.Background(), &engine.DebtEntry{
		Debtor:   debtor,
		Receiver: "village-well",
		Severity: domain.SeverityMedium,
		Amount:   6,
	})

	if len(store.records) != 1 {
		t.Fatalf("records = %d, want 1", len(store.records))
	}
	rec := store.records[0]
	if rec.Debtor != debtor || rec.Receiver != "village-well" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Severity != domain.SeverityMedium || rec.Amount != 6 {
		t.Errorf("severity/amount = %v/%v", rec.Severity, rec.Amount)
	}
	if rec.ID == uuid.Nil || rec.CreatedAt.IsZero() {
		t.Error("record missing id or timestamp")
	}
}

func TestPublishDebt_StoreFailureIsSwallowed(t *testing.T) {
	store := &stubDebtStore{fail: true}
	l := NewLedger(store, nil, testLogger())
	l.PublishDebt(context.Background(), &engine.DebtEntry{
		Debtor:   domain.NewID(),
		Receiver: "anyone",
		Severity: domain.SeverityMinor,
		Amount:   1,
	})
	if len(store.records) != 0 {
		t.Error("failed write still recorded")
	}
}

func TestOwed_SumsPerReceiver(t *testing.T) {
	store := &stubDebtStore{}
	l := NewLedger(store, nil, testLogger())
	debtor := domain.NewID()

	for _, e := range []engine.DebtEntry{
		{Debtor: debtor, Receiver: "miller", Severity: domain.SeverityMinor, Amount: 2},
		{Debtor: debtor, Receiver: "miller", Severity: domain.SeverityMedium, Amount: 6},
		{Debtor: debtor, Receiver: "smith", Severity: domain.SeverityMinor, Amount: 3},
		{Debtor: domain.NewID(), Receiver: "miller", Severity: domain.SeverityMinor, Amount: 9},
	} {
		entry := e
		l.PublishDebt(context.Background(), &entry)
	}

	owed, err := l.Owed(context.Background(), debtor, "miller")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owed != 8 {
		t.Errorf("owed = %v, want 8", owed)
	}
}
