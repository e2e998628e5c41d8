// Package debt keeps the relationship-debt ledger: interpersonal
// obligations created when a negative action names an affected party.
// Entries are append-only and independent of the karmic balance buckets;
// they record who owes whom, not how much karma moved.
package debt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/engine"
)

// Record is one persisted relationship debt.
type Record struct {
	ID        uuid.UUID
	Debtor    uuid.UUID
	Receiver  string
	Severity  domain.Severity
	Amount    float64
	CreatedAt time.Time
}

// Store persists relationship debts.
type Store interface {
	CreateDebt(ctx context.Context, r *Record) error
	ListDebtsByDebtor(ctx context.Context, debtor uuid.UUID) ([]Record, error)
	ListDebtsByReceiver(ctx context.Context, receiver string) ([]Record, error)
}

// Ledger implements the engine's debt publisher over a Store.
type Ledger struct {
	store   Store
	metrics *Metrics
	logger  *slog.Logger
}

// NewLedger creates a relationship-debt ledger.
func NewLedger(store Store, metrics *Metrics, logger *slog.Logger) *Ledger {
	return &Ledger{store: store, metrics: metrics, logger: logger}
}

// PublishDebt records one entry. Failures are logged; the originating
// action is already committed and is never rolled back for a debt write.
func (l *Ledger) PublishDebt(ctx context.Context, entry *engine.DebtEntry) {
	rec := &Record{
		ID:        domain.NewID(),
		Debtor:    entry.Debtor,
		Receiver:  entry.Receiver,
		Severity:  entry.Severity,
		Amount:    entry.Amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.store.CreateDebt(ctx, rec); err != nil {
		l.logger.WarnContext(ctx, "recording relationship debt failed",
			slog.String("debtor", rec.Debtor.String()),
			slog.String("receiver", rec.Receiver),
			slog.String("error", err.Error()),
		)
		return
	}
	if l.metrics != nil {
		l.metrics.Recorded.WithLabelValues(string(rec.Severity)).Inc()
	}
}

// Owed sums the outstanding amount a debtor owes one receiver.
func (l *Ledger) Owed(ctx context.Context, debtor uuid.UUID, receiver string) (float64, error) {
	records, err := l.store.ListDebtsByDebtor(ctx, debtor)
	if err != nil {
		return 0, fmt.Errorf("listing debts for %s: %w", debtor, err)
	}
	var total float64
	for i := range records {
		if records[i].Receiver == receiver {
			total += records[i].Amount
		}
	}
	return total, nil
}
