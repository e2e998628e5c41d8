package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/debt"
)

// CreateDebt appends one relationship-debt entry.
func (s *Store) CreateDebt(ctx context.Context, r *debt.Record) error {
	model := toDebtModel(r)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("creating debt %s: %w", r.ID, err)
	}
	return nil
}

// ListDebtsByDebtor returns all debts an identity owes, newest first.
func (s *Store) ListDebtsByDebtor(ctx context.Context, debtor uuid.UUID) ([]debt.Record, error) {
	var models []DebtModel
	if err := s.db.WithContext(ctx).
		Where("debtor = ?", debtor).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing debts for %s: %w", debtor, err)
	}
	records := make([]debt.Record, len(models))
	for i := range models {
		records[i] = toDebtDomain(&models[i])
	}
	return records, nil
}

// ListDebtsByReceiver returns all debts owed to one receiver, newest first.
func (s *Store) ListDebtsByReceiver(ctx context.Context, receiver string) ([]debt.Record, error) {
	var models []DebtModel
	if err := s.db.WithContext(ctx).
		Where("receiver = ?", receiver).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing debts owed to %q: %w", receiver, err)
	}
	records := make([]debt.Record, len(models))
	for i := range models {
		records[i] = toDebtDomain(&models[i])
	}
	return records, nil
}
