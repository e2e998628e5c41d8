package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
)

// GetAction returns one action record by id, or domain.ErrActionNotFound.
func (s *Store) GetAction(ctx context.Context, id uuid.UUID) (*domain.ActionRecord, error) {
	var model ActionRecordModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, domain.ErrActionNotFound, "getting action %s", id)
	}
	return toActionDomain(&model), nil
}

// GetActionByRequestID returns the record carrying the idempotency key,
// or domain.ErrActionNotFound.
func (s *Store) GetActionByRequestID(ctx context.Context, requestID string) (*domain.ActionRecord, error) {
	var model ActionRecordModel
	if err := s.db.WithContext(ctx).First(&model, "request_id = ?", requestID).Error; err != nil {
		return nil, notFound(err, domain.ErrActionNotFound, "getting action by request id %q", requestID)
	}
	return toActionDomain(&model), nil
}

// ListActions returns an identity's records in the window, newest first.
func (s *Store) ListActions(ctx context.Context, identityID uuid.UUID, from, to time.Time) ([]domain.ActionRecord, error) {
	var models []ActionRecordModel
	q := s.db.WithContext(ctx).Where("identity_id = ?", identityID)
	if !from.IsZero() {
		q = q.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("created_at <= ?", to)
	}
	if err := q.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing actions for %s: %w", identityID, err)
	}
	records := make([]domain.ActionRecord, len(models))
	for i := range models {
		records[i] = *toActionDomain(&models[i])
	}
	return records, nil
}

// CountRecentActions counts an identity's repeats of one action since the
// cutoff. Drives severity escalation.
func (s *Store) CountRecentActions(ctx context.Context, identityID uuid.UUID, action string, since time.Time) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&ActionRecordModel{}).
		Where("identity_id = ? AND action = ? AND created_at >= ?", identityID, action, since).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting recent actions for %s: %w", identityID, err)
	}
	return int(count), nil
}
