package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
)

// CreateAppeal persists a new appeal. The unique index on action_record_id
// rejects a second appeal for the same action.
func (s *Store) CreateAppeal(ctx context.Context, a *domain.Appeal) error {
	model := toAppealModel(a)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("creating appeal %s: %w", a.ID, err)
	}
	return nil
}

// GetAppeal returns one appeal by id.
func (s *Store) GetAppeal(ctx context.Context, id uuid.UUID) (*domain.Appeal, error) {
	var model AppealModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, domain.ErrNotAppealable, "getting appeal %s", id)
	}
	return toAppealDomain(&model), nil
}

// GetAppealByAction returns the appeal filed against an action record, or
// nil when none exists.
func (s *Store) GetAppealByAction(ctx context.Context, actionRecordID uuid.UUID) (*domain.Appeal, error) {
	var models []AppealModel
	if err := s.db.WithContext(ctx).
		Where("action_record_id = ?", actionRecordID).
		Limit(1).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("getting appeal for action %s: %w", actionRecordID, err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	return toAppealDomain(&models[0]), nil
}

// ListAppealsByIdentity returns an identity's appeals in the window.
func (s *Store) ListAppealsByIdentity(ctx context.Context, identityID uuid.UUID, from, to time.Time) ([]domain.Appeal, error) {
	var models []AppealModel
	q := s.db.WithContext(ctx).Where("identity_id = ?", identityID)
	if !from.IsZero() {
		q = q.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("created_at <= ?", to)
	}
	if err := q.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing appeals for %s: %w", identityID, err)
	}
	appeals := make([]domain.Appeal, len(models))
	for i := range models {
		appeals[i] = *toAppealDomain(&models[i])
	}
	return appeals, nil
}
