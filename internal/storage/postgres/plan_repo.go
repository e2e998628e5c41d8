package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
)

// CreatePlan persists a new atonement plan.
func (s *Store) CreatePlan(ctx context.Context, plan *domain.AtonementPlan) error {
	model := toPlanModel(plan)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("creating plan %s: %w", plan.ID, err)
	}
	return nil
}

// GetPlan returns one plan by id, or domain.ErrPlanNotFound.
func (s *Store) GetPlan(ctx context.Context, id uuid.UUID) (*domain.AtonementPlan, error) {
	var model AtonementPlanModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, domain.ErrPlanNotFound, "getting plan %s", id)
	}
	return toPlanDomain(&model), nil
}

// ListPlansByIdentity returns all plans for an identity, newest first.
func (s *Store) ListPlansByIdentity(ctx context.Context, identityID uuid.UUID) ([]domain.AtonementPlan, error) {
	var models []AtonementPlanModel
	if err := s.db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing plans for %s: %w", identityID, err)
	}
	plans := make([]domain.AtonementPlan, len(models))
	for i := range models {
		plans[i] = *toPlanDomain(&models[i])
	}
	return plans, nil
}

// UpdatePlan persists changes to an existing plan.
func (s *Store) UpdatePlan(ctx context.Context, plan *domain.AtonementPlan) error {
	model := toPlanModel(plan)
	if err := s.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("updating plan %s: %w", plan.ID, err)
	}
	return nil
}

// ListDueOpenPlans returns open plans whose deadline has passed, oldest
// deadline first, capped at limit.
func (s *Store) ListDueOpenPlans(ctx context.Context, now time.Time, limit int) ([]domain.AtonementPlan, error) {
	var models []AtonementPlanModel
	if err := s.db.WithContext(ctx).
		Where("status = ? AND deadline <= ?", string(domain.PlanOpen), now).
		Order("deadline ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing due plans: %w", err)
	}
	plans := make([]domain.AtonementPlan, len(models))
	for i := range models {
		plans[i] = *toPlanDomain(&models[i])
	}
	return plans, nil
}

// ExpireIfOpen transitions a plan to expired only while it is still open.
// Returns false when a concurrent proof completed or expired it first.
func (s *Store) ExpireIfOpen(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&AtonementPlanModel{}).
		Where("id = ? AND status = ?", id, string(domain.PlanOpen)).
		Updates(map[string]any{
			"status":      string(domain.PlanExpired),
			"resolved_at": now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("expiring plan %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}
