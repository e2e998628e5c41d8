package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
)

// ListLifecycleEvents returns an identity's death+rebirth history (rows
// where the identity appears as deceased or as successor), oldest first.
func (s *Store) ListLifecycleEvents(ctx context.Context, identityID uuid.UUID, from, to time.Time) ([]domain.LifecycleEvent, error) {
	var models []LifecycleEventModel
	q := s.db.WithContext(ctx).
		Where("identity_id = ? OR new_identity_id = ?", identityID, identityID)
	if !from.IsZero() {
		q = q.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("created_at <= ?", to)
	}
	if err := q.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing lifecycle events for %s: %w", identityID, err)
	}
	events := make([]domain.LifecycleEvent, len(models))
	for i := range models {
		events[i] = *toLifecycleDomain(&models[i])
	}
	return events, nil
}
