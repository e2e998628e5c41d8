package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkaninda/samsara/internal/domain"
)

// GetQEntry returns the Q-table cell for (identity, role, action), or nil
// when the pair has never been visited. Absence is not an error: the sparse
// table reads unvisited cells as zero.
func (s *Store) GetQEntry(ctx context.Context, identityID uuid.UUID, role domain.Role, action string) (*domain.QEntry, error) {
	var model QEntryModel
	err := s.db.WithContext(ctx).
		First(&model, "identity_id = ? AND role = ? AND action = ?", identityID, string(role), action).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting q entry for %s: %w", identityID, err)
	}
	return toQEntryDomain(&model), nil
}

// QRowsForRole returns all stored cells for one identity and role.
func (s *Store) QRowsForRole(ctx context.Context, identityID uuid.UUID, role domain.Role) ([]domain.QEntry, error) {
	var models []QEntryModel
	if err := s.db.WithContext(ctx).
		Where("identity_id = ? AND role = ?", identityID, string(role)).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing q rows for %s: %w", identityID, err)
	}
	rows := make([]domain.QEntry, len(models))
	for i := range models {
		rows[i] = *toQEntryDomain(&models[i])
	}
	return rows, nil
}
