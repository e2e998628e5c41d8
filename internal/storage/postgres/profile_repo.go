package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkaninda/samsara/internal/domain"
)

// GetProfile returns the profile for an identity, or domain.ErrProfileNotFound.
func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*domain.KarmaProfile, error) {
	var model ProfileModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, domain.ErrProfileNotFound, "getting profile %s", id)
	}
	return toProfileDomain(&model), nil
}

// CreateProfile persists a new profile at version zero.
func (s *Store) CreateProfile(ctx context.Context, p *domain.KarmaProfile) error {
	model := toProfileModel(p)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("creating profile %s: %w", p.ID, err)
	}
	return nil
}

// saveProfileTx writes the full profile row guarded by the optimistic
// version check. The stored Version must equal the profile's load-time
// version; the write bumps it by one.
func saveProfileTx(tx *gorm.DB, p *domain.KarmaProfile) error {
	model := toProfileModel(p)
	model.Version = p.Version + 1

	result := tx.Model(&ProfileModel{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Select("*").
		Omit("id", "created_at").
		Updates(&model)
	if result.Error != nil {
		return fmt.Errorf("updating profile %s: %w", p.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("profile %s version %d: %w", p.ID, p.Version, domain.ErrConcurrentConflict)
	}
	p.Version++
	return nil
}
