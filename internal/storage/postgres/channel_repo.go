package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jkaninda/samsara/internal/domain"
)

// GetChannel returns one notification channel by id.
func (s *Store) GetChannel(ctx context.Context, id uuid.UUID) (*domain.NotificationChannel, error) {
	var model NotificationChannelModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("getting channel %s: %w", id, err)
	}
	return toChannelDomain(&model), nil
}

// GetChannelByName returns one notification channel by its unique name.
func (s *Store) GetChannelByName(ctx context.Context, name string) (*domain.NotificationChannel, error) {
	var model NotificationChannelModel
	if err := s.db.WithContext(ctx).First(&model, "name = ?", name).Error; err != nil {
		return nil, fmt.Errorf("getting channel %q: %w", name, err)
	}
	return toChannelDomain(&model), nil
}

// ListChannels returns all configured channels.
func (s *Store) ListChannels(ctx context.Context) ([]domain.NotificationChannel, error) {
	var models []NotificationChannelModel
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	channels := make([]domain.NotificationChannel, len(models))
	for i := range models {
		channels[i] = *toChannelDomain(&models[i])
	}
	return channels, nil
}

// CreateChannel persists a new channel.
func (s *Store) CreateChannel(ctx context.Context, ch *domain.NotificationChannel) error {
	model := toChannelModel(ch)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("creating channel %q: %w", ch.Name, err)
	}
	return nil
}

// UpdateChannel persists changes to an existing channel.
func (s *Store) UpdateChannel(ctx context.Context, ch *domain.NotificationChannel) error {
	model := toChannelModel(ch)
	if err := s.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("updating channel %q: %w", ch.Name, err)
	}
	return nil
}

// DeleteChannel removes a channel by id.
func (s *Store) DeleteChannel(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Delete(&NotificationChannelModel{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("deleting channel %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("channel %s not found", id)
	}
	return nil
}
