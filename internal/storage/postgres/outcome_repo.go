package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/engine"
	"github.com/jkaninda/samsara/internal/lifecycle"
)

// CommitAction atomically persists one handled action event: the profile
// (version-checked), the action record, the Q-table cell, and the opened
// plan if any. A replayed request id surfaces as domain.ErrDuplicateEvent
// through the unique index on action_records.request_id.
func (s *Store) CommitAction(ctx context.Context, out *engine.ActionOutcome) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := toActionModel(out.Record)
		if err := tx.Create(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("request %q: %w", out.Record.RequestID, domain.ErrDuplicateEvent)
			}
			return fmt.Errorf("creating action record: %w", err)
		}

		if err := saveProfileTx(tx, out.Profile); err != nil {
			return err
		}

		if out.QEntry != nil {
			if err := saveQEntryTx(tx, out.QEntry); err != nil {
				return err
			}
		}

		if out.Plan != nil {
			plan := toPlanModel(out.Plan)
			if err := tx.Create(&plan).Error; err != nil {
				return fmt.Errorf("creating plan: %w", err)
			}
		}
		return nil
	})
	return err
}

// CommitProof atomically persists one proof submission: the idempotency
// marker, the updated plan, and the profile when a redemption moved a
// balance.
func (s *Store) CommitProof(ctx context.Context, out *engine.ProofOutcome) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := markProcessedTx(tx, out.RequestID, "proof"); err != nil {
			return err
		}

		plan := toPlanModel(out.Plan)
		if err := tx.Save(&plan).Error; err != nil {
			return fmt.Errorf("updating plan: %w", err)
		}

		if out.Profile != nil {
			if err := saveProfileTx(tx, out.Profile); err != nil {
				return err
			}
		}
		return nil
	})
}

// CommitAppeal atomically persists one appeal decision: the idempotency
// marker, the appeal row, the appealed flag on the record, and on
// acceptance the reversed profile plus the residual and superseded plans.
func (s *Store) CommitAppeal(ctx context.Context, out *engine.AppealOutcome) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := markProcessedTx(tx, out.Appeal.RequestID, "appeal"); err != nil {
			return err
		}

		appeal := toAppealModel(out.Appeal)
		if err := tx.Create(&appeal).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("action %s: %w", out.Appeal.ActionRecordID, domain.ErrAlreadyAppealed)
			}
			return fmt.Errorf("creating appeal: %w", err)
		}

		if err := tx.Model(&ActionRecordModel{}).
			Where("id = ?", out.Record.ID).
			Update("appealed", true).Error; err != nil {
			return fmt.Errorf("flagging action %s: %w", out.Record.ID, err)
		}

		if out.Profile != nil {
			if err := saveProfileTx(tx, out.Profile); err != nil {
				return err
			}
		}
		if out.Plan != nil {
			plan := toPlanModel(out.Plan)
			if err := tx.Create(&plan).Error; err != nil {
				return fmt.Errorf("creating residual plan: %w", err)
			}
		}
		if out.Superseded != nil {
			plan := toPlanModel(out.Superseded)
			if err := tx.Save(&plan).Error; err != nil {
				return fmt.Errorf("closing superseded plan: %w", err)
			}
		}
		return nil
	})
}

// CommitRebirth atomically marks the deceased profile, creates the
// successor, and appends the lifecycle event. The deceased profile's
// version check keeps the death serialized with any concurrent mutation.
func (s *Store) CommitRebirth(ctx context.Context, r *lifecycle.Rebirth) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveProfileTx(tx, r.Deceased); err != nil {
			return err
		}

		successor := toProfileModel(r.Successor)
		if err := tx.Create(&successor).Error; err != nil {
			return fmt.Errorf("creating successor profile: %w", err)
		}

		event := toLifecycleModel(r.Event)
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("creating lifecycle event: %w", err)
		}
		return nil
	})
}

// IsRequestProcessed reports whether a proof or appeal request id was
// already committed.
func (s *Store) IsRequestProcessed(ctx context.Context, requestID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&ProcessedRequestModel{}).
		Where("request_id = ?", requestID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking request %q: %w", requestID, err)
	}
	return count > 0, nil
}

func markProcessedTx(tx *gorm.DB, requestID, kind string) error {
	row := ProcessedRequestModel{
		RequestID: requestID,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("request %q: %w", requestID, domain.ErrDuplicateEvent)
		}
		return fmt.Errorf("marking request %q: %w", requestID, err)
	}
	return nil
}

func saveQEntryTx(tx *gorm.DB, q *domain.QEntry) error {
	model := toQEntryModel(q)
	if err := tx.Save(&model).Error; err != nil {
		return fmt.Errorf("saving q entry: %w", err)
	}
	return nil
}
