package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"machine-efficiency-backend/internal/model"
)

// ListShifts returns every shift of an organization ordered by start time.
func (s *gormStore) ListShifts(ctx context.Context, orgID int64) ([]model.Shift, error) {
	var shifts []model.Shift
	if err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("start_time").Order("id").
		Find(&shifts).Error; err != nil {
		return nil, fmt.Errorf("failed to list shifts for organization %d: %w", orgID, err)
	}
	return shifts, nil
}

func (s *gormStore) CreateShift(ctx context.Context, shift *model.Shift) error {
	if err := s.db.WithContext(ctx).Create(shift).Error; err != nil {
		return fmt.Errorf("failed to create shift: %w", err)
	}
	return nil
}

func (s *gormStore) SaveShift(ctx context.Context, shift *model.Shift) error {
	if err := s.db.WithContext(ctx).Save(shift).Error; err != nil {
		return fmt.Errorf("failed to save shift %s: %w", shift.ID, err)
	}
	return nil
}

func (s *gormStore) GetShift(ctx context.Context, id uuid.UUID) (*model.Shift, error) {
	var shift model.Shift
	if err := s.db.WithContext(ctx).First(&shift, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get shift %s: %w", id, notFound(err))
	}
	return &shift, nil
}

// DeleteShift removes the shift only. Metric rows that reference it are kept.
func (s *gormStore) DeleteShift(ctx context.Context, id uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&model.Shift{}, "id = ?", id)
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete shift %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *gormStore) WithShiftLock(ctx context.Context, orgID int64, fn func(tx ShiftTx) error) error {
	lock := s.locks.get(orgID)
	lock.Lock()
	defer lock.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Other replicas share the database, not the mutex.
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", orgID).Error; err != nil {
				return fmt.Errorf("failed to lock shifts of organization %d: %w", orgID, err)
			}
		}
		return fn(&gormStore{db: tx, locks: s.locks})
	})
}
