package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"machine-efficiency-backend/internal/model"
)

func (s *gormStore) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	var orgs []model.Organization
	if err := s.db.WithContext(ctx).Order("id").Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, nil
}

func (s *gormStore) GetOrganization(ctx context.Context, id int64) (*model.Organization, error) {
	var org model.Organization
	if err := s.db.WithContext(ctx).First(&org, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get organization %d: %w", id, notFound(err))
	}
	return &org, nil
}

// ListApprovedActiveDevices returns the devices whose metrics are computed.
func (s *gormStore) ListApprovedActiveDevices(ctx context.Context, orgID int64) ([]model.Device, error) {
	var devices []model.Device
	if err := s.db.WithContext(ctx).
		Where("organization_id = ? AND status = ? AND active = ?", orgID, model.DeviceStatusApproved, true).
		Order("id").
		Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("failed to list devices for organization %d: %w", orgID, err)
	}
	return devices, nil
}

// ListObservedDevices returns every distinct device identifier present in telemetry.
func (s *gormStore) ListObservedDevices(ctx context.Context) ([]ObservedDevice, error) {
	var observed []ObservedDevice
	if err := s.db.WithContext(ctx).
		Model(&model.TelemetrySample{}).
		Distinct("organization_id", "device_id").
		Order("organization_id").Order("device_id").
		Scan(&observed).Error; err != nil {
		return nil, fmt.Errorf("failed to list observed devices: %w", err)
	}
	return observed, nil
}

// RegisterPendingDevices adds unknown identifiers to the directory as pending.
// Known devices are left untouched. It returns how many rows were added.
func (s *gormStore) RegisterPendingDevices(ctx context.Context, observed []ObservedDevice, now time.Time) (int64, error) {
	if len(observed) == 0 {
		return 0, nil
	}

	devices := make([]model.Device, 0, len(observed))
	for _, o := range observed {
		devices = append(devices, model.Device{
			ID:             o.DeviceID,
			OrganizationID: o.OrganizationID,
			Name:           o.DeviceID,
			Status:         model.DeviceStatusPending,
			FirstSeenAt:    now,
		})
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		CreateInBatches(&devices, 100)
	if res.Error != nil {
		return 0, fmt.Errorf("batch register devices failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}
