package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"machine-efficiency-backend/internal/model"
)

var metricKeyColumns = []clause.Column{
	{Name: "device_id"},
	{Name: "organization_id"},
	{Name: "shift_id"},
	{Name: "shift_date"},
}

var metricValueColumns = []string{
	"power_on_minutes",
	"running_minutes",
	"efficiency_percentage",
	"current_rpm",
	"last_updated",
}

// UpsertMachineMetric inserts the row or overwrites the one with the same natural
// key. The unique index arbitrates concurrent writers; a write older than the
// stored row is dropped.
func (s *gormStore) UpsertMachineMetric(ctx context.Context, metric *model.MachineMetric) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   metricKeyColumns,
		DoUpdates: clause.AssignmentColumns(metricValueColumns),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "machine_metrics.last_updated <= excluded.last_updated"},
		}},
	}).Create(metric).Error
	if err != nil {
		return fmt.Errorf("failed to upsert metric for device %s: %w", metric.DeviceID, err)
	}
	return nil
}

// ListMachineMetrics returns one page of metrics for a shift occurrence and the
// total number of matching rows.
func (s *gormStore) ListMachineMetrics(ctx context.Context, q MetricQuery) ([]MetricRow, int64, error) {
	base := func() *gorm.DB {
		tx := s.db.WithContext(ctx).
			Model(&model.MachineMetric{}).
			Joins("LEFT JOIN devices ON devices.id = machine_metrics.device_id").
			Where("machine_metrics.organization_id = ?", q.OrganizationID).
			Where("machine_metrics.shift_id = ?", q.ShiftID).
			Where("machine_metrics.shift_date = ?", q.ShiftDate)
		if search := strings.TrimSpace(q.Search); search != "" {
			like := "%" + strings.ToLower(search) + "%"
			tx = tx.Where("(LOWER(machine_metrics.device_id) LIKE ? OR LOWER(devices.name) LIKE ?)", like, like)
		}
		return tx
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count metrics: %w", err)
	}

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	rows := make([]MetricRow, 0, size)
	if err := base().
		Select("machine_metrics.*, COALESCE(devices.name, '') AS device_name").
		Order("machine_metrics.device_id").
		Offset((page - 1) * size).
		Limit(size).
		Scan(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list metrics: %w", err)
	}
	return rows, total, nil
}

// ListMetricHistory returns a device's retained rows, newest shift day first.
func (s *gormStore) ListMetricHistory(ctx context.Context, orgID int64, deviceID string, limit int) ([]model.MachineMetric, error) {
	if limit <= 0 {
		limit = 30
	}
	var metrics []model.MachineMetric
	if err := s.db.WithContext(ctx).
		Where("organization_id = ? AND device_id = ?", orgID, deviceID).
		Order("shift_date DESC").Order("last_updated DESC").
		Limit(limit).
		Find(&metrics).Error; err != nil {
		return nil, fmt.Errorf("failed to list metric history for device %s: %w", deviceID, err)
	}
	return metrics, nil
}
