// Package telemetry reads device samples reported by the ingestion pipeline.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"machine-efficiency-backend/internal/model"
)

// Source answers the telemetry questions the metrics aggregator asks.
type Source struct {
	db *gorm.DB
}

// NewSource creates a gorm-backed telemetry reader.
func NewSource(db *gorm.DB) *Source {
	return &Source{db: db}
}

// MinutesRunning counts the distinct wall-clock minutes in [from, to) that hold
// at least one running sample for the device.
func (s *Source) MinutesRunning(ctx context.Context, deviceID string, from, to time.Time) (int, error) {
	if !to.After(from) {
		return 0, nil
	}

	var minutes int64
	if err := s.db.WithContext(ctx).
		Model(&model.TelemetrySample{}).
		Select("COUNT(DISTINCT "+minuteBucket(s.db.Dialector.Name())+")").
		Where("device_id = ? AND running = ? AND observed_at >= ? AND observed_at < ?", deviceID, true, from.UTC(), to.UTC()).
		Scan(&minutes).Error; err != nil {
		return 0, fmt.Errorf("failed to count running minutes for device %s: %w", deviceID, err)
	}
	return int(minutes), nil
}

// minuteBucket truncates observed_at to the minute in the given dialect.
func minuteBucket(dialect string) string {
	switch dialect {
	case "sqlite":
		return "strftime('%Y-%m-%d %H:%M', observed_at)"
	default:
		return "date_trunc('minute', observed_at)"
	}
}

// LatestRPM returns the RPM of the device's newest sample, or nil when the
// device has never reported.
func (s *Source) LatestRPM(ctx context.Context, deviceID string) (*int, error) {
	var sample model.TelemetrySample
	res := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("observed_at DESC").
		Limit(1).
		Find(&sample)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to read latest sample for device %s: %w", deviceID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	rpm := sample.RPM
	return &rpm, nil
}
