// Package metrics computes per-device efficiency for the active shift.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"machine-efficiency-backend/internal/model"
)

// TelemetrySource reports how a device behaved over time.
type TelemetrySource interface {
	MinutesRunning(ctx context.Context, deviceID string, from, to time.Time) (int, error)
	LatestRPM(ctx context.Context, deviceID string) (*int, error)
}

// MetricWriter persists computed rows.
type MetricWriter interface {
	UpsertMachineMetric(ctx context.Context, metric *model.MachineMetric) error
}

// Aggregator computes and stores MachineMetric rows.
type Aggregator struct {
	telemetry TelemetrySource
	store     MetricWriter
	logger    *zap.Logger
}

func NewAggregator(telemetry TelemetrySource, store MetricWriter, logger *zap.Logger) *Aggregator {
	return &Aggregator{telemetry: telemetry, store: store, logger: logger}
}

// ComputeForDevice refreshes the device's row for the occurrence of s that is
// active at now. now must be in the organization's timezone.
func (a *Aggregator) ComputeForDevice(ctx context.Context, device model.Device, s model.Shift, now time.Time) (*model.MachineMetric, error) {
	start, end := Window(s, now)

	until := now
	if end.Before(until) {
		until = end
	}
	running, err := a.telemetry.MinutesRunning(ctx, device.ID, start, until)
	if err != nil {
		return nil, fmt.Errorf("failed to read running minutes: %w", err)
	}

	rpm, err := a.telemetry.LatestRPM(ctx, device.ID)
	if err != nil {
		a.logger.Warn("latest rpm unavailable, reporting 0",
			zap.String("device_id", device.ID), zap.Error(err))
		rpm = nil
	}

	metric := Build(device, s, start, end, running, rpm, now)
	if err := a.store.UpsertMachineMetric(ctx, &metric); err != nil {
		return nil, err
	}
	return &metric, nil
}
