package store

import (
	"github.com/google/uuid"

	"machine-efficiency-backend/internal/model"
)

// MetricQuery selects one page of the live metrics view.
type MetricQuery struct {
	OrganizationID int64
	ShiftID        uuid.UUID
	ShiftDate      string
	Search         string // matched against device id and name, case-insensitive
	Page           int    // 1-based
	PageSize       int
}

// MetricRow is a MachineMetric joined with its device's display name.
type MetricRow struct {
	model.MachineMetric
	DeviceName string `json:"deviceName"`
}

// ObservedDevice is a device identifier seen in telemetry.
type ObservedDevice struct {
	OrganizationID int64
	DeviceID       string
}
