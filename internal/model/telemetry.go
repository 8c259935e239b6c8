package model

import "time"

// TelemetrySample is one raw reading reported by a device.
type TelemetrySample struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	OrganizationID int64     `gorm:"not null;index"`
	DeviceID       string    `gorm:"size:64;not null;index:idx_telemetry_device_observed,priority:1"`
	ObservedAt     time.Time `gorm:"not null;index:idx_telemetry_device_observed,priority:2"`
	Running        bool      `gorm:"not null"`
	RPM            int       `gorm:"column:rpm;not null"`
}
