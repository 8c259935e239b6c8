package model

import "time"

// DeviceStatus is the approval state of a device in the directory.
type DeviceStatus string

const (
	DeviceStatusPending  DeviceStatus = "pending"
	DeviceStatusApproved DeviceStatus = "approved"
	DeviceStatusRejected DeviceStatus = "rejected"
)

// Device is a machine known to the device directory.
type Device struct {
	ID             string       `gorm:"primaryKey;size:64" json:"id"` // Telemetry identifier
	OrganizationID int64        `gorm:"index;not null" json:"organizationId"`
	Name           string       `gorm:"size:256" json:"name"`
	Status         DeviceStatus `gorm:"size:16;index;not null;default:pending" json:"status"`
	Active         bool         `gorm:"not null;default:false" json:"active"`
	FirstSeenAt    time.Time    `json:"firstSeenAt"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}
