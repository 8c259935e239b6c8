package model

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the storage format of MachineMetric.ShiftDate.
const DateLayout = "2006-01-02"

// MachineMetric is the per-device, per-shift, per-day efficiency snapshot.
// (device_id, organization_id, shift_id, shift_date) is unique. ShiftID is not
// a foreign key: rows outlive the shift they were computed for.
type MachineMetric struct {
	ID                   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DeviceID             string    `gorm:"size:64;not null;uniqueIndex:idx_machine_metric_key,priority:1" json:"deviceId"`
	OrganizationID       int64     `gorm:"not null;uniqueIndex:idx_machine_metric_key,priority:2" json:"organizationId"`
	ShiftID              uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_machine_metric_key,priority:3" json:"shiftId"`
	ShiftDate            string    `gorm:"size:10;not null;uniqueIndex:idx_machine_metric_key,priority:4" json:"shiftDate"`
	PowerOnMinutes       int       `gorm:"not null" json:"powerOnMinutes"`
	RunningMinutes       int       `gorm:"not null" json:"runningMinutes"`
	EfficiencyPercentage float64   `gorm:"not null" json:"efficiencyPercentage"`
	CurrentRPM           int       `gorm:"column:current_rpm;not null" json:"currentRpm"`
	LastUpdated          time.Time `gorm:"not null;index" json:"lastUpdated"`
}
