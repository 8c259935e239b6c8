package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"machine-efficiency-backend/internal/shifttime"
)

// ShiftType labels a shift. It carries no validation semantics.
type ShiftType string

const (
	ShiftTypeDay   ShiftType = "DAY"
	ShiftTypeNight ShiftType = "NIGHT"
	ShiftTypeExtra ShiftType = "EXTRA"
)

// ParseShiftType validates a raw shift type label.
func ParseShiftType(raw string) (ShiftType, error) {
	switch st := ShiftType(raw); st {
	case ShiftTypeDay, ShiftTypeNight, ShiftTypeExtra:
		return st, nil
	}
	return "", fmt.Errorf("unknown shift type %q", raw)
}

// Shift is a recurring daily window during which an organization operates.
type Shift struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID int64             `gorm:"index;not null" json:"organizationId"`
	ShiftType      ShiftType         `gorm:"size:16;not null" json:"shiftType"`
	StartTime      shifttime.Minutes `gorm:"not null" json:"startTime"`
	EndTime        shifttime.Minutes `gorm:"not null" json:"endTime"`
	CreatedBy      int64             `gorm:"not null" json:"createdBy"`
	CreatedAt      time.Time         `gorm:"not null" json:"createdAt"`
	UpdatedAt      time.Time         `gorm:"not null" json:"updatedAt"`
}

// BeforeCreate assigns an identifier to new shifts.
func (s *Shift) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Window returns the shift's time-of-day bounds.
func (s Shift) Window() shifttime.Window {
	return shifttime.Window{Start: s.StartTime, End: s.EndTime}
}
