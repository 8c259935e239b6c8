package model

import (
	"time"
)

// Organization is a tenant that operates devices on shifts.
type Organization struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Timezone  string    `gorm:"size:64" json:"timezone"` // IANA name; empty falls back to the configured default
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// Location resolves the organization's timezone, falling back to def when the
// name is empty or unknown.
func (o Organization) Location(def *time.Location) *time.Location {
	if o.Timezone == "" {
		return def
	}
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return def
	}
	return loc
}
