package shift

import "errors"

var (
	// ErrOverlap is returned when a shift would intersect another shift of the
	// same organization.
	ErrOverlap = errors.New("shift overlaps an existing shift")
	// ErrDurationExceeded is returned when the organization's shifts would cover
	// more than 24 hours in total.
	ErrDurationExceeded = errors.New("total shift duration exceeds 24 hours")
	ErrNotFound         = errors.New("shift not found")
	ErrNotAuthorized    = errors.New("shift belongs to another organization")
	ErrInvalidInput     = errors.New("invalid shift")
)
