package shift

import (
	"context"
	"time"

	"machine-efficiency-backend/internal/model"
	"machine-efficiency-backend/internal/shifttime"
)

// Lister loads an organization's shifts.
type Lister interface {
	ListShifts(ctx context.Context, orgID int64) ([]model.Shift, error)
}

// Resolver finds the shift active at an instant.
type Resolver struct {
	shifts Lister
}

func NewResolver(shifts Lister) *Resolver {
	return &Resolver{shifts: shifts}
}

// Resolve returns the organization's shift covering now, or nil when now falls
// into a gap. now must already be in the organization's timezone.
func (r *Resolver) Resolve(ctx context.Context, orgID int64, now time.Time) (*model.Shift, error) {
	shifts, err := r.shifts.ListShifts(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return Active(shifts, now), nil
}

// Active picks the first shift covering now's time of day.
func Active(shifts []model.Shift, now time.Time) *model.Shift {
	tod := shifttime.FromTime(now)
	for i := range shifts {
		if shifts[i].Window().Covers(tod) {
			return &shifts[i]
		}
	}
	return nil
}
