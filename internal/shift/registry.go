// Package shift manages an organization's shift set and resolves which shift is
// active at a given instant.
package shift

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"machine-efficiency-backend/internal/model"
	"machine-efficiency-backend/internal/shifttime"
	"machine-efficiency-backend/internal/store"
)

// Store is the persistence the registry needs.
type Store interface {
	ListShifts(ctx context.Context, orgID int64) ([]model.Shift, error)
	GetShift(ctx context.Context, id uuid.UUID) (*model.Shift, error)
	DeleteShift(ctx context.Context, id uuid.UUID) (bool, error)
	WithShiftLock(ctx context.Context, orgID int64, fn func(tx store.ShiftTx) error) error
}

// CreateInput describes a new shift. The organization and creator come from the actor.
type CreateInput struct {
	ShiftType model.ShiftType
	Start     shifttime.Minutes
	End       shifttime.Minutes
}

// UpdateInput is a partial update. Nil fields keep their current value.
type UpdateInput struct {
	ShiftType *model.ShiftType
	Start     *shifttime.Minutes
	End       *shifttime.Minutes
}

// Registry validates and applies shift mutations.
type Registry struct {
	store Store
}

// NewRegistry creates a registry over the given store.
func NewRegistry(s Store) *Registry {
	return &Registry{store: s}
}

// List returns the actor's organization shifts ordered by start time.
func (r *Registry) List(ctx context.Context, actor model.Actor) ([]model.Shift, error) {
	return r.store.ListShifts(ctx, actor.OrganizationID)
}

// Create validates the candidate against the organization's current shifts and
// stores it. Validation and insert happen under the organization's shift lock.
func (r *Registry) Create(ctx context.Context, actor model.Actor, in CreateInput) (*model.Shift, error) {
	if err := validateFields(in.ShiftType, in.Start, in.End); err != nil {
		return nil, err
	}

	candidate := &model.Shift{
		OrganizationID: actor.OrganizationID,
		ShiftType:      in.ShiftType,
		StartTime:      in.Start,
		EndTime:        in.End,
		CreatedBy:      actor.ID,
	}

	err := r.store.WithShiftLock(ctx, actor.OrganizationID, func(tx store.ShiftTx) error {
		existing, err := tx.ListShifts(ctx, actor.OrganizationID)
		if err != nil {
			return err
		}
		if err := checkFits(candidate.Window(), existing, uuid.Nil); err != nil {
			return err
		}
		return tx.CreateShift(ctx, candidate)
	})
	if err != nil {
		return nil, err
	}
	return candidate, nil
}

// Update applies a partial change and re-validates the result against every
// other shift of the organization.
func (r *Registry) Update(ctx context.Context, actor model.Actor, id uuid.UUID, in UpdateInput) (*model.Shift, error) {
	current, err := r.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	var updated *model.Shift
	err = r.store.WithShiftLock(ctx, current.OrganizationID, func(tx store.ShiftTx) error {
		existing, err := tx.ListShifts(ctx, current.OrganizationID)
		if err != nil {
			return err
		}

		// Re-read under the lock; the shift may have changed or vanished.
		idx := -1
		for i := range existing {
			if existing[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("shift %s: %w", id, ErrNotFound)
		}

		next := existing[idx]
		if in.ShiftType != nil {
			next.ShiftType = *in.ShiftType
		}
		if in.Start != nil {
			next.StartTime = *in.Start
		}
		if in.End != nil {
			next.EndTime = *in.End
		}
		if err := validateFields(next.ShiftType, next.StartTime, next.EndTime); err != nil {
			return err
		}
		if err := checkFits(next.Window(), existing, id); err != nil {
			return err
		}
		if err := tx.SaveShift(ctx, &next); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the shift. Metric rows computed for it are kept.
func (r *Registry) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) (bool, error) {
	if _, err := r.owned(ctx, actor, id); err != nil {
		return false, err
	}
	return r.store.DeleteShift(ctx, id)
}

func (r *Registry) owned(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Shift, error) {
	s, err := r.store.GetShift(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("shift %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	if s.OrganizationID != actor.OrganizationID {
		return nil, fmt.Errorf("shift %s: %w", id, ErrNotAuthorized)
	}
	return s, nil
}

func validateFields(st model.ShiftType, start, end shifttime.Minutes) error {
	if _, err := model.ParseShiftType(string(st)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !start.Valid() || !end.Valid() {
		return fmt.Errorf("%w: time of day out of range", ErrInvalidInput)
	}
	return nil
}

// checkFits tests the candidate window against others, skipping the shift with
// id exclude.
func checkFits(candidate shifttime.Window, others []model.Shift, exclude uuid.UUID) error {
	windows := make([]shifttime.Window, 0, len(others)+1)
	for _, o := range others {
		if o.ID == exclude {
			continue
		}
		if candidate.Overlaps(o.Window()) {
			return fmt.Errorf("%w: %s-%s intersects %s shift %s-%s",
				ErrOverlap, candidate.Start, candidate.End, o.ShiftType, o.StartTime, o.EndTime)
		}
		windows = append(windows, o.Window())
	}
	windows = append(windows, candidate)

	if total := shifttime.TotalDuration(windows); total > shifttime.MinutesPerDay {
		return fmt.Errorf("%w: %d minutes", ErrDurationExceeded, total)
	}
	return nil
}
