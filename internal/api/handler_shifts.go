package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"machine-efficiency-backend/internal/metrics"
	"machine-efficiency-backend/internal/model"
	"machine-efficiency-backend/internal/mw"
	"machine-efficiency-backend/internal/shift"
	"machine-efficiency-backend/internal/shifttime"
	"machine-efficiency-backend/internal/store"
)

type createShiftRequest struct {
	ShiftType string `json:"shiftType" binding:"required,oneof=DAY NIGHT EXTRA"`
	StartTime string `json:"startTime" binding:"required,clock"`
	EndTime   string `json:"endTime" binding:"required,clock"`
}

type updateShiftRequest struct {
	ShiftType *string `json:"shiftType" binding:"omitempty,oneof=DAY NIGHT EXTRA"`
	StartTime *string `json:"startTime" binding:"omitempty,clock"`
	EndTime   *string `json:"endTime" binding:"omitempty,clock"`
}

type activeShiftResponse struct {
	Shift     *model.Shift `json:"shift"`
	ShiftDate string       `json:"shiftDate,omitempty"`
}

// ListShifts handles GET /api/shifts.
func (h *Handler) ListShifts(c *gin.Context) {
	actor, _ := mw.ActorFrom(c)
	shifts, err := h.registry.List(c.Request.Context(), actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": shifts})
}

// CreateShift handles POST /api/shifts.
func (h *Handler) CreateShift(c *gin.Context) {
	var req createShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Binding already validated both clocks.
	start, _ := shifttime.Parse(req.StartTime)
	end, _ := shifttime.Parse(req.EndTime)

	actor, _ := mw.ActorFrom(c)
	created, err := h.registry.Create(c.Request.Context(), actor, shift.CreateInput{
		ShiftType: model.ShiftType(req.ShiftType),
		Start:     start,
		End:       end,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateShift handles PATCH /api/shifts/:id.
func (h *Handler) UpdateShift(c *gin.Context) {
	id, ok := shiftID(c)
	if !ok {
		return
	}

	var req updateShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var in shift.UpdateInput
	if req.ShiftType != nil {
		st := model.ShiftType(*req.ShiftType)
		in.ShiftType = &st
	}
	if req.StartTime != nil {
		start, _ := shifttime.Parse(*req.StartTime)
		in.Start = &start
	}
	if req.EndTime != nil {
		end, _ := shifttime.Parse(*req.EndTime)
		in.End = &end
	}

	actor, _ := mw.ActorFrom(c)
	updated, err := h.registry.Update(c.Request.Context(), actor, id, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteShift handles DELETE /api/shifts/:id.
func (h *Handler) DeleteShift(c *gin.Context) {
	id, ok := shiftID(c)
	if !ok {
		return
	}

	actor, _ := mw.ActorFrom(c)
	deleted, err := h.registry.Delete(c.Request.Context(), actor, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// GetActiveShift handles GET /api/shifts/active.
func (h *Handler) GetActiveShift(c *gin.Context) {
	active, local, err := h.activeShift(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := activeShiftResponse{Shift: active}
	if active != nil {
		resp.ShiftDate = metrics.ShiftDate(*active, local)
	}
	c.JSON(http.StatusOK, resp)
}

func shiftID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid shift id"})
		return uuid.Nil, false
	}
	return id, true
}

// activeShift resolves the caller organization's shift at the current instant,
// returning that instant in the organization's timezone.
func (h *Handler) activeShift(c *gin.Context) (*model.Shift, time.Time, error) {
	actor, _ := mw.ActorFrom(c)
	ctx := c.Request.Context()

	org, err := h.store.GetOrganization(ctx, actor.OrganizationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, time.Time{}, errOrganizationNotFound
		}
		return nil, time.Time{}, err
	}

	local := h.now().In(org.Location(h.defaultLoc))
	active, err := h.resolver.Resolve(ctx, org.ID, local)
	if err != nil {
		return nil, time.Time{}, err
	}
	return active, local, nil
}
