package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"machine-efficiency-backend/internal/metrics"
	"machine-efficiency-backend/internal/model"
	"machine-efficiency-backend/internal/mw"
	"machine-efficiency-backend/internal/store"
)

const (
	defaultPageSize = 20
	defaultHistory  = 30
)

type metricsQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"pageSize" binding:"omitempty,min=1,max=200"`
	Search   string `form:"search" binding:"max=128"`
}

type historyQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=366"`
}

// metricsPage is the live view: one page of the active shift's rows.
type metricsPage struct {
	Items     []store.MetricRow `json:"items"`
	Total     int64             `json:"total"`
	Page      int               `json:"page"`
	PageSize  int               `json:"pageSize"`
	Shift     *model.Shift      `json:"shift"`
	ShiftDate string            `json:"shiftDate,omitempty"`
}

// ListMachineMetrics handles GET /api/machine-metrics. Only the current shift
// occurrence is listed; past rows stay in storage.
func (h *Handler) ListMachineMetrics(c *gin.Context) {
	var q metricsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = defaultPageSize
	}

	active, local, err := h.activeShift(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	page := metricsPage{Items: []store.MetricRow{}, Page: q.Page, PageSize: q.PageSize}
	if active == nil {
		c.JSON(http.StatusOK, page)
		return
	}

	page.Shift = active
	page.ShiftDate = metrics.ShiftDate(*active, local)

	rows, total, err := h.store.ListMachineMetrics(c.Request.Context(), store.MetricQuery{
		OrganizationID: active.OrganizationID,
		ShiftID:        active.ID,
		ShiftDate:      page.ShiftDate,
		Search:         q.Search,
		Page:           q.Page,
		PageSize:       q.PageSize,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	page.Items = rows
	page.Total = total
	c.JSON(http.StatusOK, page)
}

// GetMetricHistory handles GET /api/machine-metrics/:deviceId/history.
func (h *Handler) GetMetricHistory(c *gin.Context) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultHistory
	}

	actor, _ := mw.ActorFrom(c)
	rows, err := h.store.ListMetricHistory(c.Request.Context(), actor.OrganizationID, c.Param("deviceId"), q.Limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}
