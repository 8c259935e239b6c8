package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"machine-efficiency-backend/internal/shift"
	"machine-efficiency-backend/internal/store"
)

var errOrganizationNotFound = errors.New("organization not found")

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shift.ErrOverlap):
		return http.StatusConflict
	case errors.Is(err, shift.ErrDurationExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shift.ErrNotFound), errors.Is(err, errOrganizationNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shift.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, shift.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
