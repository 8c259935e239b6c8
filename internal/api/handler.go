package api

import (
	"time"

	"go.uber.org/zap"

	"machine-efficiency-backend/internal/shift"
	"machine-efficiency-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	registry   *shift.Registry
	resolver   *shift.Resolver
	defaultLoc *time.Location
	logger     *zap.Logger
	now        func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, defaultLoc *time.Location, logger *zap.Logger) *Handler {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &Handler{
		store:      s,
		registry:   shift.NewRegistry(s),
		resolver:   shift.NewResolver(s),
		defaultLoc: defaultLoc,
		logger:     logger,
		now:        time.Now,
	}
}
