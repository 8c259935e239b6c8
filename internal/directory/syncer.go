// Package directory keeps the device directory in step with telemetry.
package directory

import (
	"context"
	"time"

	"go.uber.org/zap"

	"machine-efficiency-backend/internal/store"
)

// Store is the persistence the syncer needs.
type Store interface {
	ListObservedDevices(ctx context.Context) ([]store.ObservedDevice, error)
	RegisterPendingDevices(ctx context.Context, devices []store.ObservedDevice, now time.Time) (int64, error)
}

// Syncer promotes device identifiers seen in telemetry into the directory as
// pending devices awaiting approval.
type Syncer struct {
	store    Store
	interval time.Duration
	enabled  bool
	logger   *zap.Logger
	now      func() time.Time
}

func NewSyncer(s Store, enabled bool, interval time.Duration, logger *zap.Logger) *Syncer {
	return &Syncer{
		store:    s,
		interval: interval,
		enabled:  enabled,
		logger:   logger,
		now:      time.Now,
	}
}

// Run syncs once, then again every interval until ctx is done.
func (s *Syncer) Run(ctx context.Context) {
	if !s.enabled {
		s.logger.Info("device directory sync is disabled, not starting")
		return
	}
	s.logger.Info("starting device directory sync", zap.Duration("interval", s.interval))

	s.SyncOnce(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("device directory sync shutting down")
			return
		case <-timer.C:
			s.SyncOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

// SyncOnce registers every unknown device. It is idempotent.
func (s *Syncer) SyncOnce(ctx context.Context) int64 {
	observed, err := s.store.ListObservedDevices(ctx)
	if err != nil {
		s.logger.Error("failed to list observed devices", zap.Error(err))
		return 0
	}
	if len(observed) == 0 {
		s.logger.Debug("directory sync finished: no telemetry devices")
		return 0
	}

	added, err := s.store.RegisterPendingDevices(ctx, observed, s.now().UTC())
	if err != nil {
		s.logger.Error("failed to register pending devices", zap.Error(err))
		return 0
	}
	s.logger.Info("directory sync finished",
		zap.Int("observed", len(observed)),
		zap.Int64("added", added))
	return added
}
