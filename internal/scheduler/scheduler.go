// Package scheduler periodically recomputes machine metrics for every
// organization's active shift.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"machine-efficiency-backend/internal/logging"
	"machine-efficiency-backend/internal/model"
)

var (
	ErrAlreadyStarted   = errors.New("scheduler already started")
	ErrOrganizationBusy = errors.New("organization pass already in progress")
	ErrStopped          = errors.New("scheduler stopped")
)

// Resolver finds an organization's active shift.
type Resolver interface {
	Resolve(ctx context.Context, orgID int64, now time.Time) (*model.Shift, error)
}

// Directory lists the organizations and devices to compute.
type Directory interface {
	ListOrganizations(ctx context.Context) ([]model.Organization, error)
	ListApprovedActiveDevices(ctx context.Context, orgID int64) ([]model.Device, error)
}

// Aggregator computes one device's metric row.
type Aggregator interface {
	ComputeForDevice(ctx context.Context, device model.Device, s model.Shift, now time.Time) (*model.MachineMetric, error)
}

// Options tunes the scheduler. Zero values fall back to defaults.
type Options struct {
	Interval          time.Duration
	OrgConcurrency    int
	DeviceConcurrency int
	DeviceTimeout     time.Duration
	DefaultLocation   *time.Location
	Clock             Clock
}

func (o *Options) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = time.Minute
	}
	if o.OrgConcurrency <= 0 {
		o.OrgConcurrency = 4
	}
	if o.DeviceConcurrency <= 0 {
		o.DeviceConcurrency = 8
	}
	if o.DeviceTimeout <= 0 {
		o.DeviceTimeout = 30 * time.Second
	}
	if o.DefaultLocation == nil {
		o.DefaultLocation = time.UTC
	}
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
}

// Scheduler drives metric passes on a fixed interval.
type Scheduler struct {
	opts       Options
	resolver   Resolver
	directory  Directory
	aggregator Aggregator
	logger     *zap.Logger
	pool       *orgPool

	ticking atomic.Bool
	ticks   sync.WaitGroup

	mu       sync.Mutex
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	stopping chan struct{}
	stopOnce sync.Once
	loopDone chan struct{}
}

func New(resolver Resolver, directory Directory, aggregator Aggregator, opts Options, logger *zap.Logger) *Scheduler {
	opts.applyDefaults()
	s := &Scheduler{
		opts:       opts,
		resolver:   resolver,
		directory:  directory,
		aggregator: aggregator,
		logger:     logger,
		stopping:   make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
	s.pool = newOrgPool(opts.OrgConcurrency, func(ctx context.Context, org model.Organization, now time.Time) {
		if s.stopRequested() {
			return
		}
		_ = s.pass(ctx, org, now)
	}, logger)
	return s
}

// Start launches the ticker loop. It returns immediately. A scheduler cannot
// be restarted once Stop has been called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	ticker := s.opts.Clock.NewTicker(s.opts.Interval)
	go func() {
		defer close(s.loopDone)
		defer ticker.Stop()
		s.logger.Info("metrics scheduler started",
			zap.Duration("interval", s.opts.Interval),
			zap.Int("org_concurrency", s.opts.OrgConcurrency))
		for {
			select {
			case <-runCtx.Done():
				return
			case <-s.stopping:
				return
			case <-ticker.C():
				s.handOff(runCtx)
			}
		}
	}()
	return nil
}

// Stop halts the ticker, stops starting new device computations and waits for
// the ones in flight. It gives up when ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.stopped = true
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stopping) })
	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		<-s.loopDone
		s.cancel()
		s.ticks.Wait()
		s.pool.wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("metrics scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handOff runs a tick off the ticker goroutine. A tick that arrives while the
// previous one is still listing organizations is dropped.
func (s *Scheduler) handOff(ctx context.Context) {
	if !s.ticking.CompareAndSwap(false, true) {
		s.logger.Warn("previous tick still dispatching, skipping")
		return
	}
	s.ticks.Add(1)
	go func() {
		defer s.ticks.Done()
		defer s.ticking.Store(false)
		s.TickOnce(ctx)
	}()
}

// TickOnce starts a pass for every organization. Organizations whose previous
// pass has not finished are skipped.
func (s *Scheduler) TickOnce(ctx context.Context) {
	orgs, err := s.directory.ListOrganizations(ctx)
	if err != nil {
		s.logger.Error("failed to list organizations", zap.Error(err))
		return
	}

	now := s.opts.Clock.Now()
	for _, org := range orgs {
		if !s.pool.dispatch(ctx, org, now) {
			logging.WithOrganization(s.logger, org.ID).Info("previous pass still running, skipping tick")
		}
	}
}

// RunOrganization runs one pass synchronously. It returns ErrOrganizationBusy
// if a pass for the organization is already pending or running.
func (s *Scheduler) RunOrganization(ctx context.Context, org model.Organization, now time.Time) error {
	if !s.pool.acquire(org.ID) {
		return ErrOrganizationBusy
	}
	defer s.pool.release(org.ID)
	return s.pass(ctx, org, now)
}

func (s *Scheduler) pass(ctx context.Context, org model.Organization, now time.Time) error {
	log := logging.WithOrganization(s.logger, org.ID)
	local := now.In(org.Location(s.opts.DefaultLocation))

	active, err := s.resolver.Resolve(ctx, org.ID, local)
	if err != nil {
		log.Error("failed to resolve active shift", zap.Error(err))
		return err
	}
	if active == nil {
		log.Debug("no active shift")
		return nil
	}
	log = log.With(zap.String("shift_id", active.ID.String()))

	devices, err := s.directory.ListApprovedActiveDevices(ctx, org.ID)
	if err != nil {
		log.Error("failed to list devices", zap.Error(err))
		return err
	}
	if len(devices) == 0 {
		return nil
	}

	// In-flight upserts must survive Stop. Each device gets its own deadline.
	work := context.WithoutCancel(ctx)
	var (
		g       errgroup.Group
		failed  atomic.Int32
		skipped atomic.Int32
	)
	g.SetLimit(s.opts.DeviceConcurrency)

	for _, device := range devices {
		g.Go(func() error {
			if s.stopRequested() {
				skipped.Add(1)
				return nil
			}
			dctx, cancel := context.WithTimeout(work, s.opts.DeviceTimeout)
			defer cancel()
			if _, err := s.aggregator.ComputeForDevice(dctx, device, *active, local); err != nil {
				failed.Add(1)
				log.Warn("failed to compute device metrics",
					zap.String("device_id", device.ID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info("metrics pass complete",
		zap.Int("devices", len(devices)),
		zap.Int32("failed", failed.Load()),
		zap.Int32("skipped", skipped.Load()))
	return nil
}

func (s *Scheduler) stopRequested() bool {
	select {
	case <-s.stopping:
		return true
	default:
		return false
	}
}
