package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"machine-efficiency-backend/internal/model"
)

type fakeClock struct {
	now   time.Time
	ticks chan time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, ticks: make(chan time.Time)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) NewTicker(d time.Duration) Ticker { return fakeTicker{c: c.ticks} }

func (c *fakeClock) tick() { c.ticks <- c.now }

type fakeTicker struct{ c chan time.Time }

func (t fakeTicker) C() <-chan time.Time { return t.c }
func (t fakeTicker) Stop()               {}

type fakeDirectory struct {
	orgs     []model.Organization
	devices  map[int64][]model.Device
	orgErr   error
	listGate chan struct{}

	listCalls atomic.Int32
}

func (d *fakeDirectory) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	d.listCalls.Add(1)
	if d.listGate != nil {
		<-d.listGate
	}
	return d.orgs, d.orgErr
}

func (d *fakeDirectory) ListApprovedActiveDevices(ctx context.Context, orgID int64) ([]model.Device, error) {
	return d.devices[orgID], nil
}

type fakeResolver struct {
	mu      sync.Mutex
	shifts  map[int64]*model.Shift
	errs    map[int64]error
	lastLoc map[int64]*time.Location
}

func (r *fakeResolver) Resolve(ctx context.Context, orgID int64, now time.Time) (*model.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastLoc == nil {
		r.lastLoc = make(map[int64]*time.Location)
	}
	r.lastLoc[orgID] = now.Location()
	return r.shifts[orgID], r.errs[orgID]
}

// fakeAggregator records calls. When gate is set, every call waits on it.
// Devices listed in hang block until their context is done.
type fakeAggregator struct {
	gate  chan struct{}
	hang  map[string]bool
	fail  map[string]bool
	delay time.Duration

	mu       sync.Mutex
	computed []string
	ctxErrs  []error

	running    atomic.Int32
	maxRunning atomic.Int32
	entered    atomic.Int32
}

func (a *fakeAggregator) ComputeForDevice(ctx context.Context, device model.Device, s model.Shift, now time.Time) (*model.MachineMetric, error) {
	n := a.running.Add(1)
	defer a.running.Add(-1)
	for {
		prev := a.maxRunning.Load()
		if n <= prev || a.maxRunning.CompareAndSwap(prev, n) {
			break
		}
	}
	a.entered.Add(1)

	if a.hang[device.ID] {
		<-ctx.Done()
		a.mu.Lock()
		defer a.mu.Unlock()
		a.ctxErrs = append(a.ctxErrs, ctx.Err())
		return nil, ctx.Err()
	}
	if a.gate != nil {
		<-a.gate
	}
	if a.delay > 0 {
		time.Sleep(a.delay)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctxErrs = append(a.ctxErrs, ctx.Err())
	if a.fail[device.ID] {
		return nil, errors.New("telemetry unavailable")
	}
	a.computed = append(a.computed, device.ID)
	return &model.MachineMetric{DeviceID: device.ID}, nil
}

func (a *fakeAggregator) computedIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.computed...)
}

func devices(orgID int64, ids ...string) []model.Device {
	out := make([]model.Device, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Device{ID: id, OrganizationID: orgID})
	}
	return out
}

func activeShift() *model.Shift {
	return &model.Shift{ID: uuid.New(), ShiftType: model.ShiftTypeDay, StartTime: 0, EndTime: 1439}
}

func TestScheduler_RunOrganization(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name             string
		shift            *model.Shift
		resolveErr       error
		devices          []model.Device
		fail             map[string]bool
		expectedComputed []string
		expectedErr      bool
	}{
		{
			name:             "Computes every device of the active shift",
			shift:            activeShift(),
			devices:          devices(1, "a", "b", "c"),
			expectedComputed: []string{"a", "b", "c"},
		},
		{
			name:    "No active shift is a no-op",
			devices: devices(1, "a"),
		},
		{
			name:  "No devices is a no-op",
			shift: activeShift(),
		},
		{
			name:        "Resolver failure is returned",
			resolveErr:  errors.New("store unavailable"),
			devices:     devices(1, "a"),
			expectedErr: true,
		},
		{
			name:             "A failing device does not stop the others",
			shift:            activeShift(),
			devices:          devices(1, "a", "broken", "c"),
			fail:             map[string]bool{"broken": true},
			expectedComputed: []string{"a", "c"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := &fakeDirectory{devices: map[int64][]model.Device{1: tc.devices}}
			res := &fakeResolver{
				shifts: map[int64]*model.Shift{1: tc.shift},
				errs:   map[int64]error{1: tc.resolveErr},
			}
			agg := &fakeAggregator{fail: tc.fail}
			s := New(res, dir, agg, Options{}, zap.NewNop())

			err := s.RunOrganization(context.Background(), model.Organization{ID: 1}, now)
			if tc.expectedErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.ElementsMatch(t, tc.expectedComputed, agg.computedIDs())
		})
	}
}

func TestScheduler_UsesOrganizationTimezone(t *testing.T) {
	res := &fakeResolver{}
	s := New(res, &fakeDirectory{}, &fakeAggregator{}, Options{DefaultLocation: time.UTC}, zap.NewNop())
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RunOrganization(context.Background(), model.Organization{ID: 1, Timezone: "Asia/Tokyo"}, now))
	require.NoError(t, s.RunOrganization(context.Background(), model.Organization{ID: 2}, now))

	assert.Equal(t, "Asia/Tokyo", res.lastLoc[1].String())
	assert.Equal(t, time.UTC, res.lastLoc[2])
}

func TestScheduler_BoundsDeviceConcurrency(t *testing.T) {
	dir := &fakeDirectory{devices: map[int64][]model.Device{1: devices(1, "a", "b", "c", "d", "e", "f")}}
	res := &fakeResolver{shifts: map[int64]*model.Shift{1: activeShift()}}
	agg := &fakeAggregator{delay: 20 * time.Millisecond}
	s := New(res, dir, agg, Options{DeviceConcurrency: 2}, zap.NewNop())

	require.NoError(t, s.RunOrganization(context.Background(), model.Organization{ID: 1}, time.Now()))
	assert.Len(t, agg.computedIDs(), 6)
	assert.LessOrEqual(t, agg.maxRunning.Load(), int32(2))
}

func TestScheduler_TickDrivesAllOrganizations(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	dir := &fakeDirectory{
		orgs: []model.Organization{{ID: 1}, {ID: 2}, {ID: 3}},
		devices: map[int64][]model.Device{
			1: devices(1, "a1", "a2"),
			2: devices(2, "b1"),
			3: devices(3, "c1"),
		},
	}
	res := &fakeResolver{
		shifts: map[int64]*model.Shift{1: activeShift(), 3: activeShift()},
		errs:   map[int64]error{3: errors.New("store unavailable")},
	}
	agg := &fakeAggregator{}
	s := New(res, dir, agg, Options{Clock: clock, OrgConcurrency: 2}, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.ErrorIs(t, s.Start(ctx), ErrAlreadyStarted)

	clock.tick()
	assert.Eventually(t, func() bool { return len(agg.computedIDs()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"a1", "a2"}, agg.computedIDs())

	require.NoError(t, s.Stop(ctx))
}

func TestScheduler_SerializesPassesPerOrganization(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	org := model.Organization{ID: 1}
	dir := &fakeDirectory{
		orgs:    []model.Organization{org},
		devices: map[int64][]model.Device{1: devices(1, "a")},
	}
	res := &fakeResolver{shifts: map[int64]*model.Shift{1: activeShift()}}
	agg := &fakeAggregator{gate: make(chan struct{})}
	s := New(res, dir, agg, Options{Clock: clock}, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	clock.tick()
	require.Eventually(t, func() bool { return agg.entered.Load() == 1 }, time.Second, 5*time.Millisecond)

	// The first pass is blocked; further ticks and on-demand runs are refused.
	clock.tick()
	clock.tick()
	assert.ErrorIs(t, s.RunOrganization(ctx, org, clock.Now()), ErrOrganizationBusy)
	assert.Equal(t, int32(1), agg.entered.Load())

	close(agg.gate)
	require.Eventually(t, func() bool { return len(agg.computedIDs()) == 1 }, time.Second, 5*time.Millisecond)

	// Once released, the next tick runs again.
	require.Eventually(t, func() bool {
		return s.RunOrganization(ctx, org, clock.Now()) == nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), agg.maxRunning.Load())

	require.NoError(t, s.Stop(ctx))
}

func TestScheduler_OrganizationsRunConcurrently(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	dir := &fakeDirectory{
		orgs: []model.Organization{{ID: 1}, {ID: 2}},
		devices: map[int64][]model.Device{
			1: devices(1, "a"),
			2: devices(2, "b"),
		},
	}
	res := &fakeResolver{shifts: map[int64]*model.Shift{1: activeShift(), 2: activeShift()}}
	agg := &fakeAggregator{gate: make(chan struct{})}
	s := New(res, dir, agg, Options{Clock: clock, OrgConcurrency: 2}, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	clock.tick()

	// Both organizations are inside the aggregator at the same time.
	assert.Eventually(t, func() bool { return agg.entered.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(agg.gate)

	require.NoError(t, s.Stop(ctx))
	assert.ElementsMatch(t, []string{"a", "b"}, agg.computedIDs())
}

func TestScheduler_StopWaitsForInFlightDevices(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	dir := &fakeDirectory{
		orgs:    []model.Organization{{ID: 1}},
		devices: map[int64][]model.Device{1: devices(1, "a", "b", "c")},
	}
	res := &fakeResolver{shifts: map[int64]*model.Shift{1: activeShift()}}
	agg := &fakeAggregator{gate: make(chan struct{})}
	s := New(res, dir, agg, Options{Clock: clock, DeviceConcurrency: 1}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	clock.tick()
	require.Eventually(t, func() bool { return agg.entered.Load() == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a device computation was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(agg.gate)
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Stop")
	}

	// The in-flight device finished with a live context; the rest were not started.
	assert.Equal(t, []string{"a"}, agg.computedIDs())
	assert.Equal(t, []error{nil}, agg.ctxErrs)
}

func TestScheduler_StopTimesOut(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	dir := &fakeDirectory{
		orgs:    []model.Organization{{ID: 1}},
		devices: map[int64][]model.Device{1: devices(1, "a")},
	}
	res := &fakeResolver{shifts: map[int64]*model.Shift{1: activeShift()}}
	agg := &fakeAggregator{gate: make(chan struct{})}
	defer close(agg.gate)
	s := New(res, dir, agg, Options{Clock: clock}, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	clock.tick()
	require.Eventually(t, func() bool { return agg.entered.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
}

func TestScheduler_StopBeforeStart(t *testing.T) {
	s := New(&fakeResolver{}, &fakeDirectory{}, &fakeAggregator{}, Options{}, zap.NewNop())
	assert.NoError(t, s.Stop(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrStopped)
}

func TestScheduler_StartAfterStop(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	s := New(&fakeResolver{}, &fakeDirectory{}, &fakeAggregator{}, Options{Clock: clock}, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Stop(ctx))
	assert.ErrorIs(t, s.Start(ctx), ErrStopped)
}

func TestScheduler_HungOrganizationDoesNotBlockOthers(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	// 1 and 5 share a residue modulo the concurrency limit.
	dir := &fakeDirectory{
		orgs: []model.Organization{{ID: 1}, {ID: 5}},
		devices: map[int64][]model.Device{
			1: devices(1, "stuck"),
			5: devices(5, "healthy"),
		},
	}
	res := &fakeResolver{shifts: map[int64]*model.Shift{1: activeShift(), 5: activeShift()}}
	agg := &fakeAggregator{hang: map[string]bool{"stuck": true}}
	s := New(res, dir, agg, Options{Clock: clock, OrgConcurrency: 4, DeviceTimeout: time.Hour}, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	clock.tick()
	require.Eventually(t, func() bool { return len(agg.computedIDs()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"healthy"}, agg.computedIDs())

	// Later ticks keep computing the healthy organization while the other hangs.
	for want := 2; want <= 4; want++ {
		require.Eventually(t, func() bool {
			if len(agg.computedIDs()) >= want {
				return true
			}
			clock.tick()
			return len(agg.computedIDs()) >= want
		}, time.Second, 5*time.Millisecond)
	}
	assert.NotContains(t, agg.computedIDs(), "stuck")
}

func TestScheduler_DeviceTimeout(t *testing.T) {
	dir := &fakeDirectory{devices: map[int64][]model.Device{1: devices(1, "stuck", "ok")}}
	res := &fakeResolver{shifts: map[int64]*model.Shift{1: activeShift()}}
	agg := &fakeAggregator{hang: map[string]bool{"stuck": true}}
	s := New(res, dir, agg, Options{DeviceTimeout: 20 * time.Millisecond}, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- s.RunOrganization(context.Background(), model.Organization{ID: 1}, time.Now()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pass did not finish after the device deadline")
	}
	assert.Equal(t, []string{"ok"}, agg.computedIDs())
	assert.Contains(t, agg.ctxErrs, context.DeadlineExceeded)
}

func TestScheduler_SlowListingDoesNotBlockTicker(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	dir := &fakeDirectory{listGate: make(chan struct{})}
	s := New(&fakeResolver{}, dir, &fakeAggregator{}, Options{Clock: clock}, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	clock.tick()
	require.Eventually(t, func() bool { return dir.listCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// The loop keeps receiving ticks while the first listing is blocked, and
	// the overlapping ticks are dropped.
	received := make(chan struct{})
	go func() {
		clock.tick()
		clock.tick()
		close(received)
	}()
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("ticker loop blocked behind a slow listing")
	}
	assert.Equal(t, int32(1), dir.listCalls.Load())

	close(dir.listGate)
	require.NoError(t, s.Stop(ctx))
}

func TestScheduler_ListOrganizationsFailure(t *testing.T) {
	agg := &fakeAggregator{}
	s := New(&fakeResolver{}, &fakeDirectory{orgErr: errors.New("down")}, agg, Options{}, zap.NewNop())
	s.TickOnce(context.Background())
	assert.Empty(t, agg.computedIDs())
}
