package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"machine-efficiency-backend/internal/model"
)

// orgPool runs each organization's pass on its own goroutine. At most one pass
// per organization is pending or running, and at most size passes run at once.
type orgPool struct {
	sem    *semaphore.Weighted
	run    func(ctx context.Context, org model.Organization, now time.Time)
	logger *zap.Logger

	mu       sync.Mutex
	inflight map[int64]struct{}
	wg       sync.WaitGroup
}

func newOrgPool(size int, run func(ctx context.Context, org model.Organization, now time.Time), logger *zap.Logger) *orgPool {
	return &orgPool{
		sem:      semaphore.NewWeighted(int64(size)),
		run:      run,
		logger:   logger,
		inflight: make(map[int64]struct{}),
	}
}

// dispatch starts a pass without blocking. It reports false when the
// organization's previous pass has not finished.
func (p *orgPool) dispatch(ctx context.Context, org model.Organization, now time.Time) bool {
	if !p.acquire(org.ID) {
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.release(org.ID)

		if err := p.sem.Acquire(ctx, 1); err != nil {
			p.logger.Debug("pass abandoned before start", zap.Int64("organization_id", org.ID), zap.Error(err))
			return
		}
		defer p.sem.Release(1)
		p.run(ctx, org, now)
	}()
	return true
}

func (p *orgPool) acquire(orgID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[orgID]; busy {
		return false
	}
	p.inflight[orgID] = struct{}{}
	return true
}

func (p *orgPool) release(orgID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, orgID)
}

func (p *orgPool) wait() {
	p.wg.Wait()
}
