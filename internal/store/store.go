package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"machine-efficiency-backend/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ShiftTx is the shift surface available inside a serialized shift transaction.
type ShiftTx interface {
	ListShifts(ctx context.Context, orgID int64) ([]model.Shift, error)
	CreateShift(ctx context.Context, shift *model.Shift) error
	SaveShift(ctx context.Context, shift *model.Shift) error
}

// Store defines the interface for all database operations.
type Store interface {
	ShiftTx
	GetShift(ctx context.Context, id uuid.UUID) (*model.Shift, error)
	DeleteShift(ctx context.Context, id uuid.UUID) (bool, error)
	// WithShiftLock runs fn in one transaction while holding the organization's
	// shift lock, so read-validate-write sequences cannot interleave.
	WithShiftLock(ctx context.Context, orgID int64, fn func(tx ShiftTx) error) error

	UpsertMachineMetric(ctx context.Context, metric *model.MachineMetric) error
	ListMachineMetrics(ctx context.Context, q MetricQuery) ([]MetricRow, int64, error)
	ListMetricHistory(ctx context.Context, orgID int64, deviceID string, limit int) ([]model.MachineMetric, error)

	ListOrganizations(ctx context.Context) ([]model.Organization, error)
	GetOrganization(ctx context.Context, id int64) (*model.Organization, error)
	ListApprovedActiveDevices(ctx context.Context, orgID int64) ([]model.Device, error)
	ListObservedDevices(ctx context.Context) ([]ObservedDevice, error)
	RegisterPendingDevices(ctx context.Context, devices []ObservedDevice, now time.Time) (int64, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db    *gorm.DB
	locks *orgLocks
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, locks: newOrgLocks()}
}

// orgLocks hands out one mutex per organization.
type orgLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newOrgLocks() *orgLocks {
	return &orgLocks{locks: make(map[int64]*sync.Mutex)}
}

func (l *orgLocks) get(orgID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[orgID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[orgID] = lock
	}
	return lock
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
