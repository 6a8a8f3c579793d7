package resolver

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aegis-safety/internal/cache"
	"aegis-safety/internal/repository"
)

// fakeKV 仅用于单元测试
type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeKV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value
	return true, nil
}

func setupResolver(t *testing.T) (*Resolver, sqlmock.Sqlmock, *fakeKV, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	kv := newFakeKV()
	r := New(
		repository.NewDeviceRepository(db, logger),
		repository.NewVehicleRepository(db, logger),
		repository.NewDriverRepository(db, logger),
		kv,
		logger,
		time.Hour,
		10*time.Minute,
	)
	return r, mock, kv, db
}

func TestResolveDevice_MissThenHit(t *testing.T) {
	r, mock, kv, db := setupResolver(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"vehicle_id", "company_id", "owner_user_id", "plate_number", "status",
	}).AddRow(int64(42), int64(3), "", "ABC-123", "ACTIVE")

	// 只期望一次数据库查询
	mock.ExpectQuery(`JOIN vehicles`).
		WithArgs("dev-001").
		WillReturnRows(rows)

	ctx := context.Background()

	dc, err := r.ResolveDevice(ctx, "dev-001")
	require.NoError(t, err)
	assert.Equal(t, int64(42), dc.VehicleID)
	assert.Contains(t, kv.data, "device:dev-001:map")

	// 第二次走缓存，不触发新的查询
	dc, err = r.ResolveDevice(ctx, "dev-001")
	require.NoError(t, err)
	assert.Equal(t, "ABC-123", dc.PlateNumber)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveDevice_Unknown(t *testing.T) {
	r, mock, _, db := setupResolver(t)
	defer db.Close()

	mock.ExpectQuery(`JOIN vehicles`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := r.ResolveDevice(context.Background(), "ghost")
	assert.ErrorIs(t, err, repository.ErrDeviceUnknown)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetVehicle_CacheAside(t *testing.T) {
	r, mock, kv, db := setupResolver(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "plate_number", "model", "status", "current_driver_id", "company_id", "owner_user_id",
	}).AddRow(int64(42), "ABC-123", "Hilux", "ACTIVE", int64(9), int64(3), "")

	mock.ExpectQuery(`FROM vehicles`).
		WithArgs(int64(42)).
		WillReturnRows(rows)

	ctx := context.Background()

	v, err := r.GetVehicle(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, v.CurrentDriverID)
	assert.Equal(t, int64(9), *v.CurrentDriverID)
	assert.Contains(t, kv.data, "vehicle:42:details")

	v, err = r.GetVehicle(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "ABC-123", v.PlateNumber)

	require.NoError(t, mock.ExpectationsWereMet())
}
