package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockVehiclesDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *VehicleRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewVehicleRepository(db, zap.NewNop())
	return db, mock, repo
}

func TestGetVehicle_Success(t *testing.T) {
	db, mock, repo := setupMockVehiclesDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "plate_number", "model", "status", "current_driver_id", "company_id", "owner_user_id",
	}).AddRow(int64(42), "ABC-123", "Hilux", "ACTIVE", int64(9), int64(3), "")

	mock.ExpectQuery(`SELECT`).
		WithArgs(int64(42)).
		WillReturnRows(rows)

	v, err := repo.GetVehicle(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, int64(42), v.VehicleID)
	assert.Equal(t, "ABC-123", v.PlateNumber)
	require.NotNil(t, v.CurrentDriverID)
	assert.Equal(t, int64(9), *v.CurrentDriverID)
	require.NotNil(t, v.CompanyID)
	assert.Equal(t, int64(3), *v.CompanyID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetVehicle_NotFound(t *testing.T) {
	db, mock, repo := setupMockVehiclesDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs(int64(999)).
		WillReturnError(sql.ErrNoRows)

	v, err := repo.GetVehicle(context.Background(), 999)
	assert.Nil(t, v)
	assert.ErrorIs(t, err, ErrVehicleNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListFleetPage_CompanyScope(t *testing.T) {
	db, mock, repo := setupMockVehiclesDB(t)
	defer db.Close()

	companyID := int64(3)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM vehicles`).
		WithArgs(companyID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(120))

	mock.ExpectQuery(`SELECT id`).
		WithArgs(companyID, 50, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)).AddRow(int64(5)))

	ids, total, err := repo.ListFleetPage(context.Background(), FleetScope{CompanyID: &companyID}, 2, 50)
	require.NoError(t, err)

	assert.Equal(t, 120, total)
	assert.Equal(t, []int64{7, 5}, ids)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestStateBatch_NoTelemetryDefaults(t *testing.T) {
	db, mock, repo := setupMockVehiclesDB(t)
	defer db.Close()

	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "plate_number", "status", "latitude", "longitude", "speed_kmh", "timestamp",
	}).
		AddRow(int64(1), "AAA-111", "ACTIVE", 30.05, 31.23, 64.5, ts).
		AddRow(int64(2), "BBB-222", "ACTIVE", nil, nil, nil, nil)

	mock.ExpectQuery(`LEFT JOIN LATERAL`).
		WillReturnRows(rows)

	states, err := repo.LatestStateBatch(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, states, 2)

	assert.Equal(t, 30.05, states[0].Latitude)
	assert.Equal(t, ts, states[0].LastUpdateUtc)

	// 无遥测记录：坐标/速度为零值，时间回退为当前
	assert.Zero(t, states[1].Latitude)
	assert.Zero(t, states[1].SpeedKmh)
	assert.WithinDuration(t, time.Now().UTC(), states[1].LastUpdateUtc, 5*time.Second)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestStateBatch_EmptyInput(t *testing.T) {
	db, mock, repo := setupMockVehiclesDB(t)
	defer db.Close()

	states, err := repo.LatestStateBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, states)

	require.NoError(t, mock.ExpectationsWereMet())
}
