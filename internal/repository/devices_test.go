package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolveContext_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDeviceRepository(db, zap.NewNop())

	rows := sqlmock.NewRows([]string{
		"vehicle_id", "company_id", "owner_user_id", "plate_number", "status",
	}).AddRow(int64(42), int64(3), "", "ABC-123", "ACTIVE")

	mock.ExpectQuery(`JOIN vehicles`).
		WithArgs("dev-001").
		WillReturnRows(rows)

	dc, err := repo.ResolveContext(context.Background(), "dev-001")
	require.NoError(t, err)

	assert.Equal(t, int64(42), dc.VehicleID)
	require.NotNil(t, dc.CompanyID)
	assert.Equal(t, int64(3), *dc.CompanyID)
	assert.Equal(t, "ABC-123", dc.PlateNumber)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveContext_UnknownDevice(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDeviceRepository(db, zap.NewNop())

	mock.ExpectQuery(`JOIN vehicles`).
		WithArgs("ghost-device").
		WillReturnError(sql.ErrNoRows)

	dc, err := repo.ResolveContext(context.Background(), "ghost-device")
	assert.Nil(t, dc)
	assert.ErrorIs(t, err, ErrDeviceUnknown)

	require.NoError(t, mock.ExpectationsWereMet())
}
