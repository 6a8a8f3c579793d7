package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aegis-safety/internal/consumer"
	"aegis-safety/internal/livestate"
	"aegis-safety/internal/models"
	"aegis-safety/internal/repository"
	"aegis-safety/internal/resolver"
)

type ingestEnv struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	hash     *fakeHash
	push     *fakePush
	ingestor *TelemetryIngestor
}

func setupIngestor(t *testing.T) *ingestEnv {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	logger := zap.NewNop()

	vehicleRepo := repository.NewVehicleRepository(db, logger)
	deviceRepo := repository.NewDeviceRepository(db, logger)
	driverRepo := repository.NewDriverRepository(db, logger)
	telemetryRepo := repository.NewTelemetryRepository(db, logger)

	kv := newFakeKV()
	hash := newFakeHash()
	push := &fakePush{}

	res := resolver.New(deviceRepo, vehicleRepo, driverRepo, kv, logger, 0, 0)
	live := livestate.New(hash, vehicleRepo, logger, 0, 0)

	return &ingestEnv{
		db:       db,
		mock:     mock,
		hash:     hash,
		push:     push,
		ingestor: NewTelemetryIngestor(res, live, telemetryRepo, push, logger),
	}
}

func TestIngest_UpdatesLiveStateAndPersists(t *testing.T) {
	env := setupIngestor(t)
	defer env.db.Close()

	env.mock.ExpectQuery(`JOIN vehicles`).WithArgs("dev-001").WillReturnRows(deviceRows(42, 3))
	env.mock.ExpectExec(`INSERT INTO telemetry_events`).WillReturnResult(sqlmock.NewResult(1, 1))

	msg := models.TelemetryMessage{
		DeviceID:  "dev-001",
		Timestamp: "Dec06_2025_04h03m11s",
		Latitude:  30.05,
		Longitude: 31.23,
		SpeedKmh:  64.5,
		EventType: "gps",
	}
	require.NoError(t, env.ingestor.Ingest(context.Background(), msg))

	// 实时状态整键覆盖写，带车牌等完整字段
	entry := env.hash.data[livestate.Key(42)]
	require.NotNil(t, entry)
	assert.Equal(t, "ABC-123", entry["PlateNumber"])
	assert.Equal(t, "30.05", entry["Latitude"])
	assert.Equal(t, "64.5", entry["SpeedKmh"])

	// 仪表盘收到遥测推送
	require.Len(t, env.push.telemetry, 1)
	assert.Equal(t, "company_3", env.push.groups[0])
	assert.Equal(t, int64(42), env.push.telemetry[0].VehicleID)

	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestIngest_UnknownDeviceFails(t *testing.T) {
	env := setupIngestor(t)
	defer env.db.Close()

	env.mock.ExpectQuery(`JOIN vehicles`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	err := env.ingestor.Ingest(context.Background(), models.TelemetryMessage{DeviceID: "ghost"})
	assert.ErrorIs(t, err, repository.ErrDeviceUnknown)

	assert.Empty(t, env.push.telemetry)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestTelemetryProcessor_Outcomes(t *testing.T) {
	env := setupIngestor(t)
	defer env.db.Close()

	processor := NewTelemetryProcessor(env.ingestor, zap.NewNop())

	outcome, err := processor.Process(context.Background(), []byte(`not json`))
	assert.Equal(t, consumer.OutcomeRetry, outcome)
	assert.Error(t, err)

	env.mock.ExpectQuery(`JOIN vehicles`).WithArgs("dev-001").WillReturnRows(deviceRows(42, 3))
	env.mock.ExpectExec(`INSERT INTO telemetry_events`).WillReturnResult(sqlmock.NewResult(1, 1))

	outcome, err = processor.Process(context.Background(), []byte(`{"device_id":"dev-001","timestamp":"Dec06_2025_04h03m11s","latitude":30.05,"longitude":31.23,"speed_kmh":64.5,"event_type":"gps"}`))
	require.NoError(t, err)
	assert.Equal(t, consumer.OutcomeAck, outcome)

	require.NoError(t, env.mock.ExpectationsWereMet())
}
