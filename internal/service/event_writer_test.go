package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aegis-safety/internal/models"
	"aegis-safety/internal/repository"
)

func setupWriter(t *testing.T) (*EventWriter, *fakeFiles, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	files := newFakeFiles()
	writer := NewEventWriter(repository.NewSafetyEventRepository(db, zap.NewNop()), files, zap.NewNop())
	return writer, files, mock, db
}

func validEvent() *models.SafetyEvent {
	driverID := int64(9)
	companyID := int64(3)
	driverImage := "inbox/evt-1-driver.jpg"
	roadImage := "inbox/evt-1-road.jpg"
	return &models.SafetyEvent{
		EventID:         "evt-1",
		Message:         "Drowsiness detected",
		DriverState:     models.DriverStateDrowsy,
		AlertLevel:      models.AlertLevelCritical,
		DriverImagePath: &driverImage,
		RoadImagePath:   &roadImage,
		Timestamp:       time.Date(2025, 12, 6, 4, 3, 11, 0, time.UTC),
		DeviceID:        "dev-001",
		VehicleID:       42,
		DriverID:        &driverID,
		CompanyID:       &companyID,
	}
}

func TestCreate_RelocatesImagesBeforePersisting(t *testing.T) {
	writer, files, mock, db := setupWriter(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO safety_events`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	event := validEvent()
	inserted, err := writer.Create(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, inserted)

	require.NotNil(t, event.DriverImagePath)
	assert.Equal(t, "fleets/3/events/2025/12/06/evt-1-driver.jpg", *event.DriverImagePath)
	require.NotNil(t, event.RoadImagePath)
	assert.Equal(t, "fleets/3/events/2025/12/06/evt-1-road.jpg", *event.RoadImagePath)
	assert.Len(t, files.moves, 2)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_IndividualVehicleUsesDriverFolder(t *testing.T) {
	writer, _, mock, db := setupWriter(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO safety_events`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	event := validEvent()
	event.CompanyID = nil

	_, err := writer.Create(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, "individuals/9/events/2025/12/06/evt-1-driver.jpg", *event.DriverImagePath)
}

func TestCreate_MissingImageSourceTolerated(t *testing.T) {
	writer, files, mock, db := setupWriter(t)
	defer db.Close()

	files.missing["inbox/evt-1-driver.jpg"] = true
	mock.ExpectExec(`INSERT INTO safety_events`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	event := validEvent()
	inserted, err := writer.Create(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, inserted)

	// 缺失的源文件保留原引用，另一张图照常搬迁
	assert.Equal(t, "inbox/evt-1-driver.jpg", *event.DriverImagePath)
	assert.Equal(t, "fleets/3/events/2025/12/06/evt-1-road.jpg", *event.RoadImagePath)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateIsIdempotentSuccess(t *testing.T) {
	writer, _, mock, db := setupWriter(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO safety_events`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := writer.Create(context.Background(), validEvent())
	require.NoError(t, err)
	assert.False(t, inserted)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_RejectsInvalidEvents(t *testing.T) {
	writer, _, mock, db := setupWriter(t)
	defer db.Close()

	missingID := validEvent()
	missingID.EventID = ""
	_, err := writer.Create(context.Background(), missingID)
	assert.Error(t, err)

	badLevel := validEvent()
	badLevel.AlertLevel = "BANANAS"
	_, err = writer.Create(context.Background(), badLevel)
	assert.Error(t, err)

	badState := validEvent()
	badState.DriverState = "ASLEEP"
	_, err = writer.Create(context.Background(), badState)
	assert.Error(t, err)

	// 校验失败不应触碰数据库
	require.NoError(t, mock.ExpectationsWereMet())
}
