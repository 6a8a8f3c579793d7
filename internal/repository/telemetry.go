package repository

import (
	"context"
	"database/sql"
	"fmt"

	"aegis-safety/internal/models"

	"go.uber.org/zap"
)

// TelemetryRepository 遥测记录仓库（持久化历史，区别于实时状态缓存）
type TelemetryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTelemetryRepository 创建遥测仓库
func NewTelemetryRepository(db *sql.DB, logger *zap.Logger) *TelemetryRepository {
	return &TelemetryRepository{
		db:     db,
		logger: logger,
	}
}

// Insert 写入一条遥测记录
func (r *TelemetryRepository) Insert(ctx context.Context, point *models.TelemetryPoint) error {
	query := `
		INSERT INTO telemetry_events (
			device_id, vehicle_id, latitude, longitude, speed_kmh, event_type, timestamp, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	_, err := r.db.ExecContext(ctx, query,
		point.DeviceID,
		point.VehicleID,
		point.Latitude,
		point.Longitude,
		point.SpeedKmh,
		point.EventType,
		point.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert telemetry event: %w", err)
	}
	return nil
}

// TripRepository 行程仓库
type TripRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTripRepository 创建行程仓库
func NewTripRepository(db *sql.DB, logger *zap.Logger) *TripRepository {
	return &TripRepository{
		db:     db,
		logger: logger,
	}
}

// ActiveTripID 查询车辆当前进行中的行程，没有时返回 nil
func (r *TripRepository) ActiveTripID(ctx context.Context, vehicleID int64) (*string, error) {
	query := `
		SELECT id
		FROM trips
		WHERE vehicle_id = $1
		  AND status = 'ACTIVE'
		ORDER BY start_time DESC
		LIMIT 1
	`

	var tripID string
	err := r.db.QueryRowContext(ctx, query, vehicleID).Scan(&tripID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query active trip for vehicle %d: %w", vehicleID, err)
	}
	return &tripID, nil
}
