package repository

import (
	"context"
	"database/sql"
	"fmt"

	"aegis-safety/internal/models"

	"go.uber.org/zap"
)

// SafetyEventRepository 安全事件仓库
// event_id 上有唯一约束，是幂等性的最终仲裁者
type SafetyEventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSafetyEventRepository 创建安全事件仓库
func NewSafetyEventRepository(db *sql.DB, logger *zap.Logger) *SafetyEventRepository {
	return &SafetyEventRepository{
		db:     db,
		logger: logger,
	}
}

// Exists 判断事件是否已持久化（幂等性软检查）
func (r *SafetyEventRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, fmt.Errorf("event_id is required")
	}

	query := `SELECT EXISTS(SELECT 1 FROM safety_events WHERE event_id = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check event existence: %w", err)
	}
	return exists, nil
}

// Create 持久化安全事件。返回 false 表示 event_id 冲突（并发重投），
// 调用方应视为幂等成功而非错误。
func (r *SafetyEventRepository) Create(ctx context.Context, event *models.SafetyEvent) (bool, error) {
	query := `
		INSERT INTO safety_events (
			event_id,
			message,
			ear_value,
			mar_value,
			head_yaw,
			driver_state,
			alert_level,
			driver_image_path,
			road_image_path,
			road_has_hazard,
			road_vehicle_count,
			road_pedestrian_count,
			road_closest_distance,
			timestamp,
			device_id,
			vehicle_id,
			driver_id,
			company_id,
			trip_id,
			latitude,
			longitude,
			speed_kmh,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, NOW()
		)
		ON CONFLICT (event_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.Message,
		event.EarValue,
		event.MarValue,
		event.HeadYaw,
		string(event.DriverState),
		string(event.AlertLevel),
		event.DriverImagePath,
		event.RoadImagePath,
		event.RoadHasHazard,
		event.RoadVehicleCount,
		event.RoadPedestrianCount,
		event.RoadClosestDistance,
		event.Timestamp,
		event.DeviceID,
		event.VehicleID,
		event.DriverID,
		event.CompanyID,
		event.TripID,
		event.Latitude,
		event.Longitude,
		event.SpeedKmh,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert safety event: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// TripEventStats 统计某车辆某行程内的安全事件分布
func (r *SafetyEventRepository) TripEventStats(ctx context.Context, vehicleID int64, tripID string) (*models.TripEventStats, error) {
	if tripID == "" {
		return nil, fmt.Errorf("trip_id is required")
	}

	query := `
		SELECT alert_level, driver_state
		FROM safety_events
		WHERE vehicle_id = $1
		  AND trip_id = $2
	`

	rows, err := r.db.QueryContext(ctx, query, vehicleID, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trip events: %w", err)
	}
	defer rows.Close()

	stats := &models.TripEventStats{}
	for rows.Next() {
		var level, state string
		if err := rows.Scan(&level, &state); err != nil {
			return nil, fmt.Errorf("failed to scan trip event row: %w", err)
		}

		switch models.AlertLevel(level) {
		case models.AlertLevelCritical:
			stats.CriticalCount++
		case models.AlertLevelHigh:
			stats.HighCount++
		case models.AlertLevelMedium:
			stats.MediumCount++
		}

		driverState := models.DriverState(state)
		if driverState.IsDrowsiness() {
			stats.DrowsinessCount++
		}
		if driverState.IsDistraction() {
			stats.DistractionCount++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trip event rows: %w", err)
	}

	return stats, nil
}
