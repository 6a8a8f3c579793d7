package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aegis-safety/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrVehicleNotFound 车辆不存在
var ErrVehicleNotFound = errors.New("vehicle not found")

// FleetScope 车队查询范围（按公司或按个人车主）
type FleetScope struct {
	CompanyID   *int64
	OwnerUserID *string
}

// VehicleRepository 车辆仓库
type VehicleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVehicleRepository 创建车辆仓库
func NewVehicleRepository(db *sql.DB, logger *zap.Logger) *VehicleRepository {
	return &VehicleRepository{
		db:     db,
		logger: logger,
	}
}

// GetVehicle 读取车辆详情投影
func (r *VehicleRepository) GetVehicle(ctx context.Context, vehicleID int64) (*models.VehicleDetails, error) {
	query := `
		SELECT
			id,
			COALESCE(plate_number, 'N/A'),
			COALESCE(model, ''),
			status,
			current_driver_id,
			company_id,
			COALESCE(owner_user_id, '')
		FROM vehicles
		WHERE id = $1
	`

	var v models.VehicleDetails
	var currentDriverID, companyID sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, vehicleID).Scan(
		&v.VehicleID,
		&v.PlateNumber,
		&v.Model,
		&v.Status,
		&currentDriverID,
		&companyID,
		&v.OwnerUserID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrVehicleNotFound
		}
		return nil, fmt.Errorf("failed to get vehicle %d: %w", vehicleID, err)
	}

	if currentDriverID.Valid {
		v.CurrentDriverID = &currentDriverID.Int64
	}
	if companyID.Valid {
		v.CompanyID = &companyID.Int64
	}
	return &v, nil
}

// ListFleetPage 分页查询范围内的车辆 ID（按创建时间倒序），同时返回总数
func (r *VehicleRepository) ListFleetPage(ctx context.Context, scope FleetScope, page, pageSize int) ([]int64, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	where := "TRUE"
	args := []interface{}{}
	switch {
	case scope.CompanyID != nil:
		where = "company_id = $1"
		args = append(args, *scope.CompanyID)
	case scope.OwnerUserID != nil:
		where = "owner_user_id = $1"
		args = append(args, *scope.OwnerUserID)
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM vehicles WHERE %s`, where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count vehicles: %w", err)
	}

	pageQuery := fmt.Sprintf(`
		SELECT id
		FROM vehicles
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list vehicle page: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, 0, fmt.Errorf("failed to scan vehicle id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate vehicle ids: %w", err)
	}

	return ids, total, nil
}

// LatestStateBatch 批量读取车辆及其最近一条遥测记录（缓存未命中回退路径，
// 一次查询覆盖所有缺失车辆）
func (r *VehicleRepository) LatestStateBatch(ctx context.Context, vehicleIDs []int64) ([]models.LiveVehicleState, error) {
	if len(vehicleIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT
			v.id,
			COALESCE(v.plate_number, 'N/A'),
			v.status,
			t.latitude,
			t.longitude,
			t.speed_kmh,
			t.timestamp
		FROM vehicles v
		LEFT JOIN LATERAL (
			SELECT latitude, longitude, speed_kmh, timestamp
			FROM telemetry_events
			WHERE vehicle_id = v.id
			ORDER BY timestamp DESC
			LIMIT 1
		) t ON TRUE
		WHERE v.id = ANY($1)
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(vehicleIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to batch query latest vehicle state: %w", err)
	}
	defer rows.Close()

	var states []models.LiveVehicleState
	for rows.Next() {
		var s models.LiveVehicleState
		var lat, lng, speed sql.NullFloat64
		var ts sql.NullTime

		if err := rows.Scan(&s.VehicleID, &s.PlateNumber, &s.Status, &lat, &lng, &speed, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle state row: %w", err)
		}

		// 没有任何遥测记录时坐标/速度为零值，时间取当前
		s.Latitude = lat.Float64
		s.Longitude = lng.Float64
		s.SpeedKmh = speed.Float64
		if ts.Valid {
			s.LastUpdateUtc = ts.Time.UTC()
		} else {
			s.LastUpdateUtc = time.Now().UTC()
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vehicle state rows: %w", err)
	}

	return states, nil
}
