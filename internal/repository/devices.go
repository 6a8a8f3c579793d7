package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"aegis-safety/internal/models"

	"go.uber.org/zap"
)

// ErrDeviceUnknown 设备未注册或未绑定车辆（配置问题，非瞬时故障）
var ErrDeviceUnknown = errors.New("device not linked to a vehicle")

// DeviceRepository 设备仓库
type DeviceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeviceRepository 创建设备仓库
func NewDeviceRepository(db *sql.DB, logger *zap.Logger) *DeviceRepository {
	return &DeviceRepository{
		db:     db,
		logger: logger,
	}
}

// ResolveContext 关联查询 device → vehicle，只投影所需列
func (r *DeviceRepository) ResolveContext(ctx context.Context, deviceID string) (*models.DeviceContext, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}

	query := `
		SELECT
			d.vehicle_id,
			v.company_id,
			COALESCE(v.owner_user_id, ''),
			COALESCE(v.plate_number, 'Unknown'),
			v.status
		FROM devices d
		JOIN vehicles v ON v.id = d.vehicle_id
		WHERE d.id = $1
	`

	var dc models.DeviceContext
	var companyID sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(
		&dc.VehicleID,
		&companyID,
		&dc.OwnerUserID,
		&dc.PlateNumber,
		&dc.Status,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDeviceUnknown
		}
		return nil, fmt.Errorf("failed to resolve device %s: %w", deviceID, err)
	}

	if companyID.Valid {
		dc.CompanyID = &companyID.Int64
	}
	return &dc, nil
}
