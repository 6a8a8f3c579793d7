package resolver

import (
	"context"
	"fmt"
	"time"

	"aegis-safety/internal/cache"
	"aegis-safety/internal/models"
	"aegis-safety/internal/repository"

	"go.uber.org/zap"
)

// Resolver 上下文解析器：device → vehicle → driver → company，
// 读路径均为 cache-aside，映射关系变化极少所以 TTL 较长。
// 注意：设备换绑车辆时不做主动失效，只靠 TTL 过期，存在一个
// 已知的短暂陈旧窗口。
type Resolver struct {
	devices  *repository.DeviceRepository
	vehicles *repository.VehicleRepository
	drivers  *repository.DriverRepository
	kv       cache.KVStore
	logger   *zap.Logger

	deviceMapTTL      time.Duration
	vehicleDetailsTTL time.Duration
}

// New 创建上下文解析器
func New(
	devices *repository.DeviceRepository,
	vehicles *repository.VehicleRepository,
	drivers *repository.DriverRepository,
	kv cache.KVStore,
	logger *zap.Logger,
	deviceMapTTL time.Duration,
	vehicleDetailsTTL time.Duration,
) *Resolver {
	return &Resolver{
		devices:           devices,
		vehicles:          vehicles,
		drivers:           drivers,
		kv:                kv,
		logger:            logger,
		deviceMapTTL:      deviceMapTTL,
		vehicleDetailsTTL: vehicleDetailsTTL,
	}
}

// DeviceMapKey 设备映射缓存键
func DeviceMapKey(deviceID string) string {
	return fmt.Sprintf("device:%s:map", deviceID)
}

// VehicleDetailsKey 车辆详情缓存键
func VehicleDetailsKey(vehicleID int64) string {
	return fmt.Sprintf("vehicle:%d:details", vehicleID)
}

// ResolveDevice 解析设备上下文。设备未绑定车辆时返回 ErrDeviceUnknown，
// 对调用方是配置性错误而非瞬时故障。
func (r *Resolver) ResolveDevice(ctx context.Context, deviceID string) (models.DeviceContext, error) {
	return cache.GetOrLoad(ctx, r.kv, DeviceMapKey(deviceID), r.deviceMapTTL, r.logger,
		func(ctx context.Context) (models.DeviceContext, error) {
			dc, err := r.devices.ResolveContext(ctx, deviceID)
			if err != nil {
				return models.DeviceContext{}, err
			}
			return *dc, nil
		})
}

// GetVehicle 解析车辆详情（含当前驾驶员）
func (r *Resolver) GetVehicle(ctx context.Context, vehicleID int64) (models.VehicleDetails, error) {
	return cache.GetOrLoad(ctx, r.kv, VehicleDetailsKey(vehicleID), r.vehicleDetailsTTL, r.logger,
		func(ctx context.Context) (models.VehicleDetails, error) {
			v, err := r.vehicles.GetVehicle(ctx, vehicleID)
			if err != nil {
				return models.VehicleDetails{}, err
			}
			return *v, nil
		})
}

// GetDriverProfile 读取驾驶员档案。评分和家属名单每个事件都要最新值，
// 不走缓存。
func (r *Resolver) GetDriverProfile(ctx context.Context, driverID int64) (*models.DriverProfile, error) {
	return r.drivers.GetProfile(ctx, driverID)
}
