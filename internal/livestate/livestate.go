package livestate

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"aegis-safety/internal/cache"
	"aegis-safety/internal/models"
	"aegis-safety/internal/repository"

	"go.uber.org/zap"
)

// vehicle:{id}:live 哈希字段名
const (
	fieldPlateNumber   = "PlateNumber"
	fieldStatus        = "Status"
	fieldLatitude      = "Latitude"
	fieldLongitude     = "Longitude"
	fieldSpeedKmh      = "SpeedKmh"
	fieldLastUpdateUtc = "LastUpdateUtc"
)

// Store 车辆实时状态存储。
// 遥测写入方整哈希覆盖写并刷新短 TTL；查询方在缓存不完整或缺失时
// 回退数据库最近遥测并回填。缺少 PlateNumber 字段的哈希视为不完整
// 缓存（可能只有遥测突发写入的部分字段），按未命中处理。
type Store struct {
	hash     cache.HashStore
	vehicles *repository.VehicleRepository
	logger   *zap.Logger

	readTTL  time.Duration // 查询回填 TTL
	writeTTL time.Duration // 遥测写入 TTL
}

// New 创建实时状态存储
func New(hash cache.HashStore, vehicles *repository.VehicleRepository, logger *zap.Logger, readTTL, writeTTL time.Duration) *Store {
	return &Store{
		hash:     hash,
		vehicles: vehicles,
		logger:   logger,
		readTTL:  readTTL,
		writeTTL: writeTTL,
	}
}

// Key 实时状态哈希键
func Key(vehicleID int64) string {
	return fmt.Sprintf("vehicle:%d:live", vehicleID)
}

// Write 整哈希覆盖写入实时状态（遥测摄入路径）。
// 覆盖而非合并，避免键过期重建时残留陈旧元数据。
func (s *Store) Write(ctx context.Context, state models.LiveVehicleState) error {
	fields := map[string]interface{}{
		fieldPlateNumber:   state.PlateNumber,
		fieldStatus:        state.Status,
		fieldLatitude:      strconv.FormatFloat(state.Latitude, 'f', -1, 64),
		fieldLongitude:     strconv.FormatFloat(state.Longitude, 'f', -1, 64),
		fieldSpeedKmh:      strconv.FormatFloat(state.SpeedKmh, 'f', -1, 64),
		fieldLastUpdateUtc: state.LastUpdateUtc.UTC().Format(time.RFC3339Nano),
	}
	return s.hash.HSetWithTTL(ctx, Key(state.VehicleID), fields, s.writeTTL)
}

// Get 读取单辆车的实时状态，缓存不完整或未命中时回退数据库并回填
func (s *Store) Get(ctx context.Context, vehicleID int64) (models.LiveVehicleState, error) {
	fields, err := s.hash.HGetAll(ctx, Key(vehicleID))
	if err != nil {
		// 缓存不可用，按 cache-aside 降级直读数据库
		s.logger.Warn("Live state cache read failed, falling back to database",
			zap.Int64("vehicle_id", vehicleID),
			zap.Error(err),
		)
		fields = nil
	}

	if state, ok := parseHash(vehicleID, fields); ok {
		return state, nil
	}

	states, err := s.vehicles.LatestStateBatch(ctx, []int64{vehicleID})
	if err != nil {
		return models.LiveVehicleState{}, err
	}
	if len(states) == 0 {
		return models.LiveVehicleState{}, repository.ErrVehicleNotFound
	}

	state := states[0]
	s.backfill(ctx, state)
	return state, nil
}

// GetFleetPage 车队分页实时状态查询。
// 缓存读取合并为一次 pipeline 往返；未命中部分用一条批量查询回退，
// 绝不按车辆逐条查询。结果按车辆 ID 排序，分页总数来自数据库，
// 不受缓存冷热影响。
func (s *Store) GetFleetPage(ctx context.Context, scope repository.FleetScope, page, pageSize int) (*models.FleetLiveStatePage, error) {
	ids, total, err := s.vehicles.ListFleetPage(ctx, scope, page, pageSize)
	if err != nil {
		return nil, err
	}

	result := &models.FleetLiveStatePage{
		Items: []models.LiveVehicleState{},
		Pagination: models.Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
		},
	}
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, Key(id))
	}

	hashes, err := s.hash.BatchHGetAll(ctx, keys)
	if err != nil {
		s.logger.Warn("Live state batch cache read failed, falling back to database",
			zap.Int("vehicles", len(ids)),
			zap.Error(err),
		)
		hashes = make([]map[string]string, len(ids))
	}

	var missing []int64
	for i, id := range ids {
		if state, ok := parseHash(id, hashes[i]); ok {
			result.Items = append(result.Items, state)
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		states, err := s.vehicles.LatestStateBatch(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, state := range states {
			result.Items = append(result.Items, state)
			s.backfill(ctx, state)
		}
	}

	sort.Slice(result.Items, func(i, j int) bool {
		return result.Items[i].VehicleID < result.Items[j].VehicleID
	})
	return result, nil
}

// backfill 查询路径的缓存回填，失败只记日志
func (s *Store) backfill(ctx context.Context, state models.LiveVehicleState) {
	fields := map[string]interface{}{
		fieldPlateNumber:   state.PlateNumber,
		fieldStatus:        state.Status,
		fieldLatitude:      strconv.FormatFloat(state.Latitude, 'f', -1, 64),
		fieldLongitude:     strconv.FormatFloat(state.Longitude, 'f', -1, 64),
		fieldSpeedKmh:      strconv.FormatFloat(state.SpeedKmh, 'f', -1, 64),
		fieldLastUpdateUtc: state.LastUpdateUtc.UTC().Format(time.RFC3339Nano),
	}
	if err := s.hash.HSetWithTTL(ctx, Key(state.VehicleID), fields, s.readTTL); err != nil {
		s.logger.Warn("Live state cache backfill failed",
			zap.Int64("vehicle_id", state.VehicleID),
			zap.Error(err),
		)
	}
}

// parseHash 解析缓存哈希。缺少 PlateNumber 字段视为不完整，返回 false。
func parseHash(vehicleID int64, fields map[string]string) (models.LiveVehicleState, bool) {
	if len(fields) == 0 {
		return models.LiveVehicleState{}, false
	}
	plate, ok := fields[fieldPlateNumber]
	if !ok {
		return models.LiveVehicleState{}, false
	}

	state := models.LiveVehicleState{
		VehicleID:   vehicleID,
		PlateNumber: plate,
		Status:      fields[fieldStatus],
	}
	if state.Status == "" {
		state.Status = "ACTIVE"
	}
	state.Latitude, _ = strconv.ParseFloat(fields[fieldLatitude], 64)
	state.Longitude, _ = strconv.ParseFloat(fields[fieldLongitude], 64)
	state.SpeedKmh, _ = strconv.ParseFloat(fields[fieldSpeedKmh], 64)

	if ts, err := time.Parse(time.RFC3339Nano, fields[fieldLastUpdateUtc]); err == nil {
		state.LastUpdateUtc = ts
	} else {
		state.LastUpdateUtc = time.Now().UTC()
	}
	return state, true
}
