package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"aegis-safety/internal/consumer"
	"aegis-safety/internal/livestate"
	"aegis-safety/internal/models"
	"aegis-safety/internal/notifier"
	"aegis-safety/internal/repository"
	"aegis-safety/internal/resolver"
	"aegis-safety/internal/storage"

	"go.uber.org/zap"
)

// ErrNoActiveDriver 车辆当前没有激活的驾驶员。
// 视为待重投（排班录入可能滞后于设备上报），不创建事件记录。
var ErrNoActiveDriver = errors.New("vehicle has no active driver")

// EventProcessor 安全事件处理管线：
// 解码 → 幂等检查 → 上下文解析 → 实时快照 → 持久化 → 扣分 → 通知扇出
type EventProcessor struct {
	events   *repository.SafetyEventRepository
	trips    *repository.TripRepository
	resolver *resolver.Resolver
	live     *livestate.Store
	writer   *EventWriter
	scores   *ScoreAdjuster
	fanout   *notifier.Fanout
	logger   *zap.Logger
}

// NewEventProcessor 创建事件处理管线
func NewEventProcessor(
	events *repository.SafetyEventRepository,
	trips *repository.TripRepository,
	res *resolver.Resolver,
	live *livestate.Store,
	writer *EventWriter,
	scores *ScoreAdjuster,
	fanout *notifier.Fanout,
	logger *zap.Logger,
) *EventProcessor {
	return &EventProcessor{
		events:   events,
		trips:    trips,
		resolver: res,
		live:     live,
		writer:   writer,
		scores:   scores,
		fanout:   fanout,
		logger:   logger,
	}
}

// Process 处理单条安全事件消息并给出确认结论。
// 持久化成功之后的任何失败（扣分、通知）都不再影响确认。
func (p *EventProcessor) Process(ctx context.Context, body []byte) (consumer.Outcome, error) {
	msg, err := decodeEventMessage(body)
	if err != nil {
		// 畸形消息留在队列里等待人工排查
		return consumer.OutcomeRetry, err
	}

	// 幂等软检查：已处理过的事件直接确认
	exists, err := p.events.Exists(ctx, msg.EventID)
	if err != nil {
		return consumer.OutcomeRetry, fmt.Errorf("failed to check event existence: %w", err)
	}
	if exists {
		p.logger.Info("Duplicate event skipped",
			zap.String("event_id", msg.EventID),
		)
		return consumer.OutcomeDuplicate, nil
	}

	dc, err := p.resolver.ResolveDevice(ctx, msg.DeviceID)
	if err != nil {
		return consumer.OutcomeRetry, fmt.Errorf("failed to resolve device %s: %w", msg.DeviceID, err)
	}

	vehicle, err := p.resolver.GetVehicle(ctx, dc.VehicleID)
	if err != nil {
		return consumer.OutcomeRetry, fmt.Errorf("failed to load vehicle %d: %w", dc.VehicleID, err)
	}
	if vehicle.CurrentDriverID == nil {
		return consumer.OutcomeRetry, fmt.Errorf("vehicle %d: %w", vehicle.VehicleID, ErrNoActiveDriver)
	}
	driverID := *vehicle.CurrentDriverID

	// 评分和家属名单每个事件都取最新值
	profile, err := p.resolver.GetDriverProfile(ctx, driverID)
	if err != nil {
		return consumer.OutcomeRetry, fmt.Errorf("failed to load driver %d: %w", driverID, err)
	}

	// 事件发生时的 GPS/车速快照，取不到时记零值继续
	snapshot, err := p.live.Get(ctx, vehicle.VehicleID)
	if err != nil {
		p.logger.Warn("No live state snapshot for event",
			zap.String("event_id", msg.EventID),
			zap.Int64("vehicle_id", vehicle.VehicleID),
			zap.Error(err),
		)
		snapshot = models.LiveVehicleState{VehicleID: vehicle.VehicleID}
	}

	// 有进行中的行程就挂上行程号
	tripID, err := p.trips.ActiveTripID(ctx, vehicle.VehicleID)
	if err != nil {
		p.logger.Warn("Failed to look up active trip",
			zap.Int64("vehicle_id", vehicle.VehicleID),
			zap.Error(err),
		)
		tripID = nil
	}

	event := buildSafetyEvent(msg, vehicle, driverID, tripID, snapshot)

	inserted, err := p.writer.Create(ctx, event)
	if err != nil {
		return consumer.OutcomeRetry, err
	}
	if !inserted {
		// 并发重投在唯一约束上碰撞，同样视为幂等成功
		return consumer.OutcomeDuplicate, nil
	}

	// 此后为派生状态更新，失败只记日志，确认结论不变
	if _, err := p.scores.Apply(ctx, driverID, event.AlertLevel); err != nil {
		p.logger.Error("Failed to deduct safety score",
			zap.String("event_id", event.EventID),
			zap.Int64("driver_id", driverID),
			zap.Error(err),
		)
	}

	p.fanout.Dispatch(ctx, notifier.Alert{
		EventID:        event.EventID,
		AlertLevel:     event.AlertLevel,
		DriverState:    event.DriverState,
		Message:        event.Message,
		DeviceID:       event.DeviceID,
		PlateNumber:    vehicle.PlateNumber,
		CompanyID:      vehicle.CompanyID,
		OwnerUserID:    vehicle.OwnerUserID,
		DriverID:       driverID,
		Profile:        profile,
		MapLink:        storage.MapsLink(snapshot.Latitude, snapshot.Longitude),
		SpeedKmh:       snapshot.SpeedKmh,
		DriverImageKey: derefString(event.DriverImagePath),
		RoadImageKey:   derefString(event.RoadImagePath),
	})

	p.logger.Info("Safety event processed",
		zap.String("event_id", event.EventID),
		zap.Int64("vehicle_id", vehicle.VehicleID),
		zap.Int64("driver_id", driverID),
		zap.String("alert_level", event.AlertLevel.String()),
	)
	return consumer.OutcomeAck, nil
}

// decodeEventMessage 解码并校验消息必填字段与枚举值
func decodeEventMessage(body []byte) (*models.EventMessage, error) {
	var msg models.EventMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode event message: %w", err)
	}
	if msg.EventID == "" {
		return nil, fmt.Errorf("event message missing event_id")
	}
	if msg.DeviceID == "" {
		return nil, fmt.Errorf("event message missing device_id")
	}
	if _, ok := models.ParseAlertLevel(msg.AlertLevel); !ok {
		return nil, fmt.Errorf("event message has invalid alert level %q", msg.AlertLevel)
	}
	if _, ok := models.ParseDriverState(msg.DriverState); !ok {
		return nil, fmt.Errorf("event message has invalid driver state %q", msg.DriverState)
	}
	return &msg, nil
}

// buildSafetyEvent 由消息和解析出的上下文组装事件记录
func buildSafetyEvent(
	msg *models.EventMessage,
	vehicle models.VehicleDetails,
	driverID int64,
	tripID *string,
	snapshot models.LiveVehicleState,
) *models.SafetyEvent {
	level, _ := models.ParseAlertLevel(msg.AlertLevel)
	state, _ := models.ParseDriverState(msg.DriverState)

	event := &models.SafetyEvent{
		EventID:     msg.EventID,
		Message:     msg.Message,
		EarValue:    msg.EarValue,
		MarValue:    msg.MarValue,
		HeadYaw:     msg.HeadYaw,
		DriverState: state,
		AlertLevel:  level,
		Timestamp:   msg.ParsedTimestamp(),
		DeviceID:    msg.DeviceID,
		VehicleID:   vehicle.VehicleID,
		DriverID:    &driverID,
		CompanyID:   vehicle.CompanyID,
		TripID:      tripID,
		Latitude:    snapshot.Latitude,
		Longitude:   snapshot.Longitude,
		SpeedKmh:    snapshot.SpeedKmh,
	}

	if msg.DriverImagePath != "" {
		event.DriverImagePath = &msg.DriverImagePath
	}
	if msg.RoadImagePath != "" {
		event.RoadImagePath = &msg.RoadImagePath
	}
	if msg.RoadStatus != nil {
		event.RoadHasHazard = msg.RoadStatus.HasHazard
		event.RoadVehicleCount = msg.RoadStatus.VehicleCount
		event.RoadPedestrianCount = msg.RoadStatus.PedestrianCount
		event.RoadClosestDistance = &msg.RoadStatus.ClosestObjectDistance
	}
	return event
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
