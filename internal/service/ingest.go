package service

import (
	"context"
	"encoding/json"
	"fmt"

	"aegis-safety/internal/consumer"
	"aegis-safety/internal/livestate"
	"aegis-safety/internal/models"
	"aegis-safety/internal/notifier"
	"aegis-safety/internal/repository"
	"aegis-safety/internal/resolver"

	"go.uber.org/zap"
)

// TelemetryIngestor 遥测接入：写实时状态缓存、落遥测历史、推送仪表盘更新
type TelemetryIngestor struct {
	resolver  *resolver.Resolver
	live      *livestate.Store
	telemetry *repository.TelemetryRepository
	push      notifier.PushClient
	logger    *zap.Logger
}

// NewTelemetryIngestor 创建遥测接入器
func NewTelemetryIngestor(
	res *resolver.Resolver,
	live *livestate.Store,
	telemetry *repository.TelemetryRepository,
	push notifier.PushClient,
	logger *zap.Logger,
) *TelemetryIngestor {
	return &TelemetryIngestor{
		resolver:  res,
		live:      live,
		telemetry: telemetry,
		push:      push,
		logger:    logger,
	}
}

// Ingest 接入一条遥测。实时状态整键覆盖写，缓存写失败不影响落库；
// 推送尽力而为。
func (i *TelemetryIngestor) Ingest(ctx context.Context, msg models.TelemetryMessage) error {
	if msg.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	dc, err := i.resolver.ResolveDevice(ctx, msg.DeviceID)
	if err != nil {
		return fmt.Errorf("failed to resolve device %s: %w", msg.DeviceID, err)
	}

	timestamp := msg.ParsedTimestamp()

	state := models.LiveVehicleState{
		VehicleID:     dc.VehicleID,
		PlateNumber:   dc.PlateNumber,
		Status:        dc.Status,
		Latitude:      msg.Latitude,
		Longitude:     msg.Longitude,
		SpeedKmh:      msg.SpeedKmh,
		LastUpdateUtc: timestamp,
	}
	if err := i.live.Write(ctx, state); err != nil {
		i.logger.Error("Failed to update live vehicle state",
			zap.Int64("vehicle_id", dc.VehicleID),
			zap.Error(err),
		)
	}

	point := &models.TelemetryPoint{
		DeviceID:  msg.DeviceID,
		VehicleID: dc.VehicleID,
		Latitude:  msg.Latitude,
		Longitude: msg.Longitude,
		SpeedKmh:  msg.SpeedKmh,
		EventType: msg.EventType,
		Timestamp: timestamp,
	}
	if err := i.telemetry.Insert(ctx, point); err != nil {
		return fmt.Errorf("failed to persist telemetry: %w", err)
	}

	if group := notifier.AlertGroup(dc.CompanyID, dc.OwnerUserID); group != "" {
		update := models.VehicleTelemetryUpdate{
			VehicleID:   dc.VehicleID,
			PlateNumber: dc.PlateNumber,
			Latitude:    msg.Latitude,
			Longitude:   msg.Longitude,
			SpeedKmh:    msg.SpeedKmh,
			EventType:   msg.EventType,
			Timestamp:   timestamp,
		}
		if err := i.push.PushTelemetry(group, update); err != nil {
			i.logger.Error("Failed to push telemetry update",
				zap.Int64("vehicle_id", dc.VehicleID),
				zap.String("group", group),
				zap.Error(err),
			)
		}
	}

	return nil
}

// TelemetryProcessor 遥测流消息处理器
type TelemetryProcessor struct {
	ingestor *TelemetryIngestor
	logger   *zap.Logger
}

// NewTelemetryProcessor 创建遥测流处理器
func NewTelemetryProcessor(ingestor *TelemetryIngestor, logger *zap.Logger) *TelemetryProcessor {
	return &TelemetryProcessor{
		ingestor: ingestor,
		logger:   logger,
	}
}

// Process 解码并接入单条遥测消息
func (p *TelemetryProcessor) Process(ctx context.Context, body []byte) (consumer.Outcome, error) {
	var msg models.TelemetryMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return consumer.OutcomeRetry, fmt.Errorf("failed to decode telemetry message: %w", err)
	}

	if err := p.ingestor.Ingest(ctx, msg); err != nil {
		return consumer.OutcomeRetry, err
	}
	return consumer.OutcomeAck, nil
}
