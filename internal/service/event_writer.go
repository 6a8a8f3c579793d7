package service

import (
	"context"
	"fmt"
	"path"

	"aegis-safety/internal/models"
	"aegis-safety/internal/repository"
	"aegis-safety/internal/storage"

	"go.uber.org/zap"
)

// EventWriter 安全事件写入器：校验、证据图归档、幂等持久化
type EventWriter struct {
	events *repository.SafetyEventRepository
	files  storage.FileStore
	logger *zap.Logger
}

// NewEventWriter 创建安全事件写入器
func NewEventWriter(events *repository.SafetyEventRepository, files storage.FileStore, logger *zap.Logger) *EventWriter {
	return &EventWriter{
		events: events,
		files:  files,
		logger: logger,
	}
}

// Create 持久化安全事件。证据图先从接收目录搬迁到结构化路径，
// 事件记录引用搬迁后的位置。返回 false 表示 event_id 已存在（幂等成功）。
func (w *EventWriter) Create(ctx context.Context, event *models.SafetyEvent) (bool, error) {
	if err := validateEvent(event); err != nil {
		return false, err
	}

	w.relocateImages(ctx, event)

	inserted, err := w.events.Create(ctx, event)
	if err != nil {
		return false, fmt.Errorf("failed to persist safety event: %w", err)
	}
	if !inserted {
		w.logger.Info("Safety event already persisted",
			zap.String("event_id", event.EventID),
		)
	}
	return inserted, nil
}

// relocateImages 把驾驶员/路况证据图搬到事件日期目录下。
// 单张图搬迁失败只记日志并保留原引用，不影响事件持久化。
func (w *EventWriter) relocateImages(ctx context.Context, event *models.SafetyEvent) {
	if event.DriverID == nil {
		return
	}
	destDir := storage.EventPath(event.CompanyID, *event.DriverID, event.Timestamp)

	event.DriverImagePath = w.relocate(ctx, event.EventID, event.DriverImagePath, destDir)
	event.RoadImagePath = w.relocate(ctx, event.EventID, event.RoadImagePath, destDir)
}

func (w *EventWriter) relocate(ctx context.Context, eventID string, sourceKey *string, destDir string) *string {
	if sourceKey == nil || *sourceKey == "" {
		return sourceKey
	}

	destKey := destDir + "/" + path.Base(*sourceKey)
	if err := w.files.Move(ctx, *sourceKey, destKey); err != nil {
		w.logger.Warn("Failed to relocate evidence image",
			zap.String("event_id", eventID),
			zap.String("source", *sourceKey),
			zap.String("dest", destKey),
			zap.Error(err),
		)
		return sourceKey
	}
	return &destKey
}

// validateEvent 事件必填字段与枚举合法性校验
func validateEvent(event *models.SafetyEvent) error {
	if event.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if event.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if event.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if !event.AlertLevel.Valid() {
		return fmt.Errorf("invalid alert level: %s", event.AlertLevel)
	}
	if !event.DriverState.Valid() {
		return fmt.Errorf("invalid driver state: %s", event.DriverState)
	}
	return nil
}
