package service

import (
	"context"
	"fmt"

	"aegis-safety/internal/models"
	"aegis-safety/internal/repository"

	"go.uber.org/zap"
)

// TripSummary 行程安全汇总
type TripSummary struct {
	VehicleID   int64                 `json:"vehicle_id"`
	TripID      string                `json:"trip_id"`
	Stats       models.TripEventStats `json:"stats"`
	SafetyScore int                   `json:"safety_score"`
}

// TripScore 行程安全评分公式：100 − 10·critical − 5·high − 3·medium，下限 0
func TripScore(stats models.TripEventStats) int {
	score := 100 - 10*stats.CriticalCount - 5*stats.HighCount - 3*stats.MediumCount
	if score < 0 {
		return 0
	}
	return score
}

// TripMetrics 行程指标聚合器（只读统计，不产生状态变更）
type TripMetrics struct {
	events *repository.SafetyEventRepository
	logger *zap.Logger
}

// NewTripMetrics 创建行程指标聚合器
func NewTripMetrics(events *repository.SafetyEventRepository, logger *zap.Logger) *TripMetrics {
	return &TripMetrics{
		events: events,
		logger: logger,
	}
}

// Summarize 统计行程内的安全事件分布并计算行程评分
func (t *TripMetrics) Summarize(ctx context.Context, vehicleID int64, tripID string) (*TripSummary, error) {
	stats, err := t.events.TripEventStats(ctx, vehicleID, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate trip events: %w", err)
	}

	summary := &TripSummary{
		VehicleID:   vehicleID,
		TripID:      tripID,
		Stats:       *stats,
		SafetyScore: TripScore(*stats),
	}

	t.logger.Debug("Trip summary computed",
		zap.Int64("vehicle_id", vehicleID),
		zap.String("trip_id", tripID),
		zap.Int("safety_score", summary.SafetyScore),
	)
	return summary, nil
}
