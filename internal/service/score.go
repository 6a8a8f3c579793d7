package service

import (
	"context"

	"aegis-safety/internal/models"
	"aegis-safety/internal/repository"

	"go.uber.org/zap"
)

// Deduct 安全评分扣分（纯函数，下限为 0）
func Deduct(currentScore int, level models.AlertLevel) int {
	next := currentScore - level.ScoreDeduction()
	if next < 0 {
		return 0
	}
	return next
}

// ScoreAdjuster 安全评分调整器。
// 同一驾驶员的并发扣分允许交错，评分字段接受 last-write-wins 近似。
type ScoreAdjuster struct {
	drivers *repository.DriverRepository
	logger  *zap.Logger
}

// NewScoreAdjuster 创建评分调整器
func NewScoreAdjuster(drivers *repository.DriverRepository, logger *zap.Logger) *ScoreAdjuster {
	return &ScoreAdjuster{
		drivers: drivers,
		logger:  logger,
	}
}

// Apply 按告警级别扣分并返回新评分。扣分为 0 的级别不产生写入，
// 此时返回 -1 表示评分未读取。
func (a *ScoreAdjuster) Apply(ctx context.Context, driverID int64, level models.AlertLevel) (int, error) {
	deduction := level.ScoreDeduction()
	if deduction == 0 {
		return -1, nil
	}

	newScore, err := a.drivers.DeductSafetyScore(ctx, driverID, deduction)
	if err != nil {
		return -1, err
	}

	a.logger.Info("Driver safety score deducted",
		zap.Int64("driver_id", driverID),
		zap.String("alert_level", level.String()),
		zap.Int("deduction", deduction),
		zap.Int("new_score", newScore),
	)
	return newScore, nil
}
