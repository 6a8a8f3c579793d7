package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aegis-safety/internal/cache"
	"aegis-safety/internal/models"
	"aegis-safety/internal/storage"

	"go.uber.org/zap"
)

// Alert 通知扇出的输入（事件已持久化之后）
type Alert struct {
	EventID     string
	AlertLevel  models.AlertLevel
	DriverState models.DriverState
	Message     string
	DeviceID    string

	PlateNumber string
	CompanyID   *int64
	OwnerUserID string
	DriverID    int64
	Profile     *models.DriverProfile

	MapLink        string
	SpeedKmh       float64
	DriverImageKey string
	RoadImageKey   string
}

// Fanout 通知扇出：实时推送与邮件两条独立分支并行派发。
// 任一分支的失败只记日志，绝不影响消息确认决策。
type Fanout struct {
	push   PushClient
	email  EmailClient
	kv     cache.KVStore
	files  storage.FileStore
	logger *zap.Logger

	criticalCooldown time.Duration
	highCooldown     time.Duration
}

// NewFanout 创建通知扇出
func NewFanout(
	push PushClient,
	email EmailClient,
	kv cache.KVStore,
	files storage.FileStore,
	logger *zap.Logger,
	criticalCooldown, highCooldown time.Duration,
) *Fanout {
	return &Fanout{
		push:             push,
		email:            email,
		kv:               kv,
		files:            files,
		logger:           logger,
		criticalCooldown: criticalCooldown,
		highCooldown:     highCooldown,
	}
}

// Dispatch 并行派发两条通知分支并等待完成。
// 通知耗时远小于队列可见超时，这里的有界等待不会拖垮消费循环。
func (f *Fanout) Dispatch(ctx context.Context, alert Alert) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		f.dispatchPush(ctx, alert)
	}()
	go func() {
		defer wg.Done()
		f.dispatchEmail(ctx, alert)
	}()

	wg.Wait()
}

// dispatchPush 实时推送分支：无频率限制，每个合格事件都推
func (f *Fanout) dispatchPush(ctx context.Context, alert Alert) {
	group := AlertGroup(alert.CompanyID, alert.OwnerUserID)
	if group == "" {
		f.logger.Debug("No push audience for event",
			zap.String("event_id", alert.EventID),
		)
		return
	}

	notification := models.AlertNotification{
		EventID:        alert.EventID,
		PlateNumber:    alert.PlateNumber,
		DriverState:    alert.DriverState.String(),
		AlertLevel:     alert.AlertLevel.String(),
		Message:        alert.Message,
		MapLink:        alert.MapLink,
		SpeedKmh:       alert.SpeedKmh,
		Timestamp:      time.Now().UTC(),
		DriverImageURL: f.files.URL(alert.DriverImageKey),
	}
	// 关键级额外携带路况证据图
	if alert.AlertLevel == models.AlertLevelCritical {
		notification.RoadImageURL = f.files.URL(alert.RoadImageKey)
	}

	if err := f.push.PushAlert(group, notification); err != nil {
		f.logger.Error("Push branch failed",
			zap.String("event_id", alert.EventID),
			zap.String("group", group),
			zap.Error(err),
		)
		return
	}

	f.logger.Info("Alert pushed",
		zap.String("event_id", alert.EventID),
		zap.String("group", group),
		zap.String("alert_level", alert.AlertLevel.String()),
	)
}

// dispatchEmail 邮件分支：SetNX 冷却键先占锁再发送，
// 锁已存在时整个分支静默跳过。
func (f *Fanout) dispatchEmail(ctx context.Context, alert Alert) {
	key, ttl := f.cooldown(alert)
	if key == "" {
		return // 该级别不发邮件
	}

	acquired, err := f.kv.SetNX(ctx, key, "1", ttl)
	if err != nil {
		f.logger.Error("Email cooldown check failed",
			zap.String("event_id", alert.EventID),
			zap.Error(err),
		)
		return
	}
	if !acquired {
		f.logger.Info("Email skipped (cooldown active)",
			zap.String("event_id", alert.EventID),
			zap.Int64("driver_id", alert.DriverID),
		)
		return
	}

	for _, recipient := range f.recipients(alert) {
		email := AlertEmail{
			To:          recipient,
			DriverName:  f.driverName(alert),
			PlateNumber: alert.PlateNumber,
			Message:     alert.Message,
			DriverState: alert.DriverState.String(),
			EventID:     alert.EventID,
			DeviceID:    alert.DeviceID,
		}

		var sendErr error
		if alert.AlertLevel == models.AlertLevelCritical {
			email.MapLink = alert.MapLink
			email.SpeedKmh = alert.SpeedKmh
			email.DriverImageURL = f.files.URL(alert.DriverImageKey)
			email.RoadImageURL = f.files.URL(alert.RoadImageKey)
			sendErr = f.email.SendCriticalAlert(ctx, email)
		} else {
			sendErr = f.email.SendHighAlert(ctx, email)
		}

		if sendErr != nil {
			f.logger.Error("Email branch failed",
				zap.String("event_id", alert.EventID),
				zap.String("to", recipient),
				zap.Error(sendErr),
			)
			continue
		}
	}

	f.logger.Info("Email notifications dispatched",
		zap.String("event_id", alert.EventID),
		zap.Int64("driver_id", alert.DriverID),
	)
}

// cooldown 按级别返回冷却键与窗口；不发邮件的级别返回空键
func (f *Fanout) cooldown(alert Alert) (string, time.Duration) {
	switch alert.AlertLevel {
	case models.AlertLevelCritical:
		return fmt.Sprintf("email_cooldown:%d", alert.DriverID), f.criticalCooldown
	case models.AlertLevelHigh:
		return fmt.Sprintf("email_high_cooldown:%d", alert.DriverID), f.highCooldown
	default:
		return "", 0
	}
}

// recipients 公司负责人加上订阅该级别的家属
func (f *Fanout) recipients(alert Alert) []string {
	var out []string
	if alert.Profile == nil {
		return out
	}
	if alert.Profile.CompanyRepresentativeEmail != "" {
		out = append(out, alert.Profile.CompanyRepresentativeEmail)
	}
	for _, fm := range alert.Profile.FamilyMembers {
		if fm.Email == "" {
			continue
		}
		switch alert.AlertLevel {
		case models.AlertLevelCritical:
			if fm.NotifyOnCritical {
				out = append(out, fm.Email)
			}
		case models.AlertLevelHigh:
			if fm.NotifyOnHigh {
				out = append(out, fm.Email)
			}
		}
	}
	return out
}

func (f *Fanout) driverName(alert Alert) string {
	if alert.Profile != nil {
		return alert.Profile.FullName
	}
	return ""
}
