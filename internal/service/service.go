package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"aegis-safety/internal/cache"
	"aegis-safety/internal/config"
	"aegis-safety/internal/consumer"
	"aegis-safety/internal/livestate"
	"aegis-safety/internal/notifier"
	"aegis-safety/internal/queue"
	"aegis-safety/internal/repository"
	"aegis-safety/internal/resolver"
	"aegis-safety/internal/storage"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// SafetyService 安全事件服务（整合各层）
type SafetyService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger

	// 各层组件
	pushClient        *notifier.MQTTPushClient
	liveStore         *livestate.Store
	tripMetrics       *TripMetrics
	criticalConsumer  *consumer.EventConsumer
	standardConsumer  *consumer.EventConsumer
	telemetryConsumer *consumer.EventConsumer
}

// NewSafetyService 创建安全事件服务
func NewSafetyService(cfg *config.Config, logger *zap.Logger) (*SafetyService, error) {
	// 1. 连接数据库
	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdle)

	// 测试数据库连接
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// 测试 Redis 连接
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT（实时推送）
	pushClient, err := notifier.NewMQTTPushClient(
		cfg.Notify.MQTTBroker,
		cfg.Notify.MQTTClientID,
		cfg.Notify.MQTTUsername,
		cfg.Notify.MQTTPassword,
		cfg.Notify.MQTTQoS,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect push client: %w", err)
	}

	// 4. 创建 Repository 层
	eventRepo := repository.NewSafetyEventRepository(db, logger)
	vehicleRepo := repository.NewVehicleRepository(db, logger)
	deviceRepo := repository.NewDeviceRepository(db, logger)
	driverRepo := repository.NewDriverRepository(db, logger)
	telemetryRepo := repository.NewTelemetryRepository(db, logger)
	tripRepo := repository.NewTripRepository(db, logger)

	// 5. 创建缓存层
	kvStore := cache.NewRedisKVStore(redisClient)
	hashStore := cache.NewRedisHashStore(redisClient)

	contextResolver := resolver.New(
		deviceRepo,
		vehicleRepo,
		driverRepo,
		kvStore,
		logger,
		cfg.Cache.DeviceMapTTL,
		cfg.Cache.VehicleDetailsTTL,
	)
	liveStore := livestate.New(
		hashStore,
		vehicleRepo,
		logger,
		cfg.Cache.LiveStateReadTTL,
		cfg.Cache.LiveStateWriteTTL,
	)

	// 6. 创建通知层
	fileStore := storage.NewLocalFileStore(cfg.Storage.Root, cfg.Storage.PublicBaseURL, logger)
	emailClient := notifier.NewRestEmailClient(
		cfg.Notify.MailAPIBaseURL,
		cfg.Notify.MailAPIToken,
		cfg.Notify.MailSender,
		logger,
	)
	fanout := notifier.NewFanout(
		pushClient,
		emailClient,
		kvStore,
		fileStore,
		logger,
		cfg.Notify.CriticalCooldown,
		cfg.Notify.HighCooldown,
	)

	// 7. 创建处理管线
	writer := NewEventWriter(eventRepo, fileStore, logger)
	scores := NewScoreAdjuster(driverRepo, logger)
	processor := NewEventProcessor(
		eventRepo,
		tripRepo,
		contextResolver,
		liveStore,
		writer,
		scores,
		fanout,
		logger,
	)
	ingestor := NewTelemetryIngestor(contextResolver, liveStore, telemetryRepo, pushClient, logger)
	telemetryProcessor := NewTelemetryProcessor(ingestor, logger)

	// 8. 创建消费者（每条流一个）
	criticalQueue := queue.New(
		redisClient,
		cfg.Queue.CriticalStream,
		cfg.Queue.ConsumerGroup,
		cfg.Queue.ConsumerName,
		cfg.Queue.BlockTimeout,
		cfg.Queue.VisibilityTimeout,
	)
	standardQueue := queue.New(
		redisClient,
		cfg.Queue.StandardStream,
		cfg.Queue.ConsumerGroup,
		cfg.Queue.ConsumerName,
		cfg.Queue.BlockTimeout,
		cfg.Queue.VisibilityTimeout,
	)
	telemetryQueue := queue.New(
		redisClient,
		cfg.Queue.TelemetryStream,
		cfg.Queue.ConsumerGroup,
		cfg.Queue.ConsumerName,
		cfg.Queue.BlockTimeout,
		cfg.Queue.VisibilityTimeout,
	)

	criticalConsumer := consumer.NewEventConsumer(
		"critical",
		criticalQueue,
		processor,
		cfg.Queue.CriticalBatchSize,
		cfg.Queue.ReceiveRetryDelay,
		logger,
	)
	standardConsumer := consumer.NewEventConsumer(
		"standard",
		standardQueue,
		processor,
		cfg.Queue.StandardBatchSize,
		cfg.Queue.ReceiveRetryDelay,
		logger,
	)
	telemetryConsumer := consumer.NewEventConsumer(
		"telemetry",
		telemetryQueue,
		telemetryProcessor,
		cfg.Queue.TelemetryBatchSize,
		cfg.Queue.ReceiveRetryDelay,
		logger,
	)

	return &SafetyService{
		config:            cfg,
		db:                db,
		redisClient:       redisClient,
		logger:            logger,
		pushClient:        pushClient,
		liveStore:         liveStore,
		tripMetrics:       NewTripMetrics(eventRepo, logger),
		criticalConsumer:  criticalConsumer,
		standardConsumer:  standardConsumer,
		telemetryConsumer: telemetryConsumer,
	}, nil
}

// LiveState 车辆实时状态读取入口
func (s *SafetyService) LiveState() *livestate.Store {
	return s.liveStore
}

// TripMetrics 行程指标聚合入口
func (s *SafetyService) TripMetrics() *TripMetrics {
	return s.tripMetrics
}

// Start 启动全部消费者并阻塞到上下文取消
func (s *SafetyService) Start(ctx context.Context) error {
	s.logger.Info("Starting safety service",
		zap.String("critical_stream", s.config.Queue.CriticalStream),
		zap.String("standard_stream", s.config.Queue.StandardStream),
		zap.String("telemetry_stream", s.config.Queue.TelemetryStream),
	)

	consumers := []*consumer.EventConsumer{
		s.criticalConsumer,
		s.standardConsumer,
		s.telemetryConsumer,
	}

	// 任何一个消费者启动失败，整体停机
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, len(consumers))
	var wg sync.WaitGroup
	for _, c := range consumers {
		wg.Add(1)
		go func(c *consumer.EventConsumer) {
			defer wg.Done()
			if err := c.Start(ctx); err != nil {
				errChan <- err
				cancel()
			}
		}(c)
	}

	wg.Wait()
	close(errChan)
	if err := <-errChan; err != nil {
		return err
	}
	return nil
}

// Stop 停止服务并释放连接
func (s *SafetyService) Stop() error {
	s.logger.Info("Stopping safety service")

	s.pushClient.Close()

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}
