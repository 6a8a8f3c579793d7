package consumer

import (
	"context"
	"sync"
	"time"

	"aegis-safety/internal/queue"

	"go.uber.org/zap"
)

// Outcome 单条消息的处理结论，决定是否确认
type Outcome int

const (
	// OutcomeRetry 不确认，等待可见超时后重投
	OutcomeRetry Outcome = iota
	// OutcomeAck 处理成功，确认出队
	OutcomeAck
	// OutcomeDuplicate 幂等命中，视为成功并确认
	OutcomeDuplicate
)

// Processor 单条消息处理器接口
type Processor interface {
	Process(ctx context.Context, body []byte) (Outcome, error)
}

// MessageQueue 消费者依赖的队列操作
type MessageQueue interface {
	Stream() string
	EnsureGroup(ctx context.Context) error
	Receive(ctx context.Context, count int64) ([]queue.Message, error)
	Ack(ctx context.Context, id string) error
}

// Metrics 消费者监控指标
type Metrics struct {
	mu sync.RWMutex

	MessagesReceived  int64 // 收到的消息总数
	MessagesSucceeded int64 // 成功处理的消息数
	MessagesFailed    int64 // 处理失败（待重投）的消息数
	MessagesDuplicate int64 // 幂等命中的消息数

	LastProcessTime time.Time // 最后处理时间
	StartTime       time.Time // 启动时间
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		MessagesReceived:  m.MessagesReceived,
		MessagesSucceeded: m.MessagesSucceeded,
		MessagesFailed:    m.MessagesFailed,
		MessagesDuplicate: m.MessagesDuplicate,
		LastProcessTime:   m.LastProcessTime,
		StartTime:         m.StartTime,
	}
}

// IncrementReceived 增加接收计数
func (m *Metrics) IncrementReceived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesReceived++
}

// IncrementSucceeded 增加成功计数
func (m *Metrics) IncrementSucceeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSucceeded++
	m.LastProcessTime = time.Now()
}

// IncrementFailed 增加失败计数
func (m *Metrics) IncrementFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesFailed++
	m.LastProcessTime = time.Now()
}

// IncrementDuplicate 增加幂等命中计数
func (m *Metrics) IncrementDuplicate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesDuplicate++
	m.LastProcessTime = time.Now()
}

// EventConsumer 队列消费者：长轮询接收 → 逐条处理 → 按结论确认。
// 每个严重级别队列各运行一个实例，批量大小不同。
type EventConsumer struct {
	name              string
	queue             MessageQueue
	processor         Processor
	batchSize         int64
	receiveRetryDelay time.Duration
	logger            *zap.Logger
	metrics           *Metrics
}

// NewEventConsumer 创建队列消费者
func NewEventConsumer(
	name string,
	q MessageQueue,
	processor Processor,
	batchSize int64,
	receiveRetryDelay time.Duration,
	logger *zap.Logger,
) *EventConsumer {
	return &EventConsumer{
		name:              name,
		queue:             q,
		processor:         processor,
		batchSize:         batchSize,
		receiveRetryDelay: receiveRetryDelay,
		logger:            logger,
		metrics: &Metrics{
			StartTime: time.Now(),
		},
	}
}

// Metrics 获取消费者指标
func (c *EventConsumer) Metrics() Metrics {
	return c.metrics.GetSnapshot()
}

// Start 启动消费循环，直到上下文取消。
// 已收到的一批消息会处理完毕再退出，未确认的消息靠可见超时重投。
func (c *EventConsumer) Start(ctx context.Context) error {
	if err := c.queue.EnsureGroup(ctx); err != nil {
		return err
	}

	c.logger.Info("Event consumer started",
		zap.String("consumer", c.name),
		zap.String("stream", c.queue.Stream()),
		zap.Int64("batch_size", c.batchSize),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Event consumer stopped",
				zap.String("consumer", c.name),
			)
			return nil
		default:
		}

		messages, err := c.queue.Receive(ctx, c.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Event consumer stopped",
					zap.String("consumer", c.name),
				)
				return nil
			}
			// 接收层失败与单条处理失败不同，固定等待避免热循环打爆队列
			c.logger.Error("Failed to receive messages",
				zap.String("consumer", c.name),
				zap.Error(err),
			)
			c.sleep(ctx, c.receiveRetryDelay)
			continue
		}

		// 在途消息用不随停机取消的上下文处理到底，避免取消信号
		// 把下游查询/确认拦腰打断；停机只在批次间生效
		procCtx := context.WithoutCancel(ctx)
		for _, msg := range messages {
			c.handle(procCtx, msg)
		}
	}
}

// handle 处理单条消息并按结论确认
func (c *EventConsumer) handle(ctx context.Context, msg queue.Message) {
	c.metrics.IncrementReceived()

	outcome, err := c.processor.Process(ctx, msg.Body)
	switch outcome {
	case OutcomeAck:
		c.metrics.IncrementSucceeded()
		c.ack(ctx, msg.ID)
	case OutcomeDuplicate:
		c.metrics.IncrementDuplicate()
		c.ack(ctx, msg.ID)
	default:
		// 不确认，消息在可见超时后重投
		c.metrics.IncrementFailed()
		c.logger.Error("Message processing failed, left for redelivery",
			zap.String("consumer", c.name),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

func (c *EventConsumer) ack(ctx context.Context, messageID string) {
	if err := c.queue.Ack(ctx, messageID); err != nil {
		c.logger.Error("Failed to ack message",
			zap.String("consumer", c.name),
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}

func (c *EventConsumer) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
