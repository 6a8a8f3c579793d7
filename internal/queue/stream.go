package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Message 队列消息
type Message struct {
	ID   string
	Body []byte
}

// Queue 基于 Redis Streams 消费者组的事件队列。
// 未确认的消息停留在 PEL 中，闲置超过可见超时后会被下一次 Receive 重新认领，
// 以此实现消息重投。
type Queue struct {
	client            *redis.Client
	stream            string
	group             string
	consumer          string
	blockTimeout      time.Duration
	visibilityTimeout time.Duration
}

// New 创建队列实例
func New(client *redis.Client, stream, group, consumer string, blockTimeout, visibilityTimeout time.Duration) *Queue {
	return &Queue{
		client:            client,
		stream:            stream,
		group:             group,
		consumer:          consumer,
		blockTimeout:      blockTimeout,
		visibilityTimeout: visibilityTimeout,
	}
}

func (q *Queue) Stream() string { return q.stream }

// EnsureGroup 创建消费者组（已存在时忽略）
func (q *Queue) EnsureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Receive 接收一批消息：先认领闲置超时的待重投消息，再长轮询读取新消息
func (q *Queue) Receive(ctx context.Context, count int64) ([]Message, error) {
	messages, err := q.claimStale(ctx, count)
	if err != nil {
		return nil, err
	}
	if int64(len(messages)) >= count {
		return messages, nil
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    count - int64(len(messages)),
		Block:    q.blockTimeout,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return messages, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			messages = append(messages, toMessage(msg))
		}
	}
	return messages, nil
}

// claimStale 认领闲置超过可见超时的未确认消息（相当于队列的重投机制）
func (q *Queue) claimStale(ctx context.Context, count int64) ([]Message, error) {
	claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  q.visibilityTimeout,
		Start:    "0-0",
		Count:    count,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim pending messages: %w", err)
	}

	messages := make([]Message, 0, len(claimed))
	for _, msg := range claimed {
		messages = append(messages, toMessage(msg))
	}
	return messages, nil
}

// Ack 确认消息（从待处理列表移除）
func (q *Queue) Ack(ctx context.Context, id string) error {
	return q.client.XAck(ctx, q.stream, q.group, id).Err()
}

// PublishJSON 发布 JSON 消息（用于边缘端网关与测试灌入）
func (q *Queue) PublishJSON(ctx context.Context, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"body":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
}

func toMessage(msg redis.XMessage) Message {
	var body []byte
	if raw, ok := msg.Values["body"].(string); ok {
		body = []byte(raw)
	}
	return Message{ID: msg.ID, Body: body}
}
