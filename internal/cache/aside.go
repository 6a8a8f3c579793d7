package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
)

// GetOrLoad 通用 cache-aside 读取：先查缓存，未命中时回源并回填。
// 缓存读取失败降级为直接回源；回填失败只记日志（缓存是优化，不是事实来源）。
func GetOrLoad[T any](
	ctx context.Context,
	kv KVStore,
	key string,
	ttl time.Duration,
	logger *zap.Logger,
	load func(ctx context.Context) (T, error),
) (T, error) {
	var zero T

	cached, err := kv.Get(ctx, key)
	if err == nil {
		var value T
		if jsonErr := json.Unmarshal([]byte(cached), &value); jsonErr == nil {
			return value, nil
		}
		// 缓存内容损坏，按未命中处理
		logger.Warn("Discarding unreadable cache entry",
			zap.String("key", key),
		)
	} else if !errors.Is(err, ErrCacheMiss) {
		logger.Warn("Cache read failed, falling back to source",
			zap.String("key", key),
			zap.Error(err),
		)
	}

	value, err := load(ctx)
	if err != nil {
		return zero, err
	}

	if data, jsonErr := json.Marshal(value); jsonErr == nil {
		if setErr := kv.Set(ctx, key, string(data), ttl); setErr != nil {
			logger.Warn("Cache write-back failed",
				zap.String("key", key),
				zap.Error(setErr),
			)
		}
	}

	return value, nil
}
