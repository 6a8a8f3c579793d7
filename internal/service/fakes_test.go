package service

import (
	"context"
	"sync"
	"time"

	"aegis-safety/internal/cache"
	"aegis-safety/internal/models"
	"aegis-safety/internal/notifier"
	"aegis-safety/internal/storage"
)

// fakeKV 仅用于单元测试
type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeKV() *fakeKV { return &fakeKV{data: make(map[string]string)} }

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeKV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value
	return true, nil
}

// fakeHash 仅用于单元测试（忽略 TTL）
type fakeHash struct {
	mu   sync.Mutex
	data map[string]map[string]string
}

func newFakeHash() *fakeHash {
	return &fakeHash{data: make(map[string]map[string]string)}
}

func (f *fakeHash) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key], nil
}

func (f *fakeHash) HSetWithTTL(ctx context.Context, key string, fields map[string]interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := make(map[string]string, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok {
			entry[k] = s
		}
	}
	f.data[key] = entry
	return nil
}

func (f *fakeHash) BatchHGetAll(ctx context.Context, keys []string) ([]map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, f.data[key])
	}
	return out, nil
}

// fakeFiles 仅用于单元测试（记录搬迁，不落盘）
type fakeFiles struct {
	mu      sync.Mutex
	moves   map[string]string // source → dest
	missing map[string]bool
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{
		moves:   make(map[string]string),
		missing: make(map[string]bool),
	}
}

func (f *fakeFiles) Move(ctx context.Context, sourceKey, destKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[sourceKey] {
		return storage.ErrSourceNotFound
	}
	f.moves[sourceKey] = destKey
	return nil
}

func (f *fakeFiles) URL(key string) string {
	if key == "" {
		return ""
	}
	return "https://media.test/" + key
}

// fakePush 仅用于单元测试
type fakePush struct {
	mu        sync.Mutex
	alerts    []models.AlertNotification
	groups    []string
	telemetry []models.VehicleTelemetryUpdate
}

func (f *fakePush) PushAlert(group string, alert models.AlertNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = append(f.groups, group)
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakePush) PushTelemetry(group string, update models.VehicleTelemetryUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = append(f.groups, group)
	f.telemetry = append(f.telemetry, update)
	return nil
}

// fakeEmail 仅用于单元测试
type fakeEmail struct {
	mu       sync.Mutex
	critical []string
	high     []string
}

func (f *fakeEmail) SendHighAlert(ctx context.Context, email notifier.AlertEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.high = append(f.high, email.To)
	return nil
}

func (f *fakeEmail) SendCriticalAlert(ctx context.Context, email notifier.AlertEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.critical = append(f.critical, email.To)
	return nil
}
