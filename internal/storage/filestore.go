package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrSourceNotFound 源文件不存在（允许事件在证据缺失时照常保存）
var ErrSourceNotFound = errors.New("source file not found")

// FileStore 证据文件存储
type FileStore interface {
	// Move 将文件从收件路径移动到结构化路径
	Move(ctx context.Context, sourceKey, destKey string) error
	// URL 生成对外可访问的文件链接
	URL(key string) string
}

// LocalFileStore 本地磁盘实现，键为相对根目录的路径
type LocalFileStore struct {
	root          string
	publicBaseURL string
	logger        *zap.Logger
}

// NewLocalFileStore 创建本地文件存储
func NewLocalFileStore(root, publicBaseURL string, logger *zap.Logger) *LocalFileStore {
	return &LocalFileStore{
		root:          root,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		logger:        logger,
	}
}

func (s *LocalFileStore) Move(ctx context.Context, sourceKey, destKey string) error {
	src := filepath.Join(s.root, filepath.FromSlash(sourceKey))
	dst := filepath.Join(s.root, filepath.FromSlash(destKey))

	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return ErrSourceNotFound
		}
		return fmt.Errorf("failed to stat source %s: %w", sourceKey, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", sourceKey, destKey, err)
	}

	s.logger.Debug("Moved evidence file",
		zap.String("source", sourceKey),
		zap.String("destination", destKey),
	)
	return nil
}

func (s *LocalFileStore) URL(key string) string {
	if key == "" || s.publicBaseURL == "" {
		return ""
	}
	return s.publicBaseURL + "/" + strings.TrimPrefix(key, "/")
}
