package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"vibration-monitor/internal/models"

	"go.uber.org/zap"
)

// 快照文件名
const (
	DefaultsFile   = "countdown_defaults.json"
	CountdownsFile = "countdowns.json"
)

// FileSnapshotStore 以 JSON 文件保存倒计时快照
// 写入先写临时文件再 rename，崩溃时旧快照保持完整
type FileSnapshotStore struct {
	dir    string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewFileSnapshotStore 创建文件快照存储，目录不存在时自动创建
func NewFileSnapshotStore(dir string, logger *zap.Logger) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	return &FileSnapshotStore{dir: dir, logger: logger}, nil
}

// LoadDefaults 读取设备默认时长
func (s *FileSnapshotStore) LoadDefaults(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	if err := s.load(DefaultsFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveDefaults 写入设备默认时长
func (s *FileSnapshotStore) SaveDefaults(ctx context.Context, defaults map[string]int64) error {
	return s.save(DefaultsFile, defaults)
}

// LoadCountdowns 读取倒计时记录
func (s *FileSnapshotStore) LoadCountdowns(ctx context.Context) (map[string]models.CountdownRecord, error) {
	out := make(map[string]models.CountdownRecord)
	if err := s.load(CountdownsFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveCountdowns 写入倒计时记录
func (s *FileSnapshotStore) SaveCountdowns(ctx context.Context, records map[string]models.CountdownRecord) error {
	return s.save(CountdownsFile, records)
}

func (s *FileSnapshotStore) load(name string, dest interface{}) error {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func (s *FileSnapshotStore) save(name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// rename 成功后 tmpPath 已不存在，Remove 返回的错误可以忽略
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}

	s.logger.Debug("Snapshot written", zap.String("file", name), zap.Int("bytes", len(data)))
	return nil
}
