package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"vibration-monitor/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Redis 快照键（Hash：field = 设备标识）
const (
	RedisDefaultsKey   = "countdown:defaults"
	RedisCountdownsKey = "countdown:records"
)

// RedisSnapshotStore 以 Redis Hash 保存倒计时快照
// 每次保存在 MULTI/EXEC 中先 DEL 再 HSET，读者不会看到半写状态
type RedisSnapshotStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisSnapshotStore 创建 Redis 快照存储，prefix 用于区分多个部署
func NewRedisSnapshotStore(client *redis.Client, prefix string, logger *zap.Logger) *RedisSnapshotStore {
	return &RedisSnapshotStore{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (s *RedisSnapshotStore) key(name string) string {
	return s.prefix + name
}

// LoadDefaults 读取设备默认时长
func (s *RedisSnapshotStore) LoadDefaults(ctx context.Context) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, s.key(RedisDefaultsKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	out := make(map[string]int64, len(raw))
	for device, v := range raw {
		seconds, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.logger.Warn("Skipping invalid default duration", zap.String("device", device), zap.String("value", v))
			continue
		}
		out[device] = seconds
	}
	return out, nil
}

// SaveDefaults 写入设备默认时长
func (s *RedisSnapshotStore) SaveDefaults(ctx context.Context, defaults map[string]int64) error {
	values := make(map[string]interface{}, len(defaults))
	for device, seconds := range defaults {
		values[device] = strconv.FormatInt(seconds, 10)
	}
	return s.replaceHash(ctx, s.key(RedisDefaultsKey), values)
}

// LoadCountdowns 读取倒计时记录
func (s *RedisSnapshotStore) LoadCountdowns(ctx context.Context) (map[string]models.CountdownRecord, error) {
	raw, err := s.client.HGetAll(ctx, s.key(RedisCountdownsKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load countdowns: %w", err)
	}

	out := make(map[string]models.CountdownRecord, len(raw))
	for device, v := range raw {
		var rec models.CountdownRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			s.logger.Warn("Skipping invalid countdown record", zap.String("device", device), zap.Error(err))
			continue
		}
		out[device] = rec
	}
	return out, nil
}

// SaveCountdowns 写入倒计时记录
func (s *RedisSnapshotStore) SaveCountdowns(ctx context.Context, records map[string]models.CountdownRecord) error {
	values := make(map[string]interface{}, len(records))
	for device, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal countdown for %s: %w", device, err)
		}
		values[device] = string(b)
	}
	return s.replaceHash(ctx, s.key(RedisCountdownsKey), values)
}

func (s *RedisSnapshotStore) replaceHash(ctx context.Context, key string, values map[string]interface{}) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.HSet(ctx, key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
