package repository

import (
	"context"
	"database/sql"
	"fmt"

	"vibration-monitor/internal/models"

	"go.uber.org/zap"
)

// PostgresSnapshotStore 以 PostgreSQL 表保存倒计时快照
// 每次保存在一个事务里清空并重写整张表
type PostgresSnapshotStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresSnapshotStore 创建 PostgreSQL 快照存储
func NewPostgresSnapshotStore(db *sql.DB, logger *zap.Logger) *PostgresSnapshotStore {
	return &PostgresSnapshotStore{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 创建快照表（若不存在）
func (s *PostgresSnapshotStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS device_countdown_defaults (
			device_id TEXT PRIMARY KEY,
			seconds   BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS device_countdowns (
			device_id          TEXT PRIMARY KEY,
			end_timestamp      DOUBLE PRECISION NOT NULL,
			last_penalty_check DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// LoadDefaults 读取设备默认时长
func (s *PostgresSnapshotStore) LoadDefaults(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT device_id, seconds FROM device_countdown_defaults`)
	if err != nil {
		return nil, fmt.Errorf("failed to query defaults: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var device string
		var seconds int64
		if err := rows.Scan(&device, &seconds); err != nil {
			return nil, fmt.Errorf("failed to scan default: %w", err)
		}
		out[device] = seconds
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate defaults: %w", err)
	}
	return out, nil
}

// SaveDefaults 写入设备默认时长
func (s *PostgresSnapshotStore) SaveDefaults(ctx context.Context, defaults map[string]int64) error {
	return s.rewrite(ctx, "device_countdown_defaults", func(tx *sql.Tx) error {
		for device, seconds := range defaults {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO device_countdown_defaults (device_id, seconds) VALUES ($1, $2)`,
				device, seconds,
			); err != nil {
				return fmt.Errorf("failed to insert default for %s: %w", device, err)
			}
		}
		return nil
	})
}

// LoadCountdowns 读取倒计时记录
func (s *PostgresSnapshotStore) LoadCountdowns(ctx context.Context) (map[string]models.CountdownRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT device_id, end_timestamp, last_penalty_check FROM device_countdowns`)
	if err != nil {
		return nil, fmt.Errorf("failed to query countdowns: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.CountdownRecord)
	for rows.Next() {
		var device string
		var rec models.CountdownRecord
		if err := rows.Scan(&device, &rec.EndTimestamp, &rec.LastPenaltyCheck); err != nil {
			return nil, fmt.Errorf("failed to scan countdown: %w", err)
		}
		out[device] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate countdowns: %w", err)
	}
	return out, nil
}

// SaveCountdowns 写入倒计时记录
func (s *PostgresSnapshotStore) SaveCountdowns(ctx context.Context, records map[string]models.CountdownRecord) error {
	return s.rewrite(ctx, "device_countdowns", func(tx *sql.Tx) error {
		for device, rec := range records {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO device_countdowns (device_id, end_timestamp, last_penalty_check) VALUES ($1, $2, $3)`,
				device, rec.EndTimestamp, rec.LastPenaltyCheck,
			); err != nil {
				return fmt.Errorf("failed to insert countdown for %s: %w", device, err)
			}
		}
		return nil
	})
}

func (s *PostgresSnapshotStore) rewrite(ctx context.Context, table string, insert func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	if err = insert(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table, err)
	}
	return nil
}
