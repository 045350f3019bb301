package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vibration-monitor/internal/countdown"
	"vibration-monitor/internal/history"
	"vibration-monitor/internal/metrics"
	"vibration-monitor/internal/models"
	"vibration-monitor/internal/notifier"
	"vibration-monitor/internal/telemetry"

	"go.uber.org/zap"
)

// Coordinator 每条遥测消息的唯一入口：解码 → 写入历史 → (kategori) 惩罚评估
// 由单个消费协程顺序调用
type Coordinator struct {
	history  *history.Store
	ledger   *countdown.Ledger
	penalty  *countdown.PenaltyEngine
	notifier notifier.Notifier
	metrics  metrics.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewCoordinator 创建协调器；notifier、recorder 可为 nil
func NewCoordinator(
	store *history.Store,
	ledger *countdown.Ledger,
	penalty *countdown.PenaltyEngine,
	n notifier.Notifier,
	recorder metrics.Recorder,
	logger *zap.Logger,
) *Coordinator {
	if n == nil {
		n = notifier.Nop{}
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Coordinator{
		history:  store,
		ledger:   ledger,
		penalty:  penalty,
		notifier: n,
		metrics:  recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock 替换时钟（测试使用）
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// Ingest 处理一条消息。返回的错误只用于记录，调用方不应因此停止消费
func (c *Coordinator) Ingest(ctx context.Context, topic string, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.MessageDropped(metrics.DropPanic)
			c.logger.Error("Recovered from panic while ingesting message",
				zap.String("topic", topic),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			err = fmt.Errorf("panic while ingesting %s: %v", topic, r)
		}
	}()

	msg, err := telemetry.Decode(topic, payload)
	if err != nil {
		c.metrics.MessageDropped(metrics.DropMalformed)
		c.logger.Warn("Dropping malformed message", zap.String("topic", topic), zap.Error(err))
		return err
	}

	wall := c.now()
	if firstSeen := c.history.Append(msg.Device, msg.Field, msg.Value, wall); firstSeen {
		c.metrics.SetKnownDevices(len(c.history.Devices()))
		if _, err := c.ledger.Ensure(ctx, msg.Device, wall); err != nil {
			c.recordPersistenceError(err)
			c.logger.Error("Failed to initialize countdown",
				zap.String("device", msg.Device),
				zap.Error(err),
			)
		}
	}
	c.metrics.MessageIngested()

	if msg.Field != models.FieldCategory {
		return nil
	}

	ref := c.history.ReferenceTime(msg.Device, wall)
	evt, err := c.penalty.Evaluate(ctx, msg.Device, ref)
	if err != nil {
		c.recordPersistenceError(err)
		c.logger.Error("Penalty evaluation failed",
			zap.String("device", msg.Device),
			zap.Time("reference_time", ref),
			zap.Error(err),
		)
		return err
	}
	if evt == nil {
		return nil
	}

	c.metrics.PenaltyApplied(string(evt.Severity))
	if err := c.notifier.NotifyPenalty(ctx, evt); err != nil {
		// 通知失败不影响账本
		c.logger.Warn("Failed to deliver penalty event",
			zap.String("device", evt.Device),
			zap.String("event_id", evt.EventID),
			zap.Error(err),
		)
	}
	return nil
}

func (c *Coordinator) recordPersistenceError(err error) {
	if errors.Is(err, models.ErrPersistence) {
		c.metrics.PersistenceFailed()
	}
}
