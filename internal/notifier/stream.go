package notifier

import (
	"context"
	"fmt"

	rediscommon "vibration-monitor/common/redis"
	"vibration-monitor/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultStream 惩罚事件默认写入的 stream
const DefaultStream = "countdown:penalty:stream"

// StreamNotifier 将惩罚事件写入 Redis Stream
type StreamNotifier struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewStreamNotifier 创建 Stream 通知器；maxLen <= 0 表示不裁剪
func NewStreamNotifier(client *redis.Client, stream string, maxLen int64, logger *zap.Logger) *StreamNotifier {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamNotifier{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

func (n *StreamNotifier) NotifyPenalty(ctx context.Context, evt *models.PenaltyEvent) error {
	id, err := rediscommon.PublishJSONToStream(ctx, n.client, n.stream, n.maxLen, evt)
	if err != nil {
		return fmt.Errorf("failed to publish penalty event to %s: %w", n.stream, err)
	}
	n.logger.Debug("Penalty event published",
		zap.String("stream", n.stream),
		zap.String("message_id", id),
		zap.String("event_id", evt.EventID),
	)
	return nil
}
