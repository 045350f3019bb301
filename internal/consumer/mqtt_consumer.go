package consumer

import (
	"context"
	"fmt"
	"sync"

	mqttcommon "vibration-monitor/common/mqtt"
	"vibration-monitor/internal/metrics"

	"go.uber.org/zap"
)

// DefaultQueueSize 回调与处理协程之间的缓冲大小
const DefaultQueueSize = 1024

// Subscriber MQTT 订阅接口（*mqttcommon.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Ingester 单条消息处理
type Ingester interface {
	Ingest(ctx context.Context, topic string, payload []byte) error
}

type inbound struct {
	topic   string
	payload []byte
}

// MQTTConsumer 订阅遥测主题，由单个协程按到达顺序调用 Ingester
type MQTTConsumer struct {
	subscriber Subscriber
	ingester   Ingester
	topics     []string
	qos        byte
	metrics    metrics.Recorder
	logger     *zap.Logger

	queue    chan inbound
	stopping chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewMQTTConsumer 创建消费者
func NewMQTTConsumer(
	subscriber Subscriber,
	ingester Ingester,
	topics []string,
	qos byte,
	recorder metrics.Recorder,
	logger *zap.Logger,
) *MQTTConsumer {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &MQTTConsumer{
		subscriber: subscriber,
		ingester:   ingester,
		topics:     topics,
		qos:        qos,
		metrics:    recorder,
		logger:     logger,
		queue:      make(chan inbound, DefaultQueueSize),
		stopping:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start 订阅所有主题并阻塞处理消息，直到 ctx 取消或 Stop 被调用。
// Stop 触发时先处理完队列中已接收的消息再返回
func (c *MQTTConsumer) Start(ctx context.Context) error {
	defer close(c.done)

	if len(c.topics) == 0 {
		return fmt.Errorf("no MQTT topics configured")
	}

	for _, topic := range c.topics {
		if err := c.subscriber.Subscribe(topic, c.qos, c.handleMessage); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}

	c.logger.Info("MQTT consumer started", zap.Strings("topics", c.topics), zap.Uint8("qos", c.qos))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.stopping:
			c.drain(ctx)
			return nil
		case msg := <-c.queue:
			// Ingest 自行记录错误，这里只保证循环不中断
			_ = c.ingester.Ingest(ctx, msg.topic, msg.payload)
		}
	}
}

// drain 处理队列中剩余的消息，队列为空时返回
func (c *MQTTConsumer) drain(ctx context.Context) {
	drained := 0
	for {
		select {
		case msg := <-c.queue:
			_ = c.ingester.Ingest(ctx, msg.topic, msg.payload)
			drained++
		default:
			if drained > 0 {
				c.logger.Info("Drained queued MQTT messages", zap.Int("count", drained))
			}
			return
		}
	}
}

// Stop 取消订阅并等待处理协程退出
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.subscriber.Unsubscribe(c.topics...); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.stopOnce.Do(func() { close(c.stopping) })

	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	// drain 之后才入队的消息不会再被处理
	dropped := 0
discard:
	for {
		select {
		case <-c.queue:
			c.metrics.MessageDropped(metrics.DropShutdown)
			dropped++
		default:
			break discard
		}
	}

	c.logger.Info("MQTT consumer stopped", zap.Int("dropped", dropped))
	return nil
}

// handleMessage 在 paho 回调协程中执行，只负责入队
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	select {
	case <-c.stopping:
		return c.dropStopped(topic)
	default:
	}

	select {
	case c.queue <- inbound{topic: topic, payload: payload}:
		return nil
	case <-c.stopping:
		return c.dropStopped(topic)
	}
}

func (c *MQTTConsumer) dropStopped(topic string) error {
	c.metrics.MessageDropped(metrics.DropShutdown)
	return fmt.Errorf("consumer stopped, dropping message on %s", topic)
}
