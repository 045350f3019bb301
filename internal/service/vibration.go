package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"vibration-monitor/common/database"
	mqttcommon "vibration-monitor/common/mqtt"
	rediscommon "vibration-monitor/common/redis"
	"vibration-monitor/internal/config"
	"vibration-monitor/internal/consumer"
	"vibration-monitor/internal/countdown"
	"vibration-monitor/internal/history"
	"vibration-monitor/internal/ingestion"
	"vibration-monitor/internal/metrics"
	"vibration-monitor/internal/notifier"
	"vibration-monitor/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// VibrationService 振动监测服务：MQTT 摄取 + 倒计时账本
type VibrationService struct {
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	mqttClient *mqttcommon.Client
	registry   *prometheus.Registry

	history     *history.Store
	ledger      *countdown.Ledger
	coordinator *ingestion.Coordinator
	consumer    *consumer.MQTTConsumer
	monitor     MonitorService

	wg sync.WaitGroup
}

// NewVibrationService 创建服务并连接依赖
func NewVibrationService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*VibrationService, error) {
	s := &VibrationService{
		config:   cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// 初始化 Redis（redis 存储后端或事件 Stream 需要）
	if cfg.Storage.Backend == config.StorageRedis || cfg.Events.Stream != "" {
		s.redis = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, s.redis); err != nil {
			s.closeClients()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	// 初始化数据库
	if cfg.Storage.Backend == config.StoragePostgres {
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			s.closeClients()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
	}

	store, err := s.newSnapshotStore(ctx)
	if err != nil {
		s.closeClients()
		return nil, err
	}

	globalDefault := countdown.ParseDuration(cfg.Monitor.CountdownSpec, countdown.DefaultDuration)
	ledger, err := countdown.NewLedger(ctx, store, globalDefault, logger)
	if err != nil {
		s.closeClients()
		return nil, err
	}

	recorder := metrics.NewPromRecorder(s.registry)
	s.history = history.NewStore(cfg.Monitor.HistorySize)
	s.ledger = ledger
	s.coordinator = ingestion.NewCoordinator(
		s.history,
		ledger,
		countdown.NewPenaltyEngine(s.history, ledger, logger),
		s.newNotifier(),
		recorder,
		logger,
	)
	s.monitor = NewMonitorService(s.history, ledger, cfg.Monitor.DeviceAllowlist, cfg.Monitor.OnlineWindow, logger)

	// 初始化 MQTT
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
	if err != nil {
		s.closeClients()
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}
	s.mqttClient = mqttClient
	s.consumer = consumer.NewMQTTConsumer(mqttClient, s.coordinator, cfg.MQTT.Topics, cfg.MQTT.QoS, recorder, logger)

	return s, nil
}

func (s *VibrationService) newSnapshotStore(ctx context.Context) (countdown.SnapshotStore, error) {
	switch s.config.Storage.Backend {
	case config.StorageRedis:
		return repository.NewRedisSnapshotStore(s.redis, s.config.Storage.KeyPrefix, s.logger), nil
	case config.StoragePostgres:
		store := repository.NewPostgresSnapshotStore(s.db, s.logger)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return repository.NewFileSnapshotStore(s.config.Storage.Dir, s.logger)
	}
}

func (s *VibrationService) newNotifier() notifier.Notifier {
	var out notifier.Multi
	if s.config.Events.Stream != "" && s.redis != nil {
		out = append(out, notifier.NewStreamNotifier(s.redis, s.config.Events.Stream, s.config.Events.StreamMaxLen, s.logger))
	}
	if s.config.Events.WebhookURL != "" {
		out = append(out, notifier.NewWebhookNotifier(s.config.Events.WebhookURL, s.config.Events.WebhookTimeout, s.logger))
	}
	if len(out) == 0 {
		return notifier.Nop{}
	}
	return out
}

// Monitor 查询与命令接口
func (s *VibrationService) Monitor() MonitorService {
	return s.monitor
}

// Gatherer 服务指标（/metrics）
func (s *VibrationService) Gatherer() prometheus.Gatherer {
	return s.registry
}

// HealthChecks 依赖检查（mqtt 必有，redis/database 按配置启用）
func (s *VibrationService) HealthChecks() map[string]func(ctx context.Context) error {
	checks := map[string]func(ctx context.Context) error{
		"mqtt": func(ctx context.Context) error {
			if s.mqttClient == nil || !s.mqttClient.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		},
	}
	if s.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rediscommon.Ping(ctx, s.redis)
		}
	}
	if s.db != nil {
		checks["database"] = func(ctx context.Context) error {
			return s.db.PingContext(ctx)
		}
	}
	return checks
}

// Start 启动消费协程后立即返回
func (s *VibrationService) Start(ctx context.Context) error {
	s.logger.Info("Starting vibration service components",
		zap.Strings("topics", s.config.MQTT.Topics),
		zap.String("storage", s.config.Storage.Backend),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.consumer.Start(ctx); err != nil {
			s.logger.Error("MQTT consumer exited", zap.Error(err))
		}
	}()

	s.logger.Info("Vibration service started successfully")
	return nil
}

// Stop 停止消费、写出账本并关闭连接
func (s *VibrationService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping vibration service")

	if s.consumer != nil {
		if err := s.consumer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping consumer", zap.Error(err))
		}
	}
	s.wg.Wait()

	var flushErr error
	if s.ledger != nil {
		if flushErr = s.ledger.Flush(ctx); flushErr != nil {
			s.logger.Error("Failed to flush countdown ledger", zap.Error(flushErr))
		}
	}

	s.closeClients()
	s.logger.Info("Vibration service stopped")
	return flushErr
}

func (s *VibrationService) closeClients() {
	// 断开MQTT
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	// 关闭Redis
	if s.redis != nil {
		rediscommon.Close(s.redis)
	}
	// 关闭数据库
	if s.db != nil {
		database.Close(s.db)
	}
}
