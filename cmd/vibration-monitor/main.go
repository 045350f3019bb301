package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vibration-monitor/common/logger"
	"vibration-monitor/internal/config"
	httpapi "vibration-monitor/internal/http"
	"vibration-monitor/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	lg, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "vibration-monitor")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	lg.Info("Starting vibration-monitor service",
		zap.String("mqtt_broker", cfg.MQTT.Broker),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("http_addr", cfg.HTTP.Addr),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 创建服务
	vibrationService, err := service.NewVibrationService(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("Failed to create vibration service", zap.Error(err))
	}

	router := httpapi.NewRouter(lg)
	router.RegisterMonitorRoutes(httpapi.NewMonitorHandler(vibrationService.Monitor(), lg))
	router.RegisterMetricsRoute(vibrationService.Gatherer())
	router.RegisterHealthRoutes(httpapi.NewHealthHandler(healthChecks(vibrationService), lg))
	srv := service.NewServer(cfg.HTTP.Addr, router, lg)

	// 启动服务
	if err := vibrationService.Start(ctx); err != nil {
		lg.Fatal("Failed to start vibration service", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// 等待中断信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		lg.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		lg.Error("HTTP server exited", zap.Error(err))
	}

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		lg.Error("Error stopping HTTP server", zap.Error(err))
	}
	if err := vibrationService.Stop(shutdownCtx); err != nil {
		lg.Error("Error during shutdown", zap.Error(err))
	}
	cancel()

	lg.Info("Service stopped")
}

func healthChecks(svc *service.VibrationService) []httpapi.HealthCheck {
	byName := svc.HealthChecks()
	checks := make([]httpapi.HealthCheck, 0, len(byName))
	for _, name := range []string{"mqtt", "redis", "database"} {
		if fn, ok := byName[name]; ok {
			checks = append(checks, httpapi.HealthCheck{Name: name, Check: fn})
		}
	}
	return checks
}
