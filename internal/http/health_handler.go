package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HealthCheck 单项依赖检查，返回 nil 表示正常
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler 健康与就绪检查
type HealthHandler struct {
	checks  []HealthCheck
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(checks []HealthCheck, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// HealthCheckResponse 健康检查响应
type HealthCheckResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func (h *HealthHandler) run(ctx context.Context) (bool, map[string]string) {
	ok := true
	services := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		cctx, cancel := context.WithTimeout(ctx, h.timeout)
		err := c.Check(cctx)
		cancel()
		if err != nil {
			ok = false
			services[c.Name] = "unhealthy: " + err.Error()
			continue
		}
		services[c.Name] = "healthy"
	}
	return ok, services
}

// Health GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ok, services := h.run(r.Context())

	resp := HealthCheckResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Services:  services,
	}
	status := http.StatusOK
	if !ok {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
		h.logger.Warn("Health check failed", zap.Any("services", services))
	}
	writeJSON(w, status, resp)
}

// Ready GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ok, services := h.run(r.Context())

	checks := make(map[string]bool, len(services))
	for name, s := range services {
		checks[name] = s == "healthy"
	}
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ready":  ok,
		"checks": checks,
	})
}

// RegisterHealthRoutes 注册健康检查路由
func (r *Router) RegisterHealthRoutes(h *HealthHandler) {
	r.Handle("/health", method(http.MethodGet, h.Health))
	r.Handle("/healthz", method(http.MethodGet, h.Health))
	r.Handle("/ready", method(http.MethodGet, h.Ready))
	r.Handle("/readyz", method(http.MethodGet, h.Ready))
}
