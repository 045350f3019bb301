package httpapi

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 /metrics）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterMonitorRoutes 注册设备与倒计时路由
func (r *Router) RegisterMonitorRoutes(m *MonitorHandler) {
	r.Handle("/devices", method(http.MethodGet, m.ListDevices))
	r.Handle("/data", method(http.MethodGet, m.GetData))

	// /get_countdown/{id}
	r.Handle("/get_countdown/", method(http.MethodGet, func(w http.ResponseWriter, req *http.Request) {
		id, ok := pathID(req.URL.EscapedPath(), "/get_countdown/", "")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		m.GetCountdown(w, req, id)
	}))

	// /reset_countdown/{id}
	r.Handle("/reset_countdown/", method(http.MethodPost, func(w http.ResponseWriter, req *http.Request) {
		id, ok := pathID(req.URL.EscapedPath(), "/reset_countdown/", "")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		m.ResetCountdown(w, req, id)
	}))

	r.Handle("/countdown/export", method(http.MethodGet, m.ExportCountdowns))

	// /countdown/{id}/set, /countdown/{id}/end_date
	r.Handle("/countdown/", func(w http.ResponseWriter, req *http.Request) {
		if id, ok := pathID(req.URL.EscapedPath(), "/countdown/", "/set"); ok {
			if req.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			m.SetCountdown(w, req, id)
			return
		}
		if id, ok := pathID(req.URL.EscapedPath(), "/countdown/", "/end_date"); ok {
			if req.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			m.GetEndDate(w, req, id)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
}

// RegisterMetricsRoute 注册 Prometheus 指标
func (r *Router) RegisterMetricsRoute(g prometheus.Gatherer) {
	r.HandleHandler("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != m {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// pathID 取出 prefix 与 suffix 之间的单段 id（转义路径，设备标识中的 "/" 需写成 %2F）
func pathID(escapedPath, prefix, suffix string) (string, bool) {
	rest := strings.TrimPrefix(escapedPath, prefix)
	if rest == escapedPath || !strings.HasSuffix(rest, suffix) {
		return "", false
	}
	raw := strings.TrimSuffix(rest, suffix)
	if raw == "" || strings.Contains(raw, "/") {
		return "", false
	}
	id, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	return id, true
}
