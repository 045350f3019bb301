package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 丢弃原因
const (
	DropMalformed    = "malformed"
	DropPanic        = "panic"
	DropShutdown     = "shutdown"
)

// Recorder 服务内部指标
type Recorder interface {
	MessageIngested()
	MessageDropped(reason string)
	PenaltyApplied(severity string)
	PersistenceFailed()
	SetKnownDevices(n int)
}

// PromRecorder 基于 Prometheus 的 Recorder
type PromRecorder struct {
	ingested    prometheus.Counter
	dropped     *prometheus.CounterVec
	penalties   *prometheus.CounterVec
	persistFail prometheus.Counter
	devices     prometheus.Gauge
}

// NewPromRecorder 创建并注册指标；reg 为 nil 时使用默认 Registerer
func NewPromRecorder(reg prometheus.Registerer) *PromRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &PromRecorder{
		ingested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vibration_messages_ingested_total",
			Help: "Telemetry messages appended to device history.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vibration_messages_dropped_total",
			Help: "Telemetry messages discarded before reaching history.",
		}, []string{"reason"}),
		penalties: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vibration_countdown_penalties_total",
			Help: "Countdown penalties applied, by severity.",
		}, []string{"severity"}),
		persistFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vibration_countdown_persistence_failures_total",
			Help: "Failed writes of the countdown snapshot.",
		}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vibration_known_devices",
			Help: "Devices with telemetry history.",
		}),
	}

	reg.MustRegister(r.ingested, r.dropped, r.penalties, r.persistFail, r.devices)
	return r
}

func (r *PromRecorder) MessageIngested() { r.ingested.Inc() }

func (r *PromRecorder) MessageDropped(reason string) { r.dropped.WithLabelValues(reason).Inc() }

func (r *PromRecorder) PenaltyApplied(severity string) { r.penalties.WithLabelValues(severity).Inc() }

func (r *PromRecorder) PersistenceFailed() { r.persistFail.Inc() }

func (r *PromRecorder) SetKnownDevices(n int) { r.devices.Set(float64(n)) }

// Nop 不记录任何指标（测试使用）
type Nop struct{}

func (Nop) MessageIngested()      {}
func (Nop) MessageDropped(string) {}
func (Nop) PenaltyApplied(string) {}
func (Nop) PersistenceFailed()    {}
func (Nop) SetKnownDevices(int)   {}
