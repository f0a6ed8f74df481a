package rpc

import (
	"strings"
	"time"

	"github.com/aegis-sign/jadelink/internal/promutil"
	"github.com/aegis-sign/jadelink/pkg/rpcerrors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 记录调用结果、延迟、中继轮次与挂起调用数。
type Metrics struct {
	calls     *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	relayLegs *prometheus.CounterVec
	pending   prometheus.Gauge
}

// NewMetrics 注册 RPC 指标，nil 使用默认注册器。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		calls: promutil.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jade",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "RPC calls by method and outcome",
		}, []string{"method", "outcome"})),
		latency: promutil.Register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jade",
			Subsystem: "rpc",
			Name:      "call_latency_ms",
			Help:      "RPC call latency in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 30000, 120000},
		}, []string{"method"})),
		relayLegs: promutil.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jade",
			Subsystem: "rpc",
			Name:      "relay_legs_total",
			Help:      "HTTP relay legs performed on behalf of the device",
		}, []string{"method"})),
		pending: promutil.Register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "jade",
			Subsystem: "rpc",
			Name:      "pending_calls",
			Help:      "Calls awaiting a response",
		})),
	}
}

func (m *Metrics) observeCall(method string, err error, d time.Duration) {
	m.calls.WithLabelValues(method, outcome(err)).Inc()
	m.latency.WithLabelValues(method).Observe(float64(d) / float64(time.Millisecond))
}

func (m *Metrics) incRelayLeg(method string) {
	m.relayLegs.WithLabelValues(method).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if rpcErr, ok := rpcerrors.FromError(err); ok {
		return strings.ToLower(string(rpcErr.Code))
	}
	return "error"
}
