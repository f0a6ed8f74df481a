package relay

import (
	"github.com/aegis-sign/jadelink/internal/promutil"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 记录中继 HTTP 请求的结果。
type Metrics struct {
	requests *prometheus.CounterVec
}

// NewMetrics 注册中继指标，nil 使用默认注册器。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		requests: promutil.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jade",
			Subsystem: "relay",
			Name:      "http_requests_total",
			Help:      "HTTP requests relayed for the device by outcome",
		}, []string{"outcome"})),
	}
}

func (m *Metrics) inc(outcome string) {
	m.requests.WithLabelValues(outcome).Inc()
}
