package channel

import (
	"github.com/aegis-sign/jadelink/internal/promutil"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 暴露通道层的读字节数、消息数、解码器重置与连接状态。
type Metrics struct {
	bytesRead     prometheus.Counter
	messages      *prometheus.CounterVec
	decoderResets *prometheus.CounterVec
	connected     prometheus.Gauge
}

// NewMetrics 在注册器中注册通道指标，nil 使用默认注册器。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		bytesRead: promutil.Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jade",
			Subsystem: "channel",
			Name:      "bytes_read_total",
			Help:      "Total bytes read from the device channel",
		})),
		messages: promutil.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jade",
			Subsystem: "channel",
			Name:      "messages_total",
			Help:      "Decoded protocol messages by kind",
		}, []string{"kind"})),
		decoderResets: promutil.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jade",
			Subsystem: "channel",
			Name:      "decoder_resets_total",
			Help:      "Receive buffer resets by reason",
		}, []string{"reason"})),
		connected: promutil.Register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "jade",
			Subsystem: "channel",
			Name:      "connected",
			Help:      "1 while the device channel is connected",
		})),
	}
}

func (m *Metrics) addBytes(n int) {
	m.bytesRead.Add(float64(n))
}

func (m *Metrics) incMessage(kind string) {
	m.messages.WithLabelValues(kind).Inc()
}

func (m *Metrics) incReset(reason string) {
	m.decoderResets.WithLabelValues(reason).Inc()
}

func (m *Metrics) setConnected(up bool) {
	if up {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}
