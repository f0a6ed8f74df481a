package rpc

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultTimeout 是普通调用从写出请求起的等待上限。
const DefaultTimeout = 5 * time.Second

// Option 自定义 Tracker。
type Option func(*Tracker)

// WithTimeout 设置普通调用的超时，<=0 表示使用默认值。
func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithLogger 注入 slog Logger。
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithRegisterer 指定 Prometheus 注册器。
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(t *Tracker) { t.metrics = NewMetrics(reg) }
}

// WithIDGenerator 替换请求 id 生成器。
func WithIDGenerator(fn func() string) Option {
	return func(t *Tracker) {
		if fn != nil {
			t.newID = fn
		}
	}
}

// NewRequestID 生成 16 个十六进制字符的随机 id（取自 UUIDv4，含 60 位随机量）。
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

type callOptions struct {
	id       string
	longWait bool
}

// CallOption 自定义单次调用。
type CallOption func(*callOptions)

// WithID 使用调用方指定的请求 id。
func WithID(id string) CallOption {
	return func(o *callOptions) { o.id = id }
}

// WithLongWait 取消超时，用于需要用户在设备上确认的操作。
func WithLongWait() CallOption {
	return LongWait(true)
}

// LongWait 按布尔值设置长等待。
func LongWait(enabled bool) CallOption {
	return func(o *callOptions) { o.longWait = enabled }
}

// IsLongWait 报告选项组合最终是否启用长等待。
func IsLongWait(opts ...CallOption) bool {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}
	return co.longWait
}
