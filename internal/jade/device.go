package jade

import (
	"context"
	"log/slog"

	"github.com/aegis-sign/jadelink/internal/channel"
	"github.com/aegis-sign/jadelink/internal/rpc"
	"github.com/prometheus/client_golang/prometheus"
)

// Device 组合通道、Tracker 与命令封装，对应一台已连接的设备。
type Device struct {
	*Client
	Channel channel.Channel
	Tracker *rpc.Tracker
}

// Connect 按配置打开通道（带连接重试）并返回可用的 Device。
func Connect(ctx context.Context, cfg channel.Config, logger *slog.Logger, reg prometheus.Registerer) (*Device, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ch, err := channel.Open(ctx, cfg, channel.WithLogger(logger), channel.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	return NewDevice(ch, rpc.WithTimeout(cfg.CallTimeout), rpc.WithLogger(logger), rpc.WithRegisterer(reg)), nil
}

// NewDevice 在已连接的通道上构建 Device。
func NewDevice(ch channel.Channel, opts ...rpc.Option) *Device {
	tracker := rpc.NewTracker(ch, opts...)
	return &Device{Client: NewClient(tracker), Channel: ch, Tracker: tracker}
}

// Close 断开通道，挂起的调用以 channel closed 失败。
func (d *Device) Close() error {
	return d.Channel.Disconnect()
}
