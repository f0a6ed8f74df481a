package channel

import (
	"context"
	"log/slog"
	"time"

	"github.com/aegis-sign/jadelink/pkg/rpcerrors"
)

// OpenerFor 根据配置选择串口或流式端点。
func OpenerFor(cfg Config) (Opener, string) {
	if cfg.SerialPort != "" {
		return SerialOpener(cfg.SerialPort, cfg.BaudRate), "serial:" + cfg.SerialPort
	}
	return EndpointOpener(cfg.Endpoint, cfg.DialTimeout), cfg.Endpoint
}

// New 按配置创建未连接的通道。
func New(cfg Config, opts ...Option) *StreamChannel {
	opener, name := OpenerFor(cfg)
	base := []Option{
		WithName(name),
		WithReadBufferSize(cfg.ReadBufferSize),
		WithMaxBuffer(cfg.MaxBuffer),
	}
	return NewStreamChannel(opener, append(base, opts...)...)
}

// Open 创建通道并连接；连接失败时按指数退避重试 ConnectAttempts 次。
// 仅连接会重试，RPC 调用从不重试。
func Open(ctx context.Context, cfg Config, opts ...Option) (*StreamChannel, error) {
	ch := New(cfg, opts...)
	if err := ConnectWithRetry(ctx, ch, cfg.ConnectAttempts, cfg.Backoff, ch.logger); err != nil {
		return nil, err
	}
	return ch, nil
}

// ConnectWithRetry 对任意 Channel 执行带退避的连接。
func ConnectWithRetry(ctx context.Context, ch Channel, attempts int, cfg BackoffConfig, logger *slog.Logger) error {
	if attempts <= 0 {
		attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	delays := newRetryDelays(cfg)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = ch.Connect(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		wait := delays.next()
		logger.Warn("device connect failed, retrying", "attempt", attempt, "wait", wait, "err", err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return rpcerrors.Wrap(rpcerrors.CodeChannel, "connect cancelled", ctx.Err())
		case <-timer.C:
		}
	}
	return err
}
