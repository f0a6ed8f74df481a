package channel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aegis-sign/jadelink/internal/wire"
	"github.com/aegis-sign/jadelink/pkg/rpcerrors"
	"github.com/prometheus/client_golang/prometheus"
)

// Channel 是到设备的有序双向字节流，解出的消息发布到 Bus。
type Channel interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Send(msg any) error
	Bus() *Bus
	Errors() <-chan error
}

// Opener 打开底层字节流（TCP、unix、vsock 或串口）。
type Opener func(ctx context.Context) (io.ReadWriteCloser, error)

// Option 自定义 StreamChannel。
type Option func(*StreamChannel)

// WithLogger 注入 slog Logger。
func WithLogger(l *slog.Logger) Option {
	return func(c *StreamChannel) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRegisterer 指定 Prometheus 注册器。
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *StreamChannel) { c.metrics = NewMetrics(reg) }
}

// WithReadBufferSize 设置单次读的缓冲大小。
func WithReadBufferSize(n int) Option {
	return func(c *StreamChannel) {
		if n > 0 {
			c.readSize = n
		}
	}
}

// WithMaxBuffer 设置解码器接收缓冲上限。
func WithMaxBuffer(n int) Option {
	return func(c *StreamChannel) {
		if n > 0 {
			c.maxBuffer = n
		}
	}
}

// WithName 设置日志中的通道名。
func WithName(name string) Option {
	return func(c *StreamChannel) { c.name = name }
}

type session struct {
	conn    io.ReadWriteCloser
	done    chan struct{}
	closing atomic.Bool

	decMu sync.Mutex
	dec   *wire.FrameDecoder
}

// StreamChannel 在任意 io.ReadWriteCloser 上实现 Channel：
// 单个读 goroutine 独占 FrameDecoder，写入经互斥锁串行化。
type StreamChannel struct {
	name      string
	open      Opener
	logger    *slog.Logger
	metrics   *Metrics
	readSize  int
	maxBuffer int

	bus  *Bus
	errs chan error

	mu   sync.Mutex
	sess *session

	writeMu sync.Mutex
}

var _ Channel = (*StreamChannel)(nil)

// NewStreamChannel 创建未连接的通道。
func NewStreamChannel(open Opener, opts ...Option) *StreamChannel {
	c := &StreamChannel{
		name:      "jade",
		open:      open,
		logger:    slog.Default(),
		readSize:  4 * 1024,
		maxBuffer: wire.DefaultMaxBuffer,
		bus:       NewBus(),
		errs:      make(chan error, 8),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	return c
}

// Bus 返回入站消息总线。
func (c *StreamChannel) Bus() *Bus { return c.bus }

// Errors 返回读循环的异步错误，缓冲满时丢弃。
func (c *StreamChannel) Errors() <-chan error { return c.errs }

// Connected 报告通道是否处于连接状态。
func (c *StreamChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil
}

// Connect 打开底层流并启动读循环。
func (c *StreamChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		return rpcerrors.New(rpcerrors.CodeChannel, "already connected")
	}
	if c.open == nil {
		return rpcerrors.New(rpcerrors.CodeChannel, "no opener configured")
	}
	conn, err := c.open(ctx)
	if err != nil {
		return rpcerrors.Wrap(rpcerrors.CodeChannel, "connect failed", err)
	}
	sess := &session{conn: conn, done: make(chan struct{}), dec: c.newDecoder()}
	c.sess = sess
	c.metrics.setConnected(true)
	go c.readLoop(sess)
	c.logger.Info("device channel connected", "channel", c.name)
	return nil
}

// Disconnect 关闭底层流，等待读循环退出，并使所有挂起调用以 channel closed 失败。
// 未连接时调用是无操作。
func (c *StreamChannel) Disconnect() error {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.mu.Unlock()
	if sess == nil {
		return nil
	}
	sess.closing.Store(true)
	err := sess.conn.Close()
	<-sess.done
	c.metrics.setConnected(false)
	c.bus.FailAll(rpcerrors.Wrap(rpcerrors.CodeChannel, "channel closed", rpcerrors.ErrClosed))
	c.logger.Info("device channel disconnected", "channel", c.name)
	if err != nil {
		return rpcerrors.Wrap(rpcerrors.CodeChannel, "close failed", err)
	}
	return nil
}

// Send 编码 msg 并以一次完整写入发出。
func (c *StreamChannel) Send(msg any) error {
	data, err := wire.Encode(msg)
	if err != nil {
		return rpcerrors.Wrap(rpcerrors.CodeValidation, "encode request", err)
	}
	sess := c.current()
	if sess == nil {
		return rpcerrors.Wrap(rpcerrors.CodeChannel, "send", rpcerrors.ErrNotConnected)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	for len(data) > 0 {
		n, err := sess.conn.Write(data)
		if err != nil {
			return rpcerrors.Wrap(rpcerrors.CodeChannel, "write failed", err)
		}
		data = data[n:]
	}
	return nil
}

// Drain 丢弃解码器中尚未成帧的字节。
func (c *StreamChannel) Drain() {
	if sess := c.current(); sess != nil {
		sess.decMu.Lock()
		sess.dec.Drain()
		sess.decMu.Unlock()
	}
}

// Buffered 返回解码器中尚未成帧的字节数。
func (c *StreamChannel) Buffered() int {
	sess := c.current()
	if sess == nil {
		return 0
	}
	sess.decMu.Lock()
	defer sess.decMu.Unlock()
	return sess.dec.Buffered()
}

func (c *StreamChannel) current() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

func (c *StreamChannel) newDecoder() *wire.FrameDecoder {
	return wire.NewFrameDecoder(
		wire.WithMaxBuffer(c.maxBuffer),
		wire.WithResetHook(func(reason wire.ResetReason, dropped int, err error) {
			c.metrics.incReset(string(reason))
			if reason == wire.ResetDrain {
				c.logger.Debug("receive buffer drained", "channel", c.name, "dropped", dropped)
				return
			}
			c.logger.Warn("receive buffer reset", "channel", c.name, "reason", reason, "dropped", dropped, "err", err)
		}),
	)
}

func (c *StreamChannel) readLoop(sess *session) {
	defer close(sess.done)
	buf := make([]byte, c.readSize)
	for {
		n, err := sess.conn.Read(buf)
		if n > 0 {
			c.metrics.addBytes(n)
			sess.decMu.Lock()
			msgs := sess.dec.Feed(buf[:n])
			sess.decMu.Unlock()
			for _, msg := range msgs {
				c.metrics.incMessage(msg.Kind())
				if line, ok := msg.Log(); ok {
					c.logger.Debug("device log", "channel", c.name, "line", line)
				}
				c.bus.Publish(msg)
			}
		}
		if err != nil {
			if sess.closing.Load() {
				return
			}
			c.handleReadError(sess, err)
			return
		}
	}
}

func (c *StreamChannel) handleReadError(sess *session, err error) {
	c.mu.Lock()
	if c.sess == sess {
		c.sess = nil
	}
	c.mu.Unlock()
	_ = sess.conn.Close()
	c.metrics.setConnected(false)

	var chErr error
	if errors.Is(err, io.EOF) {
		chErr = rpcerrors.Wrap(rpcerrors.CodeChannel, "channel closed by peer", rpcerrors.ErrClosed)
	} else {
		chErr = rpcerrors.Wrap(rpcerrors.CodeChannel, "read failed", err)
	}
	c.logger.Warn("device channel read error", "channel", c.name, "err", err)
	select {
	case c.errs <- chErr:
	default:
	}
	c.bus.FailAll(chErr)
}
