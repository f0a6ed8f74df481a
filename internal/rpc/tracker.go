package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aegis-sign/jadelink/internal/channel"
	"github.com/aegis-sign/jadelink/internal/wire"
	"github.com/aegis-sign/jadelink/pkg/rpcerrors"
	"github.com/aegis-sign/jadelink/pkg/validator"
)

// Tracker 把请求与应答按 id 关联，并负责超时与中继。
type Tracker struct {
	ch      channel.Channel
	timeout time.Duration
	logger  *slog.Logger
	metrics *Metrics
	newID   func() string
}

// NewTracker 在通道之上创建 Tracker。
func NewTracker(ch channel.Channel, opts ...Option) *Tracker {
	t := &Tracker{
		ch:      ch,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		newID:   NewRequestID,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.metrics == nil {
		t.metrics = NewMetrics(nil)
	}
	ch.Bus().OnUnsolicited(t.observeUnsolicited)
	return t
}

// Timeout 返回普通调用的超时。
func (t *Tracker) Timeout() time.Duration { return t.timeout }

// Call 发送一次请求并等待对应 id 的应答。
// 校验失败时不会写出任何字节。
func (t *Tracker) Call(ctx context.Context, method string, params any, opts ...CallOption) (any, error) {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}
	return t.call(ctx, method, params, co)
}

// CallWithRelay 与 Call 相同，但当结果为 http_request 指令时，
// 通过 exec 代发请求并把响应体作为 on-reply 方法的参数继续调用，直到得到最终结果。
func (t *Tracker) CallWithRelay(ctx context.Context, method string, params any, exec HTTPExecutor, opts ...CallOption) (any, error) {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}
	for leg := 1; ; leg++ {
		result, err := t.call(ctx, method, params, co)
		if err != nil {
			return nil, err
		}
		inst, ok, err := wire.ParseRelay(result)
		if err != nil {
			return nil, rpcerrors.Wrap(rpcerrors.CodeProtocol, fmt.Sprintf("invalid relay instruction from %s", method), err)
		}
		if !ok {
			return result, nil
		}
		if exec == nil {
			return nil, rpcerrors.New(rpcerrors.CodeValidation, "http request function not provided")
		}
		t.metrics.incRelayLeg(method)
		t.logger.Debug("relaying http request", "method", method, "on_reply", inst.OnReply, "leg", leg)
		resp, err := exec.Do(ctx, inst.Params)
		if err != nil {
			return nil, rpcerrors.Wrap(rpcerrors.CodeRelay, fmt.Sprintf("http relay for %s failed", method), err)
		}
		// 后续调用使用新的 id，保留长等待设置
		co.id = ""
		method, params = inst.OnReply, resp.Body
	}
}

func (t *Tracker) call(ctx context.Context, method string, params any, co callOptions) (result any, err error) {
	id := co.id
	if id == "" {
		id = t.newID()
	}
	if err := validator.ValidateRequest(id, method); err != nil {
		return nil, rpcerrors.Wrap(rpcerrors.CodeValidation, "invalid request", err)
	}

	start := time.Now()
	defer func() { t.metrics.observeCall(method, err, time.Since(start)) }()

	sub, err := t.ch.Bus().Subscribe(id)
	if err != nil {
		return nil, err
	}
	defer sub.Close()
	t.metrics.pending.Inc()
	defer t.metrics.pending.Dec()

	if err := t.ch.Send(wire.Request{ID: id, Method: method, Params: params}); err != nil {
		return nil, err
	}

	var deadline <-chan time.Time
	if !co.longWait {
		timer := time.NewTimer(t.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case res := <-sub.C():
		if res.Err != nil {
			return nil, res.Err
		}
		resp := res.Msg.Response()
		if resp.Error != nil {
			return nil, rpcerrors.Protocol(resp.Error.Code, resp.Error.Message, resp.Error.Data)
		}
		return resp.Result, nil
	case <-deadline:
		t.logger.Warn("rpc call timed out", "method", method, "id", id, "timeout", t.timeout)
		return nil, rpcerrors.New(rpcerrors.CodeTimeout, fmt.Sprintf("rpc call %s timed out after %s", method, t.timeout))
	case <-ctx.Done():
		t.logger.Debug("rpc call cancelled", "method", method, "id", id, "err", ctx.Err())
		return nil, rpcerrors.Wrap(rpcerrors.CodeTimeout, fmt.Sprintf("rpc call %s cancelled", method), ctx.Err())
	}
}

func (t *Tracker) observeUnsolicited(msg wire.Message) {
	if !msg.IsResponse() {
		return
	}
	id, _ := msg.ID()
	if resp := msg.Response(); resp.Error != nil {
		t.logger.Debug("dropping unsolicited error response", "id", id, "code", resp.Error.Code, "message", resp.Error.Message)
		return
	}
	t.logger.Debug("dropping unsolicited response", "id", id)
}
