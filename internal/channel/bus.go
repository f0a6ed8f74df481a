package channel

import (
	"fmt"
	"sync"

	"github.com/aegis-sign/jadelink/internal/wire"
	"github.com/aegis-sign/jadelink/pkg/rpcerrors"
)

// Result 是一次性订阅的结算值：要么是应答消息，要么是错误。
type Result struct {
	Msg wire.Message
	Err error
}

// Subscription 等待某个 id 的唯一一条应答。
type Subscription struct {
	id   string
	ch   chan Result
	bus  *Bus
	once sync.Once
}

// ID 返回订阅的请求 id。
func (s *Subscription) ID() string { return s.id }

// C 至多产出一个 Result。
func (s *Subscription) C() <-chan Result { return s.ch }

// Close 注销订阅，可重复调用。
func (s *Subscription) Close() {
	s.once.Do(func() { s.bus.remove(s) })
}

// Bus 按 id 将入站应答路由到等待者，其余消息分发给观察者。
type Bus struct {
	mu        sync.Mutex
	pending   map[string]*Subscription
	observers []func(wire.Message)
}

// NewBus 创建空的 Bus。
func NewBus() *Bus {
	return &Bus{pending: make(map[string]*Subscription)}
}

// Subscribe 为 id 注册一次性订阅，必须在写出请求之前调用。
func (b *Bus) Subscribe(id string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.pending[id]; exists {
		return nil, rpcerrors.Wrap(rpcerrors.CodeValidation, fmt.Sprintf("request id %q", id), rpcerrors.ErrDuplicateID)
	}
	sub := &Subscription{id: id, ch: make(chan Result, 1), bus: b}
	b.pending[id] = sub
	return sub, nil
}

// OnUnsolicited 注册观察者，接收日志、通知以及没有等待者的迟到应答。
func (b *Bus) OnUnsolicited(fn func(wire.Message)) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.observers = append(b.observers, fn)
	b.mu.Unlock()
}

// Publish 投递一条入站消息。
func (b *Bus) Publish(msg wire.Message) {
	if id, ok := msg.ID(); ok && msg.IsResponse() {
		b.mu.Lock()
		sub, found := b.pending[id]
		if found {
			delete(b.pending, id)
		}
		b.mu.Unlock()
		if found {
			sub.ch <- Result{Msg: msg}
			return
		}
	}
	b.mu.Lock()
	observers := append([]func(wire.Message){}, b.observers...)
	b.mu.Unlock()
	for _, fn := range observers {
		fn(msg)
	}
}

// FailAll 以 err 结算所有未完成的订阅。
func (b *Bus) FailAll(err error) {
	b.mu.Lock()
	pending := b.pending
	b.pending = make(map[string]*Subscription)
	b.mu.Unlock()
	for _, sub := range pending {
		sub.ch <- Result{Err: err}
	}
}

// Pending 返回未完成订阅数。
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if current, ok := b.pending[sub.id]; ok && current == sub {
		delete(b.pending, sub.id)
	}
}
