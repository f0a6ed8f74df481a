package wire

import (
	"errors"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// DefaultMaxBuffer 是接收缓冲的上限，超出且仍无法解出完整数据项时整体丢弃。
const DefaultMaxBuffer = 1 << 20

// ResetReason 说明缓冲被清空的原因。
type ResetReason string

const (
	ResetCorrupt  ResetReason = "corrupt"
	ResetOverflow ResetReason = "overflow"
	ResetDrain    ResetReason = "drain"
)

// FrameDecoder 从任意切分的字节块中恢复 CBOR 数据项边界。
// 非并发安全：由通道的读 goroutine 独占。
type FrameDecoder struct {
	buf       []byte
	maxBuffer int
	onReset   func(reason ResetReason, dropped int, err error)
}

// DecoderOption 自定义 FrameDecoder。
type DecoderOption func(*FrameDecoder)

// WithMaxBuffer 设置接收缓冲上限。
func WithMaxBuffer(n int) DecoderOption {
	return func(d *FrameDecoder) {
		if n > 0 {
			d.maxBuffer = n
		}
	}
}

// WithResetHook 在缓冲被清空时回调，用于日志与指标。
func WithResetHook(fn func(reason ResetReason, dropped int, err error)) DecoderOption {
	return func(d *FrameDecoder) { d.onReset = fn }
}

// NewFrameDecoder 创建解码器。
func NewFrameDecoder(opts ...DecoderOption) *FrameDecoder {
	d := &FrameDecoder{maxBuffer: DefaultMaxBuffer}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed 追加字节块并按顺序返回其中所有完整且协议相关的消息。
func (d *FrameDecoder) Feed(chunk []byte) []Message {
	d.buf = append(d.buf, chunk...)
	var out []Message
	for len(d.buf) > 0 {
		var raw cbor.RawMessage
		rest, err := decMode.UnmarshalFirst(d.buf, &raw)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				if len(d.buf) > d.maxBuffer {
					d.reset(ResetOverflow, nil)
				}
				break
			}
			d.reset(ResetCorrupt, err)
			break
		}
		consumed := len(d.buf) - len(rest)
		d.buf = d.buf[consumed:]
		if msg, ok := toMessage(raw); ok {
			out = append(out, msg)
		}
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return out
}

// Drain 丢弃所有未解析字节。
func (d *FrameDecoder) Drain() {
	if len(d.buf) > 0 {
		d.reset(ResetDrain, nil)
	}
}

// Buffered 返回当前缓冲的字节数。
func (d *FrameDecoder) Buffered() int {
	return len(d.buf)
}

func (d *FrameDecoder) reset(reason ResetReason, err error) {
	dropped := len(d.buf)
	d.buf = nil
	if d.onReset != nil {
		d.onReset(reason, dropped, err)
	}
}

// toMessage 顶层按 map[any]any 解码，非字符串键不进入 Fields，但保留在 Raw 中。
func toMessage(raw cbor.RawMessage) (Message, bool) {
	var top map[any]any
	if err := decMode.Unmarshal(raw, &top); err != nil || top == nil {
		return Message{}, false
	}
	fields := make(map[string]any, len(top))
	for k, v := range top {
		if key, ok := k.(string); ok {
			fields[key] = Normalize(v)
		}
	}
	if !relevant(fields) {
		return Message{}, false
	}
	return Message{Fields: fields, Raw: []byte(raw)}, true
}
