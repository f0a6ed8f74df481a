package wire

import "math"

// 协议保留键：解码后的 map 至少包含其中之一才会被投递。
const (
	KeyID     = "id"
	KeyMethod = "method"
	KeyParams = "params"
	KeyResult = "result"
	KeyError  = "error"
	KeyLog    = "log"
)

// Request 是发往设备的调用。
type Request struct {
	ID     string `cbor:"id"`
	Method string `cbor:"method"`
	Params any    `cbor:"params,omitempty"`
}

// RPCError 是设备返回的错误对象。
type RPCError struct {
	Code    int
	Message string
	Data    any
}

// Response 是设备对某个 id 的应答。
type Response struct {
	ID     string
	Result any
	Error  *RPCError
}

// Message 是从字节流中解出的一条协议相关消息。
type Message struct {
	Fields map[string]any
	Raw    []byte
}

// ID 返回消息的 id；没有 id 的消息视为主动推送。
func (m Message) ID() (string, bool) {
	id, ok := m.Fields[KeyID].(string)
	return id, ok
}

// IsResponse 判断消息是否携带 result 或 error。
func (m Message) IsResponse() bool {
	_, hasResult := m.Fields[KeyResult]
	_, hasError := m.Fields[KeyError]
	return hasResult || hasError
}

// Log 返回设备推送的日志内容。
func (m Message) Log() (any, bool) {
	v, ok := m.Fields[KeyLog]
	return v, ok
}

// Kind 返回用于指标标签的消息类别。
func (m Message) Kind() string {
	switch {
	case m.IsResponse():
		return "response"
	case m.has(KeyLog):
		return "log"
	default:
		return "notification"
	}
}

func (m Message) has(key string) bool {
	_, ok := m.Fields[key]
	return ok
}

// Response 将消息转换为应答。error 字段存在但不是 map 时按未知错误处理。
func (m Message) Response() Response {
	id, _ := m.ID()
	resp := Response{ID: id, Result: m.Fields[KeyResult]}
	raw, ok := m.Fields[KeyError]
	if !ok || raw == nil {
		return resp
	}
	rpcErr := &RPCError{}
	if fields, ok := raw.(map[string]any); ok {
		rpcErr.Code = toInt(fields["code"])
		rpcErr.Message, _ = fields["message"].(string)
		rpcErr.Data = fields["data"]
	} else {
		rpcErr.Message = "malformed error object"
		rpcErr.Data = raw
	}
	resp.Error = rpcErr
	return resp
}

func relevant(fields map[string]any) bool {
	for _, key := range [...]string{KeyResult, KeyError, KeyLog, KeyMethod} {
		if _, ok := fields[key]; ok {
			return true
		}
	}
	return false
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case uint64:
		if n > math.MaxInt {
			return math.MaxInt
		}
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
