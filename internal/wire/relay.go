package wire

import (
	"errors"
	"fmt"
)

const (
	keyHTTPRequest = "http_request"
	keyOnReply     = "on-reply"
)

// ErrMalformedRelay 表示 http_request 指令结构不完整。
var ErrMalformedRelay = errors.New("malformed http_request instruction")

// RelayInstruction 是设备要求主机代发 HTTP 请求的指令。
type RelayInstruction struct {
	Params  any
	OnReply string
}

// ParseRelay 检查调用结果是否为中继指令。
// 结果不是 map 或不含 http_request 时返回 ok=false。
func ParseRelay(result any) (RelayInstruction, bool, error) {
	fields, ok := result.(map[string]any)
	if !ok {
		return RelayInstruction{}, false, nil
	}
	raw, ok := fields[keyHTTPRequest]
	if !ok {
		return RelayInstruction{}, false, nil
	}
	req, ok := raw.(map[string]any)
	if !ok {
		return RelayInstruction{}, true, fmt.Errorf("%w: http_request is %T", ErrMalformedRelay, raw)
	}
	onReply, _ := req[keyOnReply].(string)
	if onReply == "" {
		return RelayInstruction{}, true, fmt.Errorf("%w: missing on-reply", ErrMalformedRelay)
	}
	return RelayInstruction{Params: req[KeyParams], OnReply: onReply}, true, nil
}
