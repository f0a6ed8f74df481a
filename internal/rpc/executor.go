package rpc

import "context"

// HTTPResponse 是主机代发 HTTP 请求后交回设备的内容。
type HTTPResponse struct {
	Body any
}

// HTTPExecutor 代设备执行 http_request 指令。
type HTTPExecutor interface {
	Do(ctx context.Context, params any) (HTTPResponse, error)
}

// HTTPExecutorFunc 把普通函数适配为 HTTPExecutor。
type HTTPExecutorFunc func(ctx context.Context, params any) (HTTPResponse, error)

// Do 实现 HTTPExecutor。
func (f HTTPExecutorFunc) Do(ctx context.Context, params any) (HTTPResponse, error) {
	return f(ctx, params)
}
