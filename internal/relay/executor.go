package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aegis-sign/jadelink/internal/rpc"
	"github.com/aegis-sign/jadelink/internal/wire"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

var (
	// ErrInvalidParams 表示设备给出的 http_request 参数无法解析。
	ErrInvalidParams = errors.New("invalid http_request params")
	// ErrNoUsableURL 表示所有 URL 都被过滤。
	ErrNoUsableURL = errors.New("no usable url in http_request")
)

type requestParams struct {
	URLs   []string `cbor:"urls"`
	Method string   `cbor:"method"`
	Accept string   `cbor:"accept"`
	Data   any      `cbor:"data"`
}

// Option 自定义 Executor。
type Option func(*Executor)

// WithHTTPClient 替换 HTTP 客户端。
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) {
		if c != nil {
			e.client = c
		}
	}
}

// WithLogger 注入 slog Logger。
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRegisterer 指定 Prometheus 注册器。
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Executor) { e.metrics = NewMetrics(reg) }
}

// Executor 按设备的 http_request 指令依次尝试 URL，返回第一个成功的响应体。
type Executor struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *Metrics
}

var _ rpc.HTTPExecutor = (*Executor)(nil)

// New 创建 Executor；RateLimit<=0 时不限速。
func New(cfg Config, opts ...Option) *Executor {
	cfg = cfg.normalize()
	e := &Executor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default(),
	}
	if cfg.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	return e
}

// Do 实现 rpc.HTTPExecutor。
func (e *Executor) Do(ctx context.Context, params any) (rpc.HTTPResponse, error) {
	var p requestParams
	if err := wire.DecodeInto(params, &p); err != nil {
		return rpc.HTTPResponse{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if len(p.URLs) == 0 {
		return rpc.HTTPResponse{}, fmt.Errorf("%w: no urls", ErrInvalidParams)
	}
	method := strings.ToUpper(p.Method)
	if method == "" {
		method = http.MethodPost
	}
	if method != http.MethodGet && method != http.MethodPost {
		return rpc.HTTPResponse{}, fmt.Errorf("%w: unsupported method %q", ErrInvalidParams, p.Method)
	}

	var errs []error
	tried := 0
	for _, raw := range p.URLs {
		if !e.usable(raw) {
			e.metrics.inc("skipped")
			e.logger.Debug("skipping relay url", "url", raw)
			continue
		}
		tried++
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				e.metrics.inc("rate_limited")
				return rpc.HTTPResponse{}, fmt.Errorf("relay rate limit: %w", err)
			}
		}
		body, err := e.fetch(ctx, method, raw, p.Accept, p.Data)
		if err != nil {
			e.metrics.inc("error")
			e.logger.Warn("relay request failed", "url", raw, "err", err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		e.metrics.inc("ok")
		return rpc.HTTPResponse{Body: body}, nil
	}
	if tried == 0 {
		return rpc.HTTPResponse{}, ErrNoUsableURL
	}
	return rpc.HTTPResponse{}, errors.Join(errs...)
}

func (e *Executor) usable(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	if strings.HasSuffix(u.Hostname(), ".onion") {
		return false
	}
	if len(e.cfg.AllowedPrefixes) == 0 {
		return true
	}
	for _, prefix := range e.cfg.AllowedPrefixes {
		if strings.HasPrefix(raw, prefix) {
			return true
		}
	}
	return false
}

func (e *Executor) fetch(ctx context.Context, method, target, accept string, data any) (any, error) {
	var reqBody io.Reader
	if method == http.MethodPost && data != nil {
		payload, err := json.Marshal(jsonSafe(data))
		if err != nil {
			return nil, fmt.Errorf("encode relay payload: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept == "text" {
		req.Header.Set("Accept", "text/plain")
	} else {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read relay response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("relay %s returned status %d", target, resp.StatusCode)
	}
	if accept == "text" {
		return string(raw), nil
	}
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode relay response: %w", err)
	}
	return body, nil
}

// jsonSafe 把 CBOR 解码出的 map[any]any 等结构转换为 encoding/json 可编码的形式。
func jsonSafe(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = jsonSafe(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = jsonSafe(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jsonSafe(item)
		}
		return out
	default:
		return v
	}
}
