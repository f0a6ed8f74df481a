package channel

import (
	"math/rand"
	"time"
)

// retryDelays 产生连接重试的等待序列：第 n 次为 Initial·2^n，
// 乘以 [1-Jitter, 1+Jitter] 的随机因子后截断到 [Initial, Max]。
// 仅由 ConnectWithRetry 的单个 goroutine 使用。
type retryDelays struct {
	cfg    BackoffConfig
	step   uint
	factor func() float64
}

func newRetryDelays(cfg BackoffConfig) *retryDelays {
	if cfg.Initial <= 0 {
		cfg.Initial = 10 * time.Millisecond
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	return &retryDelays{cfg: cfg, factor: rand.Float64}
}

func (r *retryDelays) next() time.Duration {
	d := r.cfg.Max
	if r.step < 32 {
		if grown := r.cfg.Initial << r.step; grown > 0 && grown < d {
			d = grown
		}
		r.step++
	}
	if j := r.cfg.Jitter; j > 0 {
		d = time.Duration(float64(d) * (1 - j + 2*j*r.factor()))
	}
	return min(max(d, r.cfg.Initial), r.cfg.Max)
}
