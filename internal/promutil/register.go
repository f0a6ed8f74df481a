package promutil

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Register 注册 collector；若注册器中已存在同名指标则复用已有实例，
// 使同一进程内多次构造 Metrics 不会 panic。
func Register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
