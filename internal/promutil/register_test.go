package promutil

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestRegisterReusesExistingCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	opts := prometheus.CounterOpts{Name: "jade_test_total", Help: "test"}

	first := Register(reg, prometheus.NewCounter(opts))
	second := Register(reg, prometheus.NewCounter(opts))
	first.Inc()

	require.Same(t, first, second)
}

func TestRegisterPanicsOnConflictingType(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg, prometheus.NewCounter(prometheus.CounterOpts{Name: "jade_conflict", Help: "a"}))
	require.Panics(t, func() {
		Register(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: "jade_conflict", Help: "b"}))
	})
}
