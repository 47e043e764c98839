package metrics_test

import (
	"testing"

	"github.com/HibiKier/wuthering-waves/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ProbeTotal.WithLabelValues("expired").Inc()
	m.FetchFailures.Add(2)

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				values[family.GetName()] += c.GetValue()
			}
		}
	}
	require.Equal(t, 1.0, values["waves_session_probe_total"])
	require.Equal(t, 2.0, values["waves_fetch_detail_failures_total"])
}

func TestNew_TwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	require.Panics(t, func() { metrics.New(reg) })
}
