package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/itohio/irrigo/pkg/control"
	"github.com/itohio/irrigo/pkg/inference"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Observe(control.Report{
		Cycle:               1,
		Moisture:            22.5,
		Average:             24,
		Slope:               -0.4,
		TemperatureC:        25,
		TemperatureFallback: true,
		HumidityPct:         48,
		Inference:           inference.Outcome{Output: inference.Output{0.9}, Latency: 120 * time.Microsecond},
		Decided:             true,
		Desired:             true,
		Changed:             true,
		Relay:               true,
	})
	m.Observe(control.Report{
		Cycle:     2,
		Moisture:  23,
		Inference: inference.Outcome{Err: errors.New("engine fault")},
		Relay:     true,
	})

	assert.Equal(t, float64(2), testutil.ToFloat64(m.cycles))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.inferenceFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.relayTransitions))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.relayWriteErrors))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.relayOn))
	assert.Equal(t, float64(23), testutil.ToFloat64(m.moisture))
	assert.InDelta(t, 0.9, testutil.ToFloat64(m.probability), 1e-6)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.fallbacks.WithLabelValues("temperature")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.fallbacks.WithLabelValues("humidity")))

	count, err := testutil.GatherAndCount(reg, "irrigo_inference_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestObserve_RelayOff(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Observe(control.Report{Relay: true, Changed: true})
	m.Observe(control.Report{Relay: false, Changed: true, RelayErr: nil})
	m.Observe(control.Report{Relay: false, RelayErr: errors.New("gpio fault")})

	assert.Equal(t, float64(0), testutil.ToFloat64(m.relayOn))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.relayTransitions))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.relayWriteErrors))
}
