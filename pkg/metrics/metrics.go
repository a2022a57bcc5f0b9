// Package metrics exports control loop reports as Prometheus metrics.
package metrics

import (
	"github.com/itohio/irrigo/pkg/control"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "irrigo"

// Metrics holds the controller's collectors.
type Metrics struct {
	cycles            prometheus.Counter
	inferenceFailures prometheus.Counter
	inferenceLatency  prometheus.Histogram
	relayTransitions  prometheus.Counter
	relayWriteErrors  prometheus.Counter
	relayOn           prometheus.Gauge
	moisture          prometheus.Gauge
	moistureAverage   prometheus.Gauge
	moistureSlope     prometheus.Gauge
	probability       prometheus.Gauge
	temperature       prometheus.Gauge
	humidity          prometheus.Gauge
	fallbacks         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	return &Metrics{
		cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total",
			Help: "Control cycles executed.",
		}),
		inferenceFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "inference_failures_total",
			Help: "Cycles whose inference failed; the relay was left unchanged.",
		}),
		inferenceLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "inference_latency_seconds",
			Help:    "Model execution time.",
			Buckets: prometheus.ExponentialBuckets(10e-6, 4, 8),
		}),
		relayTransitions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "relay_transitions_total",
			Help: "Relay state changes.",
		}),
		relayWriteErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "relay_write_errors_total",
			Help: "Failed relay pin writes.",
		}),
		relayOn:         gauge("relay_on", "1 while the relay is on."),
		moisture:        gauge("soil_moisture_percent", "Calibrated soil moisture."),
		moistureAverage: gauge("soil_moisture_average_percent", "Window average soil moisture."),
		moistureSlope:   gauge("soil_moisture_slope", "Window soil moisture trend."),
		probability:     gauge("irrigation_probability", "Last model irrigation probability."),
		temperature:     gauge("temperature_celsius", "Air temperature used for the features."),
		humidity:        gauge("humidity_percent", "Relative humidity."),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sensor_fallbacks_total",
			Help: "Readings replaced by their configured fallback.",
		}, []string{"sensor"}),
	}
}

// Observe records one cycle report. It is meant to be registered with
// control.Loop.OnReport.
func (m *Metrics) Observe(r control.Report) {
	m.cycles.Inc()

	m.moisture.Set(float64(r.Moisture))
	m.moistureAverage.Set(float64(r.Average))
	m.moistureSlope.Set(float64(r.Slope))
	m.temperature.Set(float64(r.TemperatureC))
	m.humidity.Set(float64(r.HumidityPct))
	if r.TemperatureFallback {
		m.fallbacks.WithLabelValues("temperature").Inc()
	}
	if r.HumidityFallback {
		m.fallbacks.WithLabelValues("humidity").Inc()
	}

	if r.Inference.Ok() {
		m.inferenceLatency.Observe(r.Inference.Latency.Seconds())
		m.probability.Set(float64(r.Inference.Probability()))
	} else {
		m.inferenceFailures.Inc()
	}

	if r.Changed {
		m.relayTransitions.Inc()
	}
	if r.RelayErr != nil {
		m.relayWriteErrors.Inc()
	}
	if r.Relay {
		m.relayOn.Set(1)
	} else {
		m.relayOn.Set(0)
	}
}
