package control

import (
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/itohio/irrigo/pkg/feature"
	"github.com/itohio/irrigo/pkg/inference"
	"github.com/itohio/irrigo/pkg/relay"
)

// Report is the status of one control cycle.
type Report struct {
	Cycle uint64
	Time  time.Time

	MoistureRaw         int
	Moisture            float32 // Calibrated moisture (%)
	TemperatureC        float32
	HumidityPct         float32
	TemperatureFallback bool // TemperatureC is the configured fallback
	HumidityFallback    bool // HumidityPct is the configured fallback

	Average   float32 // Window average moisture (%)
	Slope     float32 // Window trend, 0 until the window fills
	WindowLen int

	Features   feature.Vector // Raw model inputs
	Normalized feature.Vector // Standardised model inputs
	Inference  inference.Outcome

	Decided  bool  // A relay request was made this cycle
	Desired  bool  // Requested relay state
	Changed  bool  // The relay switched this cycle
	Relay    bool  // Relay state after the cycle
	RelayErr error // Pin write failure
}

// String formats the report as a single status line.
func (r Report) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "#%d ADC=%d moist=%.1f%% avg=%.1f slope=%.2f temp=%.1fC",
		r.Cycle, r.MoistureRaw, r.Moisture, r.Average, r.Slope, r.TemperatureC)
	if r.TemperatureFallback {
		b.WriteByte('*')
	}
	fmt.Fprintf(&b, " hum=%.1f%%", r.HumidityPct)
	if r.HumidityFallback {
		b.WriteByte('*')
	}

	if !r.Inference.Ok() {
		fmt.Fprintf(&b, " inference failed: %v relay=%s (held)", r.Inference.Err, relay.State(r.Relay))
		return b.String()
	}

	fmt.Fprintf(&b, " prob=%.4f infer=%v desired=%s relay=%s",
		r.Inference.Probability(), r.Inference.Latency, relay.State(r.Desired), relay.State(r.Relay))
	switch {
	case !r.Decided:
		b.WriteString(" (stopping)")
	case r.RelayErr != nil:
		fmt.Fprintf(&b, " (write failed: %v)", r.RelayErr)
	case r.Changed:
		b.WriteString(" (changed)")
	case r.Desired != r.Relay:
		b.WriteString(" (dwell)")
	}
	return b.String()
}

// LineSink returns a report callback writing one status line per cycle to w.
func LineSink(w io.Writer) func(Report) {
	return func(r Report) {
		if _, err := fmt.Fprintln(w, r.String()); err != nil {
			log.Printf("Failed to write status line: %v", err)
		}
	}
}
