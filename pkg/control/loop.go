// Package control runs the sense, infer and actuate cycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/irrigo/pkg/board"
	"github.com/itohio/irrigo/pkg/clock"
	"github.com/itohio/irrigo/pkg/config"
	"github.com/itohio/irrigo/pkg/feature"
	"github.com/itohio/irrigo/pkg/inference"
	"github.com/itohio/irrigo/pkg/relay"
)

// Inferer runs the model on a normalised feature vector.
type Inferer interface {
	Infer(in feature.Vector) inference.Outcome
}

var _ Inferer = (*inference.Adapter)(nil)

// Deps are the collaborators a Loop drives.
type Deps struct {
	Sensors   board.Sensors
	Relay     *relay.Controller
	Inference Inferer
	Clock     clock.Clock
}

// Loop owns the moisture window and drives the relay once per cycle. Step and
// Run must be called from a single goroutine.
type Loop struct {
	sensors  board.Sensors
	relay    *relay.Controller
	infer    Inferer
	clk      clock.Clock
	norm     *feature.Normalizer
	cal      feature.Calibration
	policy   Policy
	period   time.Duration
	fallback struct{ temp, hum float32 }
	battery  float32

	window feature.Window
	cycle  uint64

	callbacks []func(Report)
	cbMu      sync.RWMutex
}

// New creates a control loop from the configuration and its collaborators.
func New(cfg *config.Config, d Deps) (*Loop, error) {
	if d.Sensors == nil || d.Relay == nil || d.Inference == nil {
		return nil, errors.New("control: sensors, relay and inference are required")
	}
	if err := cfg.Calibration.Validate(); err != nil {
		return nil, err
	}
	norm, err := feature.NewNormalizer(cfg.Normalization.Mean, cfg.Normalization.Scale)
	if err != nil {
		return nil, fmt.Errorf("normalization: %w", err)
	}
	mode, err := ParseMode(cfg.Decision.Mode)
	if err != nil {
		return nil, err
	}
	if cfg.Loop.Period <= 0 {
		return nil, fmt.Errorf("loop period must be positive, got %v", cfg.Loop.Period)
	}
	clk := d.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	l := &Loop{
		sensors: d.Sensors,
		relay:   d.Relay,
		infer:   d.Inference,
		clk:     clk,
		norm:    norm,
		cal:     cfg.Calibration,
		policy: Policy{
			Mode:                 mode,
			MoistureThreshold:    float32(cfg.Decision.MoistureThreshold),
			ProbabilityThreshold: float32(cfg.Decision.ProbabilityThreshold),
		},
		period:  cfg.Loop.Period,
		battery: float32(cfg.Features.BatteryPct),
	}
	l.fallback.temp = float32(cfg.Fallback.TemperatureC)
	l.fallback.hum = float32(cfg.Fallback.HumidityPct)
	return l, nil
}

// Policy returns the decision policy in use.
func (l *Loop) Policy() Policy {
	return l.policy
}

// OnReport registers a callback invoked synchronously after every cycle.
func (l *Loop) OnReport(cb func(Report)) {
	l.cbMu.Lock()
	defer l.cbMu.Unlock()
	l.callbacks = append(l.callbacks, cb)
}

// Step runs one control cycle and returns its report. When inference fails or
// ctx is already cancelled the relay is left as it is.
func (l *Loop) Step(ctx context.Context) Report {
	now := l.clk.Now()
	l.cycle++
	r := Report{Cycle: l.cycle, Time: now}

	r.MoistureRaw = l.sensors.ReadMoistureRaw()
	r.Moisture = l.cal.Moisture(r.MoistureRaw)
	r.TemperatureC, r.TemperatureFallback = orFallback(l.sensors.ReadTemperatureC(), l.fallback.temp)
	r.HumidityPct, r.HumidityFallback = orFallback(l.sensors.ReadHumidityPct(), l.fallback.hum)

	l.window.Push(r.Moisture)
	r.Average = l.window.Average()
	r.Slope = l.window.Slope()
	r.WindowLen = l.window.Len()

	r.Features = feature.Build(r.Average, r.Slope, r.TemperatureC, feature.HourOfDay(now), l.battery)
	r.Normalized = l.norm.Apply(r.Features)

	r.Inference = l.infer.Infer(r.Normalized)
	switch {
	case !r.Inference.Ok():
		log.Printf("Inference failed: %v", r.Inference.Err)
	case ctx.Err() != nil:
		// Shutting down; the relay is left for the owner to switch off.
		r.Desired = l.relay.On()
	default:
		r.Decided = true
		r.Desired = l.policy.Decide(r.Moisture, r.Inference.Probability())
		r.Changed, r.RelayErr = l.relay.SetDesired(r.Desired)
		if r.RelayErr != nil {
			log.Printf("Relay write failed: %v", r.RelayErr)
		}
	}
	r.Relay = l.relay.On()

	l.notifyCallbacks(r)
	return r
}

// Run steps the loop every period until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	log.Printf("Control loop started: period %v, policy %v", l.period, l.policy)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.Step(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clk.After(l.period):
		}
	}
}

func (l *Loop) notifyCallbacks(r Report) {
	l.cbMu.RLock()
	callbacks := make([]func(Report), len(l.callbacks))
	copy(callbacks, l.callbacks)
	l.cbMu.RUnlock()

	for _, cb := range callbacks {
		cb(r)
	}
}

// orFallback substitutes fallback for unavailable (non-finite) readings.
func orFallback(v, fallback float32) (float32, bool) {
	if math32.IsNaN(v) || math32.IsInf(v, 0) {
		return fallback, true
	}
	return v, false
}
