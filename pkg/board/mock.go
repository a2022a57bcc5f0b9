package board

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/itohio/irrigo/pkg/clock"
	"github.com/itohio/irrigo/pkg/config"
	"github.com/itohio/irrigo/pkg/feature"
)

// Mock simulates a sensor board for testing and development. Soil dries at a
// constant rate, the pump wets it while the relay is on, air temperature follows
// a daily cycle and every Nth climate read drops out.
type Mock struct {
	cfg *config.MockConfig
	cal feature.Calibration
	clk clock.Clock

	mu        sync.Mutex
	connected bool
	pump      bool

	// Simulation state
	moisture  float64 // Soil moisture (%)
	last      time.Time
	tempReads int
	humReads  int
}

// NewMock creates a simulated board. A nil cfg uses the default simulation and
// a nil clk uses wall time.
func NewMock(cfg *config.MockConfig, cal feature.Calibration, clk clock.Clock) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Mock{
		cfg:      cfg,
		cal:      cal,
		clk:      clk,
		moisture: clamp(cfg.StartMoisture, 0, 100),
		last:     clk.Now(),
	}
}

// Connect simulates connecting to the board.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}
	m.connected = true
	m.last = m.clk.Now()
	return nil
}

// Close stops the simulated board and switches the pump off.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	m.pump = false
	return nil
}

// IsConnected returns whether the board is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Set switches the simulated pump.
func (m *Mock) Set(high bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	m.advance(m.clk.Now())
	m.pump = high
	return nil
}

// Moisture returns the true simulated soil moisture.
func (m *Mock) Moisture() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance(m.clk.Now())
	return m.moisture
}

// Pumping reports whether the simulated pump is running.
func (m *Mock) Pumping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pump
}

// ReadMoistureRaw returns the probe code for the simulated moisture.
func (m *Mock) ReadMoistureRaw() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return m.cal.Wet
	}

	now := m.clk.Now()
	m.advance(now)

	raw := float64(m.cal.Dry) + float64(m.cal.Wet-m.cal.Dry)*m.moisture/100
	raw += m.noise(now)
	return int(math.Round(clamp(raw, 0, MaxRaw)))
}

// ReadTemperatureC returns the simulated air temperature or NaN on a dropout.
func (m *Mock) ReadTemperatureC() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tempReads++
	if !m.connected || m.dropout(m.tempReads) {
		return float32(math.NaN())
	}
	return float32(m.cfg.BaseTemperature + 6*m.diurnal(m.clk.Now()))
}

// ReadHumidityPct returns the simulated relative humidity or NaN on a dropout.
func (m *Mock) ReadHumidityPct() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.humReads++
	if !m.connected || m.dropout(m.humReads) {
		return float32(math.NaN())
	}
	return float32(clamp(60-15*m.diurnal(m.clk.Now()), 0, 100))
}

// advance integrates drying and pumping up to now.
func (m *Mock) advance(now time.Time) {
	dt := now.Sub(m.last)
	if dt <= 0 {
		return
	}
	m.last = now

	m.moisture -= m.cfg.DryRate * dt.Hours()
	if m.pump {
		m.moisture += m.cfg.PumpRate * dt.Minutes()
	}
	m.moisture = clamp(m.moisture, 0, 100)
}

func (m *Mock) dropout(n int) bool {
	return m.cfg.DropoutEvery > 0 && n%m.cfg.DropoutEvery == 0
}

// diurnal is a daily cycle in [-1,1] peaking at 15:00 UTC.
func (m *Mock) diurnal(now time.Time) float64 {
	t := now.UTC()
	h := float64(t.Hour()) + float64(t.Minute())/60
	return math.Sin(2 * math.Pi * (h - 9) / 24)
}

func (m *Mock) noise(now time.Time) float64 {
	ms := float64(now.UnixNano() / int64(time.Millisecond))
	return (math.Sin(ms*0.0137) + math.Cos(ms*0.0071)) * m.cfg.Noise * 0.5
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
