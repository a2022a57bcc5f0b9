// Package relay implements the debounced pump/valve actuator.
package relay

import (
	"fmt"
	"sync"
	"time"

	"github.com/itohio/irrigo/pkg/clock"
)

// DefaultMinDwell is the minimum time between two relay state changes.
const DefaultMinDwell = time.Second

// Pin is the digital output driving the relay coil.
type Pin interface {
	Set(high bool) error
}

// Controller is a two-state (OFF/ON) relay guarded by a minimum dwell time.
// A requested change is applied only when at least MinDwell has elapsed since the
// last actual change; otherwise it is dropped, not queued.
type Controller struct {
	pin      Pin
	clk      clock.Clock
	minDwell time.Duration

	mu         sync.RWMutex
	on         bool
	lastChange time.Time
	changes    uint64
}

// New creates a controller, drives the pin low and records the current time as
// the last change, so the first transition is also subject to the dwell time.
func New(pin Pin, clk clock.Clock, minDwell time.Duration) (*Controller, error) {
	if clk == nil {
		clk = clock.Real{}
	}
	if minDwell < 0 {
		minDwell = 0
	}
	if err := pin.Set(false); err != nil {
		return nil, fmt.Errorf("failed to drive relay off: %w", err)
	}
	return &Controller{
		pin:        pin,
		clk:        clk,
		minDwell:   minDwell,
		lastChange: clk.Now(),
	}, nil
}

// SetDesired requests a relay state. It reports whether the relay actually
// changed. Requests equal to the current state are no-ops; requests arriving
// before the dwell time has elapsed are silently dropped. A pin write error leaves
// the state untouched.
func (c *Controller) SetDesired(on bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if on == c.on {
		return false, nil
	}
	now := c.clk.Now()
	if now.Sub(c.lastChange) < c.minDwell {
		return false, nil
	}
	if err := c.pin.Set(on); err != nil {
		return false, fmt.Errorf("failed to switch relay: %w", err)
	}
	c.on = on
	c.lastChange = now
	c.changes++
	return true, nil
}

// ForceOff drives the pin low regardless of the dwell time. It is the shutdown
// path; the control loop only uses SetDesired.
func (c *Controller) ForceOff() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.pin.Set(false); err != nil {
		return fmt.Errorf("failed to switch relay off: %w", err)
	}
	if c.on {
		c.on = false
		c.lastChange = c.clk.Now()
		c.changes++
	}
	return nil
}

// On returns the current relay state.
func (c *Controller) On() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.on
}

// LastChange returns when the relay last changed state (construction time if it
// never has).
func (c *Controller) LastChange() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastChange
}

// Changes returns the number of state changes since construction.
func (c *Controller) Changes() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.changes
}

// MinDwell returns the configured dwell time.
func (c *Controller) MinDwell() time.Duration {
	return c.minDwell
}

// String returns "ON" or "OFF".
func (c *Controller) String() string {
	return State(c.On())
}

// State formats a relay state.
func State(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
