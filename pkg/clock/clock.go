// Package clock provides the time sources used by the controller.
//
// The control loop, the relay dwell guard and the inference adapter never call
// the time package directly; they take a Clock so that tests and simulations can
// run without real wall-clock waits.
package clock

import (
	"sync"
	"time"
)

// Clock is a source of the current time and of delays.
type Clock interface {
	Now() time.Time
	// After returns a channel that receives the time once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

var (
	_ Clock = Real{}
	_ Clock = (*Sim)(nil)
	_ Clock = (*Scaled)(nil)
)

// Real is the wall clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// After wraps time.After.
func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Sim is a manually driven clock. Waiting on it advances simulated time
// immediately, so a loop driven by Sim runs as fast as the CPU allows.
type Sim struct {
	mu  sync.Mutex
	now time.Time
}

// NewSim creates a simulated clock starting at start.
func NewSim(start time.Time) *Sim {
	return &Sim{now: start}
}

// Now returns the simulated time.
func (s *Sim) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves simulated time forward by d.
func (s *Sim) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	s.mu.Unlock()
}

// After advances simulated time by d and returns an already fired channel.
func (s *Sim) After(d time.Duration) <-chan time.Time {
	s.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- s.Now()
	return ch
}

// Scaled runs faster than real time by a constant factor. A scale of 60 makes one
// real second count as one simulated minute.
type Scaled struct {
	scale     float64
	startReal time.Time
	startSim  time.Time
}

// NewScaled creates a scaled clock whose simulated time starts at start.
func NewScaled(scale float64, start time.Time) *Scaled {
	if scale <= 0 {
		scale = 1
	}
	return &Scaled{
		scale:     scale,
		startReal: time.Now(),
		startSim:  start,
	}
}

// Now returns the current simulated time.
func (c *Scaled) Now() time.Time {
	elapsed := time.Since(c.startReal)
	return c.startSim.Add(time.Duration(float64(elapsed) * c.scale))
}

// After waits for the real-time equivalent of the simulated duration d.
func (c *Scaled) After(d time.Duration) <-chan time.Time {
	real := time.Duration(float64(d) / c.scale)
	if real < time.Millisecond {
		real = time.Millisecond
	}
	out := make(chan time.Time, 1)
	go func() {
		<-time.After(real)
		out <- c.Now()
	}()
	return out
}
