package inference

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/itohio/irrigo/pkg/clock"
	"github.com/itohio/irrigo/pkg/feature"
)

// DefaultRetryDelay is the pause between failed initialisation attempts.
const DefaultRetryDelay = 500 * time.Millisecond

// State is the adapter's initialisation state.
type State int32

const (
	Uninitialized State = iota
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Adapter wraps an Engine with the start-up gate and per-call timing.
type Adapter struct {
	engine      Engine
	clk         clock.Clock
	retryDelay  time.Duration
	maxAttempts int

	mu       sync.RWMutex
	state    State
	attempts int
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithClock sets the time source used for retry delays and latency measurement.
func WithClock(c clock.Clock) Option {
	return func(a *Adapter) {
		if c != nil {
			a.clk = c
		}
	}
}

// WithRetryDelay sets the fixed delay between initialisation attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.retryDelay = d
		}
	}
}

// WithMaxAttempts bounds the number of initialisation attempts (0 = retry forever).
func WithMaxAttempts(n int) Option {
	return func(a *Adapter) {
		if n >= 0 {
			a.maxAttempts = n
		}
	}
}

// NewAdapter creates an adapter in the Uninitialized state.
func NewAdapter(engine Engine, opts ...Option) *Adapter {
	a := &Adapter{
		engine:     engine,
		clk:        clock.Real{},
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Loader fetches the model blob for one initialisation attempt.
type Loader func() ([]byte, error)

// Blob returns a Loader serving an in-memory model.
func Blob(model []byte) Loader {
	return func() ([]byte, error) { return model, nil }
}

// File returns a Loader reading the model from path on every attempt, so a model
// provisioned after start-up is picked up by a later retry.
func File(path string) Loader {
	return func() ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read model: %w", err)
		}
		return data, nil
	}
}

// Start initialises the engine from an in-memory model. See StartFrom.
func (a *Adapter) Start(ctx context.Context, model []byte) error {
	return a.StartFrom(ctx, Blob(model))
}

// StartFrom loads and initialises the engine, retrying failed attempts after a
// fixed delay until it succeeds, the attempt budget is exhausted or ctx is
// cancelled. Load and initialisation failures are retried alike and every failed
// attempt is logged. Once Ready, further calls return immediately.
func (a *Adapter) StartFrom(ctx context.Context, load Loader) error {
	if a.State() == Ready {
		return nil
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(a.retryDelay)
	if a.maxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(a.maxAttempts-1))
	}
	b = backoff.WithContext(b, ctx)

	op := func() error {
		a.mu.Lock()
		a.attempts++
		a.mu.Unlock()
		model, err := load()
		if err != nil {
			return err
		}
		return a.engine.Initialize(model)
	}
	notify := func(err error, next time.Duration) {
		log.Printf("Inference init failed (attempt %d): %v, retrying in %s", a.Attempts(), err, next)
	}

	if err := backoff.RetryNotifyWithTimer(op, b, notify, &clockTimer{clk: a.clk}); err != nil {
		log.Printf("Inference init gave up after %d attempt(s): %v", a.Attempts(), err)
		return fmt.Errorf("inference init: %w", err)
	}

	a.mu.Lock()
	a.state = Ready
	a.mu.Unlock()
	log.Printf("Inference engine ready after %d attempt(s)", a.Attempts())
	return nil
}

// Infer runs the engine on a normalised vector and measures the call latency.
// Failures are returned in the outcome, never as a state change.
func (a *Adapter) Infer(in feature.Vector) Outcome {
	if a.State() != Ready {
		return Outcome{Err: ErrNotReady}
	}

	t0 := a.clk.Now()
	out, err := a.engine.Predict(in)
	latency := a.clk.Now().Sub(t0)
	if err != nil {
		return Outcome{Latency: latency, Err: fmt.Errorf("predict: %w", err)}
	}
	return Outcome{Output: out, Latency: latency}
}

// State returns the initialisation state.
func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Attempts returns the number of initialisation attempts made so far.
func (a *Adapter) Attempts() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.attempts
}

// clockTimer drives backoff retries from a clock.Clock.
type clockTimer struct {
	clk clock.Clock
	c   <-chan time.Time
}

func (t *clockTimer) Start(d time.Duration) { t.c = t.clk.After(d) }

func (t *clockTimer) Stop() {}

func (t *clockTimer) C() <-chan time.Time { return t.c }
