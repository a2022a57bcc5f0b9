package inference

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/itohio/irrigo/pkg/clock"
	"github.com/itohio/irrigo/pkg/feature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEngine fails initialisation a fixed number of times and returns a fixed
// output (or error) from Predict.
type stubEngine struct {
	initFailures int
	initCalls    int
	onInit       func(call int)

	output     Output
	predictErr error
	predictIn  []feature.Vector
	clk        *clock.Sim
	cost       time.Duration
}

func (s *stubEngine) Initialize(model []byte) error {
	s.initCalls++
	if s.onInit != nil {
		s.onInit(s.initCalls)
	}
	if s.initCalls <= s.initFailures {
		return errors.New("arena allocation failed")
	}
	return nil
}

func (s *stubEngine) Predict(in feature.Vector) (Output, error) {
	s.predictIn = append(s.predictIn, in)
	if s.clk != nil {
		s.clk.Advance(s.cost)
	}
	return s.output, s.predictErr
}

func TestAdapter_StartFirstTry(t *testing.T) {
	eng := &stubEngine{}
	a := NewAdapter(eng, WithClock(clock.NewSim(time.Unix(0, 0))))
	assert.Equal(t, Uninitialized, a.State())

	require.NoError(t, a.Start(context.Background(), []byte("model")))
	assert.Equal(t, Ready, a.State())
	assert.Equal(t, 1, a.Attempts())

	// Already ready: no further attempts.
	require.NoError(t, a.Start(context.Background(), []byte("model")))
	assert.Equal(t, 1, eng.initCalls)
}

func TestAdapter_StartRetriesWithFixedDelay(t *testing.T) {
	start := time.Unix(0, 0)
	clk := clock.NewSim(start)
	eng := &stubEngine{initFailures: 3}
	a := NewAdapter(eng, WithClock(clk), WithRetryDelay(500*time.Millisecond))

	require.NoError(t, a.Start(context.Background(), []byte("model")))

	assert.Equal(t, Ready, a.State())
	assert.Equal(t, 4, a.Attempts())
	assert.Equal(t, 1500*time.Millisecond, clk.Now().Sub(start), "three waits of the retry delay")
}

func TestAdapter_StartMaxAttempts(t *testing.T) {
	eng := &stubEngine{initFailures: 100}
	a := NewAdapter(eng,
		WithClock(clock.NewSim(time.Unix(0, 0))),
		WithMaxAttempts(3),
	)

	err := a.Start(context.Background(), []byte("model"))
	assert.Error(t, err)
	assert.Equal(t, 3, eng.initCalls)
	assert.Equal(t, Uninitialized, a.State())
}

func TestAdapter_StartCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := &stubEngine{initFailures: 1 << 30}
	eng.onInit = func(call int) {
		if call == 5 {
			cancel()
		}
	}
	a := NewAdapter(eng, WithClock(clock.NewSim(time.Unix(0, 0))))

	err := a.Start(ctx, []byte("model"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, eng.initCalls)
	assert.Equal(t, Uninitialized, a.State())
}

func TestAdapter_StartFromRetriesLoadFailures(t *testing.T) {
	clk := clock.NewSim(time.Unix(0, 0))
	eng := &stubEngine{}
	a := NewAdapter(eng, WithClock(clk), WithRetryDelay(time.Second))

	loads := 0
	load := func() ([]byte, error) {
		loads++
		if loads < 3 {
			return nil, os.ErrNotExist
		}
		return []byte("model"), nil
	}

	require.NoError(t, a.StartFrom(context.Background(), load))
	assert.Equal(t, Ready, a.State())
	assert.Equal(t, 3, a.Attempts())
	assert.Equal(t, 1, eng.initCalls, "engine is only initialised once a model was read")
	assert.Equal(t, time.Unix(2, 0), clk.Now())
}

func TestAdapter_StartFromFileAppearsLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	eng := &stubEngine{}
	a := NewAdapter(eng, WithClock(clock.NewSim(time.Unix(0, 0))))

	load := File(path)
	attempts := 0
	provision := func() ([]byte, error) {
		attempts++
		if attempts == 2 {
			require.NoError(t, os.WriteFile(path, loadTestModel(t), 0644))
		}
		return load()
	}

	require.NoError(t, a.StartFrom(context.Background(), provision))
	assert.Equal(t, Ready, a.State())
	assert.Equal(t, 2, a.Attempts())
}

func TestFile_Missing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "missing.yaml"))()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAdapter_InferNotReady(t *testing.T) {
	a := NewAdapter(&stubEngine{})

	out := a.Infer(feature.Vector{})
	assert.False(t, out.Ok())
	assert.ErrorIs(t, out.Err, ErrNotReady)
}

func TestAdapter_Infer(t *testing.T) {
	clk := clock.NewSim(time.Unix(0, 0))
	eng := &stubEngine{output: Output{0.82}, clk: clk, cost: 3 * time.Millisecond}
	a := NewAdapter(eng, WithClock(clk))
	require.NoError(t, a.Start(context.Background(), nil))

	in := feature.Vector{1, 2, 3, 4, 5}
	out := a.Infer(in)

	require.True(t, out.Ok())
	assert.Equal(t, float32(0.82), out.Probability())
	assert.Equal(t, 3*time.Millisecond, out.Latency)
	assert.Equal(t, []feature.Vector{in}, eng.predictIn)
}

func TestAdapter_InferFailureKeepsReady(t *testing.T) {
	eng := &stubEngine{predictErr: errors.New("tensor arena overflow")}
	a := NewAdapter(eng, WithClock(clock.NewSim(time.Unix(0, 0))))
	require.NoError(t, a.Start(context.Background(), nil))

	out := a.Infer(feature.Vector{})
	assert.False(t, out.Ok())
	assert.Contains(t, out.Err.Error(), "tensor arena overflow")
	assert.Equal(t, Ready, a.State())
}

func TestAdapter_WithDense(t *testing.T) {
	a := NewAdapter(NewDense(), WithClock(clock.NewSim(time.Unix(0, 0))))
	require.NoError(t, a.Start(context.Background(), loadTestModel(t)))

	out := a.Infer(feature.Vector{-1, 0, 0, 0, 0})
	require.True(t, out.Ok())
	assert.Greater(t, out.Probability(), float32(0.9))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "State(7)", State(7).String())
}
