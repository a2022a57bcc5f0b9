package station

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/itohio/irrigo/pkg/board"
	"github.com/itohio/irrigo/pkg/clock"
	"github.com/itohio/irrigo/pkg/config"
	"github.com/itohio/irrigo/pkg/control"
	"github.com/itohio/irrigo/pkg/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockConfig(mode string) *config.Config {
	cfg := config.Default()
	cfg.Inference.ModelPath = "../../model.yaml"
	cfg.Decision.Mode = mode
	cfg.Mock.StartMoisture = 20
	cfg.Mock.Noise = 0
	cfg.Mock.DropoutEvery = 0
	return cfg
}

func openMock(t *testing.T, cfg *config.Config) (*Station, *clock.Sim) {
	t.Helper()
	clk := clock.NewSim(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	st, err := Open(cfg, Options{Mock: true, Clock: clk})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, clk
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := mockConfig(config.ModeThreshold)
	cfg.Calibration.Wet = cfg.Calibration.Dry

	st, err := Open(cfg, Options{Mock: true})
	assert.Error(t, err)
	assert.Nil(t, st)
}

func TestStart_MissingModelIsRetried(t *testing.T) {
	cfg := mockConfig(config.ModeThreshold)
	cfg.Inference.ModelPath = "does-not-exist.yaml"
	cfg.Inference.MaxAttempts = 4
	st, clk := openMock(t, cfg)
	start := clk.Now()

	err := st.Start(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 4, st.Adapter.Attempts())
	assert.Equal(t, inference.Uninitialized, st.Adapter.State())
	assert.Equal(t, 3*cfg.Inference.RetryDelay, clk.Now().Sub(start))
}

func TestStart_ModelProvisionedLater(t *testing.T) {
	shipped, err := os.ReadFile("../../model.yaml")
	require.NoError(t, err)

	cfg := mockConfig(config.ModeThreshold)
	cfg.Inference.ModelPath = filepath.Join(t.TempDir(), "model.yaml")

	// The model file is written during the second retry wait.
	clk := &provisioningClock{Sim: clock.NewSim(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))}
	clk.provision = func() {
		require.NoError(t, os.WriteFile(cfg.Inference.ModelPath, shipped, 0644))
	}
	st, err := Open(cfg, Options{Mock: true, Clock: clk})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, st.Start(ctx))
	assert.Equal(t, inference.Ready, st.Adapter.State())
	assert.Greater(t, st.Adapter.Attempts(), 1)
}

// provisioningClock runs provision on the second wait of the retry delay.
type provisioningClock struct {
	*clock.Sim
	waits     int
	provision func()
}

func (c *provisioningClock) After(d time.Duration) <-chan time.Time {
	c.waits++
	if c.waits == 2 {
		c.provision()
	}
	return c.Sim.After(d)
}

func TestStart_LoadsShippedModel(t *testing.T) {
	st, _ := openMock(t, mockConfig(config.ModeThreshold))

	require.NoError(t, st.Start(context.Background()))
	assert.Equal(t, inference.Ready, st.Adapter.State())
	assert.Equal(t, "irrigation-mlp-v1", st.Engine.Name())
	assert.Equal(t, []int{5, 16, 8, 1}, st.Engine.Shape())
}

func TestStation_DrySoilIrrigates(t *testing.T) {
	for _, mode := range []string{config.ModeThreshold, config.ModeInference} {
		t.Run(mode, func(t *testing.T) {
			st, clk := openMock(t, mockConfig(mode))
			require.NoError(t, st.Start(context.Background()))
			mock := st.Board.(*board.Mock)

			rep := st.Loop.Step(context.Background())
			require.True(t, rep.Inference.Ok())
			assert.Greater(t, rep.Inference.Probability(), float32(0.9), "dry soil should look thirsty to the model")
			assert.True(t, rep.Desired)
			assert.False(t, mock.Pumping(), "dwell time after boot")

			clk.Advance(time.Second)
			rep = st.Loop.Step(context.Background())
			assert.True(t, rep.Changed)
			assert.True(t, mock.Pumping())

			require.NoError(t, st.Close())
			assert.False(t, mock.Pumping())
			assert.False(t, st.Relay.On(), "relay state follows the forced switch-off")
			assert.Equal(t, clk.Now(), st.Relay.LastChange())
		})
	}
}

func TestStation_RunWaterThenStop(t *testing.T) {
	st, _ := openMock(t, mockConfig(config.ModeThreshold))
	mock := st.Board.(*board.Mock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var switchedOff bool
	var cycles int
	st.Loop.OnReport(func(r control.Report) {
		cycles++
		if r.Changed && !r.Relay {
			switchedOff = true
			cancel()
		}
		if cycles > 1000 {
			cancel()
		}
	})

	err := st.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, switchedOff, "pumping should lift moisture above the threshold")
	assert.GreaterOrEqual(t, mock.Moisture(), 29.5)
}
