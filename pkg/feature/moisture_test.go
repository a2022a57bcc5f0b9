package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalibration_Moisture(t *testing.T) {
	cal := Calibration{Dry: 3200, Wet: 1400}

	tests := []struct {
		name string
		raw  int
		want float32
	}{
		{name: "dry endpoint", raw: 3200, want: 0},
		{name: "wet endpoint", raw: 1400, want: 100},
		{name: "midpoint", raw: 2300, want: 50},
		{name: "drier than dry clamps", raw: 4095, want: 0},
		{name: "wetter than wet clamps", raw: 0, want: 100},
		{name: "quarter", raw: 2750, want: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cal.Moisture(tt.raw)
			assert.InDelta(t, tt.want, got, 1e-4)
			assert.GreaterOrEqual(t, got, float32(0))
			assert.LessOrEqual(t, got, float32(100))
		})
	}
}

func TestCalibration_RisingProbe(t *testing.T) {
	// Resistive probes read higher when wet.
	cal := Calibration{Dry: 500, Wet: 3500}

	assert.Equal(t, float32(0), cal.Moisture(500))
	assert.Equal(t, float32(100), cal.Moisture(3500))
	assert.Equal(t, float32(0), cal.Moisture(100))
	assert.Equal(t, float32(100), cal.Moisture(4000))
}

func TestCalibration_Validate(t *testing.T) {
	require.NoError(t, Calibration{Dry: 3200, Wet: 1400}.Validate())

	err := Calibration{Dry: 2000, Wet: 2000}.Validate()
	assert.ErrorIs(t, err, ErrCalibration)
	assert.Equal(t, float32(0), Calibration{Dry: 2000, Wet: 2000}.Moisture(1000))
}
