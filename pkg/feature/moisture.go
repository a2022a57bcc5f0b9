// Package feature turns raw sensor readings into the model's input features:
// calibrated moisture percentages, the moisture window with its average and trend,
// and the standardised feature vector.
package feature

import (
	"errors"
	"fmt"
)

// ErrCalibration is returned for calibration endpoints that cannot define a mapping.
var ErrCalibration = errors.New("feature: invalid moisture calibration")

// Calibration holds the capacitive probe endpoints: the raw ADC code read in dry
// air maps to 0% and the code read in water maps to 100%.
type Calibration struct {
	Dry int `yaml:"dry"`
	Wet int `yaml:"wet"`
}

// Validate checks that the endpoints differ.
func (c Calibration) Validate() error {
	if c.Dry == c.Wet {
		return fmt.Errorf("%w: dry and wet codes are both %d", ErrCalibration, c.Dry)
	}
	return nil
}

// Moisture maps a raw ADC code to a moisture percentage clamped to [0,100].
// Codes past either endpoint clamp to that endpoint.
func (c Calibration) Moisture(raw int) float32 {
	if c.Dry == c.Wet {
		return 0
	}
	pct := float32(raw-c.Dry) * 100 / float32(c.Wet-c.Dry)
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
