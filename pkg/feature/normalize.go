package feature

import (
	"errors"
	"fmt"
)

// ErrLength is returned when normalisation parameters do not match NumInputs.
var ErrLength = errors.New("feature: parameter length mismatch")

// Params are the per-feature standardisation constants exported by the training
// pipeline's scaler.
type Params struct {
	Mean  Vector
	Scale Vector
}

// Normalizer standardises raw feature vectors.
type Normalizer struct {
	params Params
}

// NewNormalizer validates the configured mean and scale slices and builds a
// Normalizer. A length mismatch is a configuration error and must stop start-up.
func NewNormalizer(mean, scale []float32) (*Normalizer, error) {
	if len(mean) != NumInputs {
		return nil, fmt.Errorf("%w: mean has %d values, want %d", ErrLength, len(mean), NumInputs)
	}
	if len(scale) != NumInputs {
		return nil, fmt.Errorf("%w: scale has %d values, want %d", ErrLength, len(scale), NumInputs)
	}
	var p Params
	copy(p.Mean[:], mean)
	copy(p.Scale[:], scale)
	return &Normalizer{params: p}, nil
}

// Params returns the normalisation constants.
func (n *Normalizer) Params() Params {
	return n.params
}

// Apply returns (raw[i] - mean[i]) / scale[i], treating a zero scale as 1.
func (n *Normalizer) Apply(raw Vector) Vector {
	var out Vector
	for i := range raw {
		s := n.params.Scale[i]
		if s == 0 {
			s = 1
		}
		out[i] = (raw[i] - n.params.Mean[i]) / s
	}
	return out
}
