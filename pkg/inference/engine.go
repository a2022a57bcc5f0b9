// Package inference runs the pretrained irrigation model.
//
// The numeric engine sits behind the Engine interface; Adapter owns its
// initialisation state machine (retry until ready) and times each prediction.
package inference

import (
	"errors"
	"time"

	"github.com/itohio/irrigo/pkg/feature"
)

// NumOutputs is the length of the model output vector. The single output is the
// irrigation probability.
const NumOutputs = 1

var (
	// ErrNotReady is returned when predicting before the engine is initialised.
	ErrNotReady = errors.New("inference: engine not initialised")
	// ErrModel is returned for model blobs the engine cannot load.
	ErrModel = errors.New("inference: invalid model")
	// ErrNonFinite is returned when an input or output is NaN or infinite.
	ErrNonFinite = errors.New("inference: non-finite value")
)

// Output is a fixed-length model output.
type Output [NumOutputs]float32

// Engine executes a model over normalised feature vectors.
type Engine interface {
	// Initialize loads the model, registers its operators and allocates working
	// memory. It may be called again after a failure.
	Initialize(model []byte) error
	// Predict runs the model on a normalised input vector.
	Predict(in feature.Vector) (Output, error)
}

// Outcome is the result of one inference call.
type Outcome struct {
	Output  Output
	Latency time.Duration
	Err     error
}

// Ok reports whether the call succeeded.
func (o Outcome) Ok() bool {
	return o.Err == nil
}

// Probability returns the irrigation probability output.
func (o Outcome) Probability() float32 {
	return o.Output[0]
}
