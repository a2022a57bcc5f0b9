package inference

import (
	"fmt"
	"sync"

	"github.com/chewxy/math32"
	"github.com/itohio/irrigo/pkg/feature"
	"gopkg.in/yaml.v3"
)

var _ Engine = (*Dense)(nil)

// Model is the serialised form of a fully connected network.
//
// Each layer stores one weight row per output unit; a row has one weight per
// input. The first layer must accept feature.NumInputs values and the last must
// produce NumOutputs values.
type Model struct {
	Name   string       `yaml:"name"`
	Layers []LayerModel `yaml:"layers"`
}

// LayerModel is a single dense layer.
type LayerModel struct {
	Activation string      `yaml:"activation"`
	Weights    [][]float32 `yaml:"weights"`
	Bias       []float32   `yaml:"bias"`
}

type activation func(float32) float32

// operators are the activations the engine can execute.
var operators = map[string]activation{
	"linear":  func(x float32) float32 { return x },
	"relu":    relu,
	"sigmoid": sigmoid,
	"tanh":    func(x float32) float32 { return 2*sigmoid(2*x) - 1 },
}

func relu(x float32) float32 {
	if x < 0 {
		return 0
	}
	return x
}

func sigmoid(x float32) float32 {
	if x >= 0 {
		return 1 / (1 + math32.Exp(-x))
	}
	e := math32.Exp(x)
	return e / (1 + e)
}

type denseLayer struct {
	in, out int
	weights []float32 // row-major, out rows of in columns
	bias    []float32
	act     activation
}

// Dense executes small multilayer perceptrons entirely in float32.
// Working memory is allocated once in Initialize so Predict does not allocate.
type Dense struct {
	mu     sync.Mutex
	name   string
	layers []denseLayer
	arena  [2][]float32
	ready  bool
}

// NewDense creates an uninitialised engine.
func NewDense() *Dense {
	return &Dense{}
}

// Initialize parses a YAML model blob, validates its shapes and allocates the
// scratch buffers.
func (d *Dense) Initialize(blob []byte) error {
	if len(blob) == 0 {
		return fmt.Errorf("%w: empty model", ErrModel)
	}

	var m Model
	if err := yaml.Unmarshal(blob, &m); err != nil {
		return fmt.Errorf("%w: %v", ErrModel, err)
	}

	layers, width, err := compile(m)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.name = m.Name
	d.layers = layers
	d.arena[0] = make([]float32, width)
	d.arena[1] = make([]float32, width)
	d.ready = true
	return nil
}

// compile converts a Model into executable layers and returns the widest layer
// width for the scratch buffers.
func compile(m Model) ([]denseLayer, int, error) {
	if len(m.Layers) == 0 {
		return nil, 0, fmt.Errorf("%w: no layers", ErrModel)
	}

	layers := make([]denseLayer, 0, len(m.Layers))
	in := feature.NumInputs
	width := in
	for i, lm := range m.Layers {
		act, ok := operators[lm.Activation]
		if !ok {
			return nil, 0, fmt.Errorf("%w: layer %d: unsupported activation %q", ErrModel, i, lm.Activation)
		}
		out := len(lm.Weights)
		if out == 0 {
			return nil, 0, fmt.Errorf("%w: layer %d has no units", ErrModel, i)
		}
		if len(lm.Bias) != out {
			return nil, 0, fmt.Errorf("%w: layer %d: %d biases for %d units", ErrModel, i, len(lm.Bias), out)
		}

		weights := make([]float32, 0, out*in)
		for r, row := range lm.Weights {
			if len(row) != in {
				return nil, 0, fmt.Errorf("%w: layer %d row %d: %d weights, want %d", ErrModel, i, r, len(row), in)
			}
			weights = append(weights, row...)
		}
		if !finite(weights) || !finite(lm.Bias) {
			return nil, 0, fmt.Errorf("%w: layer %d has non-finite parameters", ErrModel, i)
		}

		layers = append(layers, denseLayer{
			in:      in,
			out:     out,
			weights: weights,
			bias:    append([]float32(nil), lm.Bias...),
			act:     act,
		})
		in = out
		if out > width {
			width = out
		}
	}

	if in != NumOutputs {
		return nil, 0, fmt.Errorf("%w: model produces %d outputs, want %d", ErrModel, in, NumOutputs)
	}
	return layers, width, nil
}

// Predict runs the network forward.
func (d *Dense) Predict(in feature.Vector) (Output, error) {
	var out Output

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready {
		return out, ErrNotReady
	}
	if !finite(in[:]) {
		return out, fmt.Errorf("%w: input %v", ErrNonFinite, in)
	}

	src := d.arena[0][:len(in)]
	copy(src, in[:])
	dst := d.arena[1]
	for _, l := range d.layers {
		dst = dst[:l.out]
		for o := range l.out {
			row := l.weights[o*l.in : (o+1)*l.in]
			sum := l.bias[o]
			for i, w := range row {
				sum += w * src[i]
			}
			dst[o] = l.act(sum)
		}
		src, dst = dst, src[:cap(src)]
	}

	copy(out[:], src)
	if !finite(out[:]) {
		return Output{}, fmt.Errorf("%w: output %v", ErrNonFinite, out)
	}
	return out, nil
}

// Name returns the loaded model's name.
func (d *Dense) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// Shape returns the unit count of each layer, input first.
func (d *Dense) Shape() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.layers) == 0 {
		return nil
	}
	shape := []int{d.layers[0].in}
	for _, l := range d.layers {
		shape = append(shape, l.out)
	}
	return shape
}

func finite(vs []float32) bool {
	for _, v := range vs {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return false
		}
	}
	return true
}
