package inference

import (
	"math"
	"os"
	"testing"

	"github.com/chewxy/math32"
	"github.com/itohio/irrigo/pkg/feature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestModel(t *testing.T) []byte {
	t.Helper()
	blob, err := os.ReadFile("testdata/model.yaml")
	require.NoError(t, err)
	return blob
}

func TestDense_PredictBeforeInitialize(t *testing.T) {
	d := NewDense()
	_, err := d.Predict(feature.Vector{})
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestDense_Predict(t *testing.T) {
	d := NewDense()
	require.NoError(t, d.Initialize(loadTestModel(t)))

	assert.Equal(t, "irrigation-probe", d.Name())
	assert.Equal(t, []int{5, 4, 1}, d.Shape())

	tests := []struct {
		name string
		in   feature.Vector
		want float32
	}{
		{name: "average conditions", in: feature.Vector{}, want: sigmoid(-0.5)},
		{name: "dry soil", in: feature.Vector{-1, 0, 0, 0, 0}, want: sigmoid(2.5)},
		{name: "wet soil", in: feature.Vector{1, 0, 0, 0, 0}, want: sigmoid(-2.5)},
		{name: "drying and hot", in: feature.Vector{0, -2, 2, 0, 0}, want: sigmoid(2.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := d.Predict(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, out[0], 1e-6)
			assert.GreaterOrEqual(t, out[0], float32(0))
			assert.LessOrEqual(t, out[0], float32(1))
		})
	}
}

func TestDense_PredictRejectsNaN(t *testing.T) {
	d := NewDense()
	require.NoError(t, d.Initialize(loadTestModel(t)))

	_, err := d.Predict(feature.Vector{math32.NaN(), 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrNonFinite)
}

func TestDense_InitializeErrors(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{name: "empty", blob: ""},
		{name: "not yaml", blob: "layers: [: ["},
		{name: "no layers", blob: "name: x\nlayers: []\n"},
		{
			name: "unsupported activation",
			blob: `
layers:
  - activation: softmax
    weights: [[1, 1, 1, 1, 1]]
    bias: [0]
`,
		},
		{
			name: "wrong input width",
			blob: `
layers:
  - activation: sigmoid
    weights: [[1, 1, 1]]
    bias: [0]
`,
		},
		{
			name: "bias mismatch",
			blob: `
layers:
  - activation: sigmoid
    weights: [[1, 1, 1, 1, 1]]
    bias: [0, 1]
`,
		},
		{
			name: "too many outputs",
			blob: `
layers:
  - activation: sigmoid
    weights: [[1, 1, 1, 1, 1], [1, 1, 1, 1, 1]]
    bias: [0, 0]
`,
		},
		{
			name: "layers do not chain",
			blob: `
layers:
  - activation: relu
    weights: [[1, 1, 1, 1, 1], [1, 1, 1, 1, 1]]
    bias: [0, 0]
  - activation: sigmoid
    weights: [[1, 1, 1]]
    bias: [0]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDense()
			err := d.Initialize([]byte(tt.blob))
			assert.ErrorIs(t, err, ErrModel)

			_, err = d.Predict(feature.Vector{})
			assert.ErrorIs(t, err, ErrNotReady)
		})
	}
}

func TestDense_ThreeLayerModel(t *testing.T) {
	// Same shape family as the deployed network: 5 -> 3 -> 2 -> 1.
	blob := `
layers:
  - activation: relu
    weights:
      - [1, 0, 0, 0, 0]
      - [0, 1, 0, 0, 0]
      - [0, 0, 1, 0, 0]
    bias: [0, 0, 0]
  - activation: linear
    weights:
      - [1, 1, 0]
      - [0, 0, 1]
    bias: [0, 0]
  - activation: tanh
    weights:
      - [1, -1]
    bias: [0]
`
	d := NewDense()
	require.NoError(t, d.Initialize([]byte(blob)))
	assert.Equal(t, []int{5, 3, 2, 1}, d.Shape())

	out, err := d.Predict(feature.Vector{1, 2, 0.5, 9, 9})
	require.NoError(t, err)
	assert.InDelta(t, math.Tanh(2.5), out[0], 1e-5)
}

func TestSigmoid_Stable(t *testing.T) {
	assert.InDelta(t, 0.5, sigmoid(0), 1e-7)
	assert.InDelta(t, 1.0, sigmoid(100), 1e-7)
	assert.InDelta(t, 0.0, sigmoid(-100), 1e-7)
	assert.False(t, math32.IsNaN(sigmoid(-1000)))
}

func TestRelu(t *testing.T) {
	assert.Equal(t, float32(0), relu(-3))
	assert.Equal(t, float32(3), relu(3))
}
