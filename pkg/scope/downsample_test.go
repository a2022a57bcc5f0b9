package scope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pointsAt(start time.Time, n int) []Point {
	points := make([]Point, n)
	for i := range n {
		points[i] = Point{
			Time:     start.Add(time.Duration(i) * 500 * time.Millisecond),
			Moisture: float32(i),
		}
	}
	return points
}

func TestDownsample_NoDownsampling(t *testing.T) {
	points := pointsAt(time.Now(), 3)

	// Test with nil dst
	result := Downsample(nil, points, 10)
	require.Len(t, result, 3)
	assert.Equal(t, points, result)

	// Test with sufficient capacity dst
	dst := make([]Point, 0, 10)
	result = Downsample(dst, points, 10)
	require.Len(t, result, 3)
	assert.Equal(t, points, result)
	assert.Equal(t, cap(dst), cap(result), "should reuse dst")
}

func TestDownsample_WithDownsampling(t *testing.T) {
	points := pointsAt(time.Now(), 100)

	dst := make([]Point, 0, 20)
	result := Downsample(dst, points, 10)
	require.Len(t, result, 10)

	assert.Equal(t, points[0], result[0], "first point is kept")
	assert.Equal(t, points[99], result[9], "newest point is kept")
	for i := 1; i < len(result); i++ {
		assert.True(t, result[i].Time.After(result[i-1].Time), "order is preserved")
	}
	assert.Equal(t, 20, cap(result))
}

func TestDownsample_DestinationReuse(t *testing.T) {
	now := time.Now()

	dst := make([]Point, 0, 10)
	result1 := Downsample(dst, pointsAt(now, 2), 10)
	require.Len(t, result1, 2)

	result2 := Downsample(result1, pointsAt(now, 3), 10)
	require.Len(t, result2, 3)
	assert.Equal(t, cap(result1), cap(result2))
}

func TestDownsample_Edges(t *testing.T) {
	tests := []struct {
		name      string
		src       []float64
		maxPoints int
		want      []float64
	}{
		{"empty input", []float64{}, 10, []float64{}},
		{"exact max points", []float64{1, 2, 3}, 3, []float64{1, 2, 3}},
		{"single point", []float64{1, 2, 3, 4}, 1, []float64{4}},
		{"zero points", []float64{1, 2, 3}, 0, []float64{}},
		{"halving", []float64{0, 1, 2, 3, 4, 5, 6, 7}, 4, []float64{0, 2, 4, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Downsample(make([]float64, 0, 8), tt.src, tt.maxPoints)
			assert.Equal(t, tt.want, got)
		})
	}
}
