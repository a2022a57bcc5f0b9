package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSim_AdvanceAndAfter(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewSim(start)

	assert.Equal(t, start, c.Now())

	c.Advance(time.Second)
	assert.Equal(t, start.Add(time.Second), c.Now())

	fired := <-c.After(500 * time.Millisecond)
	assert.Equal(t, start.Add(1500*time.Millisecond), fired)
	assert.Equal(t, fired, c.Now())
}

func TestScaled_RunsFaster(t *testing.T) {
	start := time.Unix(0, 0)
	c := NewScaled(1000, start)

	select {
	case <-c.After(time.Second): // 1ms real
	case <-time.After(2 * time.Second):
		t.Fatal("scaled clock did not fire")
	}

	assert.GreaterOrEqual(t, c.Now().Sub(start), time.Second)
}

func TestNewScaled_InvalidScale(t *testing.T) {
	c := NewScaled(0, time.Unix(0, 0))
	assert.Equal(t, float64(1), c.scale)
}
