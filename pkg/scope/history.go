package scope

import (
	"sync"
	"time"

	"github.com/itohio/irrigo/pkg/control"
)

// Point is one charted control cycle.
type Point struct {
	Time        time.Time
	Moisture    float32
	Average     float32
	Probability float32
	Inferred    bool
	Relay       bool
}

// History keeps the points of the last span of time, oldest first.
type History struct {
	span time.Duration

	mu     sync.RWMutex
	points []Point
}

// NewHistory creates a history holding span worth of points.
func NewHistory(span time.Duration) *History {
	return &History{span: span}
}

// Add appends a report and drops points older than the span. It is meant to be
// registered with control.Loop.OnReport.
func (h *History) Add(r control.Report) {
	p := Point{
		Time:     r.Time,
		Moisture: r.Moisture,
		Average:  r.Average,
		Inferred: r.Inference.Ok(),
		Relay:    r.Relay,
	}
	if p.Inferred {
		p.Probability = r.Inference.Probability()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.points = append(h.points, p)

	cutoff := p.Time.Add(-h.span)
	drop := 0
	for drop < len(h.points) && h.points[drop].Time.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		h.points = append(h.points[:0], h.points[drop:]...)
	}
}

// Len returns the number of held points.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.points)
}

// Points copies the held points into dst, reusing its capacity.
func (h *History) Points(dst []Point) []Point {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append(dst[:0], h.points...)
}
