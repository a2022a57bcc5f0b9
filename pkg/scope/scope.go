// Package scope draws the moisture history chart used by the desktop monitor.
package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/irrigo/pkg/config"
)

// ScopeWidget is a custom Fyne widget that charts moisture, its window average
// and the relay state over time.
type ScopeWidget struct {
	widget.BaseWidget

	threshold float32
	span      time.Duration

	// Data (protected by mu)
	mu            sync.RWMutex
	displayPoints []Point
	xMin, xMax    time.Time

	maxDisplayPoints int
}

// New creates a new ScopeWidget instance.
func New(cfg *config.Config) *ScopeWidget {
	s := &ScopeWidget{
		threshold:        float32(cfg.Decision.MoistureThreshold),
		span:             cfg.Monitor.History,
		displayPoints:    make([]Point, 0, cfg.Monitor.MaxPoints),
		maxDisplayPoints: cfg.Monitor.MaxPoints,
	}
	s.ExtendBaseWidget(s)
	s.Refresh()
	return s
}

// UpdateData updates the widget with the current history.
// This should be called from the report callback using fyne.Do().
func (s *ScopeWidget) UpdateData(points []Point) {
	s.mu.Lock()
	s.displayPoints = Downsample(s.displayPoints, points, s.maxDisplayPoints)
	s.updateTimeRange()
	s.mu.Unlock()

	s.Refresh()
}

// updateTimeRange sets the X axis to the charted points, at least one span wide.
func (s *ScopeWidget) updateTimeRange() {
	if len(s.displayPoints) == 0 {
		s.xMax = time.Now()
		s.xMin = s.xMax.Add(-s.span)
		return
	}
	s.xMax = s.displayPoints[len(s.displayPoints)-1].Time
	s.xMin = s.displayPoints[0].Time
	if s.xMax.Sub(s.xMin) < s.span {
		s.xMin = s.xMax.Add(-s.span)
	}
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	grid := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}) // Dark background
	return &scopeRenderer{
		scope:   s,
		grid:    grid,
		objects: []fyne.CanvasObject{grid},
	}
}
