package scope

import (
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
)

var (
	gridColor      = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor     = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	moistureColor  = color.RGBA{R: 255, G: 165, B: 0, A: 255}   // Orange
	averageColor   = color.RGBA{R: 100, G: 200, B: 255, A: 255} // Light blue
	thresholdColor = color.RGBA{R: 0, G: 100, B: 200, A: 255}   // Dark blue
	relayColor     = color.RGBA{R: 60, G: 180, B: 75, A: 160}   // Green
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	// Background
	grid *canvas.Rectangle

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// plot is the chart area inside the axis margins.
type plot struct {
	x, y, w, h float32
	xMin, xMax time.Time
}

func (p plot) xOf(t time.Time) float32 {
	span := p.xMax.Sub(p.xMin).Seconds()
	if span <= 0 {
		return p.x
	}
	return p.x + float32(t.Sub(p.xMin).Seconds()/span)*p.w
}

// yOf maps a moisture percentage onto the fixed 0-100% axis.
func (p plot) yOf(pct float32) float32 {
	return p.y + p.h - pct/100*p.h
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.grid.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh updates the widget display.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	points := r.scope.displayPoints
	xMin, xMax := r.scope.xMin, r.scope.xMax
	threshold := r.scope.threshold
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.grid}

	const (
		marginLeft   = 50
		marginRight  = 20
		marginTop    = 20
		marginBottom = 40
	)
	p := plot{
		x:    marginLeft,
		y:    marginTop,
		w:    size.Width - marginLeft - marginRight,
		h:    size.Height - marginTop - marginBottom,
		xMin: xMin,
		xMax: xMax,
	}

	r.drawGrid(p)
	r.drawRelay(p, points)
	r.drawThreshold(p, threshold)
	r.drawSeries(p, points, func(pt Point) float32 { return pt.Moisture }, moistureColor, 1.5)
	r.drawSeries(p, points, func(pt Point) float32 { return pt.Average }, averageColor, 2.5)
	r.drawStatus(p, points)
}

// drawGrid draws the percentage and time grid.
func (r *scopeRenderer) drawGrid(p plot) {
	numHLines := 10
	for i := range numHLines + 1 {
		pct := float32(100 - i*100/numHLines)
		y := p.yOf(pct)
		r.line(gridColor, 1, fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.w, y))
		r.text(fmt.Sprintf("%.0f%%", pct), labelColor, 10, fyne.TextAlignTrailing, fyne.NewPos(p.x-5, y-6))
	}

	numVLines := 10
	span := p.xMax.Sub(p.xMin)
	for i := range numVLines + 1 {
		x := p.x + float32(i)*p.w/float32(numVLines)
		r.line(gridColor, 1, fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.h))
		ago := span - time.Duration(i)*span/time.Duration(numVLines)
		r.text(formatAgo(ago), labelColor, 10, fyne.TextAlignCenter, fyne.NewPos(x-20, p.y+p.h+5))
	}
}

// drawRelay shades the strip under the plot while the relay was on.
func (r *scopeRenderer) drawRelay(p plot, points []Point) {
	for i := 0; i < len(points); i++ {
		if !points[i].Relay {
			continue
		}
		start := i
		for i+1 < len(points) && points[i+1].Relay {
			i++
		}
		end := points[i].Time
		if i+1 < len(points) {
			end = points[i+1].Time
		}
		x0, x1 := p.xOf(points[start].Time), p.xOf(end)
		if x1-x0 < 1 {
			x1 = x0 + 1
		}
		bar := canvas.NewRectangle(relayColor)
		bar.Move(fyne.NewPos(x0, p.y+p.h-8))
		bar.Resize(fyne.NewSize(x1-x0, 8))
		r.objects = append(r.objects, bar)
	}
}

// drawThreshold draws the irrigation threshold.
func (r *scopeRenderer) drawThreshold(p plot, threshold float32) {
	if threshold <= 0 || threshold >= 100 {
		return
	}
	y := p.yOf(threshold)
	r.line(thresholdColor, 1, fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.w, y))
}

// drawSeries draws one value of the points as connected segments.
func (r *scopeRenderer) drawSeries(p plot, points []Point, value func(Point) float32, c color.Color, width float32) {
	if len(points) < 2 {
		return
	}
	prev := fyne.NewPos(p.xOf(points[0].Time), p.yOf(value(points[0])))
	for _, pt := range points[1:] {
		next := fyne.NewPos(p.xOf(pt.Time), p.yOf(value(pt)))
		r.line(c, width, prev, next)
		prev = next
	}
}

// drawStatus prints the latest reading in the corner.
func (r *scopeRenderer) drawStatus(p plot, points []Point) {
	if len(points) == 0 {
		return
	}
	last := points[len(points)-1]
	status := fmt.Sprintf("%.1f%% avg %.1f%%", last.Moisture, last.Average)
	if last.Inferred {
		status += fmt.Sprintf("  p=%.2f", last.Probability)
	}
	if last.Relay {
		status += "  PUMP ON"
	}
	r.text(status, color.RGBA{R: 200, G: 200, B: 200, A: 255}, 11, fyne.TextAlignLeading, fyne.NewPos(p.x+10, p.y+10))
}

func (r *scopeRenderer) line(c color.Color, width float32, from, to fyne.Position) {
	l := canvas.NewLine(c)
	l.Position1 = from
	l.Position2 = to
	l.StrokeWidth = width
	r.objects = append(r.objects, l)
}

func (r *scopeRenderer) text(s string, c color.Color, size float32, align fyne.TextAlign, pos fyne.Position) {
	t := canvas.NewText(s, c)
	t.TextSize = size
	t.Alignment = align
	t.Move(pos)
	r.objects = append(r.objects, t)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}

// formatAgo labels a time offset before the newest point.
func formatAgo(d time.Duration) string {
	switch {
	case d <= 0:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("-%.0fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("-%.1fm", d.Minutes())
	}
	return fmt.Sprintf("-%.1fh", d.Hours())
}
