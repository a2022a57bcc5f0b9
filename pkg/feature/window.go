package feature

// WindowSize is the number of moisture samples the window holds. The model was
// trained with the same window length, so it is a build-time constant.
const WindowSize = 5

// Window is a fixed-capacity ring buffer of recent moisture samples.
// The zero value is an empty window ready for use.
type Window struct {
	buf   [WindowSize]float32
	next  int // slot overwritten by the next Push
	count int
}

// Push inserts a sample, overwriting the oldest one when the window is full.
func (w *Window) Push(v float32) {
	w.buf[w.next] = v
	w.next = (w.next + 1) % WindowSize
	if w.count < WindowSize {
		w.count++
	}
}

// Len returns the number of samples currently held.
func (w *Window) Len() int {
	return w.count
}

// Full reports whether the window has been filled to capacity.
func (w *Window) Full() bool {
	return w.count == WindowSize
}

// Average returns the arithmetic mean of the held samples, or 0 when empty.
func (w *Window) Average() float32 {
	if w.count == 0 {
		return 0
	}
	// Until the buffer wraps the held samples occupy buf[:count].
	var sum float32
	for _, v := range w.buf[:w.count] {
		sum += v
	}
	return sum / float32(w.count)
}

// Slope returns (newest - oldest) / WindowSize once the window is full.
// Before that there is not enough history and the trend is reported as 0.
func (w *Window) Slope() float32 {
	if !w.Full() {
		return 0
	}
	oldest := w.buf[w.next]
	newest := w.buf[(w.next+WindowSize-1)%WindowSize]
	return (newest - oldest) / WindowSize
}

// Values appends the held samples to dst, oldest first.
func (w *Window) Values(dst []float32) []float32 {
	start := 0
	if w.Full() {
		start = w.next
	}
	for i := range w.count {
		dst = append(dst, w.buf[(start+i)%WindowSize])
	}
	return dst
}

// Reset empties the window.
func (w *Window) Reset() {
	*w = Window{}
}
