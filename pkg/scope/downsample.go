package scope

// Downsample decimates src to at most maxPoints values for display.
// Destination-based: reuses dst if it has sufficient capacity, otherwise allocates new.
// If len(src) <= maxPoints, all values are copied. The last value is always kept
// so the chart reaches the newest reading.
func Downsample[T any](dst []T, src []T, maxPoints int) []T {
	if len(src) <= maxPoints {
		if cap(dst) >= len(src) {
			dst = dst[:len(src)]
			copy(dst, src)
			return dst
		}
		result := make([]T, len(src))
		copy(result, src)
		return result
	}

	if maxPoints <= 0 {
		return dst[:0]
	}
	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]T, 0, maxPoints)
	}

	step := float64(len(src)) / float64(maxPoints)
	for i := range maxPoints - 1 {
		dst = append(dst, src[int(float64(i)*step)])
	}
	return append(dst, src[len(src)-1])
}
