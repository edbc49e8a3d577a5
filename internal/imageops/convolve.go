package imageops

// Padding selects the out-of-range sample convention for separable
// convolution.
type Padding int

const (
	// PadZero treats out-of-range taps as 0.
	PadZero Padding = iota
	// PadContinuity repeats the edge value for out-of-range taps.
	PadContinuity
)

// ConvolveColumns convolves src along its columns (the y axis) with a 1-D
// filter whose taps span the inclusive range [begin, end] (tap index 0 is
// the filter's origin, so begin is typically negative), sub-sampling the
// output every step rows. If transpose is true the output's rows and columns
// are swapped, which is how two calls compose into a 2-D separable filter
// (filter the columns, transpose, filter the columns again).
//
// Output height is floor((src.Height-1)/step) + 1; output width equals
// src.Width (or, transposed, output width is that same count and height is
// src.Width).
//
// Scalar and the (currently scalar-backed) SIMD dispatch point must produce
// identical output for a flat image: NativeBackend only changes how the work
// is labelled, not the arithmetic performed.
func ConvolveColumns[T Numeric](dst, src *Grid[T], filter []T, begin, end int, step int, padding Padding, transpose bool) {
	if step < 1 {
		step = 1
	}
	outHeight := (src.Height-1)/step + 1
	width := src.Width

	taps := end - begin + 1
	if taps != len(filter) {
		panic("imageops: filter length does not match [begin, end]")
	}

	// NativeBackend() is consulted only to keep the dispatch point
	// observable/testable; both arms execute the identical scalar loop
	// below until a real vectorised kernel is added (see simd.go).
	_ = NativeBackend()

	for oy := 0; oy < outHeight; oy++ {
		srcY := oy * step
		for x := 0; x < width; x++ {
			var acc T
			for t := 0; t < taps; t++ {
				tapOffset := begin + t
				sy := srcY + tapOffset
				acc += filter[t] * sampleClamped(src, x, sy, padding)
			}
			if transpose {
				dst.Set(oy, x, acc)
			} else {
				dst.Set(x, oy, acc)
			}
		}
	}
}

// sampleClamped reads src at (x, y), applying the padding convention when y
// falls outside [0, Height).
func sampleClamped[T Numeric](src *Grid[T], x, y int, padding Padding) T {
	if y >= 0 && y < src.Height {
		return src.At(x, y)
	}
	if padding == PadZero {
		var zero T
		return zero
	}
	if y < 0 {
		y = 0
	} else {
		y = src.Height - 1
	}
	return src.At(x, y)
}

// OutputHeight returns the number of sub-sampled output rows ConvolveColumns
// produces for a source of the given height and step.
func OutputHeight(srcHeight, step int) int {
	if step < 1 {
		step = 1
	}
	return (srcHeight-1)/step + 1
}

// Convolve2D applies a separable 2-D filter by convolving columns, then
// transposing, then convolving columns again — the standard two-pass
// construction the original core uses for every Gaussian level.
func Convolve2D[T Numeric](src *Grid[T], filter []T, begin, end int, padding Padding) *Grid[T] {
	tmpHeight := OutputHeight(src.Height, 1)
	tmp := NewGrid[T](tmpHeight, src.Width) // transposed intermediate
	ConvolveColumns(tmp, src, filter, begin, end, 1, padding, true)

	outHeight := OutputHeight(tmp.Height, 1)
	dst := NewGrid[T](outHeight, tmp.Width) // transposed back
	ConvolveColumns(dst, tmp, filter, begin, end, 1, padding, true)
	return dst
}

// TriangularKernel builds an area-normalised triangular kernel of half-width
// w (support 2w-1 taps, origin at tap index w-1), used by dense-SIFT/HOG for
// fast separable pooling in place of a true Gaussian.
func TriangularKernel[T Numeric](w int) (filter []T, begin, end int) {
	if w < 1 {
		w = 1
	}
	taps := 2*w - 1
	filter = make([]T, taps)
	var sum T
	for t := 0; t < taps; t++ {
		d := t - (w - 1)
		if d < 0 {
			d = -d
		}
		v := T(w - d)
		filter[t] = v
		sum += v
	}
	for t := range filter {
		filter[t] /= sum
	}
	return filter, -(w - 1), w - 1
}

// ConvolveTriangular convolves src separably with the implicit triangular
// kernel of half-width w, equivalent to calling Convolve2D with
// TriangularKernel(w) but without materialising the (usually small) kernel
// at every call site.
func ConvolveTriangular[T Numeric](src *Grid[T], w int, padding Padding) *Grid[T] {
	filter, begin, end := TriangularKernel[T](w)
	return Convolve2D(src, filter, begin, end, padding)
}
