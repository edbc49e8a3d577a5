package pyramid

import (
	"math"

	"vlfeat-go/internal/imageops"
)

// gaussianKernel discretises a 1-D Gaussian of the given standard deviation
// into a unit-sum filter. The support is truncated at +/- 4 sigma (the
// original core's convention), with at least one tap.
func gaussianKernel(sigma float64) (filter []float32, begin, end int) {
	if sigma <= 0 {
		return []float32{1}, 0, 0
	}
	w := int(math.Ceil(4 * sigma))
	if w < 1 {
		w = 1
	}
	taps := 2*w + 1
	filter = make([]float32, taps)
	var sum float64
	for t := 0; t < taps; t++ {
		d := float64(t - w)
		v := math.Exp(-0.5 * d * d / (sigma * sigma))
		filter[t] = float32(v)
		sum += v
	}
	for t := range filter {
		filter[t] = float32(float64(filter[t]) / sum)
	}
	return filter, -w, w
}

// smoothVariance convolves src with a Gaussian whose variance equals
// targetVariance, in octave-local pixel units, and returns the result. A
// non-positive targetVariance is a no-op copy (guards against the
// zero-subdivision-step edge case at s=0).
func smoothVariance(src *imageops.Grid[float32], targetVariance float64) *imageops.Grid[float32] {
	if targetVariance <= 1e-10 {
		out := imageops.NewGrid[float32](src.Width, src.Height)
		copy(out.Data, src.Data)
		return out
	}
	sigma := math.Sqrt(targetVariance)
	filter, begin, end := gaussianKernel(sigma)
	return imageops.Convolve2D(src, filter, begin, end, imageops.PadContinuity)
}

// upsampleDouble produces a pixel-doubled, bilinearly up-sampled copy of src,
// used to seed octave o_min == -1.
func upsampleDouble(src *imageops.Grid[float32]) *imageops.Grid[float32] {
	w, h := src.Width*2, src.Height*2
	dst := imageops.NewGrid[float32](w, h)
	for y := 0; y < h; y++ {
		sy := float64(y) / 2
		for x := 0; x < w; x++ {
			sx := float64(x) / 2
			dst.Set(x, y, float32(imageops.Bilinear(src, sx, sy)))
		}
	}
	return dst
}

// downsampleHalf performs plain 2x area down-sampling (pick every other
// sample) for the octave o -> o+1 handoff. The original is inconsistent
// between plain subsampling and 2x2 averaging for this step; this core picks
// plain subsampling, matching VLFeat's own documented convention (§4.2,
// §9 open question), and documents it here rather than at each call site.
func downsampleHalf(src *imageops.Grid[float32]) *imageops.Grid[float32] {
	w, h := src.Width/2, src.Height/2
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := imageops.NewGrid[float32](w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Set(x, y, src.At(x*2, y*2))
		}
	}
	return dst
}

// downsampleByFactor down-samples src by 2^k using repeated halving, used to
// seed the first octave when o_min > 0.
func downsampleByFactor(src *imageops.Grid[float32], k int) *imageops.Grid[float32] {
	out := src
	for i := 0; i < k; i++ {
		out = downsampleHalf(out)
	}
	return out
}
