// Package pyramid implements the Gaussian/difference-of-Gaussian scale-space
// octave pyramid (C2): incremental octave construction, first-octave
// doubling, and the octave-to-octave downsampling handoff that every
// detector in the module (SIFT, dense SIFT, covariant frontend) builds on.
package pyramid

import "math"

// Geometry describes one octave's resolution and scale range, per §3's
// Octave data model: (width, height, step = 2^o, baseSigma, firstSubdiv,
// lastSubdiv).
type Geometry struct {
	Width        int
	Height       int
	Step         float64 // 2^o, the octave's pixel-to-input-image scale factor
	BaseSigma    float64
	FirstSubdiv  int
	LastSubdiv   int
}

// Sigma returns sigma(o, s) = baseSigma * 2^(o + s/S) for this octave's base
// sigma, octave index o and subdivision count S.
func Sigma(baseSigma float64, o int, s, S int) float64 {
	return baseSigma * math.Pow(2, float64(o)+float64(s)/float64(S))
}
