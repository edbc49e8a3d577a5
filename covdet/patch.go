package covdet

import (
	"vlfeat-go/internal/imageops"
	"vlfeat-go/vlerr"
)

// PatchConfig controls patch extraction geometry.
type PatchConfig struct {
	Resolution int     // patch is (2*Resolution+1) square, default 16
	Extent     float64 // patch half-side in units of frame.A, default 7.5
}

// DefaultPatchConfig mirrors the original's VL_COVDET_EXTRACT_PATCH defaults.
func DefaultPatchConfig() PatchConfig {
	return PatchConfig{Resolution: 16, Extent: 7.5}
}

// ExtractPatch resamples level into a square, orientation-normalised patch
// around frame (§4.5): each output pixel (i,j) in [-Extent,Extent]^2 is mapped
// through frame.A to an image-space offset from (frame.X, frame.Y) and
// bilinearly sampled, folding the frame's own affine shape (and hence any
// dominant orientation baked into A) out of the returned patch.
func ExtractPatch(level *imageops.Grid[float32], frame Frame, cfg PatchConfig) (*imageops.Grid[float32], error) {
	if cfg.Resolution <= 0 {
		cfg.Resolution = 16
	}
	if cfg.Extent <= 0 {
		cfg.Extent = 7.5
	}
	if level == nil {
		return nil, vlerr.InvalidArgument("covdet: ExtractPatch called with nil level")
	}

	side := 2*cfg.Resolution + 1
	patch := imageops.NewGrid[float32](side, side)

	step := cfg.Extent / float64(cfg.Resolution)
	a00, a01, a10, a11 := frame.A[0][0], frame.A[0][1], frame.A[1][0], frame.A[1][1]

	for j := 0; j < side; j++ {
		v := (float64(j) - float64(cfg.Resolution)) * step
		for i := 0; i < side; i++ {
			u := (float64(i) - float64(cfg.Resolution)) * step

			ox := a00*u + a01*v
			oy := a10*u + a11*v
			x := frame.X + ox
			y := frame.Y + oy

			patch.Set(i, j, float32(imageops.Bilinear(level, x, y)))
		}
	}
	return patch, nil
}
