package covdet

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"vlfeat-go/internal/imageops"
)

// AdaptConfig controls the affine shape adaptation iteration.
type AdaptConfig struct {
	MaxIterations    int     // iteration cap, default 16
	ConvergenceRatio float64 // eigenvalue ratio considered converged, default 1.05
	MaxEigenRatio    float64 // ill-conditioning bound on M's eigenvalue ratio, default 6
	WindowRadius     int     // patch half-side in pixels sampled each iteration, default 8
}

// DefaultAdaptConfig returns the original core's typical affine-adaptation
// tolerances.
func DefaultAdaptConfig() AdaptConfig {
	return AdaptConfig{
		MaxIterations:    16,
		ConvergenceRatio: 1.05,
		MaxEigenRatio:    6,
		WindowRadius:     8,
	}
}

// AffineAdapt iteratively estimates the second-moment matrix of the gradient
// field around frame (sampled from level, the scale-space level whose sigma
// matches the frame) and updates frame.A := frame.A * M^(-1/2), stopping on
// convergence (eigenvalue ratio near 1) or the iteration cap (§4.5). It
// returns false if the frame fails to converge or its shape becomes
// ill-conditioned, in which case the caller should drop it.
func AffineAdapt(level *imageops.Grid[float32], frame Frame, cfg AdaptConfig) (Frame, bool) {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 16
	}
	if cfg.ConvergenceRatio <= 1 {
		cfg.ConvergenceRatio = 1.05
	}
	if cfg.MaxEigenRatio <= 0 {
		cfg.MaxEigenRatio = 6
	}
	if cfg.WindowRadius <= 0 {
		cfg.WindowRadius = 8
	}

	out := frame
	out.Kind = KindAffine

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		m, ok := secondMomentMatrix(level, out, cfg.WindowRadius)
		if !ok {
			return Frame{}, false
		}

		l1, l2, v1, v2, ok := eigenSym2(m)
		if !ok || l2 <= 1e-12 {
			return Frame{}, false
		}
		ratio := l1 / l2
		if ratio > cfg.MaxEigenRatio {
			return Frame{}, false
		}
		if ratio <= cfg.ConvergenceRatio {
			return out, true
		}

		msqrtinv := matFromEigen(1/math.Sqrt(l1), 1/math.Sqrt(l2), v1, v2)
		out.A = mul2(out.A, msqrtinv)

		if det2(out.A) <= 1e-12 {
			return Frame{}, false
		}
	}
	return Frame{}, false
}

// secondMomentMatrix computes the Gaussian-weighted second-moment (structure)
// matrix of the gradient field in a radius-r window around frame, mapped
// through frame's current shape.
func secondMomentMatrix(level *imageops.Grid[float32], frame Frame, radius int) ([2][2]float64, bool) {
	var m [2][2]float64
	var weightSum float64
	windowStd := float64(radius) / 2

	a00, a01, a10, a11 := frame.A[0][0], frame.A[0][1], frame.A[1][0], frame.A[1][1]

	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			// Map the unit-disc sample (dx,dy)/radius through A into image
			// offsets, so the window is elliptical once A deviates from
			// isotropic.
			ux := float64(dx) / float64(radius)
			uy := float64(dy) / float64(radius)
			ox := a00*ux + a01*uy
			oy := a10*ux + a11*uy

			x := frame.X + ox
			y := frame.Y + oy
			if x < 1 || y < 1 || x > float64(level.Width-2) || y > float64(level.Height-2) {
				continue
			}

			gx := imageops.Bilinear(level, x+1, y) - imageops.Bilinear(level, x-1, y)
			gy := imageops.Bilinear(level, x, y+1) - imageops.Bilinear(level, x, y-1)

			r2 := ux*ux + uy*uy
			w := math.Exp(-r2 * float64(radius*radius) / (2 * windowStd * windowStd))

			m[0][0] += w * gx * gx
			m[0][1] += w * gx * gy
			m[1][0] += w * gx * gy
			m[1][1] += w * gy * gy
			weightSum += w
		}
	}
	if weightSum == 0 {
		return m, false
	}
	m[0][0] /= weightSum
	m[0][1] /= weightSum
	m[1][0] /= weightSum
	m[1][1] /= weightSum
	return m, true
}

// eigenSym2 eigendecomposes a symmetric 2x2 matrix via gonum, returning
// eigenvalues l1 >= l2 >= 0 and their (column) eigenvectors.
func eigenSym2(m [2][2]float64) (l1, l2 float64, v1, v2 [2]float64, ok bool) {
	sym := mat.NewSymDense(2, []float64{m[0][0], m[0][1], m[1][0], m[1][1]})
	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return 0, 0, v1, v2, false
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// gonum returns eigenvalues ascending; we want l1 >= l2.
	i0, i1 := 1, 0
	if values[0] > values[1] {
		i0, i1 = 0, 1
	}
	l1, l2 = values[i0], values[i1]
	v1 = [2]float64{vectors.At(0, i0), vectors.At(1, i0)}
	v2 = [2]float64{vectors.At(0, i1), vectors.At(1, i1)}
	return l1, l2, v1, v2, true
}

// matFromEigen reconstructs V * diag(d1,d2) * V^T from eigenvalues/vectors.
func matFromEigen(d1, d2 float64, v1, v2 [2]float64) [2][2]float64 {
	var out [2][2]float64
	for i := 0; i < 2; i++ {
		vi1 := []float64{v1[0], v1[1]}[i]
		vi2 := []float64{v2[0], v2[1]}[i]
		for j := 0; j < 2; j++ {
			vj1 := []float64{v1[0], v1[1]}[j]
			vj2 := []float64{v2[0], v2[1]}[j]
			out[i][j] = d1*vi1*vj1 + d2*vi2*vj2
		}
	}
	return out
}
