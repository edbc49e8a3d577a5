package mser

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Ellipse is the elliptical frame a Region is mapped to: centre mu plus the
// covariance's eigendecomposition as semi-axis lengths and orientation
// (§4.7: "emit a frame (mu, Sigma) with dimensionality d + d(d+1)/2").
type Ellipse struct {
	Center    [2]float64
	SemiAxisA float64 // larger eigenvalue's semi-axis (2 std devs, matching vl_mser's scale)
	SemiAxisB float64
	Theta     float64 // orientation of the major axis, radians
}

// Ellipse fits r's covariance to an oriented ellipse via a symmetric 2x2
// eigendecomposition.
func (r Region) Ellipse() Ellipse {
	sym := mat.NewSymDense(2, []float64{r.Cov[0][0], r.Cov[0][1], r.Cov[1][0], r.Cov[1][1]})
	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return Ellipse{Center: r.Mean}
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	i0, i1 := 1, 0
	if values[0] > values[1] {
		i0, i1 = 0, 1
	}
	l0, l1 := values[i0], values[i1]
	if l0 < 0 {
		l0 = 0
	}
	if l1 < 0 {
		l1 = 0
	}

	vx, vy := vectors.At(0, i0), vectors.At(1, i0)
	theta := math.Atan2(vy, vx)

	return Ellipse{
		Center:    r.Mean,
		SemiAxisA: 2 * math.Sqrt(l0),
		SemiAxisB: 2 * math.Sqrt(l1),
		Theta:     theta,
	}
}
