// Package covdet implements the covariant-detector frontend (C5): a unified
// feature-frame type spanning point/disc/similarity/affine shapes, iterative
// affine shape adaptation, and patch extraction for downstream descriptors.
package covdet

import "math"

// Kind discriminates the feature-frame variants of §3's tagged Frame record.
type Kind int

const (
	KindPoint Kind = iota
	KindDisc
	KindSimilarity
	KindAffine
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindDisc:
		return "disc"
	case KindSimilarity:
		return "similarity"
	case KindAffine:
		return "affine"
	default:
		return "unknown"
	}
}

// Frame is the tagged record of §3: Point{x,y}, Disc{x,y,sigma},
// Similarity{x,y,sigma,theta}, or Affine{x,y,A}. Only the fields relevant to
// Kind are meaningful; A is always populated (identity for Point, an
// isotropic scale for Disc, a pure rotation-scale for Similarity) so every
// frame can be treated uniformly by AffineAdapt and ExtractPatch.
type Frame struct {
	Kind  Kind
	X, Y  float64
	Sigma float64 // Disc, Similarity, and the adapted Affine's isotropic scale
	Theta float64 // Similarity; Detector also sets it on the Disc and Affine frames it emits
	A     [2][2]float64
}

// NewPoint builds a Point frame with an identity shape.
func NewPoint(x, y float64) Frame {
	return Frame{Kind: KindPoint, X: x, Y: y, A: identity2()}
}

// NewDisc builds a Disc frame with an isotropic-scale shape.
func NewDisc(x, y, sigma float64) Frame {
	return Frame{Kind: KindDisc, X: x, Y: y, Sigma: sigma, A: scale2(sigma)}
}

// NewSimilarity builds a Similarity frame: an isotropic scale and rotation.
func NewSimilarity(x, y, sigma, theta float64) Frame {
	return Frame{Kind: KindSimilarity, X: x, Y: y, Sigma: sigma, Theta: theta, A: rotationScale2(sigma, theta)}
}

// NewAffine builds an Affine frame directly from a shape matrix. Panics if
// det(A) <= 0, per §3's invariant that affine frames have positive
// determinant (orientation-preserving).
func NewAffine(x, y float64, a [2][2]float64) Frame {
	if det2(a) <= 0 {
		panic("covdet: affine frame requires det(A) > 0")
	}
	return Frame{Kind: KindAffine, X: x, Y: y, A: a}
}

func identity2() [2][2]float64 {
	return [2][2]float64{{1, 0}, {0, 1}}
}

func scale2(s float64) [2][2]float64 {
	return [2][2]float64{{s, 0}, {0, s}}
}

func rotationScale2(s, theta float64) [2][2]float64 {
	c, sn := math.Cos(theta), math.Sin(theta)
	return [2][2]float64{{s * c, -s * sn}, {s * sn, s * c}}
}

func det2(a [2][2]float64) float64 {
	return a[0][0]*a[1][1] - a[0][1]*a[1][0]
}

func mul2(a, b [2][2]float64) [2][2]float64 {
	return [2][2]float64{
		{a[0][0]*b[0][0] + a[0][1]*b[1][0], a[0][0]*b[0][1] + a[0][1]*b[1][1]},
		{a[1][0]*b[0][0] + a[1][1]*b[1][0], a[1][0]*b[0][1] + a[1][1]*b[1][1]},
	}
}
