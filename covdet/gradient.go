package covdet

import (
	"vlfeat-go/internal/imageops"
	"vlfeat-go/pyramid"
)

// gradientCache memoises the polar-gradient field of each Gaussian level in
// an octave, as sift's own cache does: orientation assignment repeatedly
// samples the same level for every candidate frame found there.
type gradientCache struct {
	oct   *pyramid.Octave
	mag   map[int]*imageops.Grid[float32]
	angle map[int]*imageops.Grid[float32]
}

func newGradientCache(oct *pyramid.Octave) *gradientCache {
	return &gradientCache{
		oct:   oct,
		mag:   make(map[int]*imageops.Grid[float32]),
		angle: make(map[int]*imageops.Grid[float32]),
	}
}

func (c *gradientCache) at(s int) (*imageops.Grid[float32], *imageops.Grid[float32]) {
	if s < c.oct.Geometry.FirstSubdiv {
		s = c.oct.Geometry.FirstSubdiv
	}
	if s > c.oct.Geometry.LastSubdiv {
		s = c.oct.Geometry.LastSubdiv
	}
	if m, ok := c.mag[s]; ok {
		return m, c.angle[s]
	}
	m, a := imageops.GradientPolar(c.oct.GaussianAt(s))
	c.mag[s] = m
	c.angle[s] = a
	return m, a
}
