package pyramid

import "vlfeat-go/internal/imageops"

// Octave is one resolution level of the pyramid: a geometry shared by an
// ordered sequence of Gaussian levels (indexed Geometry.FirstSubdiv ..
// Geometry.LastSubdiv) and the DoG levels computed from them.
type Octave struct {
	Index    int
	Geometry Geometry

	// Gaussian holds S+3 levels indexed [FirstSubdiv, LastSubdiv], i.e.
	// Gaussian[s-FirstSubdiv] is the level at subdivision s.
	Gaussian []*imageops.Grid[float32]

	// DoG holds S+2 levels, DoG[i] = Gaussian[i+1] - Gaussian[i].
	DoG []*imageops.Grid[float32]
}

// GaussianAt returns the Gaussian level at subdivision s.
func (o *Octave) GaussianAt(s int) *imageops.Grid[float32] {
	return o.Gaussian[s-o.Geometry.FirstSubdiv]
}

// DoGAt returns the DoG level whose lower Gaussian neighbour is at
// subdivision s (so DoGAt(s) = GaussianAt(s+1) - GaussianAt(s)).
func (o *Octave) DoGAt(s int) *imageops.Grid[float32] {
	return o.DoG[s-o.Geometry.FirstSubdiv]
}

func computeDoG(gaussian []*imageops.Grid[float32]) []*imageops.Grid[float32] {
	dog := make([]*imageops.Grid[float32], len(gaussian)-1)
	for i := 0; i < len(dog); i++ {
		a, b := gaussian[i], gaussian[i+1]
		d := imageops.NewGrid[float32](a.Width, a.Height)
		for idx := range d.Data {
			d.Data[idx] = b.Data[idx] - a.Data[idx]
		}
		dog[i] = d
	}
	return dog
}
