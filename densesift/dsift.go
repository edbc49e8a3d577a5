package densesift

import (
	"math"

	"vlfeat-go/internal/imageops"
	"vlfeat-go/vlerr"
)

// Keypoint is a dense-SIFT sample location.
type Keypoint struct {
	X, Y int
}

// Descriptor is a dense-SIFT feature vector, 4x4x8 bins flattened (bins
// change fastest, matching C4's layout).
type Descriptor struct {
	X, Y   int
	Values [DescriptorLength]float64
}

// Extractor builds the 8 orientation channels once per image and samples
// descriptors from them at an arbitrary grid (§4.6).
type Extractor struct {
	cfg      Config
	channels [NOrient]*imageops.Grid[float32]
	width    int
	height   int
}

// NewExtractor validates cfg and returns an idle extractor.
func NewExtractor(cfg Config) (*Extractor, error) {
	if cfg.BinSize < 1 {
		return nil, vlerr.InvalidArgument("densesift: binSize must be >= 1, got %d", cfg.BinSize)
	}
	if cfg.Step < 1 {
		return nil, vlerr.InvalidArgument("densesift: step must be >= 1, got %d", cfg.Step)
	}
	return &Extractor{cfg: cfg}, nil
}

// Process builds the per-pixel orientation-weighted gradient maps and pools
// them with the configured spatial window, per §4.6 steps 1-2.
func (e *Extractor) Process(img *imageops.Grid[float32]) error {
	mag, ang := imageops.GradientPolar(img)
	e.width, e.height = img.Width, img.Height

	var raw [NOrient]*imageops.Grid[float32]
	for o := 0; o < NOrient; o++ {
		raw[o] = imageops.NewGrid[float32](img.Width, img.Height)
	}

	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			m := float64(mag.At(x, y))
			theta := float64(ang.At(x, y))

			binF := theta / (2 * math.Pi) * NOrient
			b0 := int(math.Floor(binF))
			frac := binF - float64(b0)
			b0 = ((b0 % NOrient) + NOrient) % NOrient
			b1 := (b0 + 1) % NOrient

			raw[b0].Set(x, y, raw[b0].At(x, y)+float32(m*(1-frac)))
			raw[b1].Set(x, y, raw[b1].At(x, y)+float32(m*frac))
		}
	}

	w := e.cfg.BinSize
	for o := 0; o < NOrient; o++ {
		var pooled *imageops.Grid[float32]
		if e.cfg.FlatWindow {
			pooled = imageops.ConvolveTriangular(raw[o], w, imageops.PadContinuity)
		} else {
			filter, begin, end := gaussianKernel(float64(w) / 2)
			pooled = imageops.Convolve2D(raw[o], filter, begin, end, imageops.PadContinuity)
		}
		e.channels[o] = pooled
	}
	return nil
}

// Descriptors samples a 4x4x8 descriptor at every step-spaced grid point
// whose bin window fits entirely inside the image (§4.6 step 3), normalising,
// clipping, and renormalising each as in C4.
func (e *Extractor) Descriptors() ([]Descriptor, error) {
	if e.channels[0] == nil {
		return nil, vlerr.NotConfigured("densesift: Descriptors called before Process")
	}

	binSize := e.cfg.BinSize
	half := 2 * binSize
	var out []Descriptor

	for y := half; y < e.height-half; y += e.cfg.Step {
		for x := half; x < e.width-half; x += e.cfg.Step {
			out = append(out, e.descriptorAt(x, y))
		}
	}
	return out, nil
}

// DescriptorAt samples a single descriptor at (x, y), for callers that need
// sparse sampling rather than the full grid (e.g. scenario equivalence
// checks against sparse SIFT).
func (e *Extractor) DescriptorAt(x, y int) (Descriptor, error) {
	if e.channels[0] == nil {
		return Descriptor{}, vlerr.NotConfigured("densesift: DescriptorAt called before Process")
	}
	return e.descriptorAt(x, y), nil
}

func (e *Extractor) descriptorAt(x, y int) Descriptor {
	binSize := e.cfg.BinSize
	var d Descriptor
	d.X, d.Y = x, y

	idx := 0
	for bx := 0; bx < NBinsX; bx++ {
		cx := x + (bx-NBinsX/2)*binSize + binSize/2
		for by := 0; by < NBinsY; by++ {
			cy := y + (by-NBinsY/2)*binSize + binSize/2
			for o := 0; o < NOrient; o++ {
				v := 0.0
				if cx >= 0 && cx < e.width && cy >= 0 && cy < e.height {
					v = float64(e.channels[o].At(cx, cy))
				}
				d.Values[idx] = v
				idx++
			}
		}
	}

	normalizeClipRenormalize(&d.Values, e.cfg.NormThresh)
	return d
}

func normalizeClipRenormalize(v *[DescriptorLength]float64, normThresh float64) {
	norm := l2Norm(v[:])
	if norm < normThresh || norm == 0 {
		return
	}
	for i := range v {
		v[i] /= norm
	}
	for i := range v {
		if v[i] > descriptorClip {
			v[i] = descriptorClip
		}
	}
	norm = l2Norm(v[:])
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] /= norm
	}
}

func l2Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// gaussianKernel discretises a 1-D Gaussian of the given standard deviation
// into a unit-sum filter truncated at +/- 4 sigma, the same convention the
// pyramid package uses for octave smoothing.
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
