package covdet

import (
	"errors"
	"log/slog"
	"math"

	"vlfeat-go/internal/imageops"
	"vlfeat-go/pyramid"
	"vlfeat-go/vlerr"
)

// Method selects the corner measure covdet's detection stage scores
// candidates with (§4.5: "unifies SIFT, Harris-Laplace, Hessian-Laplace").
type Method int

const (
	MethodDoG Method = iota
	MethodHarrisLaplace
	MethodHessianLaplace
)

// Config controls a Detector's pipeline.
type Config struct {
	Method          Method
	Octaves         int
	LevelsPerOctave int
	FirstOctave     int
	PeakThresh      float64
	EdgeThresh      float64

	EstimateOrientation bool
	EstimateAffine      bool
	AdaptConfig         AdaptConfig

	ExtractPatches bool
	PatchConfig    PatchConfig

	Logger *slog.Logger
}

// DefaultConfig mirrors vl_covdet's usual defaults: DoG detection, no
// orientation or affine estimation, no patch extraction.
func DefaultConfig() Config {
	return Config{
		Method:          MethodDoG,
		LevelsPerOctave: 3,
		FirstOctave:     0,
		PeakThresh:      0.01,
		EdgeThresh:      10,
	}
}

// Detector runs the covariant-detector pipeline (§4.5): corner detection at
// the configured Method, optional affine shape adaptation, optional
// orientation assignment, and optional patch extraction. One call to Process
// per image, mirroring sift.Detector's scheduling contract.
type Detector struct {
	cfg Config
	log *slog.Logger
	pyr *pyramid.Pyramid

	frames  []Frame
	patches []*imageops.Grid[float32]

	processed bool
}

// NewDetector validates cfg and returns an idle detector.
func NewDetector(cfg Config) (*Detector, error) {
	if cfg.LevelsPerOctave < 1 {
		return nil, vlerr.InvalidArgument("covdet: levelsPerOctave must be >= 1, got %d", cfg.LevelsPerOctave)
	}
	if cfg.EdgeThresh <= 0 {
		return nil, vlerr.InvalidArgument("covdet: edgeThresh must be > 0, got %v", cfg.EdgeThresh)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	pyr, err := pyramid.New(pyramid.Config{
		Octaves:         cfg.Octaves,
		LevelsPerOctave: cfg.LevelsPerOctave,
		FirstOctave:     cfg.FirstOctave,
		BaseSigma:       1.6,
		NominalSigma:    0.5,
		Logger:          log,
	})
	if err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg, log: log, pyr: pyr}, nil
}

// Process builds the pyramid for image and runs detection, and (depending on
// Config) affine adaptation, orientation assignment, and patch extraction.
func (d *Detector) Process(image *imageops.Grid[float32]) error {
	d.processed = false
	d.frames = nil
	d.patches = nil

	if err := d.pyr.Process(image); err != nil {
		return err
	}

	for {
		oct, err := d.pyr.Current()
		if err != nil {
			return err
		}

		candidates := d.detectOctave(oct)

		cache := newGradientCache(oct)
		for _, cand := range candidates {
			frame := cand

			if d.cfg.EstimateAffine {
				level := nearestLevel(oct, frame)
				adapted, ok := AffineAdapt(level, frame, d.cfg.AdaptConfig)
				if !ok {
					continue
				}
				frame = adapted
			}

			thetas := []float64{0}
			if d.cfg.EstimateOrientation {
				thetas = orientationsForFrame(cache, oct, frame)
				if len(thetas) == 0 {
					thetas = []float64{0}
				}
			}

			for _, theta := range thetas {
				out := frame
				out.Theta = theta
				if out.Kind != KindAffine {
					out.A = rotationScale2(frame.Sigma, theta)
				} else {
					out.A = mul2(frame.A, rotationScale2(1, theta))
				}
				d.frames = append(d.frames, out)

				if d.cfg.ExtractPatches {
					level := nearestLevel(oct, out)
					patch, err := ExtractPatch(level, out, d.cfg.PatchConfig)
					if err != nil {
						return err
					}
					d.patches = append(d.patches, patch)
				}
			}
		}

		err = d.pyr.NextOctave()
		if errors.Is(err, vlerr.ErrTerminalOctave) {
			break
		}
		if err != nil {
			return err
		}
	}

	d.processed = true
	d.log.Info("covdet: detection complete", "frames", len(d.frames))
	return nil
}

// Frames returns the frames found by the last Process call.
func (d *Detector) Frames() ([]Frame, error) {
	if !d.processed {
		return nil, vlerr.NotConfigured("covdet: Frames called before Process")
	}
	out := make([]Frame, len(d.frames))
	copy(out, d.frames)
	return out, nil
}

// Patches returns the extracted patches (one per Frame, same order), or an
// empty slice if ExtractPatches was not set.
func (d *Detector) Patches() ([]*imageops.Grid[float32], error) {
	if !d.processed {
		return nil, vlerr.NotConfigured("covdet: Patches called before Process")
	}
	out := make([]*imageops.Grid[float32], len(d.patches))
	copy(out, d.patches)
	return out, nil
}

// nearestLevel returns the Gaussian level of oct whose sigma best matches
// frame's requested smoothing, per §4.5's patch-extraction contract.
func nearestLevel(oct *pyramid.Octave, frame Frame) *imageops.Grid[float32] {
	step := oct.Geometry.Step
	sigmaLocal := frame.Sigma / step
	target := scaleToSubdiv(sigmaLocal, oct)

	best := oct.Geometry.FirstSubdiv
	bestDiff := math.Inf(1)
	for s := oct.Geometry.FirstSubdiv; s <= oct.Geometry.LastSubdiv; s++ {
		diff := math.Abs(float64(s) - target)
		if diff < bestDiff {
			bestDiff = diff
			best = s
		}
	}
	return oct.GaussianAt(best)
}

func scaleToSubdiv(sigmaLocal float64, oct *pyramid.Octave) float64 {
	if sigmaLocal <= 0 {
		return float64(oct.Geometry.FirstSubdiv)
	}
	// The octave holds S+3 levels in [FirstSubdiv, LastSubdiv], so S is the
	// span minus 2; octave-local sigma is baseSigma * 2^(s/S).
	return math.Log2(sigmaLocal/oct.Geometry.BaseSigma) * float64(oct.Geometry.LastSubdiv-oct.Geometry.FirstSubdiv-2)
}

// orientationsForFrame assigns up to 4 dominant orientations to frame using
// the same 36-bin soft-histogram procedure as C4, over an axis-aligned
// circular window of the Gaussian level nearest the frame's scale. The
// frame's shape matrix A is not applied: the window is not warped or rotated
// into the frame.
func orientationsForFrame(cache *gradientCache, oct *pyramid.Octave, frame Frame) []float64 {
	step := oct.Geometry.Step
	sigmaLocal := frame.Sigma / step
	xLocal := frame.X / step
	yLocal := frame.Y / step

	s := int(math.Round(scaleToSubdiv(sigmaLocal, oct)))
	if s < oct.Geometry.FirstSubdiv {
		s = oct.Geometry.FirstSubdiv
	}
	if s > oct.Geometry.LastSubdiv {
		s = oct.Geometry.LastSubdiv
	}

	mag, ang := cache.at(s)

	const bins = 36
	windowStd := 1.5 * sigmaLocal
	radius := int(math.Round(3 * windowStd))
	if radius < 1 {
		radius = 1
	}
	cx, cy := int(math.Round(xLocal)), int(math.Round(yLocal))

	var hist [bins]float64
	for dy := -radius; dy <= radius; dy++ {
		y := cy + dy
		if y < 0 || y >= mag.Height {
			continue
		}
		for dx := -radius; dx <= radius; dx++ {
			x := cx + dx
			if x < 0 || x >= mag.Width {
				continue
			}
			r2 := float64(dx*dx + dy*dy)
			if r2 > float64(radius*radius) {
				continue
			}
			w := math.Exp(-r2 / (2 * windowStd * windowStd))
			m := float64(mag.At(x, y)) * w
			theta := float64(ang.At(x, y))
			binF := theta / (2 * math.Pi) * bins
			b0 := int(math.Floor(binF))
			frac := binF - float64(b0)
			b0 = ((b0 % bins) + bins) % bins
			b1 := (b0 + 1) % bins
			hist[b0] += m * (1 - frac)
			hist[b1] += m * frac
		}
	}

	for pass := 0; pass < 6; pass++ {
		var smoothed [bins]float64
		for i := 0; i < bins; i++ {
			prev := hist[(i-1+bins)%bins]
			next := hist[(i+1)%bins]
			smoothed[i] = (prev + hist[i] + next) / 3
		}
		hist = smoothed
	}

	maxVal := 0.0
	for _, v := range hist {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal <= 0 {
		return nil
	}

	var thetas []float64
	for i := 0; i < bins && len(thetas) < 4; i++ {
		v := hist[i]
		if v < 0.8*maxVal {
			continue
		}
		prev := hist[(i-1+bins)%bins]
		next := hist[(i+1)%bins]
		if v < prev || v < next {
			continue
		}
		denom := prev - 2*v + next
		var offset float64
		if denom != 0 {
			offset = 0.5 * (prev - next) / denom
		}
		bin := float64(i) + offset
		theta := bin * 2 * math.Pi / bins
		if theta < 0 {
			theta += 2 * math.Pi
		}
		thetas = append(thetas, theta)
	}
	return thetas
}

// detectOctave scores oct's levels with the configured Method and returns
// scale-space extrema as unoriented frames.
func (d *Detector) detectOctave(oct *pyramid.Octave) []Frame {
	switch d.cfg.Method {
	case MethodHarrisLaplace:
		return d.detectCorner(oct, true)
	case MethodHessianLaplace:
		return d.detectCorner(oct, false)
	default:
		return d.detectDoG(oct)
	}
}

func (d *Detector) detectDoG(oct *pyramid.Octave) []Frame {
	S := d.cfg.LevelsPerOctave
	firstSub := oct.Geometry.FirstSubdiv
	lastSub := oct.Geometry.LastSubdiv
	step := oct.Geometry.Step

	var out []Frame
	for s := 0; s <= S-1; s++ {
		if s-1 < firstSub || s+1 > lastSub-1 {
			continue
		}
		dog := oct.DoGAt(s)
		dm1 := oct.DoGAt(s - 1)
		dp1 := oct.DoGAt(s + 1)
		w, h := dog.Width, dog.Height
		if w < 3 || h < 3 {
			continue
		}

		for y := 1; y < h-1; y++ {
			for x := 1; x < w-1; x++ {
				v := float64(dog.At(x, y))
				if math.Abs(v) < 0.8*d.cfg.PeakThresh {
					continue
				}
				if !is26NeighExtremum(dog, dm1, dp1, x, y, v) {
					continue
				}
				if !passesEdgeTest(dog, x, y, d.cfg.EdgeThresh) {
					continue
				}
				sigma := pyramid.Sigma(d.pyr.BaseSigma(), oct.Index, s, S)
				out = append(out, NewDisc(float64(x)*step, float64(y)*step, sigma))
			}
		}
	}
	return out
}

func (d *Detector) detectCorner(oct *pyramid.Octave, harris bool) []Frame {
	S := d.cfg.LevelsPerOctave
	firstSub := oct.Geometry.FirstSubdiv
	lastSub := oct.Geometry.LastSubdiv
	step := oct.Geometry.Step

	responses := make(map[int]*imageops.Grid[float32], lastSub-firstSub+1)
	responseAt := func(s int) *imageops.Grid[float32] {
		if r, ok := responses[s]; ok {
			return r
		}
		level := oct.GaussianAt(s)
		var r *imageops.Grid[float32]
		if harris {
			sigmaLocal := pyramid.Sigma(d.pyr.BaseSigma(), 0, s, S) / step
			r = harrisResponse(level, sigmaLocal, 0.04)
		} else {
			r = hessianResponse(level)
		}
		responses[s] = r
		return r
	}

	var out []Frame
	for s := firstSub + 1; s <= lastSub-1; s++ {
		if s < 0 || s > S-1 {
			continue
		}
		r0 := responseAt(s)
		rm1 := responseAt(s - 1)
		rp1 := responseAt(s + 1)
		w, h := r0.Width, r0.Height
		if w < 3 || h < 3 {
			continue
		}
		for y := 1; y < h-1; y++ {
			for x := 1; x < w-1; x++ {
				v := float64(r0.At(x, y))
				if v < d.cfg.PeakThresh {
					continue
				}
				if !is26NeighExtremum(r0, rm1, rp1, x, y, v) {
					continue
				}
				sigma := pyramid.Sigma(d.pyr.BaseSigma(), oct.Index, s, S)
				out = append(out, NewDisc(float64(x)*step, float64(y)*step, sigma))
			}
		}
	}
	return out
}

func is26NeighExtremum(cur, lower, upper *imageops.Grid[float32], x, y int, v float64) bool {
	isMax, isMin := true, true
	for dz := -1; dz <= 1 && (isMax || isMin); dz++ {
		var lvl *imageops.Grid[float32]
		switch dz {
		case -1:
			lvl = lower
		case 0:
			lvl = cur
		case 1:
			lvl = upper
		}
		for dy := -1; dy <= 1 && (isMax || isMin); dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				n := float64(lvl.At(x+dx, y+dy))
				if n >= v {
					isMax = false
				}
				if n <= v {
					isMin = false
				}
				if !isMax && !isMin {
					break
				}
			}
		}
	}
	return isMax || isMin
}

// passesEdgeTest rejects candidates lying along an edge via the
// trace^2/det Hessian ratio test (§4.3, reused unmodified by §4.5).
func passesEdgeTest(dog *imageops.Grid[float32], x, y int, edgeThresh float64) bool {
	v := float64(dog.At(x, y))
	dxx := float64(dog.At(x+1, y)) - 2*v + float64(dog.At(x-1, y))
	dyy := float64(dog.At(x, y+1)) - 2*v + float64(dog.At(x, y-1))
	dxy := (float64(dog.At(x+1, y+1)) - float64(dog.At(x+1, y-1)) - float64(dog.At(x-1, y+1)) + float64(dog.At(x-1, y-1))) / 4
	trace := dxx + dyy
	det := dxx*dyy - dxy*dxy
	if det <= 0 {
		return false
	}
	thresh := (edgeThresh + 1) * (edgeThresh + 1) / edgeThresh
	return trace*trace/det <= thresh
}
