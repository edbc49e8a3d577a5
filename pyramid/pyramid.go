package pyramid

import (
	"log/slog"
	"math"

	"vlfeat-go/internal/imageops"
	"vlfeat-go/vlerr"
)

// Config holds the scale-space construction parameters (§4.2).
type Config struct {
	// Octaves is the number of octaves to build. 0 derives a count from the
	// image size (stop once the coarsest octave would fall below the
	// minimum Gaussian footprint).
	Octaves int

	// LevelsPerOctave is S, the number of scale-levels per octave. Must be
	// >= 1; each octave internally holds S+3 Gaussian levels.
	LevelsPerOctave int

	// FirstOctave is o_min: -1 doubles the input, 0 uses it as-is, >0
	// downsamples by 2^FirstOctave before the first octave is built.
	FirstOctave int

	// BaseSigma is sigma0, the nominal scale of subdivision 0 in octave 0.
	BaseSigma float64

	// NominalSigma is sigma_n, the scale already present in the input image
	// (from prior smoothing/sensor blur); the pyramid pre-smooths from this
	// to sigma(o_min, firstSubdiv) exactly once.
	NominalSigma float64

	// Logger receives structured construction/advance events. Defaults to
	// slog.Default() when nil.
	Logger *slog.Logger
}

// DefaultConfig returns the original core's defaults: S=3, sigma0=1.6,
// sigma_n=0.5, o_min=0, octaves derived from image size.
func DefaultConfig() Config {
	return Config{
		Octaves:         0,
		LevelsPerOctave: 3,
		FirstOctave:     0,
		BaseSigma:       1.6,
		NominalSigma:    0.5,
	}
}

const minOctaveFootprint = 2 // smallest width/height an octave may still span

// Pyramid is the incremental octave container. It owns all of its Gaussian
// and DoG buffers; every "get" accessor returns a read-only view tied to the
// pyramid's lifetime. It keeps only the current octave: Process and
// NextOctave allocate fresh levels and replace it, and earlier buffers are
// not reused.
type Pyramid struct {
	cfg    Config
	log    *slog.Logger
	octave *Octave // current octave; nil before Process or past the terminal octave
	done   bool
}

// New validates cfg and returns an empty pyramid (Process must be called
// before any octave can be queried).
func New(cfg Config) (*Pyramid, error) {
	if cfg.LevelsPerOctave < 1 {
		return nil, vlerr.InvalidArgument("pyramid: levelsPerOctave must be >= 1, got %d", cfg.LevelsPerOctave)
	}
	if cfg.BaseSigma <= 0 {
		return nil, vlerr.InvalidArgument("pyramid: baseSigma must be > 0, got %v", cfg.BaseSigma)
	}
	if cfg.NominalSigma < 0 {
		return nil, vlerr.InvalidArgument("pyramid: nominalSigma must be >= 0, got %v", cfg.NominalSigma)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pyramid{cfg: cfg, log: log}, nil
}

// Process (re)builds the pyramid from input, starting at octave FirstOctave.
// Buffers from any previous call are dropped; this call allocates new ones.
func (p *Pyramid) Process(input *imageops.Grid[float32]) error {
	if input == nil {
		return vlerr.InvalidArgument("pyramid: input grid is nil")
	}
	if input.Width < 1 || input.Height < 1 {
		return vlerr.InvalidArgument("pyramid: input grid has non-positive dimension %dx%d", input.Width, input.Height)
	}

	p.done = false
	p.octave = nil

	o := p.cfg.FirstOctave
	var base *imageops.Grid[float32]
	var step float64

	switch {
	case o < 0:
		base = input
		for i := 0; i < -o; i++ {
			base = upsampleDouble(base)
		}
		step = math.Pow(2, float64(o))
	case o == 0:
		base = input
		step = 1
	default:
		base = downsampleByFactor(input, o)
		step = math.Pow(2, float64(o))
	}

	S := p.cfg.LevelsPerOctave
	firstSub := -1
	lastSub := S + 1

	targetSigmaLocal := Sigma(p.cfg.BaseSigma, o, firstSub, S) / step
	// Nominal-input-sigma correction is applied once, here, at the pyramid
	// base, exactly as vl_sift_process_first_octave pre-smooths from
	// sigma_n to sigma(o_min, firstSubdiv) before any incremental step. Both
	// sigmas are expressed in octave-local pixel units (global sigma / step)
	// since smoothVariance operates on the octave-resolution grid.
	nominalLocal := p.cfg.NominalSigma / step
	baseVariance := targetSigmaLocal*targetSigmaLocal - nominalLocal*nominalLocal
	if baseVariance < 0 {
		baseVariance = 0
	}
	g0 := smoothVariance(base, baseVariance)

	levels := make([]*imageops.Grid[float32], lastSub-firstSub+1)
	levels[0] = g0
	for s := firstSub + 1; s <= lastSub; s++ {
		prevSigma := Sigma(p.cfg.BaseSigma, o, s-1, S) / step
		curSigma := Sigma(p.cfg.BaseSigma, o, s, S) / step
		delta := curSigma*curSigma - prevSigma*prevSigma
		if delta < 0 {
			delta = 0
		}
		levels[s-firstSub] = smoothVariance(levels[s-1-firstSub], delta)
	}

	p.octave = &Octave{
		Index: o,
		Geometry: Geometry{
			Width:       levels[0].Width,
			Height:      levels[0].Height,
			Step:        step,
			BaseSigma:   p.cfg.BaseSigma,
			FirstSubdiv: firstSub,
			LastSubdiv:  lastSub,
		},
		Gaussian: levels,
		DoG:      computeDoG(levels),
	}

	p.log.Debug("pyramid: built first octave", "o", o, "width", p.octave.Geometry.Width, "height", p.octave.Geometry.Height, "levels", len(levels))
	return nil
}

// Current returns the most recently built octave. Returns ErrNotConfigured
// if Process has not yet been called.
func (p *Pyramid) Current() (*Octave, error) {
	if p.octave == nil {
		return nil, vlerr.NotConfigured("pyramid: Current called before Process")
	}
	return p.octave, nil
}

// NextOctave builds octave Index+1 from the current octave's S-1 level via
// 2x area downsampling (§4.2 octave handoff), replacing Current(). It
// returns ErrTerminalOctave (not a failure) once the coarsest octave would
// fall below the minimum Gaussian footprint, or once cfg.Octaves (when > 0)
// has been reached.
func (p *Pyramid) NextOctave() error {
	if p.octave == nil {
		return vlerr.NotConfigured("pyramid: NextOctave called before Process")
	}
	if p.done {
		return vlerr.ErrTerminalOctave
	}

	S := p.cfg.LevelsPerOctave
	cur := p.octave

	if p.cfg.Octaves > 0 {
		builtCount := cur.Index - p.cfg.FirstOctave + 1
		if builtCount >= p.cfg.Octaves {
			p.done = true
			return vlerr.ErrTerminalOctave
		}
	}

	seed := cur.GaussianAt(S - 1)
	if seed.Width/2 < minOctaveFootprint || seed.Height/2 < minOctaveFootprint {
		p.done = true
		p.log.Debug("pyramid: terminal octave reached", "o", cur.Index)
		return vlerr.ErrTerminalOctave
	}

	base := downsampleHalf(seed)
	newO := cur.Index + 1
	newStep := cur.Geometry.Step * 2

	firstSub := -1
	lastSub := S + 1

	// The seed level at s=S-1 already carries sigma(o, S-1); one further
	// incremental smoothing step brings it to sigma(o+1, firstSub) in the
	// new octave's (coarser) pixel units.
	prevSigmaOctaveLocal := Sigma(p.cfg.BaseSigma, cur.Index, S-1, S) / cur.Geometry.Step
	targetSigma := Sigma(p.cfg.BaseSigma, newO, firstSub, S) / newStep
	delta := targetSigma*targetSigma - prevSigmaOctaveLocal*prevSigmaOctaveLocal
	if delta < 0 {
		delta = 0
	}
	g0 := smoothVariance(base, delta)

	levels := make([]*imageops.Grid[float32], lastSub-firstSub+1)
	levels[0] = g0
	for s := firstSub + 1; s <= lastSub; s++ {
		prevSigma := Sigma(p.cfg.BaseSigma, newO, s-1, S) / newStep
		curSigma := Sigma(p.cfg.BaseSigma, newO, s, S) / newStep
		d := curSigma*curSigma - prevSigma*prevSigma
		if d < 0 {
			d = 0
		}
		levels[s-firstSub] = smoothVariance(levels[s-1-firstSub], d)
	}

	p.octave = &Octave{
		Index: newO,
		Geometry: Geometry{
			Width:       levels[0].Width,
			Height:      levels[0].Height,
			Step:        newStep,
			BaseSigma:   p.cfg.BaseSigma,
			FirstSubdiv: firstSub,
			LastSubdiv:  lastSub,
		},
		Gaussian: levels,
		DoG:      computeDoG(levels),
	}

	p.log.Debug("pyramid: built next octave", "o", newO, "width", p.octave.Geometry.Width, "height", p.octave.Geometry.Height)
	return nil
}

// LevelsPerOctave returns S.
func (p *Pyramid) LevelsPerOctave() int { return p.cfg.LevelsPerOctave }

// BaseSigma returns sigma0.
func (p *Pyramid) BaseSigma() float64 { return p.cfg.BaseSigma }
