package sift

import (
	"errors"
	"log/slog"
	"math"

	"vlfeat-go/internal/imageops"
	"vlfeat-go/pyramid"
	"vlfeat-go/vlerr"
)

// Detector runs the SIFT pipeline (pyramid construction, extremum detection,
// sub-pixel refinement, edge rejection) over a single input image per call,
// per §5's single-threaded, no-cross-call-state scheduling model.
type Detector struct {
	cfg Config
	log *slog.Logger
	pyr *pyramid.Pyramid

	keypoints   []Keypoint
	frames      []Frame
	descriptors []Descriptor
	processed   bool
}

// NewDetector validates cfg and returns an idle detector.
func NewDetector(cfg Config) (*Detector, error) {
	if cfg.LevelsPerOctave < 1 {
		return nil, vlerr.InvalidArgument("sift: levelsPerOctave must be >= 1, got %d", cfg.LevelsPerOctave)
	}
	if cfg.EdgeThresh <= 0 {
		return nil, vlerr.InvalidArgument("sift: edgeThresh must be > 0, got %v", cfg.EdgeThresh)
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

// Process builds the pyramid for image and detects all keypoints. It must be
// called before Keypoints, Frames, or Descriptors.
func (d *Detector) Process(image *imageops.Grid[float32]) error {
	d.processed = false
	d.keypoints = nil
	d.frames = nil
	d.descriptors = nil

	if err := d.pyr.Process(image); err != nil {
		return err
	}

	S := d.cfg.LevelsPerOctave
	for {
		oct, err := d.pyr.Current()
		if err != nil {
			return err
		}
		found := d.detectOctave(oct, S)
		d.keypoints = append(d.keypoints, found...)

		// Orientation + descriptor extraction happens while this octave is
		// current: the pyramid keeps only the current octave and replaces it
		// on the next advance, so this work is not deferred to after the loop.
		cache := newGradientCache(oct)
		for _, kp := range found {
			thetas := computeOrientations(cache, oct, kp, d.cfg)
			for _, theta := range thetas {
				frame := Frame{Keypoint: kp, Theta: theta}
				desc := computeDescriptor(cache, oct, frame, d.cfg)
				d.frames = append(d.frames, frame)
				d.descriptors = append(d.descriptors, desc)
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
	d.log.Info("sift: detection complete", "keypoints", len(d.keypoints), "frames", len(d.frames))
	return nil
}

// Keypoints returns the keypoints found by the last Process call (one per
// extremum, before orientation duplication).
func (d *Detector) Keypoints() ([]Keypoint, error) {
	if !d.processed {
		return nil, vlerr.NotConfigured("sift: Keypoints called before Process")
	}
	out := make([]Keypoint, len(d.keypoints))
	copy(out, d.keypoints)
	return out, nil
}

// Frames returns one frame per (keypoint, orientation) pair found by the
// last Process call.
func (d *Detector) Frames() ([]Frame, error) {
	if !d.processed {
		return nil, vlerr.NotConfigured("sift: Frames called before Process")
	}
	out := make([]Frame, len(d.frames))
	copy(out, d.frames)
	return out, nil
}

// Descriptors returns the descriptor for each Frame, in the same order.
func (d *Detector) Descriptors() ([]Descriptor, error) {
	if !d.processed {
		return nil, vlerr.NotConfigured("sift: Descriptors called before Process")
	}
	out := make([]Descriptor, len(d.descriptors))
	copy(out, d.descriptors)
	return out, nil
}

func (d *Detector) detectOctave(oct *pyramid.Octave, S int) []Keypoint {
	var out []Keypoint
	firstSub := oct.Geometry.FirstSubdiv
	lastSub := oct.Geometry.LastSubdiv

	for s := 0; s <= S-1; s++ {
		dog := oct.DoGAt(s)
		w, h := dog.Width, dog.Height
		if w < 3 || h < 3 {
			continue
		}
		if s-1 < firstSub || s+1 > lastSub-1 {
			continue
		}
		dm1 := oct.DoGAt(s - 1)
		dp1 := oct.DoGAt(s + 1)

		for y := 1; y < h-1; y++ {
			for x := 1; x < w-1; x++ {
				v := float64(dog.At(x, y))
				if math.Abs(v) < peakPrescreenRatio*d.cfg.PeakThresh {
					continue
				}
				if !isExtremum(dog, dm1, dp1, x, y, v) {
					continue
				}

				kp, ok := d.refine(oct, s, x, y)
				if !ok {
					continue
				}
				out = append(out, kp)
			}
		}
	}
	return dedupe(out)
}

func isExtremum(dog, dm1, dp1 *imageops.Grid[float32], x, y int, v float64) bool {
	isMax, isMin := true, true
	for dz := -1; dz <= 1 && (isMax || isMin); dz++ {
		var lvl *imageops.Grid[float32]
		switch dz {
		case -1:
			lvl = dm1
		case 0:
			lvl = dog
		case 1:
			lvl = dp1
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

// refine performs 3-D quadratic sub-pixel refinement (§4.3) starting from the
// discrete candidate (x, y, s) in octave oct, returning the refined keypoint
// and whether it survived contrast and edge rejection.
func (d *Detector) refine(oct *pyramid.Octave, s, x, y int) (Keypoint, bool) {
	S := d.cfg.LevelsPerOctave
	firstSub := oct.Geometry.FirstSubdiv
	lastSub := oct.Geometry.LastSubdiv

	var dx, dy, ds float64

	for iter := 0; iter < refinementMaxIterations; iter++ {
		if s-1 < firstSub || s+1 > lastSub-1 || x-1 < 0 || y-1 < 0 ||
			x+1 >= oct.Geometry.Width || y+1 >= oct.Geometry.Height {
			return Keypoint{}, false
		}

		dm1 := oct.DoGAt(s - 1)
		d0 := oct.DoGAt(s)
		dp1 := oct.DoGAt(s + 1)

		Dx := (float64(d0.At(x+1, y)) - float64(d0.At(x-1, y))) / 2
		Dy := (float64(d0.At(x, y+1)) - float64(d0.At(x, y-1))) / 2
		Ds := (float64(dp1.At(x, y)) - float64(dm1.At(x, y))) / 2

		v := float64(d0.At(x, y))
		Dxx := float64(d0.At(x+1, y)) - 2*v + float64(d0.At(x-1, y))
		Dyy := float64(d0.At(x, y+1)) - 2*v + float64(d0.At(x, y-1))
		Dss := float64(dp1.At(x, y)) - 2*v + float64(dm1.At(x, y))
		Dxy := (float64(d0.At(x+1, y+1)) - float64(d0.At(x+1, y-1)) - float64(d0.At(x-1, y+1)) + float64(d0.At(x-1, y-1))) / 4
		Dxs := (float64(dp1.At(x+1, y)) - float64(dp1.At(x-1, y)) - float64(dm1.At(x+1, y)) + float64(dm1.At(x-1, y))) / 4
		Dys := (float64(dp1.At(x, y+1)) - float64(dp1.At(x, y-1)) - float64(dm1.At(x, y+1)) + float64(dm1.At(x, y-1))) / 4

		delta, ok := solve3x3(
			Dxx, Dxy, Dxs,
			Dxy, Dyy, Dys,
			Dxs, Dys, Dss,
			-Dx, -Dy, -Ds,
		)
		if !ok {
			return Keypoint{}, false
		}
		dx, dy, ds = delta[0], delta[1], delta[2]

		if math.Abs(dx) < refinementMaxShift && math.Abs(dy) < refinementMaxShift && math.Abs(ds) < refinementMaxShift {
			// Converged: compute refined contrast and edge response here.
			refinedVal := v + 0.5*(Dx*dx+Dy*dy+Ds*ds)
			if math.Abs(refinedVal) < d.cfg.PeakThresh {
				return Keypoint{}, false
			}
			trace := Dxx + Dyy
			det := Dxx*Dyy - Dxy*Dxy
			if det <= 0 {
				return Keypoint{}, false
			}
			thresh := (d.cfg.EdgeThresh + 1) * (d.cfg.EdgeThresh + 1) / d.cfg.EdgeThresh
			if trace*trace/det > thresh {
				return Keypoint{}, false
			}

			step := oct.Geometry.Step
			sigma := pyramid.Sigma(d.pyr.BaseSigma(), oct.Index, s, S) * math.Pow(2, ds/float64(S))
			return Keypoint{
				X:     (float64(x) + dx) * step,
				Y:     (float64(y) + dy) * step,
				Sigma: sigma,
				O:     oct.Index,
				S:     s,
				Xi:    x,
				Yi:    y,
				Si:    s,
			}, true
		}

		// Shift the integer base point toward the refined location and retry.
		if math.Abs(dx) > refinementDivergeBound || math.Abs(dy) > refinementDivergeBound || math.Abs(ds) > refinementDivergeBound {
			return Keypoint{}, false
		}
		if dx > refinementMaxShift {
			x++
		} else if dx < -refinementMaxShift {
			x--
		}
		if dy > refinementMaxShift {
			y++
		} else if dy < -refinementMaxShift {
			y--
		}
		if ds > refinementMaxShift {
			s++
		} else if ds < -refinementMaxShift {
			s--
		}
	}
	return Keypoint{}, false
}

// solve3x3 solves the 3x3 linear system A*x = b via Cramer's rule.
func solve3x3(a00, a01, a02, a10, a11, a12, a20, a21, a22, b0, b1, b2 float64) ([3]float64, bool) {
	det := a00*(a11*a22-a12*a21) - a01*(a10*a22-a12*a20) + a02*(a10*a21-a11*a20)
	if math.Abs(det) < 1e-12 {
		return [3]float64{}, false
	}
	invDet := 1 / det

	det0 := b0*(a11*a22-a12*a21) - a01*(b1*a22-a12*b2) + a02*(b1*a21-a11*b2)
	det1 := a00*(b1*a22-a12*b2) - b0*(a10*a22-a12*a20) + a02*(a10*b2-b1*a20)
	det2 := a00*(a11*b2-b1*a21) - a01*(a10*b2-b1*a20) + b0*(a10*a21-a11*a20)

	return [3]float64{det0 * invDet, det1 * invDet, det2 * invDet}, true
}

// dedupe drops duplicate extrema found at the same discrete (O,S,Xi,Yi,Si)
// location, mirroring vl_sift_detect's suppression of duplicates surfaced by
// adjacent DoG triples scanning the same pixel.
func dedupe(in []Keypoint) []Keypoint {
	type key struct {
		o, s, xi, yi, si int
	}
	seen := make(map[key]bool, len(in))
	out := in[:0]
	for _, kp := range in {
		k := key{kp.O, kp.S, kp.Xi, kp.Yi, kp.Si}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, kp)
	}
	return out
}
