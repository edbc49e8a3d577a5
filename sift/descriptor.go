package sift

import (
	"math"

	"vlfeat-go/internal/imageops"
	"vlfeat-go/pyramid"
)

// gradientCache memoises the polar-gradient field of each Gaussian level in
// an octave, computed on first use: orientation assignment and the
// descriptor window both sample gradients repeatedly across overlapping
// neighbourhoods of the same level.
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
	if m, ok := c.mag[s]; ok {
		return m, c.angle[s]
	}
	m, a := imageops.GradientPolar(c.oct.GaussianAt(s))
	c.mag[s] = m
	c.angle[s] = a
	return m, a
}

// computeOrientations builds the 36-bin soft orientation histogram around kp
// (§4.4), smooths it, and returns every peak within 80% of the global
// maximum as a separate orientation (at most 4), parabolically refined.
func computeOrientations(cache *gradientCache, oct *pyramid.Octave, kp Keypoint, cfg Config) []float64 {
	if cfg.ForceOrientations {
		return []float64{0}
	}

	step := oct.Geometry.Step
	sigmaLocal := kp.Sigma / step
	xLocal := kp.X / step
	yLocal := kp.Y / step

	mag, ang := cache.at(kp.S)

	windowStd := 1.5 * sigmaLocal
	radius := int(math.Round(3 * windowStd))
	if radius < 1 {
		radius = 1
	}

	var hist [orientationHistBins]float64
	cx, cy := int(math.Round(xLocal)), int(math.Round(yLocal))

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

			binF := theta / (2 * math.Pi) * orientationHistBins
			b0 := int(math.Floor(binF))
			frac := binF - float64(b0)
			b0 = ((b0 % orientationHistBins) + orientationHistBins) % orientationHistBins
			b1 := (b0 + 1) % orientationHistBins

			hist[b0] += m * (1 - frac)
			hist[b1] += m * frac
		}
	}

	// Smooth 6 times with a 3-tap moving average (near-Gaussian, §4.4).
	for pass := 0; pass < orientationSmoothPasses; pass++ {
		var smoothed [orientationHistBins]float64
		for i := 0; i < orientationHistBins; i++ {
			prev := hist[(i-1+orientationHistBins)%orientationHistBins]
			next := hist[(i+1)%orientationHistBins]
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
	for i := 0; i < orientationHistBins && len(thetas) < maxOrientationsPerKeypoint; i++ {
		v := hist[i]
		if v < orientationPeakRatio*maxVal {
			continue
		}
		prev := hist[(i-1+orientationHistBins)%orientationHistBins]
		next := hist[(i+1)%orientationHistBins]
		if v < prev || v < next {
			continue
		}
		// Parabolic interpolation against the two neighbours.
		denom := prev - 2*v + next
		var offset float64
		if denom != 0 {
			offset = 0.5 * (prev - next) / denom
		}
		bin := float64(i) + offset
		theta := bin * 2 * math.Pi / orientationHistBins
		if theta < 0 {
			theta += 2 * math.Pi
		}
		thetas = append(thetas, theta)
	}
	return thetas
}

// computeDescriptor builds the 4x4x8 rotated gradient-window descriptor for
// frame (§4.4): a Gaussian-weighted, trilinearly-distributed histogram cube,
// L2-normalised, clipped at 0.2 per entry, and L2-renormalised.
func computeDescriptor(cache *gradientCache, oct *pyramid.Octave, frame Frame, cfg Config) Descriptor {
	kp := frame.Keypoint
	step := oct.Geometry.Step
	sigmaLocal := kp.Sigma / step
	xLocal := kp.X / step
	yLocal := kp.Y / step

	mag, ang := cache.at(kp.S)

	windowSize := cfg.WindowSize
	if windowSize <= 0 {
		windowSize = float64(NBinsX) / 2
	}
	gaussianStd := windowSize
	sideRadius := cfg.Magnif * sigmaLocal * (float64(NBinsX) + 1) / 2

	cosT, sinT := math.Cos(frame.Theta), math.Sin(frame.Theta)

	var hist [NBinsX][NBinsY][NBinsTheta]float64

	radius := int(math.Round(sideRadius * math.Sqrt2))
	if radius < 1 {
		radius = 1
	}
	cx, cy := int(math.Round(xLocal)), int(math.Round(yLocal))

	binSize := cfg.Magnif * sigmaLocal

	for dy := -radius; dy <= radius; dy++ {
		y := cy + dy
		if y < 1 || y >= mag.Height-1 {
			continue
		}
		for dx := -radius; dx <= radius; dx++ {
			x := cx + dx
			if x < 1 || x >= mag.Width-1 {
				continue
			}

			// Offset relative to the keypoint, rotated into the descriptor
			// frame (theta-aligned x', y' measured in bin units).
			ox := float64(x) - xLocal
			oy := float64(y) - yLocal
			rx := (cosT*ox + sinT*oy) / binSize
			ry := (-sinT*ox + cosT*oy) / binSize

			if math.Abs(rx) >= float64(NBinsX)/2+1 || math.Abs(ry) >= float64(NBinsY)/2+1 {
				continue
			}

			binX := rx + float64(NBinsX)/2 - 0.5
			binY := ry + float64(NBinsY)/2 - 0.5

			m := float64(mag.At(x, y))
			w := math.Exp(-(rx*rx + ry*ry) / (2 * gaussianStd * gaussianStd))
			weighted := m * w

			theta := float64(ang.At(x, y)) - frame.Theta
			theta = math.Mod(theta, 2*math.Pi)
			if theta < 0 {
				theta += 2 * math.Pi
			}
			binT := theta / (2 * math.Pi) * NBinsTheta

			trilinearAccumulate(&hist, binX, binY, binT, weighted)
		}
	}

	var desc Descriptor
	desc.Frame = frame
	idx := 0
	for ix := 0; ix < NBinsX; ix++ {
		for iy := 0; iy < NBinsY; iy++ {
			for it := 0; it < NBinsTheta; it++ {
				desc.Values[idx] = hist[ix][iy][it]
				idx++
			}
		}
	}

	normalizeClipRenormalize(&desc.Values, cfg.NormThresh)
	return desc
}

// trilinearAccumulate distributes weight into the 8 histogram cells
// surrounding the fractional coordinate (binX, binY, binT).
func trilinearAccumulate(hist *[NBinsX][NBinsY][NBinsTheta]float64, binX, binY, binT, weight float64) {
	x0 := int(math.Floor(binX))
	y0 := int(math.Floor(binY))
	t0 := int(math.Floor(binT))

	fx := binX - float64(x0)
	fy := binY - float64(y0)
	ft := binT - float64(t0)

	for _, ix := range [2]int{x0, x0 + 1} {
		if ix < 0 || ix >= NBinsX {
			continue
		}
		wx := 1 - fx
		if ix != x0 {
			wx = fx
		}
		for _, iy := range [2]int{y0, y0 + 1} {
			if iy < 0 || iy >= NBinsY {
				continue
			}
			wy := 1 - fy
			if iy != y0 {
				wy = fy
			}
			for _, itRaw := range [2]int{t0, t0 + 1} {
				it := ((itRaw % NBinsTheta) + NBinsTheta) % NBinsTheta
				wt := 1 - ft
				if itRaw != t0 {
					wt = ft
				}
				hist[ix][iy][it] += weight * wx * wy * wt
			}
		}
	}
}

// normalizeClipRenormalize applies the descriptor's unit-L2 normalisation,
// per-entry 0.2 clip, and final unit-L2 renormalisation (§4.4). Below
// normThresh the vector is left at its raw (pre-normalisation) values, as
// for the original a near-zero-gradient window carries no usable direction.
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
