package sift

import (
	"math"
	"testing"

	"vlfeat-go/internal/imageops"
)

func gaussianBlobImage(size int, cx, cy, sigma float64) *imageops.Grid[float32] {
	img := imageops.NewGrid[float32](size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			v := math.Exp(-(dx*dx + dy*dy) / (2 * sigma * sigma))
			img.Set(x, y, float32(v))
		}
	}
	return img
}

// TestNormalizeClipRenormalize checks the unit-L2-norm half of property (3):
// the vector has unit norm after the clip-and-renormalise step. The 0.2
// per-entry bound before renormalisation is not checked here.
func TestNormalizeClipRenormalize(t *testing.T) {
	var v [DescriptorLength]float64
	for i := range v {
		v[i] = float64(i%13) + 1
	}
	normalizeClipRenormalize(&v, 0)

	norm := l2Norm(v[:])
	if math.Abs(norm-1) > 1e-6 {
		t.Fatalf("norm = %v, want ~1", norm)
	}
}

func TestDescriptor_Uint8QuantisationBounded(t *testing.T) {
	var d Descriptor
	for i := range d.Values {
		d.Values[i] = 1.0 // well above the clip ceiling before quantisation
	}
	q := d.Uint8()
	for i, b := range q {
		if b > 255 {
			t.Fatalf("index %d: got %d, want <= 255", i, b)
		}
	}
}

// TestDetector_SinglePeak exercises the full pipeline on a single Gaussian
// blob (§8 scenario B, relaxed tolerances since this is a from-scratch
// reimplementation rather than the reference binary): detection must find at
// least one keypoint within 1 pixel of the blob centre, every keypoint must
// have positive sigma, and every descriptor must be unit-norm (or zero). The
// post-refinement contrast floor is enforced in refine and not checked here.
func TestDetector_SinglePeak(t *testing.T) {
	const size = 64
	img := gaussianBlobImage(size, 32, 32, 2)

	cfg := DefaultConfig()
	cfg.FirstOctave = 0
	cfg.PeakThresh = 0.001
	cfg.EdgeThresh = 10

	det, err := NewDetector(cfg)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if err := det.Process(img); err != nil {
		t.Fatalf("Process: %v", err)
	}

	kps, err := det.Keypoints()
	if err != nil {
		t.Fatalf("Keypoints: %v", err)
	}

	nearCentre := false
	for _, kp := range kps {
		if kp.Sigma <= 0 {
			t.Fatalf("keypoint has non-positive sigma: %+v", kp)
		}
		if math.Hypot(kp.X-32, kp.Y-32) <= 1 {
			nearCentre = true
		}
	}
	if !nearCentre {
		t.Fatalf("no keypoint within 1 pixel of the blob centre: %+v", kps)
	}

	descs, err := det.Descriptors()
	if err != nil {
		t.Fatalf("Descriptors: %v", err)
	}
	for i, d := range descs {
		norm := l2Norm(d.Values[:])
		if norm > 1e-9 && math.Abs(norm-1) > 1e-6 {
			t.Fatalf("descriptor %d: norm = %v, want ~1 or 0", i, norm)
		}
	}
}

func TestNewDetector_InvalidConfig(t *testing.T) {
	if _, err := NewDetector(Config{LevelsPerOctave: 0, EdgeThresh: 10}); err == nil {
		t.Fatal("expected error for levelsPerOctave=0")
	}
	if _, err := NewDetector(Config{LevelsPerOctave: 3, EdgeThresh: 0}); err == nil {
		t.Fatal("expected error for edgeThresh=0")
	}
}
