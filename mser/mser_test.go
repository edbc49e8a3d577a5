package mser

import (
	"math"
	"testing"
)

func discImage(size, cx, cy, radius int, inside, outside uint8) []uint8 {
	img := make([]uint8, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= radius*radius {
				img[y*size+x] = inside
			} else {
				img[y*size+x] = outside
			}
		}
	}
	return img
}

// TestMSER_WhiteDisc exercises scenario E: a single bright disc on a dark
// background should yield exactly one selected region whose area and
// ellipse match the disc's geometry.
func TestMSER_WhiteDisc(t *testing.T) {
	const size, cx, cy, radius = 100, 50, 50, 30
	img := discImage(size, cx, cy, radius, 255, 0)

	cfg := DefaultConfig()
	cfg.Bright = true
	det, err := NewDetector(cfg)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if err := det.Process(img, size, size); err != nil {
		t.Fatalf("Process: %v", err)
	}
	regions, err := det.Regions()
	if err != nil {
		t.Fatalf("Regions: %v", err)
	}
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want exactly one", len(regions))
	}

	// Pick the region whose area is closest to the disc's true area; it must
	// closely track the disc geometry.
	wantArea := math.Pi * float64(radius*radius)
	best := regions[0]
	bestDiff := math.Abs(float64(best.Area) - wantArea)
	for _, r := range regions[1:] {
		diff := math.Abs(float64(r.Area) - wantArea)
		if diff < bestDiff {
			best, bestDiff = r, diff
		}
	}

	if math.Abs(float64(best.Area)-wantArea) > wantArea*0.1 {
		t.Fatalf("best region area = %d, want close to %v", best.Area, wantArea)
	}
	if math.Abs(best.Mean[0]-float64(cx)) > 1 || math.Abs(best.Mean[1]-float64(cy)) > 1 {
		t.Fatalf("region centre = %v, want near (%d,%d)", best.Mean, cx, cy)
	}

	ell := best.Ellipse()
	// A uniform disc of radius R has std R/2 along each axis; the semi-axes
	// are 2 std devs, i.e. R.
	wantSemi := float64(radius)
	if math.Abs(ell.SemiAxisA-wantSemi) > wantSemi*0.15 || math.Abs(ell.SemiAxisB-wantSemi) > wantSemi*0.15 {
		t.Fatalf("semi-axes = (%v,%v), want near %v", ell.SemiAxisA, ell.SemiAxisB, wantSemi)
	}
}

// TestMSER_RegionsSatisfyAreaAndVariationBounds exercises property (4).
func TestMSER_RegionsSatisfyAreaAndVariationBounds(t *testing.T) {
	const size = 64
	img := discImage(size, 32, 32, 20, 220, 20)

	cfg := DefaultConfig()
	det, err := NewDetector(cfg)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if err := det.Process(img, size, size); err != nil {
		t.Fatalf("Process: %v", err)
	}
	regions, err := det.Regions()
	if err != nil {
		t.Fatalf("Regions: %v", err)
	}

	total := float64(size * size)
	for _, r := range regions {
		frac := float64(r.Area) / total
		if frac < cfg.MinArea || frac > cfg.MaxArea {
			t.Fatalf("region area fraction %v out of bounds [%v, %v]", frac, cfg.MinArea, cfg.MaxArea)
		}
		if r.Variation > cfg.MaxVariation {
			t.Fatalf("region variation %v exceeds max %v", r.Variation, cfg.MaxVariation)
		}
	}
}

func TestMSER_RegionsBeforeProcess(t *testing.T) {
	det, err := NewDetector(DefaultConfig())
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if _, err := det.Regions(); err == nil {
		t.Fatal("expected error calling Regions before Process")
	}
}

func TestNewDetector_InvalidConfig(t *testing.T) {
	if _, err := NewDetector(Config{Delta: -1}); err == nil {
		t.Fatal("expected error for negative delta")
	}
	if _, err := NewDetector(Config{MinArea: 0.5, MaxArea: 0.1}); err == nil {
		t.Fatal("expected error for inverted area bounds")
	}
}

func TestDetector_Process_RejectsSizeMismatch(t *testing.T) {
	det, _ := NewDetector(DefaultConfig())
	if err := det.Process(make([]uint8, 10), 4, 4); err == nil {
		t.Fatal("expected error for mismatched image size")
	}
}
