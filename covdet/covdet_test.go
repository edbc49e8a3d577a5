package covdet

import (
	"math"
	"testing"

	"vlfeat-go/internal/imageops"
)

func blobImage(size int, cx, cy, sigma float64) *imageops.Grid[float32] {
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

func TestNewPoint_IdentityShape(t *testing.T) {
	f := NewPoint(3, 4)
	if f.A != identity2() {
		t.Fatalf("point frame A = %v, want identity", f.A)
	}
}

func TestNewAffine_RejectsNonPositiveDet(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-positive determinant")
		}
	}()
	NewAffine(0, 0, [2][2]float64{{1, 0}, {0, -1}})
}

func TestExtractPatch_ConstantImageIsConstant(t *testing.T) {
	img := imageops.NewGrid[float32](32, 32)
	for i := range img.Data {
		img.Data[i] = 5
	}
	frame := NewDisc(16, 16, 3)
	patch, err := ExtractPatch(img, frame, DefaultPatchConfig())
	if err != nil {
		t.Fatalf("ExtractPatch: %v", err)
	}
	for _, v := range patch.Data {
		if v != 5 {
			t.Fatalf("patch value = %v, want 5", v)
		}
	}
}

func TestExtractPatch_CentrePixelMatchesFrameCentre(t *testing.T) {
	img := imageops.NewGrid[float32](32, 32)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, float32(x+y))
		}
	}
	frame := NewDisc(16, 16, 1)
	cfg := DefaultPatchConfig()
	patch, err := ExtractPatch(img, frame, cfg)
	if err != nil {
		t.Fatalf("ExtractPatch: %v", err)
	}
	centre := patch.At(cfg.Resolution, cfg.Resolution)
	want := float32(imageops.Bilinear(img, 16, 16))
	if math.Abs(float64(centre-want)) > 1e-5 {
		t.Fatalf("centre = %v, want %v", centre, want)
	}
}

func TestDetector_DoG_FindsBlob(t *testing.T) {
	const size = 64
	img := blobImage(size, 32, 32, 3)

	cfg := DefaultConfig()
	cfg.PeakThresh = 0.0005
	det, err := NewDetector(cfg)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if err := det.Process(img); err != nil {
		t.Fatalf("Process: %v", err)
	}
	frames, err := det.Frames()
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}
	if len(frames) == 0 {
		t.Fatal("expected at least one frame for the blob")
	}
	for _, f := range frames {
		if f.Sigma <= 0 {
			t.Fatalf("frame has non-positive sigma: %+v", f)
		}
	}
}

func TestDetector_HarrisLaplace_Runs(t *testing.T) {
	const size = 48
	img := blobImage(size, 24, 24, 2)

	cfg := DefaultConfig()
	cfg.Method = MethodHarrisLaplace
	cfg.PeakThresh = 1e-6
	det, err := NewDetector(cfg)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if err := det.Process(img); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, err := det.Frames(); err != nil {
		t.Fatalf("Frames: %v", err)
	}
}

func TestDetector_PatchExtractionPopulatesOnePerFrame(t *testing.T) {
	const size = 48
	img := blobImage(size, 24, 24, 3)

	cfg := DefaultConfig()
	cfg.PeakThresh = 0.0005
	cfg.ExtractPatches = true
	cfg.PatchConfig = DefaultPatchConfig()
	det, err := NewDetector(cfg)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if err := det.Process(img); err != nil {
		t.Fatalf("Process: %v", err)
	}
	frames, _ := det.Frames()
	patches, err := det.Patches()
	if err != nil {
		t.Fatalf("Patches: %v", err)
	}
	if len(patches) != len(frames) {
		t.Fatalf("got %d patches, want %d (one per frame)", len(patches), len(frames))
	}
}

func TestDetector_FramesBeforeProcess(t *testing.T) {
	det, err := NewDetector(DefaultConfig())
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if _, err := det.Frames(); err == nil {
		t.Fatal("expected error calling Frames before Process")
	}
}
