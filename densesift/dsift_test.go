package densesift

import (
	"math"
	"testing"

	"vlfeat-go/internal/imageops"
)

func rampImage(size int) *imageops.Grid[float32] {
	img := imageops.NewGrid[float32](size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, float32(x+y))
		}
	}
	return img
}

func TestExtractor_ProducesUnitNormDescriptors(t *testing.T) {
	img := rampImage(40)
	cfg := DefaultConfig()
	cfg.Step = 4

	ex, err := NewExtractor(cfg)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	if err := ex.Process(img); err != nil {
		t.Fatalf("Process: %v", err)
	}
	descs, err := ex.Descriptors()
	if err != nil {
		t.Fatalf("Descriptors: %v", err)
	}
	if len(descs) == 0 {
		t.Fatal("expected at least one descriptor")
	}
	for _, d := range descs {
		norm := l2Norm(d.Values[:])
		if norm > 1e-9 && math.Abs(norm-1) > 1e-6 {
			t.Fatalf("descriptor at (%d,%d): norm = %v, want ~1 or 0", d.X, d.Y, norm)
		}
	}
}

// TestDenseSIFT_DescriptorAtGridPointIsNormalised samples a single dense
// descriptor at grid point (20,20) of a 40x40 Gaussian-blob image (binSize 4,
// step 1, Gaussian window) and checks that it is unit-norm (or zero). It does
// not compare the descriptor against a sparse SIFT descriptor.
func TestDenseSIFT_DescriptorAtGridPointIsNormalised(t *testing.T) {
	const size = 40
	img := imageops.NewGrid[float32](size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x-20), float64(y-20)
			img.Set(x, y, float32(math.Exp(-(dx*dx+dy*dy)/(2*8*8))))
		}
	}

	cfg := Config{BinSize: 4, Step: 1, FlatWindow: false}
	ex, err := NewExtractor(cfg)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	if err := ex.Process(img); err != nil {
		t.Fatalf("Process: %v", err)
	}
	d, err := ex.DescriptorAt(20, 20)
	if err != nil {
		t.Fatalf("DescriptorAt: %v", err)
	}
	norm := l2Norm(d.Values[:])
	if norm > 1e-9 && math.Abs(norm-1) > 1e-6 {
		t.Fatalf("norm = %v, want ~1 or 0", norm)
	}
}

func TestNewExtractor_InvalidConfig(t *testing.T) {
	if _, err := NewExtractor(Config{BinSize: 0, Step: 1}); err == nil {
		t.Fatal("expected error for binSize=0")
	}
	if _, err := NewExtractor(Config{BinSize: 4, Step: 0}); err == nil {
		t.Fatal("expected error for step=0")
	}
}

func TestHOG_UOCTTIDimensions(t *testing.T) {
	img := rampImage(32)
	cfg := DefaultHOGConfig()
	h, err := NewHOG(cfg)
	if err != nil {
		t.Fatalf("NewHOG: %v", err)
	}
	if err := h.Process(img); err != nil {
		t.Fatalf("Process: %v", err)
	}
	cell, err := h.Cell(1, 1)
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	if len(cell) != uocttiDims {
		t.Fatalf("got %d dims, want %d", len(cell), uocttiDims)
	}
}

func TestHOG_DalalTriggsDimensions(t *testing.T) {
	img := rampImage(32)
	cfg := HOGConfig{Variant: VariantDalalTriggs, CellSize: 8}
	h, err := NewHOG(cfg)
	if err != nil {
		t.Fatalf("NewHOG: %v", err)
	}
	if err := h.Process(img); err != nil {
		t.Fatalf("Process: %v", err)
	}
	cell, err := h.Cell(1, 1)
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	if len(cell) != dalalTriggsDims {
		t.Fatalf("got %d dims, want %d", len(cell), dalalTriggsDims)
	}
}

func TestHOG_CellOutOfRange(t *testing.T) {
	img := rampImage(32)
	h, _ := NewHOG(DefaultHOGConfig())
	if err := h.Process(img); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, err := h.Cell(-1, 0); err == nil {
		t.Fatal("expected error for out-of-range cell")
	}
}

func TestRenderGlyph_ProducesNonEmptyGrid(t *testing.T) {
	img := rampImage(32)
	cfg := DefaultHOGConfig()
	h, _ := NewHOG(cfg)
	if err := h.Process(img); err != nil {
		t.Fatalf("Process: %v", err)
	}
	cell, err := h.Cell(1, 1)
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	glyph := RenderGlyph(cell, cfg, 21)
	if glyph.Width != 21 || glyph.Height != 21 {
		t.Fatalf("glyph size = %dx%d, want 21x21", glyph.Width, glyph.Height)
	}
}
