package imageops

import (
	"math"
	"testing"
)

func TestGradientPolar_ConstantImageIsZero(t *testing.T) {
	src := NewGrid[float32](6, 6)
	for i := range src.Data {
		src.Data[i] = 42
	}
	r, theta := GradientPolar(src)
	for i := range r.Data {
		if r.Data[i] != 0 {
			t.Fatalf("magnitude at %d: got %v want 0", i, r.Data[i])
		}
		_ = theta
	}
}

func TestGradientPolar_HorizontalRamp(t *testing.T) {
	const w, h = 8, 4
	src := NewGrid[float32](w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src.Set(x, y, float32(x))
		}
	}
	r, theta := GradientPolar(src)
	for y := 0; y < h; y++ {
		for x := 1; x < w-1; x++ {
			if math.Abs(float64(r.At(x, y))-1) > 1e-5 {
				t.Fatalf("(%d,%d): magnitude got %v want 1", x, y, r.At(x, y))
			}
			if math.Abs(float64(theta.At(x, y))) > 1e-5 {
				t.Fatalf("(%d,%d): angle got %v want 0", x, y, theta.At(x, y))
			}
		}
	}
}

func TestNativeBackend_ToggleIsAdvisoryOnly(t *testing.T) {
	defer EnableSIMD()

	src := NewGrid[float64](9, 9)
	for i := range src.Data {
		src.Data[i] = float64(i)
	}
	filter := []float64{0.25, 0.5, 0.25}

	EnableSIMD()
	withSIMD := Convolve2D(src, filter, -1, 1, PadContinuity)

	DisableSIMD()
	withoutSIMD := Convolve2D(src, filter, -1, 1, PadContinuity)

	for i := range withSIMD.Data {
		if withSIMD.Data[i] != withoutSIMD.Data[i] {
			t.Fatalf("index %d: SIMD toggle changed output: %v vs %v", i, withSIMD.Data[i], withoutSIMD.Data[i])
		}
	}
}
