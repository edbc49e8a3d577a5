package imageops

import (
	"math"
	"testing"
)

// TestConvolve2D_DeltaKernelIsIdentity checks property (5): a delta filter
// (single non-zero tap at the origin) leaves interior pixels unchanged under
// both padding modes.
func TestConvolve2D_DeltaKernelIsIdentity(t *testing.T) {
	sizes := []struct{ w, h int }{{5, 5}, {8, 3}, {16, 16}}
	for _, sz := range sizes {
		for _, padding := range []Padding{PadZero, PadContinuity} {
			src := NewGrid[float64](sz.w, sz.h)
			for i := range src.Data {
				src.Data[i] = float64(i%17) - 3.5
			}

			delta := []float64{1}
			got := Convolve2D(src, delta, 0, 0, padding)

			if got.Width != sz.w || got.Height != sz.h {
				t.Fatalf("delta convolution changed dimensions: got %dx%d want %dx%d", got.Width, got.Height, sz.w, sz.h)
			}
			for y := 0; y < sz.h; y++ {
				for x := 0; x < sz.w; x++ {
					want := src.At(x, y)
					if got.At(x, y) != want {
						t.Fatalf("padding=%v (%d,%d): got %v want %v", padding, x, y, got.At(x, y), want)
					}
				}
			}
		}
	}
}

func TestTriangularKernel_IsAreaNormalised(t *testing.T) {
	for _, w := range []int{1, 2, 5, 8} {
		filter, begin, end := TriangularKernel[float64](w)
		if end-begin+1 != len(filter) {
			t.Fatalf("w=%d: tap count mismatch", w)
		}
		var sum float64
		for _, v := range filter {
			sum += v
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Fatalf("w=%d: kernel not area-normalised, sum=%v", w, sum)
		}
	}
}

func TestBilinear_ExactAtGridPoints(t *testing.T) {
	src := NewGrid[float32](4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, float32(x+y*10))
		}
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			got := Bilinear(src, float64(x), float64(y))
			want := float64(src.At(x, y))
			if math.Abs(got-want) > 1e-9 {
				t.Fatalf("(%d,%d): got %v want %v", x, y, got, want)
			}
		}
	}
}

func TestBilinear_Midpoint(t *testing.T) {
	src := NewGrid[float32](2, 2)
	src.Set(0, 0, 0)
	src.Set(1, 0, 10)
	src.Set(0, 1, 0)
	src.Set(1, 1, 10)

	got := Bilinear(src, 0.5, 0.5)
	if math.Abs(got-5) > 1e-9 {
		t.Fatalf("got %v want 5", got)
	}
}
