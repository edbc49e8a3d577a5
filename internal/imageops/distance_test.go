package imageops

import (
	"math"
	"testing"
)

// TestDistanceTransform_ZeroField checks property (7): f === 0 transforms to
// D === 0 everywhere.
func TestDistanceTransform_ZeroField(t *testing.T) {
	f := NewGrid[float64](5, 5)
	d, _ := DistanceTransform(f, 1, 0, 1, 0)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			if d.At(x, y) != 0 {
				t.Fatalf("(%d,%d): got %v want 0", x, y, d.At(x, y))
			}
		}
	}
}

// TestDistanceTransform_SingleSource checks property (7): a single zero at
// the origin with unit coefficients reproduces squared Euclidean distance.
func TestDistanceTransform_SingleSource(t *testing.T) {
	const n = 7
	f := NewGrid[float64](n, n)
	const big = 1e9
	for i := range f.Data {
		f.Data[i] = big
	}
	f.Set(3, 3, 0)

	d, _ := DistanceTransform(f, 1, 0, 1, 0)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			want := float64((x-3)*(x-3) + (y-3)*(y-3))
			if math.Abs(d.At(x, y)-want) > 1e-6 {
				t.Fatalf("(%d,%d): got %v want %v", x, y, d.At(x, y), want)
			}
		}
	}
}
