package imageops

import "testing"

// TestIntegralImage_RectSum checks property (6): the four-corner subtraction
// over an integral image reproduces the sum of the source rectangle.
func TestIntegralImage_RectSum(t *testing.T) {
	src := NewGrid[int32](10, 8)
	v := int32(1)
	for i := range src.Data {
		src.Data[i] = v
		v = (v*1103515245 + 12345) % 97
	}

	integral := IntegralImage(src)

	rects := []struct{ x1, y1, x2, y2 int }{
		{0, 0, 0, 0},
		{0, 0, 9, 7},
		{2, 1, 5, 4},
		{3, 3, 3, 3},
		{0, 3, 9, 3},
	}

	for _, r := range rects {
		var want int32
		for y := r.y1; y <= r.y2; y++ {
			for x := r.x1; x <= r.x2; x++ {
				want += src.At(x, y)
			}
		}
		got := RectSum(integral, r.x1, r.y1, r.x2, r.y2)
		if got != want {
			t.Fatalf("rect %+v: got %d want %d", r, got, want)
		}
	}
}

func TestIntegralImage_Float64(t *testing.T) {
	src := NewGrid[float64](4, 4)
	for i := range src.Data {
		src.Data[i] = 1.0
	}
	integral := IntegralImage(src)
	if got := RectSum(integral, 0, 0, 3, 3); got != 16 {
		t.Fatalf("got %v want 16", got)
	}
}
