package imageops

import "math"

// GradientPolar computes, for a scalar image, magnitude r = sqrt(gx^2+gy^2)
// and angle theta = atan2(gy, gx) in [0, 2*pi), using centred differences in
// the interior and one-sided differences at the border.
func GradientPolar[T Numeric](src *Grid[T]) (r, theta *Grid[T]) {
	w, h := src.Width, src.Height
	r = NewGrid[T](w, h)
	theta = NewGrid[T](w, h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var gx, gy float64
			switch {
			case x == 0:
				gx = float64(src.At(1, y)) - float64(src.At(0, y))
			case x == w-1:
				gx = float64(src.At(w-1, y)) - float64(src.At(w-2, y))
			default:
				gx = (float64(src.At(x+1, y)) - float64(src.At(x-1, y))) / 2
			}
			switch {
			case y == 0:
				gy = float64(src.At(x, 1)) - float64(src.At(x, 0))
			case y == h-1:
				gy = float64(src.At(x, h-1)) - float64(src.At(x, h-2))
			default:
				gy = (float64(src.At(x, y+1)) - float64(src.At(x, y-1))) / 2
			}

			mag := math.Hypot(gx, gy)
			ang := math.Atan2(gy, gx)
			if ang < 0 {
				ang += 2 * math.Pi
			}
			r.Set(x, y, T(mag))
			theta.Set(x, y, T(ang))
		}
	}
	return r, theta
}
