package covdet

import "vlfeat-go/internal/imageops"

// harrisResponse computes the Harris–Laplace corner measure
// det(M) - k*trace(M)^2 over level's structure tensor, smoothed by a
// triangular window of half-width int(3*windowStd)+1.
func harrisResponse(level *imageops.Grid[float32], windowStd float64, k float64) *imageops.Grid[float32] {
	w, h := level.Width, level.Height
	ix := imageops.NewGrid[float32](w, h)
	iy := imageops.NewGrid[float32](w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			xm, xp := clampI(x-1, w), clampI(x+1, w)
			ym, yp := clampI(y-1, h), clampI(y+1, h)
			ix.Set(x, y, (level.At(xp, y)-level.At(xm, y))/2)
			iy.Set(x, y, (level.At(x, yp)-level.At(x, ym))/2)
		}
	}

	ixx := imageops.NewGrid[float32](w, h)
	iyy := imageops.NewGrid[float32](w, h)
	ixy := imageops.NewGrid[float32](w, h)
	for i := range ixx.Data {
		gx, gy := ix.Data[i], iy.Data[i]
		ixx.Data[i] = gx * gx
		iyy.Data[i] = gy * gy
		ixy.Data[i] = gx * gy
	}

	halfWidth := int(windowStd*3) + 1
	ixx = imageops.ConvolveTriangular(ixx, halfWidth, imageops.PadContinuity)
	iyy = imageops.ConvolveTriangular(iyy, halfWidth, imageops.PadContinuity)
	ixy = imageops.ConvolveTriangular(ixy, halfWidth, imageops.PadContinuity)

	out := imageops.NewGrid[float32](w, h)
	for i := range out.Data {
		sxx, syy, sxy := float64(ixx.Data[i]), float64(iyy.Data[i]), float64(ixy.Data[i])
		det := sxx*syy - sxy*sxy
		trace := sxx + syy
		out.Data[i] = float32(det - k*trace*trace)
	}
	return out
}

// hessianResponse computes det(H) of level's Hessian matrix at every pixel,
// the Hessian–Laplace corner measure.
func hessianResponse(level *imageops.Grid[float32]) *imageops.Grid[float32] {
	w, h := level.Width, level.Height
	out := imageops.NewGrid[float32](w, h)
	for y := 0; y < h; y++ {
		ym, yp := clampI(y-1, h), clampI(y+1, h)
		for x := 0; x < w; x++ {
			xm, xp := clampI(x-1, w), clampI(x+1, w)
			v := level.At(x, y)
			dxx := level.At(xp, y) - 2*v + level.At(xm, y)
			dyy := level.At(x, yp) - 2*v + level.At(x, ym)
			dxy := (level.At(xp, yp) - level.At(xp, ym) - level.At(xm, yp) + level.At(xm, ym)) / 4
			out.Set(x, y, dxx*dyy-dxy*dxy)
		}
	}
	return out
}

func clampI(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v >= limit {
		return limit - 1
	}
	return v
}
