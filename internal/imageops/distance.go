package imageops

import "math"

// distanceTransform1D computes, for n samples f and per-axis coefficients
// (a, b), D(u) = min_v f(v) + a*(u - v - b)^2 using the lower-envelope-of-
// parabolas algorithm (Felzenszwalb & Huttenlocher), linear time in n.
// argmin, if non-nil, receives the index v achieving the minimum at each u.
func distanceTransform1D(f []float64, a, b float64, argmin []int) []float64 {
	n := len(f)
	d := make([]float64, n)
	if n == 0 {
		return d
	}

	// v[k]: index of the k-th parabola in the lower envelope.
	// z[k]: left boundary (in u) at which parabola k begins to be the lower envelope.
	v := make([]int, n)
	z := make([]float64, n+1)

	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)

	for q := 1; q < n; q++ {
		for {
			s := parabolaIntersection(f, v[k], q, a, b)
			if s <= z[k] && k > 0 {
				k--
				continue
			}
			z[k+1] = s
			break
		}
		k++
		v[k] = q
		z[k+1] = math.Inf(1)
	}

	k = 0
	for u := 0; u < n; u++ {
		for z[k+1] < float64(u) {
			k++
		}
		dv := float64(u) - float64(v[k]) - b
		d[u] = a*dv*dv + f[v[k]]
		if argmin != nil {
			argmin[u] = v[k]
		}
	}
	return d
}

// parabolaIntersection returns the u coordinate where the parabolas rooted
// at p and q (both a*(u-root-b)^2 + f[root]) intersect.
func parabolaIntersection(f []float64, p, q int, a, b float64) float64 {
	fp := f[p] + a*(float64(p)+b)*(float64(p)+b)
	fq := f[q] + a*(float64(q)+b)*(float64(q)+b)
	num := fq - fp
	den := 2 * a * (float64(q) - float64(p))
	if den == 0 {
		return math.Inf(1)
	}
	return num / den
}

// DistanceTransform computes D(x,y) = min_{u,v} f(u,v) + ax*(x-u-bx)^2 +
// ay*(y-v-by)^2 over a 2-D real field using two 1-D passes (rows, then
// columns), each in linear time. If argminOut is non-nil it is filled with
// the flattened (u,v) index achieving the minimum at each output pixel.
func DistanceTransform(f *Grid[float64], ax, bx, ay, by float64) (d *Grid[float64], argminOut []int) {
	w, h := f.Width, f.Height
	rowPass := NewGrid[float64](w, h)
	rowArgU := make([]int, w*h)

	for y := 0; y < h; y++ {
		src := f.Row(y)
		argmin := make([]int, w)
		out := distanceTransform1D(src, ax, bx, argmin)
		copy(rowPass.Row(y), out)
		for x := 0; x < w; x++ {
			rowArgU[y*w+x] = argmin[x]
		}
	}

	d = NewGrid[float64](w, h)
	finalArg := make([]int, w*h)
	col := make([]float64, h)
	argCol := make([]int, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = rowPass.At(x, y)
		}
		out := distanceTransform1D(col, ay, by, argCol)
		for y := 0; y < h; y++ {
			d.Set(x, y, out[y])
			v := argCol[y] // row index selected along y axis
			u := rowArgU[v*w+x]
			finalArg[y*w+x] = v*w + u
		}
	}
	return d, finalArg
}
