// Package imageops implements the scalar/SIMD core math on dense 2-D float
// grids that every other package in the module builds on: separable
// convolution, triangular pooling, integral images, the linear-time distance
// transform, and polar gradients (C1 of the core).
//
// Grids are column-major-addressed by (x, y) with an explicit stride, as
// described by the pixel-grid data model: a grid owns its backing slice and
// is read-only to everything downstream of its producer.
package imageops

// Numeric is the element-type capability set for convolution and gradient
// kernels. The original C core monomorphises these via the preprocessor over
// float/double; here a type parameter plays the same role.
type Numeric interface {
	~float32 | ~float64
}

// Integral additionally admits the integer element types used by the
// integral-image instantiations (vl_int32, vl_uint32 in the original).
type Integral interface {
	Numeric | ~int32 | ~uint32
}

// Grid is a dense 2-D array of T in column-major order with an explicit
// stride. Stride must be >= Width; rows beyond Width up to Stride are unused
// padding reserved by the producer, never read by consumers.
type Grid[T Integral] struct {
	Data   []T
	Width  int
	Height int
	Stride int
}

// NewGrid allocates a grid of the given dimensions with Stride == Width.
func NewGrid[T Integral](width, height int) *Grid[T] {
	return &Grid[T]{
		Data:   make([]T, height*width),
		Width:  width,
		Height: height,
		Stride: width,
	}
}

// NewGridStride allocates a grid with an explicit stride >= width.
func NewGridStride[T Integral](width, height, stride int) *Grid[T] {
	if stride < width {
		stride = width
	}
	return &Grid[T]{
		Data:   make([]T, height*stride),
		Width:  width,
		Height: height,
		Stride: stride,
	}
}

// At returns the value at (x, y). No bounds checking: callers operate in the
// interior by construction or accept a panic on misuse, matching the
// original's raw-pointer-indexing style.
func (g *Grid[T]) At(x, y int) T {
	return g.Data[y*g.Stride+x]
}

// Set stores the value at (x, y).
func (g *Grid[T]) Set(x, y int, v T) {
	g.Data[y*g.Stride+x] = v
}

// Row returns the backing slice for row y, Width elements wide (ignoring any
// stride padding).
func (g *Grid[T]) Row(y int) []T {
	off := y * g.Stride
	return g.Data[off : off+g.Width]
}

// Bilinear samples the grid at a continuous (x, y) coordinate, clamping to
// the grid border for out-of-range queries.
func Bilinear[T Numeric](g *Grid[T], x, y float64) float64 {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	maxX := float64(g.Width - 1)
	maxY := float64(g.Height - 1)
	if x > maxX {
		x = maxX
	}
	if y > maxY {
		y = maxY
	}

	x0 := int(x)
	y0 := int(y)
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 > g.Width-1 {
		x1 = g.Width - 1
	}
	if y1 > g.Height-1 {
		y1 = g.Height - 1
	}

	fx := x - float64(x0)
	fy := y - float64(y0)

	v00 := float64(g.At(x0, y0))
	v10 := float64(g.At(x1, y0))
	v01 := float64(g.At(x0, y1))
	v11 := float64(g.At(x1, y1))

	top := v00 + fx*(v10-v00)
	bot := v01 + fx*(v11-v01)
	return top + fy*(bot-top)
}
