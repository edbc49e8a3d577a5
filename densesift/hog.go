package densesift

import (
	"math"

	"vlfeat-go/internal/imageops"
	"vlfeat-go/vlerr"
)

// HOGVariant selects the cell-to-feature mapping (§4.6).
type HOGVariant int

const (
	VariantUOCTTI HOGVariant = iota
	VariantDalalTriggs
)

const (
	hogOrientations  = 9  // undirected orientation bins per cell
	uocttiDims       = 31
	dalalTriggsDims  = 36
	hogTruncateValue = 0.2
)

// HOGConfig controls HOG extraction.
type HOGConfig struct {
	Variant  HOGVariant
	CellSize int
}

// DefaultHOGConfig mirrors vl_hog's UOCTTI defaults.
func DefaultHOGConfig() HOGConfig {
	return HOGConfig{Variant: VariantUOCTTI, CellSize: 8}
}

// Dims returns the per-cell feature length for cfg.Variant.
func (cfg HOGConfig) Dims() int {
	if cfg.Variant == VariantDalalTriggs {
		return dalalTriggsDims
	}
	return uocttiDims
}

// HOG holds the cell-level orientation energy grid and derived per-cell
// feature maps for one image.
type HOG struct {
	cfg      HOGConfig
	cellsX   int
	cellsY   int
	energy   []float64 // cellsX*cellsY*2*hogOrientations directed bins; undirected bins are folded from these on demand
}

// NewHOG validates cfg and returns an idle extractor.
func NewHOG(cfg HOGConfig) (*HOG, error) {
	if cfg.CellSize < 1 {
		return nil, vlerr.InvalidArgument("densesift: cellSize must be >= 1, got %d", cfg.CellSize)
	}
	return &HOG{cfg: cfg}, nil
}

// Process sums oriented gradient energy into non-overlapping cellSize x
// cellSize cells (§4.6 HOG step 1): each pixel contributes to both a
// 2*hogOrientations-bin directed histogram (sign-sensitive) and, by folding,
// an hogOrientations-bin undirected histogram, as the original HOG variants
// both need.
func (h *HOG) Process(img *imageops.Grid[float32]) error {
	mag, ang := imageops.GradientPolar(img)
	cs := h.cfg.CellSize
	h.cellsX = img.Width / cs
	h.cellsY = img.Height / cs
	if h.cellsX < 1 || h.cellsY < 1 {
		return vlerr.InvalidArgument("densesift: image too small for cellSize %d", cs)
	}

	const directedBins = 2 * hogOrientations
	h.energy = make([]float64, h.cellsX*h.cellsY*directedBins)

	for y := 0; y < h.cellsY*cs; y++ {
		cy := y / cs
		for x := 0; x < h.cellsX*cs; x++ {
			cx := x / cs
			m := float64(mag.At(x, y))
			theta := float64(ang.At(x, y))

			binF := theta / (2 * math.Pi) * directedBins
			b0 := int(math.Floor(binF))
			frac := binF - float64(b0)
			b0 = ((b0 % directedBins) + directedBins) % directedBins
			b1 := (b0 + 1) % directedBins

			base := (cy*h.cellsX + cx) * directedBins
			h.energy[base+b0] += m * (1 - frac)
			h.energy[base+b1] += m * frac
		}
	}
	return nil
}

// cellDirected returns the 2*hogOrientations directed-energy histogram for
// cell (cx, cy).
func (h *HOG) cellDirected(cx, cy int) []float64 {
	const directedBins = 2 * hogOrientations
	base := (cy*h.cellsX + cx) * directedBins
	return h.energy[base : base+directedBins]
}

// cellUndirected folds the directed histogram into hogOrientations bins.
func cellUndirected(directed []float64) [hogOrientations]float64 {
	var u [hogOrientations]float64
	for i, v := range directed {
		u[i%hogOrientations] += v
	}
	return u
}

// Cell returns the final per-cell feature vector at (cx, cy), per cfg.Variant
// (§4.6 HOG step 2): 4 overlapping 2x2-cell-block normalisations for
// Dalal-Triggs, energy-variance normalisation with 0.2 truncation for UOCTTI.
func (h *HOG) Cell(cx, cy int) ([]float64, error) {
	if h.energy == nil {
		return nil, vlerr.NotConfigured("densesift: Cell called before Process")
	}
	if cx < 0 || cx >= h.cellsX || cy < 0 || cy >= h.cellsY {
		return nil, vlerr.InvalidArgument("densesift: cell (%d,%d) out of range", cx, cy)
	}

	switch h.cfg.Variant {
	case VariantDalalTriggs:
		return h.dalalTriggsCell(cx, cy), nil
	default:
		return h.uocttiCell(cx, cy), nil
	}
}

// dalalTriggsCell concatenates this cell's undirected histogram normalised
// against each of its 4 neighbouring 2x2 blocks (36-d).
func (h *HOG) dalalTriggsCell(cx, cy int) []float64 {
	directed := h.cellDirected(cx, cy)
	out := make([]float64, 0, dalalTriggsDims)

	offsets := [4][2]int{{-1, -1}, {0, -1}, {-1, 0}, {0, 0}}
	var blockNorms [4]float64
	for i, off := range offsets {
		var sumSq float64
		for dy := 0; dy <= 1; dy++ {
			for dx := 0; dx <= 1; dx++ {
				ncx, ncy := cx+off[0]+dx, cy+off[1]+dy
				if ncx < 0 || ncx >= h.cellsX || ncy < 0 || ncy >= h.cellsY {
					continue
				}
				for _, v := range h.cellDirected(ncx, ncy) {
					sumSq += v * v
				}
			}
		}
		blockNorms[i] = math.Sqrt(sumSq + 1e-6)
	}

	// Dalal-Triggs packs the 9 undirected bins normalised against each of
	// the 4 neighbouring blocks (9*4 = 36-d total).
	undirected := cellUndirected(directed)
	for _, norm := range blockNorms {
		for _, v := range undirected {
			nv := v / norm
			if nv > hogTruncateValue {
				nv = hogTruncateValue
			}
			out = append(out, nv)
		}
	}
	return out
}

// uocttiCell computes the 31-d UOCTTI feature: 18 directed + 9 undirected
// orientation energies, each normalised by local energy variance across 4
// neighbouring blocks and truncated, plus 4 block-energy-gradient terms.
func (h *HOG) uocttiCell(cx, cy int) []float64 {
	directed := h.cellDirected(cx, cy)
	undirected := cellUndirected(directed)

	offsets := [4][2]int{{-1, -1}, {0, -1}, {-1, 0}, {0, 0}}
	var blockNorms [4]float64
	for i, off := range offsets {
		var sumSq float64
		for dy := 0; dy <= 1; dy++ {
			for dx := 0; dx <= 1; dx++ {
				ncx, ncy := cx+off[0]+dx, cy+off[1]+dy
				if ncx < 0 || ncx >= h.cellsX || ncy < 0 || ncy >= h.cellsY {
					continue
				}
				u := cellUndirected(h.cellDirected(ncx, ncy))
				for _, v := range u {
					sumSq += v * v
				}
			}
		}
		blockNorms[i] = math.Sqrt(sumSq + 1e-6)
	}

	out := make([]float64, 0, uocttiDims)
	for _, v := range directed {
		var acc float64
		for _, norm := range blockNorms {
			nv := v / norm
			if nv > hogTruncateValue {
				nv = hogTruncateValue
			}
			acc += nv
		}
		out = append(out, acc*0.5)
	}
	for _, v := range undirected {
		var acc float64
		for _, norm := range blockNorms {
			nv := v / norm
			if nv > hogTruncateValue {
				nv = hogTruncateValue
			}
			acc += nv
		}
		out = append(out, acc*0.25)
	}
	for _, norm := range blockNorms {
		out = append(out, 0.2357*norm)
	}
	return out
}

// RenderGlyph maps a per-cell HOG feature vector back to a square
// visualisation grid (§4.6): each orientation bin draws a line segment
// through the cell centre at that orientation, with brightness proportional
// to the bin's energy, the standard HOG glyph.
func RenderGlyph(cell []float64, cfg HOGConfig, glyphSize int) *imageops.Grid[float32] {
	if glyphSize < 1 {
		glyphSize = 21
	}
	out := imageops.NewGrid[float32](glyphSize, glyphSize)

	undirectedStart := 0
	n := hogOrientations
	if cfg.Variant == VariantDalalTriggs {
		undirectedStart = 0
		n = len(cell) / 4
	} else {
		undirectedStart = 2 * hogOrientations
		n = hogOrientations
	}

	cx, cy := float64(glyphSize-1)/2, float64(glyphSize-1)/2
	radius := float64(glyphSize) / 2

	for i := 0; i < n; i++ {
		var e float64
		if cfg.Variant == VariantDalalTriggs {
			for b := 0; b < 4; b++ {
				e += cell[b*n+i]
			}
			e /= 4
		} else if undirectedStart+i < len(cell) {
			e = cell[undirectedStart+i]
		}
		if e <= 0 {
			continue
		}
		theta := math.Pi * float64(i) / float64(n)
		dx, dy := math.Cos(theta)*radius, math.Sin(theta)*radius

		drawLine(out, cx-dx, cy-dy, cx+dx, cy+dy, float32(e))
	}
	return out
}

// drawLine rasterises a line segment into g using Bresenham-style stepping,
// accumulating weight at each touched pixel.
func drawLine(g *imageops.Grid[float32], x0, y0, x1, y1 float64, weight float32) {
	steps := int(math.Hypot(x1-x0, y1-y0)) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(math.Round(x0 + t*(x1-x0)))
		y := int(math.Round(y0 + t*(y1-y0)))
		if x < 0 || x >= g.Width || y < 0 || y >= g.Height {
			continue
		}
		g.Set(x, y, g.At(x, y)+weight)
	}
}
