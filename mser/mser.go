// Package mser implements maximally stable extremal region detection (C7):
// a grey-level union-find component tree, stability/area/diversity
// filtering, and an elliptical region fit.
package mser

import (
	"sort"

	"vlfeat-go/vlerr"
)

const grayLevels = 256

// Config controls region selection.
type Config struct {
	Delta        int     // grey-level window used by the variation computation
	MinArea      float64 // minimum region area as a fraction of the image
	MaxArea      float64 // maximum region area as a fraction of the image
	MaxVariation float64 // reject regions whose variation exceeds this
	MinDiversity float64 // reject regions too similar to an already-selected ancestor
	Bright       bool    // detect bright-on-dark regions instead of dark-on-bright
}

// DefaultConfig mirrors vl_mser's usual defaults.
func DefaultConfig() Config {
	return Config{
		Delta:        5,
		MinArea:      0.0002,
		MaxArea:      0.5,
		MaxVariation: 0.25,
		MinDiversity: 0.2,
	}
}

// node is one pixel's entry in the union-find component-tree forest (§3's
// MSER component: parent, area, shortcut, grayLevel). Variations are kept in
// a separate slice built by Regions, and there is no region-id field.
//
// ufParent is a separate, path-compressed union-find pointer used only to
// find the live root of a component while Process is still merging pixels;
// parent is the true, single-hop component-tree edge (the node this one was
// folded into), written exactly once by union and never touched by find's
// path compression, so ancestor/parent queries made after construction see
// the real tree instead of find's collapsed-to-one-root shortcuts.
type node struct {
	ufParent  int32
	parent    int32
	shortcut  int32
	area      int32
	grayLevel uint8

	sumX, sumY          float64
	sumXX, sumYY, sumXY float64
}

// Region is a selected extremal region.
type Region struct {
	Pivot     int     // pixel index of the region's representative node
	Area      int
	GrayLevel uint8
	Variation float64
	Mean      [2]float64
	Cov       [2][2]float64 // pixel-coordinate covariance, filled in by Regions; read by Region.Ellipse
}

// Detector builds the component tree for one image and extracts regions.
type Detector struct {
	cfg    Config
	width  int
	height int
	nodes  []node
	built  bool
}

// NewDetector validates cfg and returns an idle detector.
func NewDetector(cfg Config) (*Detector, error) {
	if cfg.Delta < 0 {
		return nil, vlerr.InvalidArgument("mser: delta must be >= 0, got %d", cfg.Delta)
	}
	if cfg.MinArea < 0 || cfg.MaxArea > 1 || cfg.MinArea > cfg.MaxArea {
		return nil, vlerr.InvalidArgument("mser: invalid area bounds [%v, %v]", cfg.MinArea, cfg.MaxArea)
	}
	return &Detector{cfg: cfg}, nil
}

// Process builds the component-tree forest over an 8-bit image (row-major,
// width*height bytes, one byte per pixel) by grey-level counting sort and
// 4-neighbour union-find (§4.7).
func (d *Detector) Process(image []uint8, width, height int) error {
	if width <= 0 || height <= 0 || len(image) != width*height {
		return vlerr.InvalidArgument("mser: image size %d does not match %dx%d", len(image), width, height)
	}

	d.width, d.height = width, height
	n := width * height
	d.nodes = make([]node, n)

	order := countingSortOrder(image, d.cfg.Bright)

	visited := make([]bool, n)
	for _, p := range order {
		x, y := p%width, p/width
		d.nodes[p] = node{
			ufParent:  int32(p),
			parent:    int32(p),
			shortcut:  int32(p),
			area:      1,
			grayLevel: levelOf(image[p], d.cfg.Bright),
			sumX:      float64(x),
			sumY:      float64(y),
			sumXX:     float64(x) * float64(x),
			sumYY:     float64(y) * float64(y),
			sumXY:     float64(x) * float64(y),
		}
		visited[p] = true

		neighbors := [4]int{-1, -1, -1, -1}
		count := 0
		if x > 0 {
			neighbors[count] = p - 1
			count++
		}
		if x < width-1 {
			neighbors[count] = p + 1
			count++
		}
		if y > 0 {
			neighbors[count] = p - width
			count++
		}
		if y < height-1 {
			neighbors[count] = p + width
			count++
		}

		for i := 0; i < count; i++ {
			q := neighbors[i]
			if !visited[q] {
				continue
			}
			d.union(p, q)
		}
	}

	d.built = true
	return nil
}

// find returns the live connectivity root of p's component, path-compressing
// ufParent along the way. This is purely a construction-time bookkeeping
// pointer: it must never be read as the component-tree parent, since path
// compression collapses it straight to the forest's single ultimate root.
func (d *Detector) find(p int32) int32 {
	root := p
	for d.nodes[root].ufParent != root {
		root = d.nodes[root].ufParent
	}
	for d.nodes[p].ufParent != root {
		next := d.nodes[p].ufParent
		d.nodes[p].ufParent = root
		p = next
	}
	return root
}

// union merges the components of p and q, always attaching the lower-level
// (or equal) root under the higher, ties broken by lower pixel index (§4.7).
// The lower root's area and pixel moments are folded into the higher root so
// ellipseFit can read them back directly instead of rescanning the image,
// and parent/shortcut are each set exactly once here, never revisited by
// find's path compression.
func (d *Detector) union(p, q int) {
	rp := d.find(int32(p))
	rq := d.find(int32(q))
	if rp == rq {
		return
	}

	np, nq := &d.nodes[rp], &d.nodes[rq]
	var lo, hi int32
	switch {
	case np.grayLevel < nq.grayLevel:
		lo, hi = rp, rq
	case nq.grayLevel < np.grayLevel:
		lo, hi = rq, rp
	case rp < rq:
		lo, hi = rp, rq
	default:
		lo, hi = rq, rp
	}

	loNode, hiNode := &d.nodes[lo], &d.nodes[hi]
	hiNode.area += loNode.area
	hiNode.sumX += loNode.sumX
	hiNode.sumY += loNode.sumY
	hiNode.sumXX += loNode.sumXX
	hiNode.sumYY += loNode.sumYY
	hiNode.sumXY += loNode.sumXY

	loNode.ufParent = hi
	loNode.parent = hi
	loNode.shortcut = hi
}

// countingSortOrder returns pixel indices sorted by grey level ascending
// (dark-on-bright) or descending (bright-on-dark), via a 256-bucket counting
// sort (§4.7).
func countingSortOrder(image []uint8, bright bool) []int {
	var counts [grayLevels]int
	for _, v := range image {
		counts[levelOf(v, bright)]++
	}
	var offsets [grayLevels]int
	sum := 0
	for g := 0; g < grayLevels; g++ {
		offsets[g] = sum
		sum += counts[g]
	}
	order := make([]int, len(image))
	cursor := offsets
	for p, v := range image {
		g := levelOf(v, bright)
		order[cursor[g]] = p
		cursor[g]++
	}
	return order
}

func levelOf(v uint8, bright bool) uint8 {
	if bright {
		return 255 - v
	}
	return v
}

// Regions runs the stability/variation/diversity selection pass (§4.7) and
// returns the selected extremal regions, most stable first. Called before
// Process, it returns no regions and an ErrNotConfigured error.
func (d *Detector) Regions() ([]Region, error) {
	if !d.built {
		return nil, vlerr.NotConfigured("mser: Regions called before Process")
	}

	n := len(d.nodes)
	totalArea := float64(n)
	minArea := int(d.cfg.MinArea * totalArea)
	maxArea := int(d.cfg.MaxArea * totalArea)

	variation := make([]float64, n)
	for p := 0; p < n; p++ {
		variation[p] = d.variationAt(int32(p))
	}

	var candidates []int32
	for p := 0; p < n; p++ {
		area := int(d.nodes[p].area)
		if area < minArea || area > maxArea {
			continue
		}
		if variation[p] > d.cfg.MaxVariation {
			continue
		}
		if !d.isLocalMinimum(int32(p), variation) {
			continue
		}
		candidates = append(candidates, int32(p))
	}

	sort.Slice(candidates, func(i, j int) bool {
		return variation[candidates[i]] < variation[candidates[j]]
	})

	var selected []int32
	for _, c := range candidates {
		if d.diverseEnough(c, selected) {
			selected = append(selected, c)
		}
	}

	regions := make([]Region, 0, len(selected))
	for _, r := range selected {
		mean, cov := d.ellipseFit(r)
		regions = append(regions, Region{
			Pivot:     int(r),
			Area:      int(d.nodes[r].area),
			GrayLevel: d.nodes[r].grayLevel,
			Variation: variation[r],
			Mean:      mean,
			Cov:       cov,
		})
	}
	return regions, nil
}

// variationAt computes v(r) = (A' - A(r)) / A(r) where A' is the area of the
// topmost ancestor of r whose grey level is at most Delta above r's, i.e. the
// component containing r at threshold level(r)+Delta (§4.7), walking via the
// shortcut pointer to avoid re-walking already-resolved chains ("no_dups", §9).
// A shortcut is followed only when its target is itself within the window, so
// a jump never skips past the node being looked for.
func (d *Detector) variationAt(p int32) float64 {
	area := float64(d.nodes[p].area)
	targetLevel := int(d.nodes[p].grayLevel) + d.cfg.Delta

	cur := p
	for {
		next := d.nodes[cur].shortcut
		if next == cur || int(d.nodes[next].grayLevel) > targetLevel {
			next = d.nodes[cur].parent
		}
		if next == cur || int(d.nodes[next].grayLevel) > targetLevel {
			break
		}
		cur = next
	}
	// Leave a shortcut from p straight to the resolved ancestor, so a later
	// query starting at p (or at a node whose own shortcut still points
	// below p) does not re-walk the prefix just traversed.
	d.nodes[p].shortcut = cur

	ancestorArea := float64(d.nodes[cur].area)
	if area == 0 {
		return 0
	}
	return (ancestorArea - area) / area
}

// isLocalMinimum reports whether p's variation is <= its immediate parent's
// along the component-tree chain (a root always passes). The variations of
// p's children are not compared.
func (d *Detector) isLocalMinimum(p int32, variation []float64) bool {
	parent := d.nodes[p].parent
	if parent != p && variation[p] > variation[parent] {
		return false
	}
	return true
}

// diverseEnough reports whether candidate r is sufficiently different in
// area from every already-selected region a that is its ancestor or
// descendant: (big-small)/big >= minDiversity, where big and small are the
// larger and smaller of A(a) and A(r) (§4.7).
func (d *Detector) diverseEnough(r int32, selected []int32) bool {
	areaR := float64(d.nodes[r].area)
	for _, a := range selected {
		if !d.isAncestor(a, r) && !d.isAncestor(r, a) {
			continue
		}
		areaA := float64(d.nodes[a].area)
		if areaA == 0 {
			continue
		}
		big, small := areaA, areaR
		if areaR > areaA {
			big, small = areaR, areaA
		}
		if (big-small)/big < d.cfg.MinDiversity {
			return false
		}
	}
	return true
}

// isAncestor reports whether walking up from desc's parent chain reaches
// anc within the forest (both within the same root, since the tree only
// grows upward in grey level).
func (d *Detector) isAncestor(anc, desc int32) bool {
	cur := desc
	for i := 0; i < len(d.nodes); i++ {
		if cur == anc {
			return true
		}
		parent := d.nodes[cur].parent
		if parent == cur {
			return false
		}
		cur = parent
	}
	return false
}

// ellipseFit returns region r's mean and covariance from the pixel moments
// union already accumulated into node r while building the component tree
// (§4.7) — r's sums cover exactly the pixels merged into it up to the point
// it was itself folded into a higher node (or all of them, if it is a root),
// which is precisely the extent of the extremal region it represents.
func (d *Detector) ellipseFit(r int32) ([2]float64, [2][2]float64) {
	n := &d.nodes[r]
	count := float64(n.area)
	if count == 0 {
		return [2]float64{}, [2][2]float64{}
	}

	meanX, meanY := n.sumX/count, n.sumY/count
	mean := [2]float64{meanX, meanY}
	cov := [2][2]float64{
		{n.sumXX/count - meanX*meanX, n.sumXY/count - meanX*meanY},
		{n.sumXY/count - meanX*meanY, n.sumYY/count - meanY*meanY},
	}
	return mean, cov
}
