package geocluster

import (
	"fmt"
	"strconv"
)

// Index is the immutable clustering engine: points are supplied once
// via Load, and the full zoom hierarchy is precomputed into a stack of
// KD-tree-backed layers (§4.4).
type Index[P any] struct {
	opts   Options[P]
	points []P

	// layers[i] holds zoom = MaxZoom+1-i, so layers[0] is the leaf
	// layer and layers[len-1] is the MinZoom layer.
	layers []*kdLayer
	byID   map[string]*element
	loaded bool
}

// New validates opts and returns an unloaded Index. Call Load before
// issuing any query.
func New[P any](opts Options[P]) (*Index[P], error) {
	o := opts.withDefaults()
	if err := o.validate(); err != nil {
		return nil, err
	}
	return &Index[P]{opts: o}, nil
}

// Load projects points and builds the full layer stack from
// MaxZoom+1 down to MinZoom. Calling Load again rebuilds the index
// from scratch (idempotent re-build, per §6).
func (ix *Index[P]) Load(points []P) error {
	leaves := make([]*element, len(points))
	for i, p := range points {
		px, py := ix.opts.GetX(p), ix.opts.GetY(p)
		if err := checkFinite(px, py); err != nil {
			return err
		}
		x, y := ix.opts.Project(px, py)
		leaves[i] = newLeaf(i, x, y, ix.opts.MaxZoom+1)
		if ix.opts.MapPointToProperties != nil {
			leaves[i].agg = ix.opts.MapPointToProperties(p)
		}
		if ix.opts.ExtractClusterData != nil {
			leaves[i].clusterData = ix.opts.ExtractClusterData(p)
		}
	}

	layers := make([]*kdLayer, 0, ix.opts.MaxZoom-ix.opts.MinZoom+2)
	layers = append(layers, buildKDLayer(ix.opts.MaxZoom+1, leaves, 0, ix.opts.NodeSize))

	cur := layers[0]
	nextID := 0
	for z := ix.opts.MaxZoom; z >= ix.opts.MinZoom; z-- {
		next, n := clusterLayer(ix.opts, cur, z, nextID)
		nextID = n
		layers = append(layers, next)
		cur = next
	}

	byID := make(map[string]*element)
	for _, l := range layers {
		for _, e := range l.elements {
			if e.tag == kindCluster {
				byID[e.id] = e
			}
		}
	}

	ix.points = points
	ix.layers = layers
	ix.byID = byID
	ix.loaded = true
	return nil
}

// clusterLayer builds layer z from cur (layer z+1), per §4.4's greedy
// absorption procedure. Iteration follows cur.elements' order, which
// is itself the order produced by the previous pass (or the caller's
// input order at the leaf layer) — the ordering the spec requires two
// implementations to agree on.
func clusterLayer[P any](o Options[P], cur *kdLayer, z int, nextID int) (*kdLayer, int) {
	r := radiusAt(o, z)
	r2 := r * r
	n := len(cur.elements)
	absorbed := make([]bool, n)
	out := make([]*element, 0, n)

	for i, e := range cur.elements {
		if absorbed[i] {
			continue
		}
		absorbed[i] = true

		neighborIdx := cur.within(e.x, e.y, r)
		var candidates []int
		for _, j := range neighborIdx {
			if j == i || absorbed[j] {
				continue
			}
			c := cur.elements[j]
			if distSq(e.x, e.y, c.x, c.y) <= r2 {
				candidates = append(candidates, j)
			}
		}

		total := e.numPoints
		for _, j := range candidates {
			total += cur.elements[j].numPoints
		}

		if total < o.MinPoints {
			out = append(out, e)
			continue
		}

		id := strconv.FormatInt(int64(z)<<32|int64(nextID), 10)
		nextID++

		sumX := e.x * float64(e.numPoints)
		sumY := e.y * float64(e.numPoints)
		agg, cdata := seedAggregate(o, e)
		children := make([]*element, 0, 1+len(candidates))
		children = append(children, e)
		e.parentID = id
		e.lowestZoom = z + 1

		for _, j := range candidates {
			absorbed[j] = true
			c := cur.elements[j]
			sumX += c.x * float64(c.numPoints)
			sumY += c.y * float64(c.numPoints)
			foldChild(o, &agg, &cdata, c)
			c.parentID = id
			c.lowestZoom = z + 1
			children = append(children, c)
		}

		newCluster := &element{
			tag:         kindCluster,
			x:           sumX / float64(total),
			y:           sumY / float64(total),
			originX:     e.x,
			originY:     e.y,
			numPoints:   total,
			lowestZoom:  z,
			id:          id,
			children:    children,
			agg:         agg,
			clusterData: cdata,
		}
		out = append(out, newCluster)
	}

	return buildKDLayer(z, out, r, o.NodeSize), nextID
}

func (ix *Index[P]) layerAt(zoom int) *kdLayer {
	offset := ix.opts.MaxZoom + 1 - zoom
	if offset < 0 || offset >= len(ix.layers) {
		return nil
	}
	return ix.layers[offset]
}

func clampZoom(zoom, min, max int) int {
	if zoom < min {
		return min
	}
	if zoom > max {
		return max
	}
	return zoom
}

// Search returns the elements of the layer at the given zoom that
// intersect the bounding box, handling an antimeridian-crossing box as
// two unioned sub-queries (§4.7).
func (ix *Index[P]) Search(minX, minY, maxX, maxY float64, zoom int) ([]Result, error) {
	if !ix.loaded {
		return nil, fmt.Errorf("geocluster: search: %w", ErrNotLoaded)
	}
	z := clampZoom(zoom, ix.opts.MinZoom, ix.opts.MaxZoom+1)
	l := ix.layerAt(z)
	if l == nil {
		return nil, nil
	}

	if minX < -180 || maxX > 180 {
		lo1, hi1, lo2, hi2 := splitAntimeridian(minX, maxX)
		left := wrapSearch(ix.opts, l, lo1, minY, hi1, maxY)
		right := wrapSearch(ix.opts, l, lo2, minY, hi2, maxY)
		return unionResults(left, right), nil
	}
	lx1, ly1 := ix.opts.Project(minX, minY)
	lx2, ly2 := ix.opts.Project(maxX, maxY)
	ids := l.rangeBox(lx1, ly1, lx2, ly2)
	return toResults(ix.opts, l, ids), nil
}

// splitAntimeridian decomposes a box that crosses +/-180 into the two
// sub-boxes that together cover the same span within [-180, 180].
func splitAntimeridian(minX, maxX float64) (lo1, hi1, lo2, hi2 float64) {
	if maxX > 180 {
		return minX, 180, -180, maxX - 360
	}
	return -180, maxX, minX + 360, 180
}

func wrapSearch[P any](o Options[P], l *kdLayer, minX, minY, maxX, maxY float64) []Result {
	lx1, ly1 := o.Project(minX, minY)
	lx2, ly2 := o.Project(maxX, maxY)
	ids := l.rangeBox(lx1, ly1, lx2, ly2)
	return toResults(o, l, ids)
}

func unionResults(a, b []Result) []Result {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]Result, 0, len(a)+len(b))
	for _, r := range append(append([]Result{}, a...), b...) {
		key := r.dedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func toResults[P any](o Options[P], l *kdLayer, ids []int) []Result {
	out := make([]Result, 0, len(ids))
	for _, i := range ids {
		out = append(out, elementToResult(o, l.elements[i]))
	}
	return out
}

func elementToResult[P any](o Options[P], e *element) Result {
	ux, uy := o.Unproject(e.x, e.y)
	if e.tag == kindLeaf {
		return Result{IsCluster: false, X: ux, Y: uy, LeafIndex: e.leafIndex}
	}
	return Result{
		IsCluster:   true,
		ID:          e.id,
		X:           ux,
		Y:           uy,
		NumPoints:   e.numPoints,
		ClusterData: e.clusterData,
		Aggregate:   e.agg,
	}
}

// GetChildren returns the direct children of the cluster, at
// cluster.lowestZoom+1 (§4.7).
func (ix *Index[P]) GetChildren(clusterID string) ([]Result, error) {
	if !ix.loaded {
		return nil, fmt.Errorf("geocluster: getChildren: %w", ErrNotLoaded)
	}
	e, ok := ix.byID[clusterID]
	if !ok {
		return nil, fmt.Errorf("geocluster: cluster %q: %w", clusterID, ErrNotFound)
	}
	out := make([]Result, 0, len(e.children))
	for _, c := range e.children {
		out = append(out, elementToResult(ix.opts, c))
	}
	return out, nil
}

// GetLeaves performs a depth-first traversal of the cluster's
// descendants, returning original points with the given limit/offset.
func (ix *Index[P]) GetLeaves(clusterID string, limit, offset int) ([]P, error) {
	if !ix.loaded {
		return nil, fmt.Errorf("geocluster: getLeaves: %w", ErrNotLoaded)
	}
	e, ok := ix.byID[clusterID]
	if !ok {
		return nil, fmt.Errorf("geocluster: cluster %q: %w", clusterID, ErrNotFound)
	}
	var leafIdx []int
	collectLeaves(e, &leafIdx)

	if offset > len(leafIdx) {
		offset = len(leafIdx)
	}
	leafIdx = leafIdx[offset:]
	if limit > 0 && limit < len(leafIdx) {
		leafIdx = leafIdx[:limit]
	}

	out := make([]P, 0, len(leafIdx))
	for _, i := range leafIdx {
		out = append(out, ix.points[i])
	}
	return out, nil
}

func collectLeaves(e *element, out *[]int) {
	if e.tag == kindLeaf {
		*out = append(*out, e.leafIndex)
		return
	}
	for _, c := range e.children {
		collectLeaves(c, out)
	}
}

// GetClusterExpansionZoom returns the smallest zoom at which the
// cluster's children stop being clustered together (§4.7). If the
// cluster's descendants never separate into more than one visible
// entity within [MinZoom, MaxZoom] (e.g. coincident input points),
// MaxZoom+1 is returned.
func (ix *Index[P]) GetClusterExpansionZoom(clusterID string) (int, error) {
	if !ix.loaded {
		return 0, fmt.Errorf("geocluster: getClusterExpansionZoom: %w", ErrNotLoaded)
	}
	cur, ok := ix.byID[clusterID]
	if !ok {
		return 0, fmt.Errorf("geocluster: cluster %q: %w", clusterID, ErrNotFound)
	}

	zoom := cur.lowestZoom
	for zoom <= ix.opts.MaxZoom {
		children := cur.children
		zoom++
		if len(children) != 1 || children[0].tag != kindCluster {
			if allSameCoords(children) {
				return ix.opts.MaxZoom + 1, nil
			}
			return zoom, nil
		}
		cur = children[0]
	}
	return ix.opts.MaxZoom + 1, nil
}

func allSameCoords(children []*element) bool {
	if len(children) == 0 {
		return true
	}
	x0, y0 := children[0].x, children[0].y
	for _, c := range children[1:] {
		if c.x != x0 || c.y != y0 {
			return false
		}
	}
	return true
}

// PointsAtZoom returns the number of elements present at zoom.
func (ix *Index[P]) PointsAtZoom(zoom int) int {
	l := ix.layerAt(clampZoom(zoom, ix.opts.MinZoom, ix.opts.MaxZoom+1))
	if l == nil {
		return 0
	}
	return len(l.elements)
}

// NumPoints returns the total number of loaded points.
func (ix *Index[P]) NumPoints() int { return len(ix.points) }
