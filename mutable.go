package geocluster

import (
	"fmt"
)

// MutableIndex is the mutable clustering engine: points may be added
// or removed after Load, with the zoom hierarchy maintained
// incrementally via R-tree-backed layers (§4.5).
//
// P must be comparable: the engine looks up a point's handle by value
// equality (§6 "the engine stores a handle to the original and
// compares by that handle") — for reference-like point types this is
// naturally satisfied by using a pointer as P, making equality the
// caller's own object identity.
type MutableIndex[P comparable] struct {
	opts Options[P]

	points   map[int64]P
	handleOf map[P]int64
	nextSlot int64

	// layers[0] is the raw leaf layer (zoom = MaxZoom+1); layers[i>0]
	// is the clustered layer at zoom = MaxZoom+1-i.
	layers []*rtLayer
	byID   map[string]*element
}

// NewMutable validates opts and returns an empty, ready-to-use
// MutableIndex. Unlike the immutable Index, a MutableIndex needs no
// explicit Load before Add/Remove/Search — Load is an idempotent bulk
// convenience on top of the same incremental machinery.
func NewMutable[P comparable](opts Options[P]) (*MutableIndex[P], error) {
	o := opts.withDefaults()
	if err := o.validate(); err != nil {
		return nil, err
	}
	ix := &MutableIndex[P]{opts: o}
	ix.reset()
	return ix, nil
}

func (ix *MutableIndex[P]) reset() {
	ix.points = make(map[int64]P)
	ix.handleOf = make(map[P]int64)
	ix.nextSlot = 0
	ix.byID = make(map[string]*element)
	ix.layers = make([]*rtLayer, 0, ix.opts.MaxZoom-ix.opts.MinZoom+2)
	ix.layers = append(ix.layers, newRTLayer(ix.opts.MaxZoom+1, 0))
	for z := ix.opts.MaxZoom; z >= ix.opts.MinZoom; z-- {
		ix.layers = append(ix.layers, newRTLayer(z, radiusAt(ix.opts, z)))
	}
}

func (ix *MutableIndex[P]) offsetOf(zoom int) int { return ix.opts.MaxZoom + 1 - zoom }

// Load clears and rebuilds the index from points — an idempotent
// re-build (§6). The leaf layer is bulk-loaded in one shot (§4.5's
// Sort-Tile-Recursive ordering, via internal/rtree.Index.Load) rather
// than one Insert per point; each leaf then ascends the layer stack
// exactly as a single Add would.
func (ix *MutableIndex[P]) Load(points []P) error {
	ix.reset()

	leaves := make([]*element, len(points))
	handles := make([]int64, len(points))
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))

	for i, p := range points {
		px, py := ix.opts.GetX(p), ix.opts.GetY(p)
		if err := checkFinite(px, py); err != nil {
			return err
		}
		x, y := ix.opts.Project(px, py)

		handle := ix.nextSlot
		ix.nextSlot++
		ix.points[handle] = p
		ix.handleOf[p] = handle

		leaf := &element{
			tag:        kindLeaf,
			x:          x,
			y:          y,
			numPoints:  1,
			leafIndex:  int(handle),
			lowestZoom: ix.opts.MaxZoom + 1,
			topZoom:    ix.opts.MaxZoom + 1,
			slot:       handle,
		}
		if ix.opts.MapPointToProperties != nil {
			leaf.agg = ix.opts.MapPointToProperties(p)
		}
		if ix.opts.ExtractClusterData != nil {
			leaf.clusterData = ix.opts.ExtractClusterData(p)
		}

		leaves[i] = leaf
		handles[i] = handle
		xs[i] = x
		ys[i] = y
	}

	leafLayer := ix.layers[0]
	leafLayer.index.Load(handles, xs, ys)
	for _, leaf := range leaves {
		leafLayer.elements[leaf.slot] = leaf
	}
	for _, leaf := range leaves {
		if leaf.parentID != "" {
			continue // already absorbed by an earlier leaf's ascend
		}
		ix.ascend(leaf, 0)
	}
	return nil
}

// Add projects point, inserts it as a leaf, and ascends the layer
// stack per §4.5.
func (ix *MutableIndex[P]) Add(point P) error {
	_, err := ix.addPoint(point)
	return err
}

func (ix *MutableIndex[P]) addPoint(point P) (int64, error) {
	if _, exists := ix.handleOf[point]; exists {
		return 0, fmt.Errorf("geocluster: add: point already present: %w", ErrInvalidArgument)
	}
	px, py := ix.opts.GetX(point), ix.opts.GetY(point)
	if err := checkFinite(px, py); err != nil {
		return 0, err
	}
	x, y := ix.opts.Project(px, py)

	handle := ix.nextSlot
	ix.nextSlot++
	ix.points[handle] = point
	ix.handleOf[point] = handle

	leaf := &element{
		tag:        kindLeaf,
		x:          x,
		y:          y,
		numPoints:  1,
		leafIndex:  int(handle),
		lowestZoom: ix.opts.MaxZoom + 1,
		topZoom:    ix.opts.MaxZoom + 1,
		slot:       handle,
	}
	if ix.opts.MapPointToProperties != nil {
		leaf.agg = ix.opts.MapPointToProperties(point)
	}
	if ix.opts.ExtractClusterData != nil {
		leaf.clusterData = ix.opts.ExtractClusterData(point)
	}

	ix.layers[0].insert(leaf)
	ix.ascend(leaf, 0)
	return handle, nil
}

// ascend carries cur upward from layers[finerIdx] (where it already
// stands) through each coarser layer, merging it with neighbours
// found in the layer directly below, per §4.5's insert procedure. It
// is reused both for a freshly-added point (finerIdx = 0, the leaf
// layer) and to re-promote a dissolved cluster's orphaned children
// (finerIdx = the layer they were reinserted into).
//
// The finer layer at i==1 is the raw leaf layer, which by design never
// drops an entry once a leaf is absorbed into a cluster (it exists so
// GetLeaves and point lookups always find the original leaf). A
// neighbour read back from it may therefore already belong to a live
// cluster standing one layer up; every candidate is resolved to its
// current liveRoot before it is counted or merged, so an insertion
// near an existing cluster extends that cluster instead of re-forming
// a second, overlapping one over the same leaves.
func (ix *MutableIndex[P]) ascend(cur *element, finerIdx int) {
	for i := finerIdx + 1; i < len(ix.layers); i++ {
		layer := ix.layers[i]
		finer := ix.layers[i-1]
		z := layer.zoom
		r2 := layer.r2

		neighbors := finer.within(cur.x, cur.y, layer.r)
		roots := make(map[*element]struct{}, len(neighbors))
		var mergeSet []*element
		total := cur.numPoints
		for _, c := range neighbors {
			root := ix.liveRoot(c)
			if root == cur {
				continue
			}
			if _, seen := roots[root]; seen {
				continue
			}
			if distSq(cur.x, cur.y, root.x, root.y) > r2 {
				continue
			}
			roots[root] = struct{}{}
			mergeSet = append(mergeSet, root)
			total += root.numPoints
		}

		if total < ix.opts.MinPoints {
			cur.topZoom = z
			layer.insert(cur)
			continue
		}

		members := append([]*element{cur}, mergeSet...)
		var target *element
		for _, m := range members {
			if m.tag == kindCluster {
				target = m
				break
			}
		}

		if target == nil {
			cur = ix.formCluster(members, z)
		} else {
			ix.extendCluster(target, members, z)
			cur = target
		}
	}
}

// liveRoot resolves e to the element that currently represents its
// lineage in the layer stack: e itself if it has never been absorbed,
// or the outermost ancestor cluster it has since been folded into.
func (ix *MutableIndex[P]) liveRoot(e *element) *element {
	for e.parentID != "" {
		parent, ok := ix.byID[e.parentID]
		if !ok {
			break
		}
		e = parent
	}
	return e
}

// formCluster creates a brand-new cluster at zoom z from members (none
// of which is itself already a cluster) and absorbs them.
func (ix *MutableIndex[P]) formCluster(members []*element, z int) *element {
	id := ix.opts.GenerateUUID()
	var sumX, sumY float64
	var agg, cdata any
	children := make([]*element, 0, len(members))
	for i, m := range members {
		sumX += m.x * float64(m.numPoints)
		sumY += m.y * float64(m.numPoints)
		if i == 0 {
			agg, cdata = seedAggregate(ix.opts, m)
		} else {
			foldChild(ix.opts, &agg, &cdata, m)
		}
		ix.absorb(m, id, z)
		children = append(children, m)
	}
	total := 0
	for _, m := range members {
		total += m.numPoints
	}
	newCluster := &element{
		tag:         kindCluster,
		x:           sumX / float64(total),
		y:           sumY / float64(total),
		originX:     members[0].x,
		originY:     members[0].y,
		numPoints:   total,
		lowestZoom:  z,
		topZoom:     z,
		id:          id,
		children:    children,
		agg:         agg,
		clusterData: cdata,
		slot:        ix.nextSlot,
	}
	ix.nextSlot++
	ix.layers[ix.offsetOf(z)].insert(newCluster)
	ix.byID[id] = newCluster
	return newCluster
}

// extendCluster folds every member other than target into target in
// place, retaining target's identifier (§4.5).
func (ix *MutableIndex[P]) extendCluster(target *element, members []*element, z int) {
	for _, m := range members {
		if m == target {
			continue
		}
		foldChild(ix.opts, &target.agg, &target.clusterData, m)
		ix.absorb(m, target.id, z)
		target.children = append(target.children, m)
	}
	recomputeCentroid(target)
	if z < target.topZoom {
		target.topZoom = z
	}
	ix.repositionRange(target)
}

// absorb marks m as a child of clusterID formed at zoom z and removes
// its own standalone rtree entries (it is now reachable only via the
// parent's children pointers). The removal must happen before
// lowestZoom is overwritten: occupiedRange derives m's old (pre-
// absorption) occupied range from its current lowestZoom/topZoom.
func (ix *MutableIndex[P]) absorb(m *element, clusterID string, z int) {
	ix.removeStandaloneEntries(m)
	m.parentID = clusterID
	m.lowestZoom = z + 1
}

// occupiedRange reports the zoom range [lo, hi] (lo coarsest, hi
// finest) over which e currently has a live, independent entry in the
// clustered layer stack. A cluster occupies its own formation zoom;
// a still-standalone leaf or sub-cluster does not occupy the raw leaf
// layer, which is handled separately.
func (e *element) occupiedRange(maxZoom int) (lo, hi int) {
	hi = e.lowestZoom
	if e.tag == kindLeaf {
		hi--
	}
	if hi > maxZoom {
		hi = maxZoom
	}
	return e.topZoom, hi
}

func (ix *MutableIndex[P]) removeStandaloneEntries(e *element) {
	lo, hi := e.occupiedRange(ix.opts.MaxZoom)
	if lo > hi {
		return
	}
	for i := ix.offsetOf(hi); i <= ix.offsetOf(lo); i++ {
		ix.layers[i].remove(e)
	}
}

func (ix *MutableIndex[P]) repositionRange(e *element) {
	lo, hi := e.occupiedRange(ix.opts.MaxZoom)
	if lo > hi {
		return
	}
	for i := ix.offsetOf(hi); i <= ix.offsetOf(lo); i++ {
		ix.layers[i].remove(e)
		ix.layers[i].insert(e)
	}
}

func removeChildFrom(parent *element, child *element) {
	for i, c := range parent.children {
		if c == child {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			return
		}
	}
}

func recomputeCentroid(e *element) {
	var sumX, sumY float64
	var num int
	for _, c := range e.children {
		sumX += c.x * float64(c.numPoints)
		sumY += c.y * float64(c.numPoints)
		num += c.numPoints
	}
	e.numPoints = num
	if num > 0 {
		e.x = sumX / float64(num)
		e.y = sumY / float64(num)
	}
}

// Remove locates point by handle equality and deletes it, dissolving
// and re-clustering any ancestor cluster that drops below MinPoints
// (§4.5). A surviving ancestor (one that stays at or above MinPoints)
// has its centroid and numPoints recomputed from its remaining
// children, but not its agg/clusterData: reduceProperties and
// combineClusterData have no general inverse, so the removed child's
// contribution to those payloads lingers. Callers needing exact
// aggregate correctness after a removal should rebuild via Load.
func (ix *MutableIndex[P]) Remove(point P) error {
	handle, ok := ix.handleOf[point]
	if !ok {
		return fmt.Errorf("geocluster: remove: %w", ErrNotFound)
	}
	leaf := ix.layers[0].elements[handle]
	delete(ix.handleOf, point)
	delete(ix.points, handle)
	ix.layers[0].remove(leaf)

	if leaf.parentID == "" {
		ix.removeStandaloneEntries(leaf)
		return nil
	}
	ix.detachFromParent(leaf)
	return nil
}

// detachFromParent removes child from its parent's children, shrinks
// the parent (recomputing its centroid from its remaining children —
// agg/clusterData are left as-is, see Remove), and dissolves the
// parent if it drops below MinPoints.
func (ix *MutableIndex[P]) detachFromParent(child *element) {
	cur := child
	for cur.parentID != "" {
		parent, ok := ix.byID[cur.parentID]
		if !ok {
			return
		}
		removeChildFrom(parent, cur)
		recomputeCentroid(parent)
		if parent.numPoints < ix.opts.MinPoints {
			ix.dissolve(parent)
			return
		}
		ix.repositionRange(parent)
		cur = parent
	}
}

// dissolve removes cl (whose numPoints dropped below MinPoints)
// entirely, detaching it from its own parent in turn, then re-runs
// §4.4's greedy clustering step over cl's former children at zoom
// cl.lowestZoom, letting each result continue ascending normally.
func (ix *MutableIndex[P]) dissolve(cl *element) {
	z := cl.lowestZoom
	finerIdx := ix.offsetOf(z) - 1

	ix.removeStandaloneEntries(cl)
	delete(ix.byID, cl.id)
	if cl.parentID != "" {
		ix.detachFromParent(cl)
	}

	for _, child := range cl.children {
		child.parentID = ""
		child.topZoom = z + 1
		// A raw leaf child (finerIdx 0) is already present in the leaf
		// layer, which never drops entries on absorption; re-inserting
		// it would leave a second, undeletable copy in the R-tree.
		if _, already := ix.layers[finerIdx].elements[child.slot]; !already {
			ix.layers[finerIdx].insert(child)
		}
	}
	for _, child := range cl.children {
		if child.parentID != "" {
			continue // already absorbed by a sibling's ascend above
		}
		ix.ascend(child, finerIdx)
	}
}

// ModifyPointData refreshes the stored point value and re-derives its
// leaf aggregates, without moving it. Ancestor aggregates already
// folded from the old value are not retroactively recomputed
// (reduceProperties has no general inverse); callers needing exact
// aggregate correctness after a data change should Remove then Add.
func (ix *MutableIndex[P]) ModifyPointData(oldPoint, newPoint P) error {
	handle, ok := ix.handleOf[oldPoint]
	if !ok {
		return fmt.Errorf("geocluster: modifyPointData: %w", ErrNotFound)
	}
	leaf := ix.layers[0].elements[handle]
	delete(ix.handleOf, oldPoint)
	ix.handleOf[newPoint] = handle
	ix.points[handle] = newPoint
	if ix.opts.MapPointToProperties != nil {
		leaf.agg = ix.opts.MapPointToProperties(newPoint)
	}
	if ix.opts.ExtractClusterData != nil {
		leaf.clusterData = ix.opts.ExtractClusterData(newPoint)
	}
	return nil
}

// Contains reports whether point is currently loaded.
func (ix *MutableIndex[P]) Contains(point P) bool {
	_, ok := ix.handleOf[point]
	return ok
}

func (ix *MutableIndex[P]) layerAt(zoom int) *rtLayer {
	offset := ix.offsetOf(zoom)
	if offset < 0 || offset >= len(ix.layers) {
		return nil
	}
	return ix.layers[offset]
}

// Search returns the elements of the layer at the given zoom
// intersecting the bounding box, with the same antimeridian handling
// as the immutable Index (§4.7).
func (ix *MutableIndex[P]) Search(minX, minY, maxX, maxY float64, zoom int) ([]Result, error) {
	z := clampZoom(zoom, ix.opts.MinZoom, ix.opts.MaxZoom+1)
	l := ix.layerAt(z)
	if l == nil {
		return nil, nil
	}
	if minX < -180 || maxX > 180 {
		lo1, hi1, lo2, hi2 := splitAntimeridian(minX, maxX)
		left := ix.boxSearch(l, lo1, minY, hi1, maxY)
		right := ix.boxSearch(l, lo2, minY, hi2, maxY)
		return unionResults(left, right), nil
	}
	return ix.boxSearch(l, minX, minY, maxX, maxY), nil
}

func (ix *MutableIndex[P]) boxSearch(l *rtLayer, minX, minY, maxX, maxY float64) []Result {
	lx1, ly1 := ix.opts.Project(minX, minY)
	lx2, ly2 := ix.opts.Project(maxX, maxY)
	elems := l.rangeBox(lx1, ly1, lx2, ly2)
	out := make([]Result, 0, len(elems))
	for _, e := range elems {
		out = append(out, elementToResult(ix.opts, e))
	}
	return out
}

// GetChildren returns the direct children of the cluster.
func (ix *MutableIndex[P]) GetChildren(clusterID string) ([]Result, error) {
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

// GetLeaves depth-first traverses the cluster's descendants, returning
// original points with the given limit/offset.
func (ix *MutableIndex[P]) GetLeaves(clusterID string, limit, offset int) ([]P, error) {
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
		out = append(out, ix.points[int64(i)])
	}
	return out, nil
}

// GetClusterExpansionZoom mirrors the immutable Index's algorithm
// (§4.7), walking the single-child chain until it branches.
func (ix *MutableIndex[P]) GetClusterExpansionZoom(clusterID string) (int, error) {
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

// PointsAtZoom returns the number of elements present at zoom.
func (ix *MutableIndex[P]) PointsAtZoom(zoom int) int {
	l := ix.layerAt(clampZoom(zoom, ix.opts.MinZoom, ix.opts.MaxZoom+1))
	if l == nil {
		return 0
	}
	return len(l.elements)
}

// NumPoints returns the total number of currently loaded points.
func (ix *MutableIndex[P]) NumPoints() int { return len(ix.points) }
