// Package rtree implements the dynamic 2-D spatial index used by the
// mutable clusterer, wrapping github.com/dhconnelly/rtreego behind the
// same Range/Within query contract internal/kdtree exposes, plus
// insertion and removal.
package rtree

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
)

const (
	dimensions = 2
	// pointTolerance is the half-width of the degenerate rectangle
	// rtreego requires for a zero-area point item.
	pointTolerance = 1e-9
)

// Item is one entry in the index: a 2-D point tagged with a caller
// handle (a per-layer slot id), stable across insert/remove.
type Item struct {
	Handle int64
	X, Y   float64
	rect   *rtreego.Rect
}

func newItem(handle int64, x, y float64) *Item {
	p := rtreego.Point{x, y}
	return &Item{Handle: handle, X: x, Y: y, rect: p.ToRect(pointTolerance)}
}

// Bounds implements rtreego.Spatial.
func (it *Item) Bounds() *rtreego.Rect { return it.rect }

// Index is a dynamic R-tree index over Items, keyed by handle so that
// Remove can locate the exact rtreego object to delete without a scan.
type Index struct {
	tree  *rtreego.Rtree
	items map[int64]*Item
}

// New creates an empty index with the given min/max node fan-out.
func New(minChildren, maxChildren int) *Index {
	return &Index{
		tree:  rtreego.NewTree(dimensions, minChildren, maxChildren),
		items: make(map[int64]*Item),
	}
}

// Load bulk-inserts handle/x/y triples. Items are fed to the tree in
// Sort-Tile-Recursive order (sort by x-strip, then y within each
// strip) so that spatially close items are inserted close together in
// time, reducing the fragmentation a naive insertion order produces;
// rtreego still performs its own R*-style choose-subtree and node
// splitting for each individual Insert.
func (ix *Index) Load(handles []int64, xs, ys []float64) {
	n := len(handles)
	if n == 0 {
		return
	}
	items := make([]*Item, n)
	for i := 0; i < n; i++ {
		items[i] = newItem(handles[i], xs[i], ys[i])
	}
	for _, it := range strOrder(items) {
		ix.tree.Insert(it)
		ix.items[it.Handle] = it
	}
}

// strOrder returns items reordered by the Sort-Tile-Recursive strategy:
// split into ceil(sqrt(n/leafCap)) vertical strips by x, then sort each
// strip by y.
func strOrder(items []*Item) []*Item {
	n := len(items)
	const leafCap = 9
	numStrips := int(math.Ceil(math.Sqrt(float64(n) / float64(leafCap))))
	if numStrips < 1 {
		numStrips = 1
	}
	sorted := make([]*Item, n)
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	stripSize := int(math.Ceil(float64(n) / float64(numStrips)))
	if stripSize < 1 {
		stripSize = n
	}
	out := make([]*Item, 0, n)
	for s := 0; s < n; s += stripSize {
		end := s + stripSize
		if end > n {
			end = n
		}
		strip := sorted[s:end]
		sort.Slice(strip, func(i, j int) bool { return strip[i].Y < strip[j].Y })
		out = append(out, strip...)
	}
	return out
}

// Insert adds a single point under the given handle.
func (ix *Index) Insert(handle int64, x, y float64) {
	it := newItem(handle, x, y)
	ix.tree.Insert(it)
	ix.items[handle] = it
}

// Remove deletes the item previously inserted under handle, reporting
// whether it was present.
func (ix *Index) Remove(handle int64) bool {
	it, ok := ix.items[handle]
	if !ok {
		return false
	}
	ix.tree.Delete(it)
	delete(ix.items, handle)
	return true
}

// Len reports the number of indexed items.
func (ix *Index) Len() int { return len(ix.items) }

// Range returns the handles of items within the axis-aligned box.
func (ix *Index) Range(minX, minY, maxX, maxY float64) []int64 {
	return ix.rangeQuery(minX, minY, maxX, maxY, func(x, y float64) bool {
		return x >= minX && x <= maxX && y >= minY && y <= maxY
	})
}

func (ix *Index) rangeQuery(minX, minY, maxX, maxY float64, keep func(x, y float64) bool) []int64 {
	if ix.tree.Size() == 0 {
		return nil
	}
	lengths := []float64{maxX - minX, maxY - minY}
	if lengths[0] <= 0 {
		lengths[0] = pointTolerance
	}
	if lengths[1] <= 0 {
		lengths[1] = pointTolerance
	}
	bounds, err := rtreego.NewRect(rtreego.Point{minX, minY}, lengths)
	if err != nil {
		return nil
	}
	hits := ix.tree.SearchIntersect(bounds)
	var result []int64
	for _, h := range hits {
		it := h.(*Item)
		if keep(it.X, it.Y) {
			result = append(result, it.Handle)
		}
	}
	return result
}

// Within returns the handles of items within Euclidean distance r of
// (qx, qy): an intersect query against the bounding square followed by
// an exact distance filter.
func (ix *Index) Within(qx, qy, r float64) []int64 {
	if ix.tree.Size() == 0 {
		return nil
	}
	r2 := r * r
	return ix.rangeQueryDist(qx-r, qy-r, qx+r, qy+r, func(x, y float64) bool {
		dx, dy := x-qx, y-qy
		return dx*dx+dy*dy <= r2
	})
}

func (ix *Index) rangeQueryDist(minX, minY, maxX, maxY float64, keep func(x, y float64) bool) []int64 {
	lengths := []float64{maxX - minX, maxY - minY}
	if lengths[0] <= 0 {
		lengths[0] = pointTolerance
	}
	if lengths[1] <= 0 {
		lengths[1] = pointTolerance
	}
	bounds, err := rtreego.NewRect(rtreego.Point{minX, minY}, lengths)
	if err != nil {
		return nil
	}
	hits := ix.tree.SearchIntersect(bounds)
	var result []int64
	for _, h := range hits {
		it := h.(*Item)
		if keep(it.X, it.Y) {
			result = append(result, it.Handle)
		}
	}
	return result
}
