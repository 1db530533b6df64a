package geocluster

import "github.com/mapengine/geocluster/internal/rtree"

// rtLayer is one zoom level of the mutable clusterer: the elements
// currently standing at that zoom, keyed by their stable slot id, plus
// an R-tree over their centroids.
type rtLayer struct {
	zoom     int
	elements map[int64]*element
	r, r2    float64
	index    *rtree.Index
}

func newRTLayer(zoom int, r float64) *rtLayer {
	return &rtLayer{
		zoom:     zoom,
		elements: make(map[int64]*element),
		r:        r,
		r2:       r * r,
		index:    rtree.New(rtreeMinChildren, rtreeMaxChildren),
	}
}

const (
	rtreeMaxChildren = 9
	rtreeMinChildren = 4 // ~0.4 * max, per §4.3
)

func (l *rtLayer) insert(e *element) {
	l.elements[e.slot] = e
	l.index.Insert(e.slot, e.x, e.y)
}

func (l *rtLayer) remove(e *element) {
	delete(l.elements, e.slot)
	l.index.Remove(e.slot)
}

func (l *rtLayer) within(x, y, r float64) []*element {
	ids := l.index.Within(x, y, r)
	out := make([]*element, 0, len(ids))
	for _, id := range ids {
		if e, ok := l.elements[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// rangeBox accepts the projected corners in either order: the default
// projection maps larger latitudes to smaller Y, so a caller's minY
// projects to the larger Y bound.
func (l *rtLayer) rangeBox(minX, minY, maxX, maxY float64) []*element {
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	ids := l.index.Range(minX, minY, maxX, maxY)
	out := make([]*element, 0, len(ids))
	for _, id := range ids {
		if e, ok := l.elements[id]; ok {
			out = append(out, e)
		}
	}
	return out
}
