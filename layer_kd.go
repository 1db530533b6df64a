package geocluster

import "github.com/mapengine/geocluster/internal/kdtree"

// kdLayer is one zoom level of the immutable clusterer: the elements
// present at that zoom, plus a KD-tree over their centroids and the
// two radius parameters memoized for that zoom (§3 "Layer").
type kdLayer struct {
	zoom     int
	elements []*element
	r, r2    float64
	index    *kdtree.Tree
}

type elementPoint struct{ e *element }

func (p elementPoint) Coordinates() (float64, float64) { return p.e.x, p.e.y }

func buildKDLayer(zoom int, elements []*element, r float64, nodeSize int) *kdLayer {
	pts := make([]kdtree.Point, len(elements))
	for i, e := range elements {
		pts[i] = elementPoint{e}
	}
	return &kdLayer{
		zoom:     zoom,
		elements: elements,
		r:        r,
		r2:       r * r,
		index:    kdtree.Build(pts, nodeSize),
	}
}

func (l *kdLayer) within(x, y, r float64) []int { return l.index.Within(x, y, r) }

// rangeBox accepts the projected corners in either order: the default
// projection maps larger latitudes to smaller Y, so a caller's minY
// projects to the larger Y bound.
func (l *kdLayer) rangeBox(minX, minY, maxX, maxY float64) []int {
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return l.index.Range(minX, minY, maxX, maxY)
}
