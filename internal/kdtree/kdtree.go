// Package kdtree implements a static, flat-array 2-D KD-tree used as the
// per-zoom spatial index of the immutable clusterer. The public shape
// (build once from a point set, query by range or radius, get back
// stable point indices) follows the kdbush contract the teacher corpus
// built against; the internals (parallel coordinate arrays permuted in
// place by quickselect, implicit node boundaries) are this package's own.
package kdtree

// Point is anything a Tree can be built over.
type Point interface {
	Coordinates() (x, y float64)
}

// Tree is a flat, immutable KD-tree over N 2-D points. Build permutes
// three parallel arrays (ids, xs, ys) in place; queries allocate only
// their result slice and a small traversal stack.
type Tree struct {
	ids      []int
	xs       []float64
	ys       []float64
	nodeSize int
}

// Build indexes points, with nodeSize as the leaf-block size (points
// are scanned linearly once a sub-range holds nodeSize+1 or fewer).
func Build(points []Point, nodeSize int) *Tree {
	if nodeSize <= 0 {
		nodeSize = 64
	}
	n := len(points)
	t := &Tree{
		ids:      make([]int, n),
		xs:       make([]float64, n),
		ys:       make([]float64, n),
		nodeSize: nodeSize,
	}
	for i, p := range points {
		t.ids[i] = i
		t.xs[i], t.ys[i] = p.Coordinates()
	}
	if n > 0 {
		t.sort(0, n-1, 0)
	}
	return t
}

// Len reports the number of indexed points.
func (t *Tree) Len() int { return len(t.ids) }

// sort recursively partitions [left, right] around its median on the
// axis implied by depth (x at even depths, y at odd), alternating as
// it descends, stopping once the sub-range is small enough to scan.
func (t *Tree) sort(left, right, depth int) {
	if right-left <= t.nodeSize {
		return
	}
	mid := (left + right) / 2
	if depth%2 == 0 {
		t.selectRange(t.xs, left, right, mid)
	} else {
		t.selectRange(t.ys, left, right, mid)
	}
	t.sort(left, mid-1, depth+1)
	t.sort(mid+1, right, depth+1)
}

// selectRange performs quickselect (Hoare-style recursive partitioning)
// on arr[left..right] so that arr[k] holds the value it would hold if
// arr[left..right] were fully sorted, with smaller values to its left
// and larger to its right. ids, xs and ys are kept in lockstep via swap.
func (t *Tree) selectRange(arr []float64, left, right, k int) {
	for right > left {
		v := arr[k]
		i, j := left, right
		t.swap(left, k)
		if arr[right] > v {
			t.swap(left, right)
		}
		for i < j {
			t.swap(i, j)
			i++
			j--
			for arr[i] < v {
				i++
			}
			for arr[j] > v {
				j--
			}
		}
		if arr[left] == v {
			t.swap(left, j)
		} else {
			j++
			t.swap(j, right)
		}
		if j <= k {
			left = j + 1
		}
		if k <= j {
			right = j - 1
		}
	}
}

func (t *Tree) swap(i, j int) {
	t.ids[i], t.ids[j] = t.ids[j], t.ids[i]
	t.xs[i], t.xs[j] = t.xs[j], t.xs[i]
	t.ys[i], t.ys[j] = t.ys[j], t.ys[i]
}

// Range returns the stable indices of points whose coordinates fall
// within the axis-aligned box [minX, maxX] x [minY, maxY].
func (t *Tree) Range(minX, minY, maxX, maxY float64) []int {
	var result []int
	if len(t.ids) == 0 {
		return result
	}
	type frame struct{ left, right, axis int }
	stack := []frame{{0, len(t.ids) - 1, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.right-f.left <= t.nodeSize {
			for i := f.left; i <= f.right; i++ {
				x, y := t.xs[i], t.ys[i]
				if x >= minX && x <= maxX && y >= minY && y <= maxY {
					result = append(result, t.ids[i])
				}
			}
			continue
		}

		mid := (f.left + f.right) / 2
		x, y := t.xs[mid], t.ys[mid]
		if x >= minX && x <= maxX && y >= minY && y <= maxY {
			result = append(result, t.ids[mid])
		}
		var coord, lo, hi float64
		if f.axis == 0 {
			coord, lo, hi = x, minX, maxX
		} else {
			coord, lo, hi = y, minY, maxY
		}
		if lo <= coord {
			stack = append(stack, frame{f.left, mid - 1, 1 - f.axis})
		}
		if hi >= coord {
			stack = append(stack, frame{mid + 1, f.right, 1 - f.axis})
		}
	}
	return result
}

// Within returns the stable indices of points within Euclidean
// distance r of (qx, qy).
func (t *Tree) Within(qx, qy, r float64) []int {
	var result []int
	if len(t.ids) == 0 {
		return result
	}
	r2 := r * r
	type frame struct{ left, right, axis int }
	stack := []frame{{0, len(t.ids) - 1, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.right-f.left <= t.nodeSize {
			for i := f.left; i <= f.right; i++ {
				if sqDist(t.xs[i], t.ys[i], qx, qy) <= r2 {
					result = append(result, t.ids[i])
				}
			}
			continue
		}

		mid := (f.left + f.right) / 2
		x, y := t.xs[mid], t.ys[mid]
		if sqDist(x, y, qx, qy) <= r2 {
			result = append(result, t.ids[mid])
		}
		var coord, q float64
		if f.axis == 0 {
			coord, q = x, qx
		} else {
			coord, q = y, qy
		}
		if q-r <= coord {
			stack = append(stack, frame{f.left, mid - 1, 1 - f.axis})
		}
		if q+r >= coord {
			stack = append(stack, frame{mid + 1, f.right, 1 - f.axis})
		}
	}
	return result
}

func sqDist(ax, ay, bx, by float64) float64 {
	dx := ax - bx
	dy := ay - by
	return dx*dx + dy*dy
}
