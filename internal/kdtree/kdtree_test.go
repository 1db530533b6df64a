package kdtree

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pt struct{ x, y float64 }

func (p pt) Coordinates() (float64, float64) { return p.x, p.y }

func toPoints(pts []pt) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = p
	}
	return out
}

func bruteWithin(pts []pt, qx, qy, r float64) []int {
	var result []int
	r2 := r * r
	for i, p := range pts {
		dx, dy := p.x-qx, p.y-qy
		if dx*dx+dy*dy <= r2 {
			result = append(result, i)
		}
	}
	return result
}

func bruteRange(pts []pt, minX, minY, maxX, maxY float64) []int {
	var result []int
	for i, p := range pts {
		if p.x >= minX && p.x <= maxX && p.y >= minY && p.y <= maxY {
			result = append(result, i)
		}
	}
	return result
}

func asSet(ids []int) map[int]bool {
	s := make(map[int]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

func TestTreeWithinMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pts := make([]pt, 500)
	for i := range pts {
		pts[i] = pt{rng.Float64(), rng.Float64()}
	}
	tree := Build(toPoints(pts), 8)
	require.Equal(t, len(pts), tree.Len())

	for i := 0; i < 20; i++ {
		qx, qy := rng.Float64(), rng.Float64()
		r := rng.Float64() * 0.3
		got := asSet(tree.Within(qx, qy, r))
		want := asSet(bruteWithin(pts, qx, qy, r))
		assert.Equal(t, want, got)
	}
}

func TestTreeRangeMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pts := make([]pt, 300)
	for i := range pts {
		pts[i] = pt{rng.Float64(), rng.Float64()}
	}
	tree := Build(toPoints(pts), 16)

	for i := 0; i < 20; i++ {
		x1, x2 := rng.Float64(), rng.Float64()
		y1, y2 := rng.Float64(), rng.Float64()
		if x1 > x2 {
			x1, x2 = x2, x1
		}
		if y1 > y2 {
			y1, y2 = y2, y1
		}
		got := asSet(tree.Range(x1, y1, x2, y2))
		want := asSet(bruteRange(pts, x1, y1, x2, y2))
		assert.Equal(t, want, got)
	}
}

func TestTreeEmpty(t *testing.T) {
	tree := Build(nil, 64)
	assert.Empty(t, tree.Within(0, 0, 1))
	assert.Empty(t, tree.Range(0, 0, 1, 1))
}

func TestTreeSinglePoint(t *testing.T) {
	tree := Build(toPoints([]pt{{0.5, 0.5}}), 64)
	assert.Equal(t, []int{0}, tree.Within(0.5, 0.5, 0))
	assert.Equal(t, []int{0}, tree.Within(0.5, 0.5, math.SmallestNonzeroFloat64))
}
