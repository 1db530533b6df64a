package geocluster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type xyPoint struct{ x, y float64 }

func xyOptions() Options[xyPoint] {
	return Options[xyPoint]{
		GetX: func(p xyPoint) float64 { return p.x },
		GetY: func(p xyPoint) float64 { return p.y },
	}
}

func TestIndexRequiresLoad(t *testing.T) {
	ix, err := New(xyOptions())
	require.NoError(t, err)
	_, err = ix.Search(-180, -90, 180, 90, 0)
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestIndexEmptyLoad(t *testing.T) {
	ix, err := New(xyOptions())
	require.NoError(t, err)
	require.NoError(t, ix.Load(nil))
	assert.Equal(t, 0, ix.NumPoints())
	results, err := ix.Search(-180, -90, 180, 90, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndexSinglePointNeverClusters(t *testing.T) {
	ix, err := New(xyOptions())
	require.NoError(t, err)
	require.NoError(t, ix.Load([]xyPoint{{0, 0}}))

	for z := 0; z <= 16; z++ {
		results, err := ix.Search(-180, -90, 180, 90, z)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.False(t, results[0].IsCluster)
	}
}

func TestIndexTwoNearbyPointsClusterAtLowZoom(t *testing.T) {
	ix, err := New(xyOptions())
	require.NoError(t, err)
	require.NoError(t, ix.Load([]xyPoint{{0, 0}, {1, 1}}))

	results, err := ix.Search(-180, -90, 180, 90, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsCluster)
	assert.Equal(t, 2, results[0].NumPoints)

	results, err = ix.Search(-180, -90, 180, 90, 16)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestIndexCoincidentPointsExpansionZoomIsMaxPlusOne(t *testing.T) {
	ix, err := New(xyOptions())
	require.NoError(t, err)
	require.NoError(t, ix.Load([]xyPoint{{10, 10}, {10, 10}}))

	results, err := ix.Search(-180, -90, 180, 90, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].IsCluster)

	zoom, err := ix.GetClusterExpansionZoom(results[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 17, zoom) // MaxZoom(16)+1
}

func TestIndexGetChildrenAndLeaves(t *testing.T) {
	ix, err := New(xyOptions())
	require.NoError(t, err)
	require.NoError(t, ix.Load([]xyPoint{
		{0, 0}, {0.0001, 0}, {0.0001, 0.0001},
	}))

	results, err := ix.Search(-180, -90, 180, 90, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	cluster := results[0]
	require.True(t, cluster.IsCluster)
	assert.Equal(t, 3, cluster.NumPoints)

	leaves, err := ix.GetLeaves(cluster.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, leaves, 3)

	limited, err := ix.GetLeaves(cluster.ID, 2, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = ix.GetChildren(cluster.ID)
	require.NoError(t, err)
}

func TestIndexUnknownClusterID(t *testing.T) {
	ix, err := New(xyOptions())
	require.NoError(t, err)
	require.NoError(t, ix.Load([]xyPoint{{0, 0}}))

	_, err = ix.GetChildren("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = ix.GetLeaves("nope", 0, 0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = ix.GetClusterExpansionZoom("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndexAntimeridianSearchUnionsWithoutDuplicates(t *testing.T) {
	ix, err := New(xyOptions())
	require.NoError(t, err)
	require.NoError(t, ix.Load([]xyPoint{{179.999, 0}, {-179.999, 0}}))

	results, err := ix.Search(170, -10, 190, 10, 16)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestIndexLoadIsIdempotent(t *testing.T) {
	ix, err := New(xyOptions())
	require.NoError(t, err)
	points := []xyPoint{{0, 0}, {1, 1}, {2, 2}}
	require.NoError(t, ix.Load(points))
	first, err := ix.Search(-180, -90, 180, 90, 0)
	require.NoError(t, err)

	require.NoError(t, ix.Load(points))
	second, err := ix.Search(-180, -90, 180, 90, 0)
	require.NoError(t, err)

	assert.Equal(t, len(first), len(second))
}

func TestIndexInvalidOptionsRejected(t *testing.T) {
	_, err := New(Options[xyPoint]{GetX: func(p xyPoint) float64 { return p.x }})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New(Options[xyPoint]{
		GetX: func(p xyPoint) float64 { return p.x },
		GetY: func(p xyPoint) float64 { return p.y },
		Radius: -1,
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestIndexNonFiniteCoordinateRejected(t *testing.T) {
	ix, err := New(xyOptions())
	require.NoError(t, err)
	err = ix.Load([]xyPoint{{0, 0}, {0, math.NaN()}})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestIndexMapReduceAggregation(t *testing.T) {
	opts := xyOptions()
	opts.MapPointToProperties = func(p xyPoint) any { return map[string]int{"n": 1} }
	opts.ReduceProperties = func(acc, other any) {
		a := acc.(map[string]int)
		o := other.(map[string]int)
		a["n"] += o["n"]
	}
	ix, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, ix.Load([]xyPoint{{0, 0}, {0.0001, 0}, {0.0001, 0.0001}}))

	results, err := ix.Search(-180, -90, 180, 90, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	agg := results[0].Aggregate.(map[string]int)
	assert.Equal(t, 3, agg["n"])
}
