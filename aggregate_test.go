package geocluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCombineAggregation(t *testing.T) {
	opts := xyOptions()
	opts.ExtractClusterData = func(p xyPoint) any { return 1 }
	opts.CombineClusterData = func(acc, other any) any { return acc.(int) + other.(int) }

	ix, err := New(opts)
	assert.NoError(t, err)
	assert.NoError(t, ix.Load([]xyPoint{{0, 0}, {0.0001, 0}, {0.0001, 0.0001}}))

	results, err := ix.Search(-180, -90, 180, 90, 0)
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 3, results[0].ClusterData)
}

func TestMapReduceAndExtractCombineCoexist(t *testing.T) {
	opts := xyOptions()
	opts.MapPointToProperties = func(p xyPoint) any { return map[string]int{"n": 1} }
	opts.ReduceProperties = func(acc, other any) {
		acc.(map[string]int)["n"] += other.(map[string]int)["n"]
	}
	opts.ExtractClusterData = func(p xyPoint) any { return 1 }
	opts.CombineClusterData = func(acc, other any) any { return acc.(int) + other.(int) }

	ix, err := New(opts)
	assert.NoError(t, err)
	assert.NoError(t, ix.Load([]xyPoint{{0, 0}, {0.0001, 0}, {0.0001, 0.0001}}))

	results, err := ix.Search(-180, -90, 180, 90, 0)
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Aggregate.(map[string]int)["n"])
	assert.Equal(t, 3, results[0].ClusterData)
}
