package geocluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptionsWithDefaults(t *testing.T) {
	o := xyOptions().withDefaults()
	assert.Equal(t, defaultRadius, o.Radius)
	assert.Equal(t, defaultExtent, o.Extent)
	assert.Equal(t, defaultMinPoints, o.MinPoints)
	assert.Equal(t, defaultMaxZoom, o.MaxZoom)
	assert.Equal(t, defaultNodeSize, o.NodeSize)
	assert.NotNil(t, o.Project)
	assert.NotNil(t, o.Unproject)
	assert.NotNil(t, o.GenerateUUID)
}

func TestOptionsValidateRequiresGetters(t *testing.T) {
	err := Options[xyPoint]{}.withDefaults().validate()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestOptionsValidateRejectsInvertedZoomRange(t *testing.T) {
	o := xyOptions()
	o.MinZoom = 10
	o.MaxZoom = 5
	err := o.withDefaults().validate()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestOptionsValidateRequiresPairedAggregationCallbacks(t *testing.T) {
	o := xyOptions()
	o.MapPointToProperties = func(p xyPoint) any { return nil }
	err := o.withDefaults().validate()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	o = xyOptions()
	o.ExtractClusterData = func(p xyPoint) any { return nil }
	err = o.withDefaults().validate()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRadiusAtShrinksWithZoom(t *testing.T) {
	o := xyOptions().withDefaults()
	r0 := radiusAt(o, 0)
	r1 := radiusAt(o, 1)
	assert.Greater(t, r0, r1)
	assert.InDelta(t, r0/2, r1, 1e-12)
}
