package timeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	inhaleTimes  = []float64{0, 0.21, 0.58, 1}
	inhaleScales = []float64{1.5, 3.5, 3.5, 1.5}
)

func TestInterpolateScaleBoundaries(t *testing.T) {
	at := func(t float64) float64 { return InterpolateScale(t, 1, inhaleTimes, inhaleScales) }

	assert.Equal(t, 1.5, at(0))
	assert.Equal(t, 3.5, at(0.21))
	assert.Equal(t, 3.5, at(0.4))
	assert.Equal(t, 3.5, at(0.58))
	assert.Equal(t, 1.5, at(1))
	assert.Equal(t, 1.5, at(1.7))
}

func TestInterpolateScaleLinear(t *testing.T) {
	got := InterpolateScale(0.105*19, 19, inhaleTimes, inhaleScales)
	assert.InDelta(t, 2.5, got, 1e-9)

	got = InterpolateScale(0.79*19, 19, inhaleTimes, inhaleScales)
	assert.InDelta(t, 2.5, got, 1e-9)
}

func TestInterpolateScaleZeroLengthSegment(t *testing.T) {
	times := []float64{0, 0.5, 0.5, 1}
	values := []float64{1, 2, 5, 3}

	assert.InDelta(t, 1.5, InterpolateScale(0.25, 1, times, values), 1e-9)
	assert.Equal(t, 5.0, InterpolateScale(0.5, 1, times, values), "jump straight to the value after the zero-length segment")
	assert.InDelta(t, 4.0, InterpolateScale(0.75, 1, times, values), 1e-9)
}

func TestInterpolateScaleDegenerateInput(t *testing.T) {
	assert.Equal(t, 1.5, InterpolateScale(3, 0, inhaleTimes, inhaleScales))
	assert.Equal(t, 1.5, InterpolateScale(3, -19, inhaleTimes, inhaleScales))
	assert.Equal(t, 1.5, InterpolateScale(math.NaN(), 19, inhaleTimes, inhaleScales))
	assert.Equal(t, 1.5, InterpolateScale(-2, 19, inhaleTimes, inhaleScales))
	assert.Equal(t, 1.0, InterpolateScale(3, 19, nil, nil))
	assert.Equal(t, 2.0, InterpolateScale(3, 19, []float64{0, 0.5}, []float64{2}))
}

func TestKeyframesCommonPrefix(t *testing.T) {
	k := Keyframes{Times: []float64{0, 0.5, 1}, Values: []float64{0, 10}}
	assert.InDelta(t, 5.0, k.At(0.25), 1e-9)
	assert.Equal(t, 10.0, k.At(0.75))
}
