package animation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainbowrelax/relax-cli/internal/exercise"
)

var circle = exercise.Element{
	Name:      "inhale",
	Times:     []float64{0, 0.21, 0.58, 1},
	Scales:    []float64{1.5, 3.5, 3.5, 1.5},
	Opacities: []float64{0.3, 0.5, 0.5, 0.3},
}

func TestSampleUsesSharedPosition(t *testing.T) {
	states := Sample([]exercise.Element{circle, circle}, 0.21*19, 19)
	require.Len(t, states, 2)
	assert.Equal(t, states[0], states[1])
	assert.InDelta(t, 3.5, states[0].Scale, 1e-9)
	assert.InDelta(t, 0.5, states[0].Opacity, 1e-9)
	assert.Equal(t, "inhale", states[0].Name)
}

func TestSampleDelayShiftsElement(t *testing.T) {
	delayed := circle
	delayed.Name = "ripple"
	delayed.DelaySeconds = 1

	got := SampleElement(delayed, 5, 19)
	want := SampleElement(circle, 4, 19)
	assert.InDelta(t, want.Scale, got.Scale, 1e-9)
	assert.Equal(t, "ripple", got.Name)

	// at position 0 a delayed element is still finishing the previous cycle
	got = SampleElement(delayed, 0, 19)
	want = SampleElement(circle, 18, 19)
	assert.InDelta(t, want.Scale, got.Scale, 1e-9)
}

func TestSampleDefaultsOpacity(t *testing.T) {
	plain := circle
	plain.Opacities = nil
	assert.Equal(t, 1.0, SampleElement(plain, 3, 19).Opacity)
}

func TestSampleClampsOpacity(t *testing.T) {
	odd := circle
	odd.Opacities = []float64{2, 2, 2, 2}
	assert.Equal(t, 1.0, SampleElement(odd, 3, 19).Opacity)
}

func TestSampleDegenerateCycle(t *testing.T) {
	state := SampleElement(circle, 3, 0)
	assert.Equal(t, 1.5, state.Scale)
	assert.Equal(t, 0.3, state.Opacity)
}

func TestSampleBuiltins(t *testing.T) {
	r, err := exercise.NewBuiltinRegistry()
	require.NoError(t, err)

	for _, id := range r.List() {
		def, err := r.Get(id)
		require.NoError(t, err)
		for pos := 0.0; pos < def.CycleDurationSeconds; pos += 0.25 {
			for _, s := range Sample(def.Elements, pos, def.CycleDurationSeconds) {
				assert.GreaterOrEqual(t, s.Opacity, 0.0, "%s/%s at %v", id, s.Name, pos)
				assert.LessOrEqual(t, s.Opacity, 1.0, "%s/%s at %v", id, s.Name, pos)
				assert.Greater(t, s.Scale, 0.0, "%s/%s at %v", id, s.Name, pos)
			}
		}
	}
}

func TestSampleEmpty(t *testing.T) {
	assert.Nil(t, Sample(nil, 3, 19))
}
