package timeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rainbowrelax/relax-cli/internal/exercise"
)

var fourSevenEight = []exercise.Phase{
	{Name: "inhale", DurationSeconds: 4},
	{Name: "hold", DurationSeconds: 7},
	{Name: "exhale", DurationSeconds: 8},
}

func TestResolvePhase478(t *testing.T) {
	info := ResolvePhase(2.0, fourSevenEight)
	assert.Equal(t, 0, info.Index)
	assert.Equal(t, "inhale", info.Name)
	assert.InDelta(t, 2.0, info.Progress, epsilon)
	assert.InDelta(t, 2.0, info.Remaining, epsilon)

	info = ResolvePhase(5.0, fourSevenEight)
	assert.Equal(t, "hold", info.Name)
	assert.InDelta(t, 1.0, info.Progress, epsilon)
	assert.InDelta(t, 6.0, info.Remaining, epsilon)
	assert.Equal(t, 7.0, info.Duration)

	info = ResolvePhase(18.9, fourSevenEight)
	assert.Equal(t, 2, info.Index)
	assert.Equal(t, "exhale", info.Name)
}

func TestResolvePhaseBoundaries(t *testing.T) {
	assert.Equal(t, "hold", ResolvePhase(4.0, fourSevenEight).Name, "a boundary belongs to the next phase")
	assert.Equal(t, "exhale", ResolvePhase(11.0, fourSevenEight).Name)
}

func TestResolvePhaseClampsOutOfRange(t *testing.T) {
	for _, pos := range []float64{19, 19.0000001, 250, -1, math.NaN(), math.Inf(1)} {
		info := ResolvePhase(pos, fourSevenEight)
		assert.Equal(t, 0, info.Index, "position %v", pos)
		assert.Equal(t, "inhale", info.Name)
		assert.Equal(t, 0.0, info.Progress)
		assert.Equal(t, 4.0, info.Remaining)
	}
}

func TestResolvePhaseEmpty(t *testing.T) {
	assert.Equal(t, PhaseInfo{}, ResolvePhase(3, nil))
}
