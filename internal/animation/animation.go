package animation

import (
	"math"

	"github.com/rainbowrelax/relax-cli/internal/exercise"
	"github.com/rainbowrelax/relax-cli/internal/models"
	"github.com/rainbowrelax/relax-cli/internal/timeline"
)

// Sample computes the scale and opacity of every element at one cycle
// position. Each element runs the same curve shifted by its start delay, so
// a delayed element lags the shared position by DelaySeconds.
func Sample(elements []exercise.Element, position, cycleSeconds float64) []models.ElementState {
	if len(elements) == 0 {
		return nil
	}

	states := make([]models.ElementState, 0, len(elements))
	for _, el := range elements {
		local := localPosition(position, el.DelaySeconds, cycleSeconds)
		states = append(states, models.ElementState{
			Name:    el.Name,
			Scale:   timeline.InterpolateScale(local, cycleSeconds, el.Times, el.Scales),
			Opacity: opacity(el, local, cycleSeconds),
		})
	}
	return states
}

// SampleElement is Sample for a single element
func SampleElement(el exercise.Element, position, cycleSeconds float64) models.ElementState {
	return Sample([]exercise.Element{el}, position, cycleSeconds)[0]
}

// opacity falls back to fully opaque when an element has no opacity table
func opacity(el exercise.Element, local, cycleSeconds float64) float64 {
	if len(el.Opacities) == 0 {
		return 1
	}
	return clamp(timeline.InterpolateScale(local, cycleSeconds, el.Times, el.Opacities), 0, 1)
}

func localPosition(position, delay, cycleSeconds float64) float64 {
	if delay <= 0 || !(cycleSeconds > 0) {
		return position
	}
	local := math.Mod(position-delay, cycleSeconds)
	if local < 0 {
		local += cycleSeconds
	}
	return local
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
