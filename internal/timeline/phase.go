package timeline

import (
	"math"

	"github.com/rainbowrelax/relax-cli/internal/exercise"
)

// PhaseInfo locates a cycle position within the phase list
type PhaseInfo struct {
	Index     int     `json:"index"`
	Name      string  `json:"name"`
	Progress  float64 `json:"progress"`
	Duration  float64 `json:"duration"`
	Remaining float64 `json:"remaining"`
}

// ResolvePhase returns the first phase whose cumulative end lies beyond
// position. Positions outside [0, sum) and NaN resolve to the start of the
// first phase, which is where a wrapped cycle lands anyway.
func ResolvePhase(position float64, phases []exercise.Phase) PhaseInfo {
	if len(phases) == 0 {
		return PhaseInfo{}
	}
	if math.IsNaN(position) || position < 0 {
		return phaseStart(phases)
	}

	cumulative := 0.0
	for i, p := range phases {
		end := cumulative + p.DurationSeconds
		if position < end {
			progress := position - cumulative
			return PhaseInfo{
				Index:     i,
				Name:      p.Name,
				Progress:  progress,
				Duration:  p.DurationSeconds,
				Remaining: p.DurationSeconds - progress,
			}
		}
		cumulative = end
	}

	return phaseStart(phases)
}

func phaseStart(phases []exercise.Phase) PhaseInfo {
	p := phases[0]
	return PhaseInfo{
		Index:     0,
		Name:      p.Name,
		Duration:  p.DurationSeconds,
		Remaining: p.DurationSeconds,
	}
}
