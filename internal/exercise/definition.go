package exercise

import (
	"fmt"
	"math"
)

// DefaultID is the exercise used whenever a requested id cannot be served.
const DefaultID = "4-7-8"

// CycleTolerance is the allowed difference, in seconds, between the declared
// cycle duration and the sum of phase durations.
const CycleTolerance = 0.01

// Definition describes a breathing exercise: its ordered phases, the declared
// cycle duration and the keyframe tables of its visual elements.
// Definitions are loaded once and must not be mutated afterwards.
type Definition struct {
	ID                   string    `yaml:"id" json:"id"`
	Name                 string    `yaml:"name" json:"name"`
	Description          string    `yaml:"description" json:"description,omitempty"`
	Aliases              []string  `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	CycleDurationSeconds float64   `yaml:"cycle_duration_seconds" json:"cycle_duration_seconds"`
	Phases               []Phase   `yaml:"phases" json:"phases"`
	Elements             []Element `yaml:"elements,omitempty" json:"elements,omitempty"`
	Audio                *Audio    `yaml:"audio,omitempty" json:"audio,omitempty"`
}

// Phase is a named sub-interval of a cycle
type Phase struct {
	Name            string  `yaml:"name" json:"name"`
	DurationSeconds float64 `yaml:"duration_seconds" json:"duration_seconds"`
	Instruction     string  `yaml:"instruction,omitempty" json:"instruction,omitempty"`
	Cue             string  `yaml:"cue,omitempty" json:"cue,omitempty"`
}

// Element is one animated visual (a circle in the widget). Times are
// normalized to [0,1] over the cycle; Scales and Opacities hold one value
// per keyframe time.
type Element struct {
	Name         string    `yaml:"name" json:"name"`
	DelaySeconds float64   `yaml:"delay_seconds,omitempty" json:"delay_seconds,omitempty"`
	Times        []float64 `yaml:"times" json:"times"`
	Scales       []float64 `yaml:"scales" json:"scales"`
	Opacities    []float64 `yaml:"opacities,omitempty" json:"opacities,omitempty"`
}

// Audio lists the looping tracks an exercise plays while it runs.
type Audio struct {
	Background   *Track `yaml:"background,omitempty" json:"background,omitempty"`
	Instructions *Track `yaml:"instructions,omitempty" json:"instructions,omitempty"`
}

// Track is a named audio asset reference. Asset resolution is up to the player.
type Track struct {
	Name   string  `yaml:"name" json:"name"`
	Volume float64 `yaml:"volume" json:"volume"`
	Loop   bool    `yaml:"loop" json:"loop"`
}

// ValidationError reports the first field of a definition that failed validation
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks the structural rules a definition must satisfy to be used
// for timing. A cycle/phase-sum mismatch is not a validation failure, see
// CycleMismatch.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return &ValidationError{Field: "id", Message: "is required"}
	}
	if len(d.Phases) == 0 {
		return &ValidationError{Field: "phases", Message: "must not be empty"}
	}
	for i, p := range d.Phases {
		if p.Name == "" {
			return &ValidationError{Field: fmt.Sprintf("phases[%d].name", i), Message: "is required"}
		}
		if !positive(p.DurationSeconds) {
			return &ValidationError{Field: fmt.Sprintf("phases[%d].duration_seconds", i), Message: "must be a positive number"}
		}
	}
	if !positive(d.CycleDurationSeconds) {
		return &ValidationError{Field: "cycle_duration_seconds", Message: "must be a positive number"}
	}
	for i, el := range d.Elements {
		if err := el.validate(); err != nil {
			err.Field = fmt.Sprintf("elements[%d].%s", i, err.Field)
			return err
		}
	}
	return nil
}

func (el Element) validate() *ValidationError {
	if len(el.Times) == 0 {
		return &ValidationError{Field: "times", Message: "must not be empty"}
	}
	if el.Times[0] != 0 {
		return &ValidationError{Field: "times", Message: "must start at 0"}
	}
	for i, t := range el.Times {
		if math.IsNaN(t) || t < 0 || t > 1 {
			return &ValidationError{Field: "times", Message: "must lie within [0,1]"}
		}
		if i > 0 && t < el.Times[i-1] {
			return &ValidationError{Field: "times", Message: "must be non-decreasing"}
		}
	}
	if len(el.Scales) != len(el.Times) {
		return &ValidationError{Field: "scales", Message: "must have one value per keyframe time"}
	}
	if len(el.Opacities) > 0 && len(el.Opacities) != len(el.Times) {
		return &ValidationError{Field: "opacities", Message: "must have one value per keyframe time"}
	}
	if el.DelaySeconds < 0 {
		return &ValidationError{Field: "delay_seconds", Message: "must not be negative"}
	}
	return nil
}

// PhaseSum returns the sum of all phase durations
func (d *Definition) PhaseSum() float64 {
	sum := 0.0
	for _, p := range d.Phases {
		sum += p.DurationSeconds
	}
	return sum
}

// CycleMismatch reports whether the declared cycle duration differs from the
// phase sum by more than CycleTolerance. The declared value stays
// authoritative for timing either way.
func (d *Definition) CycleMismatch() (float64, bool) {
	sum := d.PhaseSum()
	return sum, math.Abs(sum-d.CycleDurationSeconds) > CycleTolerance
}

// SameTiming reports whether two definitions drive clocks identically. A
// session must fully reset its clocks when this returns false.
func (d *Definition) SameTiming(other *Definition) bool {
	if d == nil || other == nil {
		return d == other
	}
	if d.ID != other.ID || d.CycleDurationSeconds != other.CycleDurationSeconds {
		return false
	}
	if len(d.Phases) != len(other.Phases) {
		return false
	}
	for i := range d.Phases {
		if d.Phases[i].Name != other.Phases[i].Name ||
			d.Phases[i].DurationSeconds != other.Phases[i].DurationSeconds {
			return false
		}
	}
	return true
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
