package models

import "time"

// FrameSchema identifies the frame envelope version
const FrameSchema = "relax.frame.v1"

// Frame is a snapshot of a breathing session taken at one instant. All
// derived values (phase, element samples, countdown) come from the same
// cycle position.
type Frame struct {
	SchemaVersion string         `json:"schema_version"`
	FrameID       string         `json:"frame_id"`
	Timestamp     string         `json:"ts"`
	Session       Session        `json:"session"`
	State         string         `json:"state"`
	Cycle         Cycle          `json:"cycle"`
	Phase         Phase          `json:"phase"`
	Elements      []ElementState `json:"elements,omitempty"`
	Countdown     Countdown      `json:"countdown"`
	Meta          Meta           `json:"meta"`
}

// Session identifies the run a frame belongs to
type Session struct {
	RunID    string `json:"run_id"`
	Exercise string `json:"exercise"`
	Minutes  int    `json:"minutes"`
}

// Cycle is the position within the repeating cycle, in seconds
type Cycle struct {
	Position  float64 `json:"position"`
	Duration  float64 `json:"duration"`
	Completed int     `json:"completed"`
}

// Phase is the resolved phase for the frame's cycle position
type Phase struct {
	Index       int     `json:"index"`
	Name        string  `json:"name"`
	Instruction string  `json:"instruction,omitempty"`
	Progress    float64 `json:"progress"`
	Duration    float64 `json:"duration"`
	Remaining   float64 `json:"remaining"`
}

// ElementState is the sampled scale and opacity of one visual element
type ElementState struct {
	Name    string  `json:"name"`
	Scale   float64 `json:"scale"`
	Opacity float64 `json:"opacity"`
}

// Countdown is the session timer in whole seconds
type Countdown struct {
	Total     int    `json:"total"`
	Remaining int    `json:"remaining"`
	Elapsed   int    `json:"elapsed"`
	Display   string `json:"display"` // m:ss
	// IntroRemaining is set while the session waits for the clocks to start
	IntroRemaining float64 `json:"intro_remaining,omitempty"`
}

// Meta contains additional frame metadata
type Meta struct {
	Sequence int64 `json:"sequence"`
}

// FormatTimestamp renders t the way frames carry it
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Time parses the frame timestamp
func (f *Frame) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, f.Timestamp)
}
