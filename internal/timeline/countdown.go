package timeline

import (
	"fmt"
	"time"
)

// CountdownState is the lifecycle state of a CountdownTimer
type CountdownState int

const (
	CountdownIdle CountdownState = iota
	CountdownRunning
	CountdownPaused
	CountdownExpired
)

func (s CountdownState) String() string {
	switch s {
	case CountdownIdle:
		return "idle"
	case CountdownRunning:
		return "running"
	case CountdownPaused:
		return "paused"
	case CountdownExpired:
		return "expired"
	default:
		return fmt.Sprintf("CountdownState(%d)", int(s))
	}
}

// CountdownTimer counts a session down in whole seconds. Time shorter than a
// second is carried between ticks and across pause/resume, so ticks stay
// evenly spaced however often the timer is polled.
type CountdownTimer struct {
	clock Clock
	state CountdownState

	total     int
	remaining int
	elapsed   int

	// carry is running time not yet converted into a whole-second tick
	carry    time.Duration
	runStart time.Time
	// expiredAt is the instant remaining reached zero, however late the
	// tick that noticed it came
	expiredAt time.Time
}

// NewCountdownTimer creates an idle timer reading time from clock
func NewCountdownTimer(clock Clock) *CountdownTimer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CountdownTimer{clock: clock}
}

// Start sets remaining to totalSeconds and begins counting. A non-positive
// total expires the timer immediately.
func (t *CountdownTimer) Start(totalSeconds int) {
	t.StartAt(totalSeconds, t.clock.Now())
}

func (t *CountdownTimer) StartAt(totalSeconds int, now time.Time) {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	t.total = totalSeconds
	t.remaining = totalSeconds
	t.elapsed = 0
	t.carry = 0
	t.runStart = now
	t.expiredAt = time.Time{}
	t.state = CountdownRunning
	if t.remaining == 0 {
		t.state = CountdownExpired
		t.expiredAt = now
	}
}

// Reset reinitializes the timer exactly like Start
func (t *CountdownTimer) Reset(totalSeconds int) {
	t.StartAt(totalSeconds, t.clock.Now())
}

func (t *CountdownTimer) ResetAt(totalSeconds int, now time.Time) {
	t.StartAt(totalSeconds, now)
}

// Tick converts running time into whole-second ticks and returns how many
// ticks happened during this call.
func (t *CountdownTimer) Tick() int {
	return t.TickAt(t.clock.Now())
}

func (t *CountdownTimer) TickAt(now time.Time) int {
	if t.state != CountdownRunning {
		return 0
	}

	run := t.carry
	if d := now.Sub(t.runStart); d > 0 {
		run += d
	}
	t.runStart = now

	whole := int(run / time.Second)
	t.carry = run - time.Duration(whole)*time.Second

	if whole >= t.remaining {
		overshoot := run - time.Duration(t.remaining)*time.Second
		t.expiredAt = now.Add(-overshoot)
		whole = t.remaining
	}
	t.elapsed += whole
	t.remaining -= whole

	if t.remaining == 0 {
		t.state = CountdownExpired
		t.carry = 0
	}
	return whole
}

// Pause stops counting. Ticks owed up to now are applied first, and the
// sub-second remainder is kept for Resume.
func (t *CountdownTimer) Pause() {
	t.PauseAt(t.clock.Now())
}

func (t *CountdownTimer) PauseAt(now time.Time) {
	if t.state != CountdownRunning {
		return
	}
	t.TickAt(now)
	if t.state == CountdownRunning {
		t.state = CountdownPaused
	}
}

// Resume continues counting from where Pause left off
func (t *CountdownTimer) Resume() {
	t.ResumeAt(t.clock.Now())
}

func (t *CountdownTimer) ResumeAt(now time.Time) {
	if t.state != CountdownPaused {
		return
	}
	t.runStart = now
	t.state = CountdownRunning
}

func (t *CountdownTimer) State() CountdownState { return t.state }

// ExpiredAt returns the instant the countdown reached zero, or the zero time
// while it has not expired
func (t *CountdownTimer) ExpiredAt() time.Time { return t.expiredAt }
func (t *CountdownTimer) Total() int           { return t.total }
func (t *CountdownTimer) Remaining() int       { return t.remaining }
func (t *CountdownTimer) Elapsed() int         { return t.elapsed }

// FormatClock renders seconds as m:ss
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
