package timeline

import (
	"math"
	"time"

	log "github.com/sirupsen/logrus"
)

// CycleClock tracks the position within a repeating cycle. Elapsed time is
// folded into the accumulated position only when the clock pauses, so a
// tick never mutates state and any number of ticks between two pauses yield
// the same result for the same instant.
//
// A CycleClock is owned by a single session and is not safe for concurrent
// use.
type CycleClock struct {
	clock Clock
	cycle float64

	// accumulated is kept modulo cycle; total is not and feeds CompletedCycles
	accumulated float64
	total       float64
	runStart    time.Time
	running     bool
	started     bool
}

// NewCycleClock creates a stopped clock reading time from clock
func NewCycleClock(clock Clock) *CycleClock {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CycleClock{clock: clock}
}

// Start begins a new run of a cycle lasting cycleSeconds. Non-positive or
// non-finite durations are refused and leave the clock untouched.
func (c *CycleClock) Start(cycleSeconds float64) bool {
	return c.StartAt(cycleSeconds, c.clock.Now())
}

func (c *CycleClock) StartAt(cycleSeconds float64, now time.Time) bool {
	if !(cycleSeconds > 0) || math.IsInf(cycleSeconds, 0) {
		log.WithField("cycle_seconds", cycleSeconds).Warn("refusing to start cycle clock with invalid duration")
		return false
	}
	c.cycle = cycleSeconds
	c.accumulated = 0
	c.total = 0
	c.runStart = now
	c.running = true
	c.started = true
	return true
}

// Tick returns the current position in [0, cycle). It is 0 before Start.
func (c *CycleClock) Tick() float64 {
	return c.TickAt(c.clock.Now())
}

func (c *CycleClock) TickAt(now time.Time) float64 {
	if !c.started {
		return 0
	}
	if !c.running {
		return c.accumulated
	}
	return wrap(c.accumulated+c.sinceRunStart(now), c.cycle)
}

// Pause folds the running segment into the accumulated position. Pausing a
// paused clock does nothing.
func (c *CycleClock) Pause() {
	c.PauseAt(c.clock.Now())
}

func (c *CycleClock) PauseAt(now time.Time) {
	if !c.running {
		return
	}
	elapsed := c.sinceRunStart(now)
	c.accumulated = wrap(c.accumulated+elapsed, c.cycle)
	c.total += elapsed
	c.runStart = time.Time{}
	c.running = false
}

// Resume continues from the accumulated position. Resuming a running or
// never started clock does nothing.
func (c *CycleClock) Resume() {
	c.ResumeAt(c.clock.Now())
}

func (c *CycleClock) ResumeAt(now time.Time) {
	if c.running || !c.started {
		return
	}
	c.runStart = now
	c.running = true
}

// Reset stops the clock at position 0 and returns that position. The cycle
// duration is kept so Resume starts a fresh run of the same cycle.
func (c *CycleClock) Reset() float64 {
	c.accumulated = 0
	c.total = 0
	c.runStart = time.Time{}
	c.running = false
	return 0
}

// Clear forgets the cycle and any accumulated time, as if the clock had
// never been started. Tick returns 0 until the next successful Start.
func (c *CycleClock) Clear() {
	c.Reset()
	c.cycle = 0
	c.started = false
}

// Running reports whether time is currently accumulating
func (c *CycleClock) Running() bool { return c.running }

// CycleDuration returns the duration the clock was started with
func (c *CycleClock) CycleDuration() float64 { return c.cycle }

// CompletedCycles returns how many full cycles have elapsed at now
func (c *CycleClock) CompletedCycles(now time.Time) int {
	if !c.started || c.cycle <= 0 {
		return 0
	}
	total := c.total
	if c.running {
		total += c.sinceRunStart(now)
	}
	return int(math.Floor(total / c.cycle))
}

func (c *CycleClock) sinceRunStart(now time.Time) float64 {
	d := now.Sub(c.runStart).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

// wrap returns v modulo m in [0, m)
func wrap(v, m float64) float64 {
	r := math.Mod(v, m)
	if r < 0 {
		r += m
	}
	if r >= m {
		r = 0
	}
	return r
}
