package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestCycleClockWraparound(t *testing.T) {
	clock := NewManualClock(epoch)
	c := NewCycleClock(clock)
	require.True(t, c.Start(19))

	clock.AdvanceSeconds(19)
	assert.InDelta(t, 0.0, c.Tick(), epsilon)

	clock.Set(epoch)
	clock.AdvanceSeconds(25)
	assert.InDelta(t, 6.0, c.Tick(), epsilon)
}

func TestCycleClockPausePreservesPosition(t *testing.T) {
	clock := NewManualClock(epoch)
	c := NewCycleClock(clock)
	require.True(t, c.Start(19))

	clock.AdvanceSeconds(5)
	c.Pause()
	clock.AdvanceSeconds(100)
	assert.InDelta(t, 5.0, c.Tick(), epsilon)

	c.Resume()
	clock.AdvanceSeconds(2)
	assert.InDelta(t, 7.0, c.Tick(), epsilon)
}

func TestCycleClockDoublePauseIsIdempotent(t *testing.T) {
	run := func(pauses int) float64 {
		clock := NewManualClock(epoch)
		c := NewCycleClock(clock)
		require.True(t, c.Start(19))

		clock.AdvanceSeconds(3)
		for i := 0; i < pauses; i++ {
			c.Pause()
			clock.AdvanceSeconds(1)
		}
		c.Resume()
		c.Resume()
		clock.AdvanceSeconds(4)
		return c.Tick()
	}

	once := run(1)
	assert.InDelta(t, 7.0, once, epsilon)
	assert.InDelta(t, once, run(2), epsilon)
}

func TestCycleClockTickDoesNotMutate(t *testing.T) {
	clock := NewManualClock(epoch)
	c := NewCycleClock(clock)
	require.True(t, c.Start(10))

	for i := 0; i < 100; i++ {
		clock.Advance(16 * time.Millisecond)
		c.Tick()
	}
	assert.InDelta(t, 1.6, c.Tick(), 1e-6)
}

func TestCycleClockRefusesInvalidCycle(t *testing.T) {
	clock := NewManualClock(epoch)
	c := NewCycleClock(clock)

	assert.False(t, c.Start(0))
	assert.False(t, c.Start(-3))
	assert.False(t, c.Running())

	clock.AdvanceSeconds(5)
	assert.Equal(t, 0.0, c.Tick(), "tick before a successful start")
}

func TestCycleClockClearForgetsRun(t *testing.T) {
	clock := NewManualClock(epoch)
	c := NewCycleClock(clock)
	require.True(t, c.Start(19))
	clock.AdvanceSeconds(7)

	c.Clear()
	assert.False(t, c.Start(0), "refused start after clear")

	clock.AdvanceSeconds(1)
	assert.Equal(t, 0.0, c.Tick())
	assert.Equal(t, 0, c.CompletedCycles(clock.Now()))
	assert.Equal(t, 0.0, c.CycleDuration())

	c.Resume()
	assert.False(t, c.Running(), "a cleared clock cannot resume")
}

func TestCycleClockReset(t *testing.T) {
	clock := NewManualClock(epoch)
	c := NewCycleClock(clock)
	require.True(t, c.Start(19))

	clock.AdvanceSeconds(8)
	assert.Equal(t, 0.0, c.Reset())
	assert.False(t, c.Running())

	clock.AdvanceSeconds(3)
	assert.Equal(t, 0.0, c.Tick())

	c.Resume()
	clock.AdvanceSeconds(2)
	assert.InDelta(t, 2.0, c.Tick(), epsilon)
}

func TestCycleClockClockGoingBackwards(t *testing.T) {
	clock := NewManualClock(epoch)
	c := NewCycleClock(clock)
	require.True(t, c.Start(19))

	clock.Set(epoch.Add(-time.Second))
	assert.Equal(t, 0.0, c.Tick())
}

func TestCycleClockCompletedCycles(t *testing.T) {
	clock := NewManualClock(epoch)
	c := NewCycleClock(clock)
	require.True(t, c.Start(19))

	now := clock.AdvanceSeconds(30)
	assert.Equal(t, 1, c.CompletedCycles(now))

	c.Pause()
	now = clock.AdvanceSeconds(100)
	assert.Equal(t, 1, c.CompletedCycles(now))

	c.Resume()
	now = clock.AdvanceSeconds(8)
	assert.Equal(t, 2, c.CompletedCycles(now))
}

func TestWrap(t *testing.T) {
	assert.Equal(t, 0.0, wrap(19, 19))
	assert.InDelta(t, 6.0, wrap(25, 19), epsilon)
	assert.InDelta(t, 18.0, wrap(-1, 19), epsilon)
}
