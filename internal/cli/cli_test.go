package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainbowrelax/relax-cli/internal/exercise"
	"github.com/rainbowrelax/relax-cli/internal/models"
	"github.com/rainbowrelax/relax-cli/internal/recorder"
	"github.com/rainbowrelax/relax-cli/internal/session"
	"github.com/rainbowrelax/relax-cli/internal/timeline"
)

// execute runs the root command in-process. Flags keep their values between
// runs, so every test passes the flags it depends on.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestListExercises(t *testing.T) {
	out, err := execute(t, "list-exercises", "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, "Available exercises:")
	for _, id := range []string{"4-7-8", "box"} {
		assert.Contains(t, out, id)
	}
}

func TestDescribe(t *testing.T) {
	out, err := execute(t, "describe", "box-breathing", "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, "Exercise: Box Breathing (box)")
	assert.Contains(t, out, "Cycle: 16.00s")
	assert.Contains(t, out, "hold-empty")
	assert.Contains(t, out, "square")
}

func TestDescribeUnknown(t *testing.T) {
	_, err := execute(t, "describe", "does-not-exist", "--log-level", "error")
	require.Error(t, err)
	assert.ErrorIs(t, err, exercise.ErrNotFound)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Relax CLI v"+Version)
}

func TestSimulateCompletesSession(t *testing.T) {
	out, err := execute(t, "simulate",
		"--exercise", "box", "--minutes", "1", "--intro", "0s",
		"--step", "100ms", "--pause-at", "0", "--sample", "0",
		"--report-format", "json", "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, "Simulating Box Breathing (box) for 1 minutes")
	assert.Contains(t, out, "idle -> running")
	assert.Contains(t, out, "running -> completed")
	assert.Contains(t, out, "[00:04.000] cycle 1   hold")
	assert.Contains(t, out, `"completed": true`)
	assert.Contains(t, out, `"elapsed_seconds": 60`)
	assert.Contains(t, out, `"completed_cycles": 3`)
}

func TestSimulatePauseDoesNotCount(t *testing.T) {
	out, err := execute(t, "simulate",
		"--exercise", "box", "--minutes", "1", "--intro", "0s",
		"--step", "100ms", "--pause-at", "10s", "--pause-for", "30s", "--sample", "0",
		"--report-format", "json", "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, "running -> paused")
	assert.Contains(t, out, "paused -> running")
	assert.Contains(t, out, `"pauses": 1`)
	assert.Contains(t, out, `"elapsed_seconds": 60`)
	assert.Contains(t, out, `"completed": true`)
}

func TestSimulateUnknownExerciseFallsBack(t *testing.T) {
	out, err := execute(t, "simulate",
		"--exercise", "nope", "--minutes", "1", "--intro", "0s",
		"--step", "1s", "--pause-at", "0", "--sample", "0",
		"--report-format", "yaml", "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, `exercise "nope" is not available, using 4-7-8`)
	assert.Regexp(t, `exercise: "?4-7-8"?`, out)
	assert.Contains(t, out, "completed: true")
}

func TestInvalidConfiguration(t *testing.T) {
	_, err := execute(t, "simulate", "--minutes", "0", "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	// restore for later tests sharing the flag set
	_, err = execute(t, "simulate", "--minutes", "1", "--intro", "0s", "--step", "1s", "--log-level", "error")
	require.NoError(t, err)
}

func TestRecordFast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "box.ndjson")
	out, err := execute(t, "record",
		"--out", path, "--fast",
		"--exercise", "box", "--minutes", "1", "--intro", "0s", "--rate", "10hz",
		"--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Recording complete")

	summary, err := recorder.NewReplayer(path, 1, false).Summarize()
	require.NoError(t, err)

	assert.Equal(t, 601, summary.Frames)
	assert.Equal(t, 60*time.Second, summary.Duration)
	assert.Equal(t, "box", summary.First.Session.Exercise)
	assert.Equal(t, "running", summary.First.State)
	assert.Equal(t, "completed", summary.Last.State)
	assert.Equal(t, "0:00", summary.Last.Countdown.Display)
}

func TestReadControls(t *testing.T) {
	clock := timeline.NewManualClock(time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC))
	controller := session.NewController(session.ControllerConfig{Clock: clock})
	registry, err := exercise.NewBuiltinRegistry()
	require.NoError(t, err)
	def, err := registry.Get("box")
	require.NoError(t, err)
	sess, err := controller.Start(def, 1)
	require.NoError(t, err)

	quit := false
	readControls(context.Background(), strings.NewReader("p\n\nbogus\nq\nr\n"), controller, func() { quit = true })

	assert.True(t, quit)
	// input after q is not read
	assert.Equal(t, session.StatePaused, sess.State())
}

func TestFrameLine(t *testing.T) {
	f := models.Frame{
		State:     "running",
		Phase:     models.Phase{Name: "inhale", Instruction: "Breathe in", Progress: 2, Duration: 4},
		Countdown: models.Countdown{Display: "4:59"},
		Elements:  []models.ElementState{{Name: "circle", Scale: 2.25}},
	}
	line := frameLine(f)
	assert.Contains(t, line, "inhale")
	assert.Contains(t, line, renderBar(0.5, 20))
	assert.Contains(t, line, "4:59")
	assert.Contains(t, line, "scale 2.25")
	assert.NotContains(t, line, "paused")

	f.State = "paused"
	assert.Contains(t, frameLine(f), "paused")

	intro := frameLine(models.Frame{State: "intro", Countdown: models.Countdown{IntroRemaining: 3.5}})
	assert.Contains(t, intro, "Get ready")
	assert.Contains(t, intro, "3.5s")
}

func TestTerminalRendererSkipsUnchanged(t *testing.T) {
	var out bytes.Buffer
	r := newTerminalRenderer(&out)
	f := models.Frame{State: "running", Phase: models.Phase{Name: "inhale"}, Countdown: models.Countdown{Display: "1:00"}}

	r.Render(f)
	first := out.Len()
	r.Render(f)
	assert.Equal(t, first, out.Len())

	f.Countdown.Display = "0:59"
	r.Render(f)
	assert.Greater(t, out.Len(), first)

	r.Finish()
	assert.True(t, strings.HasSuffix(out.String(), "\n"))
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0, "░░░░"},
		{0.5, "██░░"},
		{1, "████"},
		{1.5, "████"},
		{-1, "░░░░"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, renderBar(tt.score, 4), "score %v", tt.score)
	}
}

func TestIsLoopback(t *testing.T) {
	assert.True(t, isLoopback("127.0.0.1"))
	assert.True(t, isLoopback("::1"))
	assert.True(t, isLoopback("localhost"))
	assert.False(t, isLoopback("0.0.0.0"))
	assert.False(t, isLoopback("192.168.1.10"))
}

func TestGenerateToken(t *testing.T) {
	a, err := generateToken()
	require.NoError(t, err)
	b, err := generateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "rx_"))
	assert.Len(t, a, 3+32)
	assert.NotEqual(t, a, b)
}
