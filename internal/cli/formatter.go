package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/rainbowrelax/relax-cli/internal/models"
)

func renderBar(score float64, width int) string {
	filled := int(score * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// frameLine renders a frame as a single terminal status line
func frameLine(f models.Frame) string {
	switch f.State {
	case "intro":
		return fmt.Sprintf("  Get ready...  %4.1fs", f.Countdown.IntroRemaining)
	case "completed":
		return fmt.Sprintf("  ✓ Done  %d cycles", f.Cycle.Completed)
	}

	scale := 0.0
	if len(f.Elements) > 0 {
		scale = f.Elements[0].Scale
	}
	line := fmt.Sprintf("  %-8s %s  %-34s %5s  cycle %d",
		f.Phase.Name,
		renderBar(phaseFraction(f.Phase), 20),
		f.Phase.Instruction,
		f.Countdown.Display,
		f.Cycle.Completed+1,
	)
	if len(f.Elements) > 0 {
		line += fmt.Sprintf("  scale %.2f", scale)
	}
	if f.State == "paused" {
		line += "  ⏸ paused"
	}
	return line
}

// phaseFraction is how far into its phase a frame is, in [0,1]
func phaseFraction(p models.Phase) float64 {
	if p.Duration <= 0 {
		return 0
	}
	return p.Progress / p.Duration
}

// terminalRenderer redraws a status line whenever what it shows changes
type terminalRenderer struct {
	out  io.Writer
	last string
}

func newTerminalRenderer(out io.Writer) *terminalRenderer {
	return &terminalRenderer{out: out}
}

func (r *terminalRenderer) Render(f models.Frame) {
	key := fmt.Sprintf("%s|%s|%s|%d", f.State, f.Phase.Name, f.Countdown.Display, int(phaseFraction(f.Phase)*20))
	if f.State == "intro" {
		key = fmt.Sprintf("intro|%.1f", f.Countdown.IntroRemaining)
	}
	if key == r.last {
		return
	}
	r.last = key
	// pad to clear leftovers of a longer previous line
	fmt.Fprintf(r.out, "\r%-100s", frameLine(f))
}

// Finish moves the cursor past the status line
func (r *terminalRenderer) Finish() {
	if r.last != "" {
		fmt.Fprintln(r.out)
	}
}
