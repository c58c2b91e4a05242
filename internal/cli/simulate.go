package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rainbowrelax/relax-cli/internal/audio"
	"github.com/rainbowrelax/relax-cli/internal/report"
	"github.com/rainbowrelax/relax-cli/internal/session"
	"github.com/rainbowrelax/relax-cli/internal/timeline"
)

var (
	simulateStep     time.Duration
	simulatePauseAt  time.Duration
	simulatePauseFor time.Duration
	simulateSample   time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a session on a simulated clock and print its timeline",
	Long: `Runs a whole session instantly on a manual clock and prints every phase
transition, optional periodic samples and the final report. Useful for
checking exercise definitions.

Examples:
  relax simulate --exercise box --minutes 1
  relax simulate --pause-at 20s --pause-for 1m --sample 5s`,
	RunE: runSimulate,
}

func init() {
	addSessionFlags(simulateCmd.Flags())
	simulateCmd.Flags().DurationVar(&simulateStep, "step", 100*time.Millisecond, "Simulated time between ticks")
	simulateCmd.Flags().DurationVar(&simulatePauseAt, "pause-at", 0, "Pause after this much running time (0 disables)")
	simulateCmd.Flags().DurationVar(&simulatePauseFor, "pause-for", 30*time.Second, "How long the simulated pause lasts")
	simulateCmd.Flags().DurationVar(&simulateSample, "sample", 0, "Print a frame every interval of running time (0 disables)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if simulateStep <= 0 {
		return fmt.Errorf("--step must be positive, got %s", simulateStep)
	}

	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	def, err := resolveExercise(cmd, registry, cfg.Exercise)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := timeline.NewManualClock(start)
	sess := session.New(def, cfg.Minutes, session.Options{
		Clock:      clock,
		IntroDelay: cfg.IntroDelay,
	})
	detach := audio.NewDirector(audio.LogPlayer{}).Attach(sess)
	defer detach()

	stamp := func(at time.Time) string {
		d := at.Sub(start)
		return fmt.Sprintf("%02d:%06.3f", int(d.Minutes()), d.Seconds()-float64(int(d.Minutes())*60))
	}
	sess.PhaseChanges().Subscribe(func(pc session.PhaseChange) {
		fmt.Fprintf(out, "[%s] cycle %-3d %-8s %s\n", stamp(pc.At), pc.Cycle+1, pc.Phase.Name, pc.Phase.Instruction)
	})
	sess.StateChanges().Subscribe(func(sc session.StateChange) {
		fmt.Fprintf(out, "[%s] %s -> %s\n", stamp(sc.At), sc.From, sc.To)
	})

	fmt.Fprintf(out, "Simulating %s (%s) for %d minutes, cycle %.2fs\n\n",
		def.Name, def.ID, cfg.Minutes, def.CycleDurationSeconds)

	sess.Start()
	var running, nextSample time.Duration
	paused := false
	nextSample = simulateSample

	// generous bound in case a definition never completes
	limit := cfg.IntroDelay + time.Duration(cfg.Minutes)*time.Minute + simulatePauseFor + time.Minute
	for elapsed := time.Duration(0); elapsed <= limit; elapsed += simulateStep {
		clock.Advance(simulateStep)
		frame := sess.Tick()

		if frame.State == session.StateRunning.String() {
			running += simulateStep
		}
		if simulateSample > 0 && running >= nextSample && frame.State == session.StateRunning.String() {
			fmt.Fprintf(out, "[%s] %s\n", stamp(clock.Now()), frameLine(frame))
			nextSample += simulateSample
		}
		if simulatePauseAt > 0 && !paused && running >= simulatePauseAt {
			paused = true
			sess.Pause()
			clock.Advance(simulatePauseFor)
			sess.Resume()
		}
		if sess.State().Terminal() {
			break
		}
	}

	if !sess.State().Terminal() {
		sess.Close()
	}
	r := sess.Report()
	fmt.Fprintln(out)
	return report.NewStreamWriter(out, cfg.ReportFormat).Write(&r)
}
