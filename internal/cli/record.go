package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/rainbowrelax/relax-cli/internal/exercise"
	"github.com/rainbowrelax/relax-cli/internal/models"
	"github.com/rainbowrelax/relax-cli/internal/recorder"
	"github.com/rainbowrelax/relax-cli/internal/session"
	"github.com/rainbowrelax/relax-cli/internal/timeline"
)

var (
	recordOut  string
	recordFast bool
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a session's frames to a file",
	Long: `Runs a session and records every frame to an NDJSON file that replay can
stream again later. With --fast the session runs on a simulated clock and
the file is written immediately; timestamps stay as if it ran in real time.

Examples:
  relax record --out box.ndjson --exercise box --minutes 2
  relax record --out demo.ndjson --fast --rate 10hz`,
	RunE: runRecord,
}

func init() {
	addSessionFlags(recordCmd.Flags())
	recordCmd.Flags().StringVar(&recordOut, "out", "", "Output file (required)")
	recordCmd.Flags().BoolVar(&recordFast, "fast", false, "Simulate the clock instead of waiting in real time")
	recordCmd.MarkFlagRequired("out")
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg := appConfig

	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	def, err := resolveExercise(cmd, registry, cfg.Exercise)
	if err != nil {
		return err
	}
	interval, err := cfg.TickInterval()
	if err != nil {
		return err
	}

	rec, err := recorder.NewRecorder(recordOut)
	if err != nil {
		return fmt.Errorf("failed to create recorder: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "📼 Recording Session Started\n\n")
	fmt.Fprintf(out, "Exercise:   %s (%s)\n", def.Name, def.ID)
	fmt.Fprintf(out, "Minutes:    %d\n", cfg.Minutes)
	fmt.Fprintf(out, "Output:     %s\n", recordOut)
	fmt.Fprintf(out, "Clock:      %s\n\n", map[bool]string{true: "simulated", false: "real time"}[recordFast])

	if recordFast {
		err = recordSimulated(rec, def, cfg.Minutes, cfg.IntroDelay, interval)
		err = multierr.Append(err, rec.Close())
	} else {
		err = recordRealtime(cmd, rec, def, cfg.Minutes, cfg.IntroDelay, interval)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n✅ Recording complete: %s (%d frames)\n", recordOut, rec.Count())
	return nil
}

// recordSimulated writes every frame of a full session run on a manual clock
func recordSimulated(rec *recorder.Recorder, def *exercise.Definition, minutes int, intro, interval time.Duration) error {
	clock := timeline.NewManualClock(time.Now().UTC())
	sess := session.New(def, minutes, session.Options{Clock: clock, IntroDelay: intro})
	sess.Start()
	defer sess.Close()

	for {
		frame := sess.Tick()
		if err := rec.Record(frame); err != nil {
			return err
		}
		if sess.State().Terminal() {
			return nil
		}
		clock.Advance(interval)
	}
}

func recordRealtime(cmd *cobra.Command, rec *recorder.Recorder, def *exercise.Definition, minutes int, intro, interval time.Duration) error {
	controller := session.NewController(session.ControllerConfig{IntroDelay: intro})

	ctx, cancel := signalContext(cmd.Context(), cmd)
	defer cancel()

	out := cmd.OutOrStdout()
	frames := make(chan models.Frame, 100)
	recorded := make(chan error, 1)
	go func() {
		// drains frames until the tick loop closes the channel
		recorded <- rec.RecordFromChannel(context.Background(), frames, func() {
			if n := rec.Count(); n%100 == 0 {
				fmt.Fprintf(out, "\rRecorded %d frames...", n)
			}
		})
	}()

	sess, err := controller.Start(def, minutes)
	if err != nil {
		close(frames)
		return multierr.Append(err, <-recorded)
	}
	go func() {
		select {
		case <-sess.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	runErr := controller.Run(ctx, interval, frames)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Errorf("tick loop: %s", runErr)
	} else {
		runErr = nil
	}

	close(frames)
	return multierr.Combine(runErr, <-recorded, controller.Close())
}
