package cli

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rainbowrelax/relax-cli/internal/encoding"
	"github.com/rainbowrelax/relax-cli/internal/models"
	"github.com/rainbowrelax/relax-cli/internal/recorder"
	"github.com/rainbowrelax/relax-cli/internal/transport"
)

var (
	replayIn    string
	replaySpeed float64
	replayLoop  bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded session",
	Long: `Streams the frames of a recording made with record or start --out over
WebSocket (port) and SSE (port+1), honoring the recorded timing.

Examples:
  relax replay --in box.ndjson
  relax replay --in box.ndjson --speed 2.0 --loop`,
	RunE: runReplay,
}

func init() {
	addNetworkFlags(replayCmd.Flags())
	replayCmd.Flags().StringVar(&replayIn, "in", "", "Input file to replay (required)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayLoop, "loop", false, "Loop playback continuously")
	replayCmd.MarkFlagRequired("in")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg := appConfig

	rep := recorder.NewReplayer(replayIn, replaySpeed, replayLoop)
	summary, err := rep.Summarize()
	if err != nil {
		return fmt.Errorf("failed to read recording: %w", err)
	}
	format, err := encoding.ParseFormat(cfg.Encoding)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context(), cmd)
	defer cancel()

	frames := make(chan models.Frame, 100)
	dispatcher := transport.NewDispatcher(frames, 100)

	encoder := encoding.NewEncoder(format)
	wsServer := transport.NewWebSocketServer(cfg.Host, cfg.Port, encoder)
	sse := transport.NewSSEServer(cfg.Host, cfg.Port+1, encoder)

	go func() {
		if err := wsServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("WebSocket server: %s", err)
		}
	}()
	go func() {
		if err := sse.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("SSE server: %s", err)
		}
	}()
	go wsServer.BroadcastFromChannel(ctx, dispatcher.Subscribe())
	go sse.BroadcastFromChannel(ctx, dispatcher.Subscribe())

	renderer := newTerminalRenderer(cmd.OutOrStdout())
	rendered := make(chan struct{})
	if globalOpts.Quiet {
		close(rendered)
	} else {
		sub := dispatcher.Subscribe()
		go func() {
			defer close(rendered)
			for f := range sub {
				renderer.Render(f)
			}
		}()
	}
	go dispatcher.Run(ctx)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "▶️  Replay Session Started\n\n")
	fmt.Fprintf(out, "File:         %s\n", replayIn)
	fmt.Fprintf(out, "Frames:       %d\n", summary.Frames)
	fmt.Fprintf(out, "Exercise:     %s (%d minutes)\n", summary.First.Session.Exercise, summary.First.Session.Minutes)
	fmt.Fprintf(out, "Duration:     %s\n", summary.Duration)
	fmt.Fprintf(out, "Speed:        %.1fx\n", replaySpeed)
	fmt.Fprintf(out, "Loop:         %v\n", replayLoop)
	fmt.Fprintf(out, "WebSocket:    %s\n", wsServer.GetAddress())
	fmt.Fprintf(out, "SSE:          %s\n\n", sse.GetAddress())
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	replayErr := rep.Replay(ctx, frames)
	close(frames)
	<-rendered
	renderer.Finish()

	if replayErr != nil && !errors.Is(replayErr, context.Canceled) {
		return fmt.Errorf("replay error: %w", replayErr)
	}

	fmt.Fprintln(out, "\nReplay complete")
	return nil
}
