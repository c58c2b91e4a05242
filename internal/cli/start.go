package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/rainbowrelax/relax-cli/internal/audio"
	"github.com/rainbowrelax/relax-cli/internal/encoding"
	"github.com/rainbowrelax/relax-cli/internal/metrics"
	"github.com/rainbowrelax/relax-cli/internal/models"
	"github.com/rainbowrelax/relax-cli/internal/recorder"
	"github.com/rainbowrelax/relax-cli/internal/report"
	"github.com/rainbowrelax/relax-cli/internal/session"
	"github.com/rainbowrelax/relax-cli/internal/transport"
)

var (
	startOut    string
	startNoBell bool
	startNoNet  bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run a breathing session in the terminal",
	Long: `Runs a breathing session, renders it in the terminal and broadcasts every
frame over WebSocket (port), SSE (port+1) and UDP (port+2).

Type a command and press enter while the session runs:
  p pause   r resume   t toggle   x reset   q quit`,
	RunE: runStart,
}

func init() {
	addSessionFlags(startCmd.Flags())
	addNetworkFlags(startCmd.Flags())
	startCmd.Flags().StringVar(&startOut, "out", "", "Record frames to file")
	startCmd.Flags().BoolVar(&startNoBell, "no-bell", false, "Do not ring the terminal bell on phase cues")
	startCmd.Flags().BoolVar(&startNoNet, "offline", false, "Do not start the network transports")
}

func addSessionFlags(fs *pflag.FlagSet) {
	fs.String("exercise", "4-7-8", "Exercise to run")
	fs.Int("minutes", 5, "Session length in minutes")
	fs.String("rate", "30hz", "Frame rate")
	fs.Duration("intro", defaultIntro, "Delay before the clocks start")
	fs.String("report-out", "", "Directory to write session reports to")
	fs.String("report-format", "json", "Report format: json|ndjson|yaml")
}

func addNetworkFlags(fs *pflag.FlagSet) {
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.Int("port", 8787, "Port to listen on")
	fs.String("encoding", "json", "Frame encoding: json|protobuf")
}

// controlKeys maps the single-letter terminal commands to session actions
var controlKeys = map[string]string{
	"p": "pause",
	"r": "resume",
	"t": "toggle",
	"x": "reset",
}

func runStart(cmd *cobra.Command, args []string) error {
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
	format, err := encoding.ParseFormat(cfg.Encoding)
	if err != nil {
		return err
	}

	reports, captured, err := capturingReports(cfg)
	if err != nil {
		return err
	}
	defer reports.Close()

	var player audio.Player = audio.LogPlayer{}
	if !startNoBell {
		player = audio.MultiPlayer{player, audio.NewBellPlayer(cmd.ErrOrStderr())}
	}
	director := audio.NewDirector(player)

	m := metrics.NewDetachedManager()
	controller := session.NewController(session.ControllerConfig{
		IntroDelay:   cfg.IntroDelay,
		Metrics:      m,
		Reports:      reports,
		Affirmations: report.NewAffirmations(report.DefaultAffirmations, nil),
		OnSession:    func(s *session.Session) { director.Attach(s) },
	})

	ctx, cancel := signalContext(cmd.Context(), cmd)
	defer cancel()

	frames := make(chan models.Frame, 100)
	dispatcher := transport.NewDispatcher(frames, 100)
	dispatcher.OnDrop(func(n int) { m.CounterFramesDropped.Add(float64(n)) })

	out := cmd.OutOrStdout()
	var wg sync.WaitGroup

	if !startNoNet {
		encoder := encoding.NewEncoder(format)
		wsServer := transport.NewWebSocketServer(cfg.Host, cfg.Port, encoder)
		wsServer.OnCommand(controller.Do)
		sse := transport.NewSSEServer(cfg.Host, cfg.Port+1, encoder)
		udp := transport.NewUDPServer(cfg.Host, cfg.Port+2, encoder)

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
		go func() {
			if err := udp.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("UDP server: %s", err)
			}
		}()

		go wsServer.BroadcastFromChannel(ctx, dispatcher.Subscribe())
		go sse.BroadcastFromChannel(ctx, dispatcher.Subscribe())
		go udp.BroadcastFromChannel(ctx, dispatcher.Subscribe())

		fmt.Fprintf(out, "🌬  Relax session\n\n")
		fmt.Fprintf(out, "Exercise:     %s (%s)\n", def.Name, def.ID)
		fmt.Fprintf(out, "Minutes:      %d\n", cfg.Minutes)
		fmt.Fprintf(out, "WebSocket:    %s\n", wsServer.GetAddress())
		fmt.Fprintf(out, "SSE:          %s\n", sse.GetAddress())
		fmt.Fprintf(out, "UDP:          %s\n", udp.GetAddress())
		fmt.Fprintf(out, "Encoding:     %s\n", format)
	} else {
		fmt.Fprintf(out, "🌬  %s, %d minutes\n", def.Name, cfg.Minutes)
	}

	if startOut != "" {
		rec, err := recorder.NewRecorder(startOut)
		if err != nil {
			return err
		}
		recFrames := dispatcher.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rec.RecordFromChannel(ctx, recFrames, nil); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("recorder: %s", err)
			}
		}()
		fmt.Fprintf(out, "Recording:    %s\n", startOut)
	}
	fmt.Fprintf(out, "\np pause · r resume · t toggle · x reset · q quit\n\n")

	renderer := newTerminalRenderer(out)
	if !globalOpts.Quiet {
		rendered := dispatcher.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range rendered {
				renderer.Render(f)
			}
		}()
	}

	go dispatcher.Run(ctx)
	go readControls(ctx, cmd.InOrStdin(), controller, cancel)

	sess, err := controller.Start(def, cfg.Minutes)
	if err != nil {
		return err
	}
	go func() {
		select {
		case <-sess.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	runErr := controller.Run(ctx, interval, frames)
	closeErr := controller.Close()
	wg.Wait()
	renderer.Finish()

	if r := captured.Last(); r != nil {
		fmt.Fprintln(out)
		if r.Affirmation != "" {
			fmt.Fprintf(out, "✨ %s\n\n", r.Affirmation)
		}
		if err := report.NewStreamWriter(out, cfg.ReportFormat).Write(r); err != nil {
			closeErr = multierr.Append(closeErr, err)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return multierr.Append(runErr, closeErr)
	}
	return closeErr
}

// readControls applies terminal commands until input ends or ctx is done
func readControls(ctx context.Context, in io.Reader, controller *session.Controller, quit func()) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		key := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if key == "" {
			continue
		}
		if key == "q" {
			quit()
			return
		}
		action, ok := controlKeys[key]
		if !ok {
			action = key
		}
		if err := controller.Do(action); err != nil {
			log.Warnf("%s", err)
		}
	}
}

// reportCapture remembers the last report written so it can be printed once
// the terminal is free again
type reportCapture struct {
	mu   sync.Mutex
	last *models.SessionReport
}

func (c *reportCapture) Write(r *models.SessionReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *r
	c.last = &copied
	return nil
}

func (c *reportCapture) Close() error { return nil }

func (c *reportCapture) Last() *models.SessionReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
