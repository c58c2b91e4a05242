package cli

import (
	"context"
	"errors"
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/rainbowrelax/relax-cli/internal/audio"
	"github.com/rainbowrelax/relax-cli/internal/encoding"
	"github.com/rainbowrelax/relax-cli/internal/metrics"
	"github.com/rainbowrelax/relax-cli/internal/models"
	"github.com/rainbowrelax/relax-cli/internal/report"
	"github.com/rainbowrelax/relax-cli/internal/server"
	"github.com/rainbowrelax/relax-cli/internal/session"
	"github.com/rainbowrelax/relax-cli/internal/transport"
)

var (
	serveAutostart bool
	serveNoUDP     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the breathing widget API",
	Long: `Starts the HTTP app shell the browser widget talks to. It lists exercises,
hosts one session at a time and streams its frames on /breathe (WebSocket)
and /breathe/sse. Frames also go out over UDP on port+2.

Mutating requests need the bearer token. When binding to a non-loopback
host without --token, a token is generated and printed.

Examples:
  relax serve
  relax serve --autostart --exercise box --minutes 10
  relax serve --host 0.0.0.0 --token mysecrettoken
  relax serve --encoding protobuf`,
	RunE: runServe,
}

func init() {
	addSessionFlags(serveCmd.Flags())
	addNetworkFlags(serveCmd.Flags())
	serveCmd.Flags().String("token", "", "Static bearer token for mutating requests")
	serveCmd.Flags().BoolVar(&serveAutostart, "autostart", false, "Start a session with --exercise and --minutes right away")
	serveCmd.Flags().BoolVar(&serveNoUDP, "no-udp", false, "Do not start the UDP transport")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := appConfig

	registry, err := loadRegistry(cfg)
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

	token := cfg.Token
	if token == "" && !isLoopback(cfg.Host) {
		generated, err := generateToken()
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}
		token = generated
	}

	reports, err := reportWriter(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer reports.Close()

	reg := metrics.SetupPrometheus()
	m := metrics.NewManager("relax", reg)
	director := audio.NewDirector(audio.LogPlayer{})
	controller := session.NewController(session.ControllerConfig{
		IntroDelay:   cfg.IntroDelay,
		Metrics:      m,
		Reports:      reports,
		Affirmations: report.NewAffirmations(report.DefaultAffirmations, nil),
		OnSession:    func(s *session.Session) { director.Attach(s) },
	})
	defer controller.Close()

	ctx, cancel := signalContext(cmd.Context(), cmd)
	defer cancel()

	frames := make(chan models.Frame, 100)
	dispatcher := transport.NewDispatcher(frames, 100)
	dispatcher.OnDrop(func(n int) { m.CounterFramesDropped.Add(float64(n)) })

	encoder := encoding.NewEncoder(format)
	ws := transport.NewWebSocketServer(cfg.Host, cfg.Port, encoder)
	ws.OnCommand(controller.Do)
	sse := transport.NewSSEServer(cfg.Host, cfg.Port, encoder)

	app := server.NewServer(server.Config{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Token:          token,
		DefaultMinutes: cfg.Minutes,
		Version:        Version,
	}, registry, controller, m, reg)
	app.Mount(transport.WebSocketPath, ws.Handler())
	app.Mount(transport.SSEPath, sse.Handler())

	go ws.BroadcastFromChannel(ctx, dispatcher.Subscribe())
	go sse.BroadcastFromChannel(ctx, dispatcher.Subscribe())

	var udp *transport.UDPServer
	if !serveNoUDP {
		udp = transport.NewUDPServer(cfg.Host, cfg.Port+2, encoder)
		go func() {
			if err := udp.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("UDP server: %s", err)
			}
		}()
		go udp.BroadcastFromChannel(ctx, dispatcher.Subscribe())
	}

	go dispatcher.Run(ctx)
	go func() {
		if err := controller.Run(ctx, interval, frames); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("tick loop: %s", err)
		}
	}()

	if serveAutostart {
		def, err := resolveExercise(cmd, registry, cfg.Exercise)
		if err != nil {
			return err
		}
		if _, err := controller.Start(def, cfg.Minutes); err != nil {
			return err
		}
	}

	printServeBanner(cmd, app.GetAddress(), token, format, udp)

	// blocks until ctx is cancelled
	if err := app.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}

	var closeErr error
	closeErr = multierr.Append(closeErr, ws.Shutdown())
	closeErr = multierr.Append(closeErr, sse.Shutdown())
	fmt.Fprintln(cmd.ErrOrStderr(), "\n✓ Shutdown complete")
	return closeErr
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func printServeBanner(cmd *cobra.Command, address, token string, format encoding.Format, udp *transport.UDPServer) {
	out := cmd.ErrOrStderr()

	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "╔═══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(out, "║                  🌬  Relax Server Started                      ║")
	fmt.Fprintln(out, "╚═══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(out, "")
	fmt.Fprintf(out, "  API:        %s/v1\n", address)
	fmt.Fprintf(out, "  WebSocket:  ws%s%s\n", address[len("http"):], transport.WebSocketPath)
	fmt.Fprintf(out, "  SSE:        %s%s\n", address, transport.SSEPath)
	if udp != nil {
		fmt.Fprintf(out, "  UDP:        %s\n", udp.GetAddress())
	}
	fmt.Fprintf(out, "  Metrics:    %s/metrics\n", address)
	fmt.Fprintf(out, "  Encoding:   %s\n", format)
	if token != "" {
		fmt.Fprintf(out, "  Token:      %s\n", token)
	} else {
		fmt.Fprintln(out, "  Token:      (none, loopback only)")
	}
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "  Start a session:")
	if token != "" {
		fmt.Fprintf(out, "    curl -X POST -H 'Authorization: Bearer %s' \\\n", token)
	} else {
		fmt.Fprintln(out, "    curl -X POST \\")
	}
	fmt.Fprintf(out, "      -d '{\"exercise\":\"box\",\"minutes\":5}' %s/v1/session\n", address)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "  Press Ctrl+C to stop")
	fmt.Fprintln(out, "")
}
