package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime/pprof"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/rainbowrelax/relax-cli/internal/config"
	"github.com/rainbowrelax/relax-cli/internal/logging"
)

var (
	// appConfig is resolved before every command runs
	appConfig  *config.Config
	logCloser  io.Closer
	cpuProfile *os.File
)

var rootCmd = &cobra.Command{
	Use:   "relax",
	Short: "Relax CLI - guided breathing sessions for the terminal and the web widget",
	Long: `Relax runs timed breathing exercises (4-7-8, box breathing, ...).

A session drives a repeating cycle of phases, a countdown of whole minutes
and per-element animation samples. Frames are rendered in the terminal and
broadcast over WebSocket, SSE and UDP so a browser widget can follow along.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globalOpts.ConfigFile, "config", "", "YAML config file")
	pf.String("exercises-dir", "", "Directory with additional exercise definitions")
	pf.String("log-level", "info", "Log level: trace|debug|info|warn|error")
	pf.String("log-file", "", "Write logs to a rotating file")
	pf.Bool("log-json", false, "Log as JSON")
	pf.Bool("log-stdout", false, "Also log to stderr when --log-file is set")
	pf.BoolVar(&globalOpts.Quiet, "quiet", false, "Do not render frames in the terminal")
	pf.BoolVar(&globalOpts.Pprof, "pprof", false, "Serve pprof endpoints")
	pf.StringVar(&globalOpts.PprofAddr, "pprof-addr", globalOpts.PprofAddr, "Address of the pprof server")
	pf.StringVar(&globalOpts.CPUProfile, "cpuprofile", "", "Write a CPU profile to this file")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(listExercisesCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(globalOpts.ConfigFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	appConfig = cfg

	logCloser = logging.Setup(logging.Params{
		Level:    cfg.Log.Level,
		File:     cfg.Log.File,
		ToStdout: cfg.Log.ToStdout,
		JSON:     cfg.Log.JSON,
	})

	if globalOpts.Pprof {
		go func() {
			log.Debugf("pprof listening on %s", globalOpts.PprofAddr)
			if err := http.ListenAndServe(globalOpts.PprofAddr, nil); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warnf("pprof server: %s", err)
			}
		}()
	}
	if globalOpts.CPUProfile != "" {
		f, err := os.Create(globalOpts.CPUProfile)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		cpuProfile = f
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	var err error
	if cpuProfile != nil {
		pprof.StopCPUProfile()
		err = multierr.Append(err, cpuProfile.Close())
		cpuProfile = nil
	}
	if logCloser != nil {
		err = multierr.Append(err, logCloser.Close())
		logCloser = nil
	}
	return err
}
