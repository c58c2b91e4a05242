package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rainbowrelax/relax-cli/internal/config"
	"github.com/rainbowrelax/relax-cli/internal/exercise"
	"github.com/rainbowrelax/relax-cli/internal/report"
)

// defaultIntro mirrors the intro_delay config default for flag help
const defaultIntro = 10 * time.Second

// getExercisesDir returns the configured directory, or an "exercises"
// directory next to the working directory or the executable
func getExercisesDir(configured string) string {
	if configured != "" {
		return configured
	}

	if _, err := os.Stat("exercises"); err == nil {
		return "exercises"
	}

	exe, err := os.Executable()
	if err == nil {
		dir := filepath.Join(filepath.Dir(exe), "exercises")
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
	}

	return ""
}

// loadRegistry loads the built-in exercises plus any from the exercises
// directory; files there override built-ins with the same id
func loadRegistry(cfg *config.Config) (*exercise.Registry, error) {
	registry, err := exercise.NewBuiltinRegistry()
	if err != nil {
		return nil, err
	}

	if dir := getExercisesDir(cfg.ExercisesDir); dir != "" {
		if err := registry.LoadFromDir(dir); err != nil {
			return nil, fmt.Errorf("failed to load exercises: %w", err)
		}
		log.WithField("dir", dir).Debug("loaded exercise directory")
	}
	return registry, nil
}

// resolveExercise looks id up, telling the user when the default was used
func resolveExercise(cmd *cobra.Command, registry *exercise.Registry, id string) (*exercise.Definition, error) {
	def, fallback, err := registry.Resolve(id)
	if err != nil {
		return nil, err
	}
	if fallback {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  exercise %q is not available, using %s\n", id, def.ID)
	}
	return def, nil
}

// reportWriter prints reports to out and, when configured, writes them to
// the report directory too
func reportWriter(cfg *config.Config, out io.Writer) (report.Writer, error) {
	stream := report.NewStreamWriter(out, cfg.ReportFormat)
	if cfg.ReportOut == "" {
		return stream, nil
	}

	fw, err := report.NewFileWriter(cfg.ReportOut, cfg.ReportFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to create report writer: %w", err)
	}
	return report.NewMultiWriter(stream, fw), nil
}

// capturingReports is reportWriter for commands that print the report
// themselves once they are done
func capturingReports(cfg *config.Config) (report.Writer, *reportCapture, error) {
	capture := &reportCapture{}
	if cfg.ReportOut == "" {
		return capture, capture, nil
	}

	fw, err := report.NewFileWriter(cfg.ReportOut, cfg.ReportFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report writer: %w", err)
	}
	return report.NewMultiWriter(capture, fw), capture, nil
}

// signalContext is cancelled on SIGINT/SIGTERM
func signalContext(parent context.Context, cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			fmt.Fprintln(cmd.ErrOrStderr(), "\n⏹  Received interrupt signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func generateToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "rx_" + hex.EncodeToString(bytes), nil
}
