package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/rainbowrelax/relax-cli/internal/models"
)

// Writer is a destination for finished session reports
type Writer interface {
	Write(report *models.SessionReport) error
	Close() error
}

// Formats accepted by the writers
const (
	FormatJSON   = "json"
	FormatNDJSON = "ndjson"
	FormatYAML   = "yaml"
)

func marshal(report *models.SessionReport, format string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatNDJSON:
		data, err = json.Marshal(report)
	case FormatYAML:
		data, err = yaml.Marshal(report)
		return data, err
	default:
		data, err = json.MarshalIndent(report, "", "  ")
	}
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func extension(format string) string {
	if format == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// StreamWriter writes reports to an io.Writer such as stdout
type StreamWriter struct {
	out    io.Writer
	format string
	mu     sync.Mutex
}

func NewStreamWriter(out io.Writer, format string) *StreamWriter {
	return &StreamWriter{
		out:    out,
		format: format,
	}
}

func (w *StreamWriter) Write(report *models.SessionReport) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := marshal(report, w.format)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = w.out.Write(data)
	return err
}

// Close is a no-op for stream writer
func (w *StreamWriter) Close() error {
	return nil
}

// FileWriter writes each report to its own file in a directory
type FileWriter struct {
	dir    string
	format string
	mu     sync.Mutex
}

func NewFileWriter(dir string, format string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	return &FileWriter{
		dir:    dir,
		format: format,
	}, nil
}

// Path returns the file a report is written to
func (w *FileWriter) Path(report *models.SessionReport) string {
	return filepath.Join(w.dir, "relax_session_"+report.RunID+extension(w.format))
}

func (w *FileWriter) Write(report *models.SessionReport) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := marshal(report, w.format)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(w.Path(report), data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Close is a no-op for file writer
func (w *FileWriter) Close() error {
	return nil
}

// MultiWriter writes to multiple destinations. A failing destination does not
// keep the report from the others.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (w *MultiWriter) Write(report *models.SessionReport) error {
	var err error
	for _, writer := range w.writers {
		err = multierr.Append(err, writer.Write(report))
	}
	return err
}

func (w *MultiWriter) Close() error {
	var err error
	for _, writer := range w.writers {
		err = multierr.Append(err, writer.Close())
	}
	return err
}

// Discard drops every report
type Discard struct{}

func (Discard) Write(*models.SessionReport) error { return nil }
func (Discard) Close() error                      { return nil }
