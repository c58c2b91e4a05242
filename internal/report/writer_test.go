package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/rainbowrelax/relax-cli/internal/models"
)

func testReport(runID string) *models.SessionReport {
	return &models.SessionReport{
		Schema:          models.ReportSchema,
		ReportID:        "report-" + runID,
		RunID:           runID,
		Exercise:        "4-7-8",
		Minutes:         1,
		StartedAtUTC:    "2026-01-16T12:00:00Z",
		EndedAtUTC:      "2026-01-16T12:01:00Z",
		ElapsedSeconds:  60,
		CompletedCycles: 3,
		Completed:       true,
	}
}

func TestStreamWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	writer := NewStreamWriter(&buf, FormatJSON)

	if err := writer.Write(testReport("run-1")); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	var parsed models.SessionReport
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v\nOutput: %s", err, buf.String())
	}
	if parsed.RunID != "run-1" {
		t.Errorf("expected run_id 'run-1', got '%s'", parsed.RunID)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("expected indented JSON")
	}
}

func TestStreamWriter_NDJSON(t *testing.T) {
	var buf bytes.Buffer
	writer := NewStreamWriter(&buf, FormatNDJSON)

	for _, id := range []string{"a", "b"} {
		if err := writer.Write(testReport(id)); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for _, line := range lines {
		var parsed models.SessionReport
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			t.Errorf("line is not valid JSON: %v", err)
		}
	}
}

func TestStreamWriter_YAML(t *testing.T) {
	var buf bytes.Buffer
	writer := NewStreamWriter(&buf, FormatYAML)

	if err := writer.Write(testReport("run-y")); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	var parsed models.SessionReport
	if err := yaml.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if parsed.CompletedCycles != 3 {
		t.Errorf("expected completed_cycles 3, got %d", parsed.CompletedCycles)
	}
	if !strings.Contains(buf.String(), "completed_cycles: 3") {
		t.Errorf("expected snake_case keys, got:\n%s", buf.String())
	}
}

func TestFileWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	writer, err := NewFileWriter(dir, FormatJSON)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}

	report := testReport("run-f")
	if err := writer.Write(report); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	path := writer.Path(report)
	if filepath.Base(path) != "relax_session_run-f.json" {
		t.Errorf("unexpected file name %s", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report file: %v", err)
	}
	var parsed models.SessionReport
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("file is not valid JSON: %v", err)
	}
	if err := parsed.Validate(); err != nil {
		t.Errorf("written report does not validate: %v", err)
	}
}

type failingWriter struct{ err error }

func (w failingWriter) Write(*models.SessionReport) error { return w.err }
func (w failingWriter) Close() error                      { return nil }

func TestMultiWriter(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	boom := errors.New("disk full")
	multi := NewMultiWriter(
		NewStreamWriter(&buf1, FormatNDJSON),
		failingWriter{err: boom},
		NewStreamWriter(&buf2, FormatNDJSON),
	)

	err := multi.Write(testReport("run-m"))
	if !errors.Is(err, boom) {
		t.Errorf("expected the failing writer's error, got %v", err)
	}
	if buf1.Len() == 0 || buf2.Len() == 0 {
		t.Error("expected both healthy writers to receive the report")
	}
	if err := multi.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}
