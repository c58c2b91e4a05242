package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFrameTimestamp(t *testing.T) {
	at := time.Date(2026, 1, 16, 12, 0, 0, 500, time.FixedZone("CET", 3600))
	frame := Frame{Timestamp: FormatTimestamp(at)}

	parsed, err := frame.Time()
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}
	if !parsed.Equal(at) {
		t.Errorf("Expected %v, got %v", at, parsed)
	}
	if parsed.Location() != time.UTC {
		t.Errorf("Expected UTC timestamp, got %v", parsed.Location())
	}
}

func TestFrameJSONFieldNames(t *testing.T) {
	frame := Frame{
		SchemaVersion: FrameSchema,
		FrameID:       "f-1",
		Session:       Session{RunID: "run", Exercise: "4-7-8", Minutes: 5},
		Phase:         Phase{Name: "hold", Progress: 1},
		Countdown:     Countdown{Total: 300, Remaining: 299, Elapsed: 1, Display: "4:59"},
	}

	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("Failed to marshal frame: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal frame: %v", err)
	}

	for _, key := range []string{"schema_version", "frame_id", "ts", "session", "state", "cycle", "phase", "countdown", "meta"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("Expected key %q in frame JSON", key)
		}
	}
	if _, ok := raw["elements"]; ok {
		t.Error("Expected empty elements to be omitted")
	}
	countdown := raw["countdown"].(map[string]any)
	if countdown["display"] != "4:59" {
		t.Errorf("Expected display '4:59', got %v", countdown["display"])
	}
}
