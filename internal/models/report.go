package models

import "time"

// ReportSchema identifies the session report version
const ReportSchema = "relax.report.v1"

// SessionReport summarizes a finished (or stopped) breathing session
type SessionReport struct {
	Schema           string `json:"schema" yaml:"schema"`
	ReportID         string `json:"report_id" yaml:"report_id"`
	RunID            string `json:"run_id" yaml:"run_id"`
	Exercise         string `json:"exercise" yaml:"exercise"`
	Minutes          int    `json:"minutes" yaml:"minutes"`
	StartedAtUTC     string `json:"started_at_utc" yaml:"started_at_utc"`
	EndedAtUTC       string `json:"ended_at_utc" yaml:"ended_at_utc"`
	ElapsedSeconds   int    `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	CompletedCycles  int    `json:"completed_cycles" yaml:"completed_cycles"`
	PhaseTransitions int    `json:"phase_transitions" yaml:"phase_transitions"`
	Pauses           int    `json:"pauses" yaml:"pauses"`
	Completed        bool   `json:"completed" yaml:"completed"`
	// Affirmation is a closing message, set only on completed runs
	Affirmation string `json:"affirmation,omitempty" yaml:"affirmation,omitempty"`
}

// Validate checks if the report is valid according to schema v1
func (r *SessionReport) Validate() error {
	if r.Schema != ReportSchema {
		return &ValidationError{Field: "schema", Message: "must be '" + ReportSchema + "'"}
	}
	if r.ReportID == "" {
		return &ValidationError{Field: "report_id", Message: "is required"}
	}
	if r.RunID == "" {
		return &ValidationError{Field: "run_id", Message: "is required"}
	}
	if r.Exercise == "" {
		return &ValidationError{Field: "exercise", Message: "is required"}
	}
	if r.Minutes < 0 {
		return &ValidationError{Field: "minutes", Message: "must not be negative"}
	}
	started, err := time.Parse(time.RFC3339, r.StartedAtUTC)
	if err != nil {
		return &ValidationError{Field: "started_at_utc", Message: "must be valid RFC3339 timestamp"}
	}
	ended, err := time.Parse(time.RFC3339, r.EndedAtUTC)
	if err != nil {
		return &ValidationError{Field: "ended_at_utc", Message: "must be valid RFC3339 timestamp"}
	}
	if ended.Before(started) {
		return &ValidationError{Field: "ended_at_utc", Message: "must not be before started_at_utc"}
	}
	if r.ElapsedSeconds < 0 || r.ElapsedSeconds > r.Minutes*60 {
		return &ValidationError{Field: "elapsed_seconds", Message: "must lie within the session length"}
	}
	return nil
}

// ValidationError represents a schema validation error
type ValidationError struct {
	Field   string `json:"field" yaml:"field"`
	Message string `json:"message" yaml:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
