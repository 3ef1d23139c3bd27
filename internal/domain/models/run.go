package models

import "time"

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerCLI      = "cli"
)

// StageTiming is the duration of one pipeline stage.
type StageTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
	Err      string        `json:"error,omitempty"`
}

// RunReport summarises one processing cycle.
type RunReport struct {
	ID         string    `json:"id"`
	RunDate    time.Time `json:"run_date"`
	Trigger    string    `json:"trigger"`
	DryRun     bool      `json:"dry_run"`
	Status     RunStatus `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	ProcessedPath string `json:"processed_path,omitempty"`
	TrainingPath  string `json:"training_path,omitempty"`
	ProcessedRows int    `json:"processed_rows"`
	TrainingRows  int    `json:"training_rows"`
	FirstMonth    string `json:"first_month,omitempty"`
	LastMonth     string `json:"last_month,omitempty"`

	Archived []ArchiveRecord `json:"archived,omitempty"`
	Stages   []StageTiming   `json:"stages"`

	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Duration of the run, zero while it is still running.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// DatasetReadyEvent is published once both datasets are persisted.
type DatasetReadyEvent struct {
	RunID         string    `json:"run_id"`
	RunDate       string    `json:"run_date"`
	ProcessedPath string    `json:"processed_path"`
	TrainingPath  string    `json:"training_path"`
	TrainingRows  int       `json:"training_rows"`
	FirstMonth    string    `json:"first_month"`
	LastMonth     string    `json:"last_month"`
	Columns       []string  `json:"columns"`
	Timestamp     time.Time `json:"timestamp"`
}

// TriggerRunRequest is the body of a manual run trigger.
type TriggerRunRequest struct {
	Trigger      string `json:"trigger" default:"manual" validate:"oneof=manual cli"`
	DryRun       bool   `json:"dry_run"`
	SkipArchive  bool   `json:"skip_archive"`
	FeaturesOnly bool   `json:"features_only"`
}

// RunAccepted acknowledges a run started in the background.
type RunAccepted struct {
	RunID  string    `json:"run_id"`
	Status RunStatus `json:"status"`
}
