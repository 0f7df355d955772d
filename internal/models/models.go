package models

import "time"

// Status values recorded for a pipeline run
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailure = "failure"
	RunStatusNever   = "never_run"
)

// RunStatus tracks the outcome of one cleaning run
type RunStatus struct {
	RunID        string         `json:"run_id" bson:"run_id"`
	StartedAt    time.Time      `json:"started_at" bson:"started_at"`
	FinishedAt   time.Time      `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
	Status       string         `json:"status" bson:"status"` // "running", "success", "failure"
	ErrorMessage string         `json:"error_message,omitempty" bson:"error_message,omitempty"`
	RowsWritten  map[string]int `json:"rows_written,omitempty" bson:"rows_written,omitempty"`
}
