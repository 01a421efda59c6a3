package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Stage identifies one of the two sequential extraction phases.
type Stage string

const (
	StageDirectorySearch   Stage = "directory_search"
	StageContactExtraction Stage = "contact_extraction"
)

// RunStatus represents the lifecycle state of an external job run.
type RunStatus string

const (
	RunStatusSubmitted RunStatus = "submitted"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusTimedOut  RunStatus = "timed_out"
)

// Terminal returns true if the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusTimedOut:
		return true
	}
	return false
}

// JobRun tracks one execution of a stage against the external job service.
// It is created on submission and mutated only by the poller; the state
// machine is submitted -> running -> {succeeded | failed | timed_out}.
type JobRun struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	Stage      Stage     `json:"stage"`
	RunID      string    `json:"run_id"`     // external run reference
	DatasetID  string    `json:"dataset_id"` // result-collection reference
	Status     RunStatus `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Transition moves the run to the given status. Terminal states are final:
// attempting to leave one is a programming error and returns an error
// without mutating the run.
func (r *JobRun) Transition(to RunStatus, now time.Time) error {
	if r.Status.Terminal() {
		return eris.Errorf("job run %s: illegal transition %s -> %s", r.RunID, r.Status, to)
	}
	r.Status = to
	if to.Terminal() {
		r.FinishedAt = now
	}
	return nil
}
