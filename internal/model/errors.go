package model

import "fmt"

// InvalidInputError reports malformed task input. It is never retried and
// is surfaced directly to the caller.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// SubmissionError reports that the external service rejected a job request
// (a bad payload, not a transient outage). It is never retried; the stage is
// marked failed.
type SubmissionError struct {
	Stage      Stage
	StatusCode int
	Body       string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission rejected for stage %s: HTTP %d: %s", e.Stage, e.StatusCode, e.Body)
}

// PreconditionError reports a programming error: an operation was invoked on
// a value in the wrong state (e.g. fetching results of a non-succeeded run).
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: precondition violated: %s", e.Op, e.Reason)
}

// StageError reports that a stage ended without producing results. Timeout
// distinguishes a stage that exceeded its time budget from one that failed
// outright; both are treated the same by the merge step.
type StageError struct {
	Stage   Stage
	Timeout bool
	Err     error
}

func (e *StageError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("stage %s timed out: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// PersistenceError reports that saving task results failed after the retry.
// The in-memory results are intact; the caller decides re-save policy.
type PersistenceError struct {
	TaskID string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist results for task %s: %v", e.TaskID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
