package model

import (
	"time"
)

// TaskStatus represents the current state of a search task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	// TaskStatusPartial means stage 1 completed but stage 2 degraded;
	// the output contains base-only contacts.
	TaskStatusPartial TaskStatus = "partial"
)

// Terminal returns true if no further status transitions are allowed.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusPartial:
		return true
	}
	return false
}

// Location constrains a directory search geographically. Any combination of
// fields may be set; FreeText is passed through verbatim when present.
type Location struct {
	Country  string `json:"country,omitempty"`
	City     string `json:"city,omitempty"`
	FreeText string `json:"free_text,omitempty"`
}

// IsZero returns true if no location constraint is set.
func (l Location) IsZero() bool {
	return l.Country == "" && l.City == "" && l.FreeText == ""
}

// String renders the location as a single search-service-friendly string.
func (l Location) String() string {
	if l.FreeText != "" {
		return l.FreeText
	}
	switch {
	case l.City != "" && l.Country != "":
		return l.City + ", " + l.Country
	case l.City != "":
		return l.City
	default:
		return l.Country
	}
}

// SearchTask is one user search intent: a set of query terms plus a location
// and a result cap. It is the unit of orchestration: each task runs the two
// extraction stages sequentially and produces one set of merged contacts.
type SearchTask struct {
	ID         string     `json:"id"`
	Queries    []string   `json:"queries"`
	Location   Location   `json:"location"`
	MaxResults int        `json:"max_results"`
	Language   string     `json:"language,omitempty"`
	Status     TaskStatus `json:"status"`
	Error      string     `json:"error,omitempty"`

	// NeedsReview is set when the relevance filter would have dropped more
	// than the configured fraction of contacts and was skipped instead.
	NeedsReview bool `json:"needs_review,omitempty"`

	BaseCount    int `json:"base_count"`
	ContactCount int `json:"contact_count"`
	SavedCount   int `json:"saved_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
