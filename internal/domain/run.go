package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the processing state of a generation run
type RunStatus string

// Possible run status values
const (
	RunStatusPending             RunStatus = "pending"
	RunStatusProcessing          RunStatus = "processing"
	RunStatusCompleted           RunStatus = "completed"
	RunStatusCompletedWithErrors RunStatus = "completed_with_errors"
	RunStatusFailed              RunStatus = "failed"
)

// Request bounds for the outline size.
const (
	MinMainHeadings = 1
	MaxMainHeadings = 50
	MinSubHeadings  = 1
	MaxSubHeadings  = 5
)

// Common validation errors for Run
var (
	ErrEmptyRunID       = errors.New("run ID cannot be empty")
	ErrInvalidRunStatus = errors.New("invalid run status")
	ErrInvalidCounts    = errors.New("heading counts out of range")
)

// Run is one request to generate a document. It tracks the brief, the
// requested outline size and the processing state. The session it writes to
// is recorded once the pipeline has created it.
type Run struct {
	ID        uuid.UUID `json:"id"`
	Brief     Brief     `json:"brief"`
	MainCount int       `json:"main_count"`
	SubCount  int       `json:"sub_count"`
	Status    RunStatus `json:"status"`
	SessionID string    `json:"session_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRun creates a new pending Run with a fresh ID.
// Returns an error if validation fails.
func NewRun(brief Brief, mainCount, subCount int) (*Run, error) {
	now := time.Now().UTC()
	run := &Run{
		ID:        uuid.New(),
		Brief:     brief,
		MainCount: mainCount,
		SubCount:  subCount,
		Status:    RunStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := run.Validate(); err != nil {
		return nil, err
	}

	return run, nil
}

// Validate checks if the Run has valid data.
func (r *Run) Validate() error {
	if r.ID == uuid.Nil {
		return ErrEmptyRunID
	}

	if err := r.Brief.Validate(); err != nil {
		return err
	}

	if err := ValidateCounts(r.MainCount, r.SubCount); err != nil {
		return err
	}

	if !isValidRunStatus(r.Status) {
		return ErrInvalidRunStatus
	}

	return nil
}

// UpdateStatus updates the run's status and the UpdatedAt timestamp.
// Returns an error if the new status is invalid.
func (r *Run) UpdateStatus(status RunStatus) error {
	if !isValidRunStatus(status) {
		return ErrInvalidRunStatus
	}

	r.Status = status
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// IsTerminal reports whether the run has finished, successfully or not.
func (r *Run) IsTerminal() bool {
	switch r.Status {
	case RunStatusCompleted, RunStatusCompletedWithErrors, RunStatusFailed:
		return true
	default:
		return false
	}
}

// ValidateCounts checks the requested outline size against the request bounds.
func ValidateCounts(mainCount, subCount int) error {
	if mainCount < MinMainHeadings || mainCount > MaxMainHeadings ||
		subCount < MinSubHeadings || subCount > MaxSubHeadings {
		return ErrInvalidCounts
	}
	return nil
}

// isValidRunStatus checks if the given status is a valid RunStatus.
func isValidRunStatus(status RunStatus) bool {
	switch status {
	case RunStatusPending, RunStatusProcessing, RunStatusCompleted,
		RunStatusCompletedWithErrors, RunStatusFailed:
		return true
	default:
		return false
	}
}
