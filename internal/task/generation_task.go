package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/phrazzld/longform/internal/domain"
)

// Common errors
var (
	ErrNilRunStore  = errors.New("run store cannot be nil")
	ErrNilGenerator = errors.New("generator cannot be nil")
	ErrNilLogger    = errors.New("logger cannot be nil")
	ErrEmptyRunID   = errors.New("run ID cannot be empty")
)

// RunStore is the part of run persistence the generation task needs.
type RunStore interface {
	// GetRun retrieves a run by its ID
	GetRun(ctx context.Context, runID uuid.UUID) (*domain.Run, error)

	// UpdateRun stores the run's current state
	UpdateRun(ctx context.Context, run *domain.Run) error
}

// RunOutcome summarizes a finished pipeline execution.
type RunOutcome struct {
	SessionID        string
	DegradedSections int
	MissingImages    int
}

// ArticleGenerator executes the generation pipeline for a run.
type ArticleGenerator interface {
	// GenerateArticle produces the document for the run. Failures of
	// individual sections or images are reported in the outcome, not as errors.
	GenerateArticle(ctx context.Context, run *domain.Run) (RunOutcome, error)
}

// GenerationTask implements the Task interface for generating one document
// from a submitted run
type GenerationTask struct {
	id        uuid.UUID
	runID     uuid.UUID
	runs      RunStore
	generator ArticleGenerator
	logger    *slog.Logger
	status    atomic.Value
}

// NewGenerationTask creates a new generation task for the given run
func NewGenerationTask(
	runID uuid.UUID,
	runs RunStore,
	generator ArticleGenerator,
	logger *slog.Logger,
) (*GenerationTask, error) {
	// Validate dependencies
	if runs == nil {
		return nil, ErrNilRunStore
	}
	if generator == nil {
		return nil, ErrNilGenerator
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if runID == uuid.Nil {
		return nil, ErrEmptyRunID
	}

	t := &GenerationTask{
		id:        uuid.New(),
		runID:     runID,
		runs:      runs,
		generator: generator,
		logger:    logger.With("task_type", TaskTypeArticleGeneration, "run_id", runID),
	}
	t.status.Store(TaskStatusPending)
	return t, nil
}

// ID returns the task's unique identifier
func (t *GenerationTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *GenerationTask) Type() string {
	return TaskTypeArticleGeneration
}

// RunID returns the run this task generates.
func (t *GenerationTask) RunID() uuid.UUID {
	return t.runID
}

// Status returns the current task status
func (t *GenerationTask) Status() TaskStatus {
	return t.status.Load().(TaskStatus)
}

// Execute runs the generation task, handling the complete lifecycle from
// fetching the run, marking it processing, running the pipeline and recording
// the final status.
func (t *GenerationTask) Execute(ctx context.Context) error {
	t.status.Store(TaskStatusProcessing)
	t.logger.InfoContext(ctx, "starting generation task")

	if err := ctx.Err(); err != nil {
		t.status.Store(TaskStatusFailed)
		return fmt.Errorf("task cancelled by context: %w", err)
	}

	// 1. Retrieve the run
	run, err := t.runs.GetRun(ctx, t.runID)
	if err != nil {
		t.status.Store(TaskStatusFailed)
		t.logger.ErrorContext(ctx, "failed to retrieve run", "error", err)
		return fmt.Errorf("failed to retrieve run: %w", err)
	}

	// 2. Mark it processing
	if err := run.UpdateStatus(domain.RunStatusProcessing); err != nil {
		t.status.Store(TaskStatusFailed)
		return fmt.Errorf("failed to update run status: %w", err)
	}
	if err := t.runs.UpdateRun(ctx, run); err != nil {
		t.status.Store(TaskStatusFailed)
		t.logger.ErrorContext(ctx, "failed to store processing status", "error", err)
		return fmt.Errorf("failed to update run status to processing: %w", err)
	}

	// 3. Generate
	outcome, genErr := t.generator.GenerateArticle(ctx, run)

	// Final status writes must land even when the run was cancelled
	finalCtx := context.WithoutCancel(ctx)
	run.SessionID = outcome.SessionID

	if genErr != nil {
		run.Error = genErr.Error()
		_ = run.UpdateStatus(domain.RunStatusFailed)
		if err := t.runs.UpdateRun(finalCtx, run); err != nil {
			t.logger.ErrorContext(ctx, "failed to store failed status", "error", err)
		}
		t.status.Store(TaskStatusFailed)
		t.logger.ErrorContext(ctx, "generation failed", "error", genErr)
		return fmt.Errorf("failed to generate article: %w", genErr)
	}

	// 4. Record the final status
	finalStatus := domain.RunStatusCompleted
	if outcome.DegradedSections > 0 || outcome.MissingImages > 0 {
		finalStatus = domain.RunStatusCompletedWithErrors
	}
	_ = run.UpdateStatus(finalStatus)
	if err := t.runs.UpdateRun(finalCtx, run); err != nil {
		// The document exists on disk; only the status write was lost
		t.logger.ErrorContext(ctx, "failed to store final run status", "error", err)
	}

	t.status.Store(TaskStatusCompleted)
	t.logger.InfoContext(ctx, "generation task completed",
		"session_id", outcome.SessionID,
		"status", finalStatus,
		"degraded_sections", outcome.DegradedSections,
		"missing_images", outcome.MissingImages)
	return nil
}
