package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/phrazzld/longform/internal/domain"
	"github.com/phrazzld/longform/internal/events"
	"github.com/phrazzld/longform/internal/store"
	"github.com/phrazzld/longform/internal/task"
)

// TaskRunner defines the interface for submitting background tasks
type TaskRunner interface {
	// Submit adds a task to the processing queue
	Submit(ctx context.Context, task task.Task) error
}

// CreateRunParams carries a validated run request.
type CreateRunParams struct {
	Topic     string
	Audience  string
	Style     string
	MainCount int
	SubCount  int
	// APIKey overrides the configured OpenAI key for this run. It is kept
	// in memory only until generation starts.
	APIKey string
}

// RunView is a run together with its live progress and produced files.
type RunView struct {
	Run       *domain.Run
	Progress  events.Snapshot
	Artifacts domain.Artifacts
}

// Artifact names accepted by RunService.ArtifactPath.
const (
	ArtifactDocument = "document"
	ArtifactHTML     = "html"
	ArtifactArchive  = "archive"
)

// RunService provides run-related operations
type RunService interface {
	// CreateRunAndEnqueueTask creates a pending run and queues its generation
	CreateRunAndEnqueueTask(ctx context.Context, params CreateRunParams) (*domain.Run, error)

	// GetRun retrieves a run with its progress
	GetRun(ctx context.Context, runID uuid.UUID) (*RunView, error)

	// ArtifactPath returns the on-disk path of a finished run's artifact
	ArtifactPath(ctx context.Context, runID uuid.UUID, artifact string) (string, error)
}

// runServiceImpl implements the RunService interface
type runServiceImpl struct {
	runs       store.RunStore
	taskRunner TaskRunner
	generator  task.ArticleGenerator
	logger     *slog.Logger
}

// NewRunService creates a new RunService.
// It returns an error if any of the required dependencies are nil.
func NewRunService(
	runs store.RunStore,
	taskRunner TaskRunner,
	generator task.ArticleGenerator,
	logger *slog.Logger,
) (RunService, error) {
	if runs == nil {
		return nil, &RunServiceError{Operation: "create_service", Message: "run store cannot be nil"}
	}
	if taskRunner == nil {
		return nil, &RunServiceError{Operation: "create_service", Message: "task runner cannot be nil"}
	}
	if generator == nil {
		return nil, &RunServiceError{Operation: "create_service", Message: "generator cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &runServiceImpl{
		runs:       runs,
		taskRunner: taskRunner,
		generator:  generator,
		logger:     logger.With("component", "run_service"),
	}, nil
}

// CreateRunAndEnqueueTask creates a new run with pending status and submits
// its generation task.
func (s *runServiceImpl) CreateRunAndEnqueueTask(ctx context.Context, params CreateRunParams) (*domain.Run, error) {
	// 1. Build the run
	brief, err := domain.NewBrief(params.Topic, params.Audience, params.Style)
	if err != nil {
		return nil, NewRunServiceError("create_run", "invalid brief", err)
	}
	run, err := domain.NewRun(brief, params.MainCount, params.SubCount)
	if err != nil {
		return nil, NewRunServiceError("create_run", "invalid run", err)
	}

	// 2. Store it
	if _, err := s.runs.Create(ctx, run, params.APIKey); err != nil {
		s.logger.ErrorContext(ctx, "failed to store run",
			"error", err,
			"run_id", run.ID)
		return nil, NewRunServiceError("create_run", "failed to store run", err)
	}

	// 3. Queue the generation
	t, err := task.NewGenerationTask(run.ID, s.runs, s.generator, s.logger)
	if err != nil {
		return nil, NewRunServiceError("create_run", "failed to create generation task", err)
	}
	if err := s.taskRunner.Submit(ctx, t); err != nil {
		s.logger.ErrorContext(ctx, "failed to submit generation task",
			"error", err,
			"run_id", run.ID)
		s.markFailed(ctx, run, err)
		return nil, NewRunServiceError("create_run", "failed to queue run", err)
	}

	s.logger.InfoContext(ctx, "run queued",
		"run_id", run.ID,
		"task_id", t.ID(),
		"topic", brief.Topic,
		"main_headings", run.MainCount,
		"sub_headings", run.SubCount)
	return run, nil
}

func (s *runServiceImpl) markFailed(ctx context.Context, run *domain.Run, cause error) {
	run.Error = cause.Error()
	_ = run.UpdateStatus(domain.RunStatusFailed)
	if err := s.runs.UpdateRun(ctx, run); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark run failed", "run_id", run.ID, "error", err)
	}
	// Drop the key of a run that will never start
	_, _ = s.runs.TakeAPIKey(ctx, run.ID)
}

// GetRun retrieves a run by its ID
func (s *runServiceImpl) GetRun(ctx context.Context, runID uuid.UUID) (*RunView, error) {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		if !store.IsNotFoundError(err) {
			s.logger.ErrorContext(ctx, "failed to retrieve run", "error", err, "run_id", runID)
		}
		return nil, NewRunServiceError("get_run", "failed to retrieve run", err)
	}

	rec, err := s.runs.Recorder(ctx, runID)
	if err != nil {
		return nil, NewRunServiceError("get_run", "failed to retrieve progress", err)
	}
	artifacts, err := s.runs.Artifacts(ctx, runID)
	if err != nil {
		return nil, NewRunServiceError("get_run", "failed to retrieve artifacts", err)
	}

	return &RunView{Run: run, Progress: rec.Snapshot(), Artifacts: artifacts}, nil
}

// ArtifactPath resolves an artifact of a finished run and checks it still
// exists on disk.
func (s *runServiceImpl) ArtifactPath(ctx context.Context, runID uuid.UUID, artifact string) (string, error) {
	view, err := s.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}

	var path string
	switch artifact {
	case ArtifactDocument:
		path = view.Artifacts.DocumentPath
	case ArtifactHTML:
		path = view.Artifacts.HTMLPath
	case ArtifactArchive:
		path = view.Artifacts.ArchivePath
	default:
		return "", NewRunServiceError("get_artifact", "unknown artifact "+artifact, ErrArtifactMissing)
	}

	if path == "" {
		if !view.Run.IsTerminal() {
			return "", ErrRunNotFinished
		}
		return "", fmt.Errorf("%w: %s", ErrArtifactMissing, artifact)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrArtifactMissing, artifact, err)
	}
	return path, nil
}
