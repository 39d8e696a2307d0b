package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/phrazzld/longform/internal/domain"
	"github.com/phrazzld/longform/internal/events"
	"github.com/phrazzld/longform/internal/pipeline"
	"github.com/phrazzld/longform/internal/store"
	"github.com/phrazzld/longform/internal/task"
)

// Pipeline runs one generation.
type Pipeline interface {
	Run(ctx context.Context, req pipeline.Request, emitter events.EventEmitter) (*pipeline.Result, error)
}

// ArticleGenerator connects stored runs to the pipeline: it feeds the run's
// recorder with events and stores the produced artifacts.
type ArticleGenerator struct {
	pipeline Pipeline
	runs     store.RunStore
	logger   *slog.Logger
}

var _ task.ArticleGenerator = (*ArticleGenerator)(nil)

// NewArticleGenerator creates an ArticleGenerator.
func NewArticleGenerator(p Pipeline, runs store.RunStore, logger *slog.Logger) (*ArticleGenerator, error) {
	if p == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if runs == nil {
		return nil, errors.New("run store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &ArticleGenerator{
		pipeline: p,
		runs:     runs,
		logger:   logger.With("component", "article_generator"),
	}, nil
}

// GenerateArticle implements task.ArticleGenerator.
func (g *ArticleGenerator) GenerateArticle(ctx context.Context, run *domain.Run) (task.RunOutcome, error) {
	rec, err := g.runs.Recorder(ctx, run.ID)
	if err != nil {
		return task.RunOutcome{}, err
	}
	apiKey, err := g.runs.TakeAPIKey(ctx, run.ID)
	if err != nil {
		return task.RunOutcome{}, err
	}

	emitter := events.NewInMemoryEventEmitter(g.logger, rec)
	res, runErr := g.pipeline.Run(ctx, pipeline.Request{
		Brief:     run.Brief,
		MainCount: run.MainCount,
		SubCount:  run.SubCount,
		APIKey:    apiKey,
	}, emitter)
	if res == nil {
		return task.RunOutcome{}, runErr
	}

	// Partial artifacts are recorded even when the run failed
	if err := g.runs.SetArtifacts(context.WithoutCancel(ctx), run.ID, res.Artifacts); err != nil {
		g.logger.ErrorContext(ctx, "failed to store artifacts", "run_id", run.ID, "error", err)
	}

	return task.RunOutcome{
		SessionID:        res.SessionID,
		DegradedSections: res.DegradedSections,
		MissingImages:    res.MissingImages,
	}, runErr
}
