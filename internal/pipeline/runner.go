package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/phrazzld/longform/internal/assemble"
	"github.com/phrazzld/longform/internal/config"
	"github.com/phrazzld/longform/internal/domain"
	"github.com/phrazzld/longform/internal/events"
	"github.com/phrazzld/longform/internal/illustration"
	"github.com/phrazzld/longform/internal/metrics"
	"github.com/phrazzld/longform/internal/outline"
	"github.com/phrazzld/longform/internal/redact"
	"github.com/phrazzld/longform/internal/retry"
	"github.com/phrazzld/longform/internal/section"
	"github.com/phrazzld/longform/internal/session"
)

// Files written to the session root.
const (
	OutlineFile  = "outline.json"
	CombinedFile = "article_combined.md"
	DocumentFile = "article_with_images.md"
	HTMLFile     = "article_with_images.html"
)

// Overall progress at stage boundaries.
const (
	progressOutlineStart = 0.1
	progressOutlineDone  = 0.2
	progressSectionsDone = 0.6
	progressImagesDone   = 0.9
	progressPackaging    = 0.95
	progressDone         = 1.0
)

// ErrInvalidRequest is returned when a run request fails validation.
var ErrInvalidRequest = errors.New("invalid run request")

// Request describes one run.
type Request struct {
	Brief     domain.Brief
	MainCount int
	SubCount  int
	// APIKey replaces the configured OpenAI key for this run only.
	APIKey string
}

// Validate checks the brief and the requested outline size.
func (r Request) Validate() error {
	if err := r.Brief.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := domain.ValidateCounts(r.MainCount, r.SubCount); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// Result is everything a run produced.
type Result struct {
	domain.Artifacts
	Outline          domain.Outline         `json:"outline"`
	OutlineStrategy  string                 `json:"outline_strategy"`
	Sections         []domain.SectionResult `json:"-"`
	Images           []domain.ImageResult   `json:"images"`
	SectionFiles     []string               `json:"section_files"`
	ImageFiles       []string               `json:"image_files"`
	DegradedSections int                    `json:"degraded_sections"`
	MissingImages    int                    `json:"missing_images"`
	Duration         time.Duration          `json:"duration"`
}

// Outcome classifies the result for metrics and run status.
func (r *Result) Outcome() string {
	if r.DegradedSections > 0 || r.MissingImages > 0 {
		return metrics.OutcomeDegraded
	}
	return metrics.OutcomeSuccess
}

// Runner executes runs. It holds no per-run state and can serve concurrent
// runs, each in its own session.
type Runner struct {
	cfg      *config.Config
	sessions *session.Store
	services ServiceFactory
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewRunner creates a Runner. rec may be nil.
func NewRunner(
	cfg *config.Config,
	sessions *session.Store,
	services ServiceFactory,
	rec metrics.Recorder,
	logger *slog.Logger,
) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if sessions == nil {
		return nil, errors.New("session store cannot be nil")
	}
	if services == nil {
		return nil, errors.New("service factory cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Runner{
		cfg:      cfg,
		sessions: sessions,
		services: services,
		metrics:  metrics.OrNoop(rec),
		logger:   logger.With("component", "pipeline_runner"),
	}, nil
}

// stages are the components built for one run.
type stages struct {
	outline      *outline.Builder
	sections     *section.Pipeline
	illustration *illustration.Pipeline
}

// Run generates one document. Requests without a usable credential fail
// before a session is created. Failed sections and images never fail the
// run; only errors writing the session do, in which case the partial result
// is returned alongside the error.
func (r *Runner) Run(ctx context.Context, req Request, emitter events.EventEmitter) (res *Result, err error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	svc, err := r.services(ctx, req.APIKey)
	if err != nil {
		r.logger.ErrorContext(ctx, "cannot start run", "error", redact.Error(err))
		r.publishLog(ctx, emitter, events.LevelError, "Error: "+redact.Error(err))
		r.metrics.IncRunOutcome(metrics.OutcomeFailed)
		return nil, err
	}

	st, err := r.build(svc)
	if err != nil {
		r.metrics.IncRunOutcome(metrics.OutcomeFailed)
		return nil, err
	}

	sess, err := r.sessions.Create(ctx)
	if err != nil {
		r.metrics.IncRunOutcome(metrics.OutcomeFailed)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger := r.logger.With("session_id", sess.ID)
	res = &Result{Artifacts: domain.Artifacts{SessionID: sess.ID}}

	defer func() {
		res.Duration = time.Since(start)
		r.metrics.ObserveRunDuration(res.Duration)
		if err != nil {
			r.metrics.IncRunOutcome(metrics.OutcomeFailed)
			logger.ErrorContext(ctx, "run failed", "error", err)
			r.publishLog(ctx, emitter, events.LevelError, "Error: "+err.Error())
			return
		}
		r.metrics.IncRunOutcome(res.Outcome())
	}()

	logger.InfoContext(ctx, "starting run",
		"topic", req.Brief.Topic,
		"main_headings", req.MainCount,
		"sub_headings", req.SubCount,
		"style", req.Brief.Style)

	// Outline
	began := r.enterStage(ctx, emitter, events.StageOutline, "Generating outline...", progressOutlineStart)
	res.Outline, res.OutlineStrategy = st.outline.Build(ctx, req.Brief, req.MainCount, req.SubCount)
	res.OutlinePath = sess.Path(OutlineFile)
	if err := writeJSON(res.OutlinePath, res.Outline); err != nil {
		return res, fmt.Errorf("failed to write outline: %w", err)
	}
	r.progress(ctx, emitter, events.StageOutline, progressOutlineDone)
	r.publishLog(ctx, emitter, events.LevelInfo,
		fmt.Sprintf("Outline generated with %d main headings", len(res.Outline.Sections)))
	r.metrics.ObserveStageDuration(events.StageOutline, time.Since(began))

	// Sections
	began = r.enterStage(ctx, emitter, events.StageArticle, "Generating article sections...", progressOutlineDone)
	res.Sections = st.sections.GenerateAll(ctx, res.Outline, req.Brief,
		events.Scaled(emitter, events.StageArticle, progressOutlineDone, progressSectionsDone))
	for _, s := range res.Sections {
		if s.Degraded {
			res.DegradedSections++
		}
	}
	res.SectionFiles, err = section.Save(sess.ArticlesDir, res.Sections)
	if err != nil {
		return res, fmt.Errorf("failed to save sections: %w", err)
	}
	r.metrics.ObserveStageDuration(events.StageArticle, time.Since(began))

	// Combine
	began = r.enterStage(ctx, emitter, events.StageCombine, "Combining sections...", progressSectionsDone)
	combined := assemble.Combine(res.Sections)
	res.CombinedPath = sess.Path(CombinedFile)
	if err := writeText(res.CombinedPath, combined); err != nil {
		return res, fmt.Errorf("failed to write combined article: %w", err)
	}
	r.metrics.ObserveStageDuration(events.StageCombine, time.Since(began))

	// Images
	began = r.enterStage(ctx, emitter, events.StageImage, "Generating images...", progressSectionsDone)
	res.Images = st.illustration.GenerateAll(ctx, res.Sections, res.Outline.Headings(), req.Brief.Style, sess.ImagesDir,
		events.Scaled(emitter, events.StageImage, progressSectionsDone, progressImagesDone))
	for _, img := range res.Images {
		if img.HasImage() {
			res.ImageFiles = append(res.ImageFiles, img.Path)
		} else {
			res.MissingImages++
		}
	}
	r.publishLog(ctx, emitter, events.LevelInfo, "Inserting images into article...")
	document := assemble.InsertImages(combined, res.Images, r.cfg.Session.ImagePathPrefix)
	res.DocumentPath = sess.Path(DocumentFile)
	if err := writeText(res.DocumentPath, document); err != nil {
		return res, fmt.Errorf("failed to write illustrated article: %w", err)
	}
	page, err := assemble.RenderHTML(req.Brief.Topic, document)
	if err != nil {
		logger.WarnContext(ctx, "failed to render html, skipping", "error", err)
	} else {
		res.HTMLPath = sess.Path(HTMLFile)
		if err := writeText(res.HTMLPath, page); err != nil {
			return res, fmt.Errorf("failed to write html article: %w", err)
		}
	}
	r.progress(ctx, emitter, events.StageImage, progressImagesDone)
	r.metrics.ObserveStageDuration(events.StageImage, time.Since(began))

	// Package
	began = r.enterStage(ctx, emitter, events.StagePackage, "Creating download package...", progressPackaging)
	res.ArchivePath, err = r.sessions.Package(ctx, sess, res.SectionFiles, res.ImageFiles,
		res.CombinedPath, res.DocumentPath, res.HTMLPath, res.OutlinePath)
	if err != nil {
		return res, fmt.Errorf("failed to package session: %w", err)
	}

	// Housekeeping failures do not affect the run
	if removed, err := r.sessions.SweepExpired(ctx, r.cfg.Session.TTL); err != nil {
		logger.WarnContext(ctx, "failed to sweep old sessions", "error", err)
	} else if removed > 0 {
		r.publishLog(ctx, emitter, events.LevelInfo, fmt.Sprintf("Removed %d expired sessions", removed))
	}
	if err := r.sessions.ScheduleExpiry(ctx, sess, r.cfg.Session.TTL); err != nil {
		logger.WarnContext(ctx, "failed to schedule session expiry", "error", err)
	}
	r.metrics.ObserveStageDuration(events.StagePackage, time.Since(began))

	events.Publish(ctx, emitter, logger, events.NewStageEvent(events.StageDone, "Article generation complete!"))
	r.progress(ctx, emitter, events.StageDone, progressDone)
	if res.DegradedSections > 0 || res.MissingImages > 0 {
		r.publishLog(ctx, emitter, events.LevelWarning,
			fmt.Sprintf("%d sections used placeholders, %d images are missing", res.DegradedSections, res.MissingImages))
	}

	logger.InfoContext(ctx, "run completed",
		"degraded_sections", res.DegradedSections,
		"missing_images", res.MissingImages,
		"archive", res.ArchivePath,
		"duration", time.Since(start))
	return res, nil
}

// build creates the stage components with policies that count retries.
func (r *Runner) build(svc Services) (stages, error) {
	textPolicy := r.policy("text", r.cfg.Retry.Text)
	imagePolicy := r.policy("image", r.cfg.Retry.Image)
	p := r.cfg.Pipeline

	ob, err := outline.NewBuilder(svc.Text, outline.Options{
		Model:     r.cfg.LLM.TextModel,
		MaxTokens: p.OutlineMaxTokens,
		Policy:    textPolicy,
		Metrics:   r.metrics,
	}, r.logger)
	if err != nil {
		return stages{}, fmt.Errorf("failed to create outline builder: %w", err)
	}

	sp, err := section.NewPipeline(svc.Text, section.Options{
		Concurrency: p.SectionConcurrency,
		Model:       r.cfg.LLM.TextModel,
		MaxTokens:   p.SectionMaxTokens,
		Policy:      textPolicy,
		Metrics:     r.metrics,
	}, r.logger)
	if err != nil {
		return stages{}, fmt.Errorf("failed to create section pipeline: %w", err)
	}

	ip, err := illustration.NewPipeline(svc.Text, svc.Images, svc.Fetcher, illustration.Options{
		Concurrency:      p.ImageConcurrency,
		SummaryModel:     r.cfg.LLM.SummaryModel,
		SummaryMaxTokens: p.SummaryMaxTokens,
		SummaryPolicy:    textPolicy,
		ImagePolicy:      imagePolicy,
		Metrics:          r.metrics,
	}, r.logger)
	if err != nil {
		return stages{}, fmt.Errorf("failed to create image pipeline: %w", err)
	}

	return stages{outline: ob, sections: sp, illustration: ip}, nil
}

func (r *Runner) policy(name string, cfg config.BackoffConfig) retry.Policy {
	p := retry.FromConfig(name, cfg)
	p.OnRetry = func(int, time.Duration, error) {
		r.metrics.IncRetry(name)
	}
	return p
}

func (r *Runner) enterStage(ctx context.Context, emitter events.EventEmitter, stage, message string, progress float64) time.Time {
	events.Publish(ctx, emitter, r.logger, events.NewStageEvent(stage, message))
	r.progress(ctx, emitter, stage, progress)
	return time.Now()
}

func (r *Runner) progress(ctx context.Context, emitter events.EventEmitter, stage string, p float64) {
	events.Publish(ctx, emitter, r.logger, events.NewProgressEvent(stage, p))
}

func (r *Runner) publishLog(ctx context.Context, emitter events.EventEmitter, level, message string) {
	events.Publish(ctx, emitter, r.logger, events.NewLogEvent(level, message))
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func writeText(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
