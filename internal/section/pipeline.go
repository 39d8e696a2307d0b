package section

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/phrazzld/longform/internal/domain"
	"github.com/phrazzld/longform/internal/events"
	"github.com/phrazzld/longform/internal/generation"
	"github.com/phrazzld/longform/internal/metrics"
	"github.com/phrazzld/longform/internal/redact"
	"github.com/phrazzld/longform/internal/retry"
	"github.com/phrazzld/longform/internal/task"
)

// DefaultConcurrency is the number of section requests in flight at once.
const DefaultConcurrency = 5

const systemPrompt = `You are an expert content writer specializing in comprehensive, high-quality long-form content.
Your goal is to write a detailed, thorough, and engaging section of a larger article.
Include practical examples, data points, and research where relevant.`

// Options configures the section requests.
type Options struct {
	Concurrency int
	Model       string
	MaxTokens   int
	Policy      retry.Policy
	Metrics     metrics.Recorder
}

// Pipeline generates all sections of an outline.
type Pipeline struct {
	text    generation.TextService
	opts    Options
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewPipeline creates a Pipeline. A non-positive concurrency uses DefaultConcurrency.
func NewPipeline(text generation.TextService, opts Options, logger *slog.Logger) (*Pipeline, error) {
	if text == nil {
		return nil, errors.New("text service cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Pipeline{
		text:    text,
		opts:    opts,
		metrics: metrics.OrNoop(opts.Metrics),
		logger:  logger.With("component", "section_pipeline"),
	}, nil
}

// GenerateAll generates every section of outline and returns one result per
// section, sorted by index. Progress, log and section-completed events go to
// emitter, which may be nil. Cancelling ctx stops scheduling new sections;
// sections that never ran are returned degraded.
func (p *Pipeline) GenerateAll(
	ctx context.Context,
	outline domain.Outline,
	brief domain.Brief,
	emitter events.EventEmitter,
) []domain.SectionResult {
	total := len(outline.Sections)
	if total == 0 {
		return nil
	}

	p.logger.InfoContext(ctx, "starting section generation",
		"sections", total,
		"concurrency", p.opts.Concurrency)

	results := make(chan domain.SectionResult, total)
	queue := task.NewTaskQueue(total, p.logger)
	for i, s := range outline.Sections {
		if err := queue.Enqueue(newSectionTask(p, i, s, brief, results)); err != nil {
			// The queue is sized to the outline; this cannot happen
			p.logger.ErrorContext(ctx, "failed to enqueue section", "section_index", i, "error", err)
		}
	}
	queue.Close()

	pool := task.NewWorkerPool(queue, task.WorkerPoolConfig{WorkerCount: p.opts.Concurrency}, p.logger)
	pool.SetErrorHandler(func(t task.Task, err error) {
		st, ok := t.(*sectionTask)
		if !ok {
			return
		}
		results <- p.degraded(st.index, st.section, brief)
	})
	pool.Start(ctx)
	go func() {
		pool.Wait()
		close(results)
	}()

	collected := make([]domain.SectionResult, 0, total)
	seen := make([]bool, total)
	for res := range results {
		if seen[res.Index] {
			continue
		}
		seen[res.Index] = true
		collected = append(collected, res)
		p.metrics.IncSectionResult(res.Degraded)

		events.Publish(ctx, emitter, p.logger,
			events.NewSectionCompletedEvent(res.Index, res.Heading, res.Content, res.Degraded))
		events.Publish(ctx, emitter, p.logger,
			events.NewProgressEvent(events.StageArticle, float64(len(collected))/float64(total)))
		events.Publish(ctx, emitter, p.logger,
			events.NewLogEvent(events.LevelInfo, fmt.Sprintf("Generated section %d/%d", res.Index+1, total)))

		p.logger.InfoContext(ctx, "section harvested",
			"section_index", res.Index,
			"degraded", res.Degraded,
			"completed", len(collected),
			"total", total)
	}

	for i, ok := range seen {
		if !ok {
			p.logger.WarnContext(ctx, "section never ran, using placeholder", "section_index", i)
			collected = append(collected, p.degraded(i, outline.Sections[i], brief))
		}
	}

	domain.SortSectionResults(collected)
	return collected
}

// generate produces one section, substituting a placeholder once the retry
// policy gives up.
func (p *Pipeline) generate(ctx context.Context, index int, s domain.Section, brief domain.Brief) domain.SectionResult {
	p.logger.DebugContext(ctx, "generating section",
		"section_index", index,
		"heading", s.Heading)

	content, err := retry.Do(ctx, p.opts.Policy, p.logger, func(ctx context.Context) (string, error) {
		resp, err := p.text.Generate(ctx, generation.TextRequest{
			Prompt:       Prompt(s, brief),
			SystemPrompt: systemPrompt,
			Model:        p.opts.Model,
			MaxTokens:    p.opts.MaxTokens,
		})
		if err != nil {
			return "", err
		}
		return resp.Content()
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "section generation failed, using placeholder",
			"section_index", index,
			"heading", s.Heading,
			"error", redact.Error(err))
		return p.degraded(index, s, brief)
	}

	if !strings.Contains(content, domain.EndMarker) {
		content += "\n\n" + domain.EndMarker
	}
	return domain.SectionResult{Index: index, Heading: s.Heading, Content: content}
}

func (p *Pipeline) degraded(index int, s domain.Section, brief domain.Brief) domain.SectionResult {
	return domain.SectionResult{
		Index:    index,
		Heading:  s.Heading,
		Content:  Placeholder(s, brief.Topic),
		Degraded: true,
	}
}

// Placeholder is the content of a degraded section: the heading, a note and
// two subsection stubs, terminated by the end marker.
func Placeholder(s domain.Section, topic string) string {
	first, second := "Overview", "Additional Information"
	if len(s.Subheadings) > 0 {
		first = s.Subheadings[0]
	}
	if len(s.Subheadings) > 1 {
		second = s.Subheadings[1]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", s.Heading)
	sb.WriteString("*Content generation for this section encountered an error. This is a placeholder.*\n\n")
	fmt.Fprintf(&sb, "## %s\n\n", first)
	fmt.Fprintf(&sb, "This section was meant to cover important aspects of %s related to %s.\n\n", s.Heading, topic)
	fmt.Fprintf(&sb, "## %s\n\n", second)
	sb.WriteString("Further information would have been provided here.\n\n")
	sb.WriteString(domain.EndMarker)
	return sb.String()
}

// Prompt is the request for one section.
func Prompt(s domain.Section, brief domain.Brief) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a comprehensive section for an article about %q targeting %s.\n\n", brief.Topic, brief.Audience)
	fmt.Fprintf(&sb, "Section Heading:\n%s\n\n", s.Heading)
	sb.WriteString("Subheadings to Cover:\n")
	for _, sub := range s.Subheadings {
		fmt.Fprintf(&sb, "- %s\n", sub)
	}
	sb.WriteString("\nPlease write at least 10,000 words on this topic, covering each subheading thoroughly.\n")
	sb.WriteString("Assume the reader has basic familiarity with the topic but wants in-depth knowledge.\n\n")
	sb.WriteString("Use markdown formatting for headings, lists, and emphasis.\n")
	fmt.Fprintf(&sb, "Start with the main heading (# %s) followed by content about the general topic.\n", s.Heading)
	sb.WriteString("Then include each subheading as a second-level heading (##) with detailed content for each.\n")
	sb.WriteString("Do not use any other first-level headings.\n\n")
	fmt.Fprintf(&sb, "Include practical tips, examples, case studies, and research findings valuable for %s.\n\n", brief.Audience)
	fmt.Fprintf(&sb, "End your section with a brief summary and add %s at the very end.", domain.EndMarker)
	return sb.String()
}

// Save writes each section to dir as section_NN.md and returns the paths in
// result order.
func Save(dir string, results []domain.SectionResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create section directory: %w", err)
	}
	paths := make([]string, 0, len(results))
	for _, r := range results {
		path := filepath.Join(dir, domain.SectionFileName(r.Index))
		if err := os.WriteFile(path, []byte(r.Content), 0o644); err != nil {
			return paths, fmt.Errorf("write section %d: %w", r.Index+1, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
