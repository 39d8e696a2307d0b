package illustration

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phrazzld/longform/internal/domain"
	"github.com/phrazzld/longform/internal/events"
	"github.com/phrazzld/longform/internal/generation"
	"github.com/phrazzld/longform/internal/metrics"
	"github.com/phrazzld/longform/internal/redact"
	"github.com/phrazzld/longform/internal/retry"
	"github.com/phrazzld/longform/internal/task"
)

// DefaultConcurrency is the number of image requests in flight at once.
const DefaultConcurrency = 10

// MaxSummaryInput is how much of a section is sent to the summarize phase.
const MaxSummaryInput = 8000

// Options configures both phases.
type Options struct {
	Concurrency      int
	SummaryModel     string
	SummaryMaxTokens int
	// SummaryPolicy applies to the summarize phase, ImagePolicy to image
	// generation and to the download.
	SummaryPolicy retry.Policy
	ImagePolicy   retry.Policy
	Metrics       metrics.Recorder
}

// Pipeline illustrates generated sections.
type Pipeline struct {
	text    generation.TextService
	images  generation.ImageService
	fetcher generation.ImageFetcher
	opts    Options
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewPipeline creates a Pipeline. A non-positive concurrency uses DefaultConcurrency.
func NewPipeline(
	text generation.TextService,
	images generation.ImageService,
	fetcher generation.ImageFetcher,
	opts Options,
	logger *slog.Logger,
) (*Pipeline, error) {
	if text == nil || images == nil || fetcher == nil {
		return nil, errors.New("text service, image service and fetcher are required")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := opts.SummaryPolicy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid summary retry policy: %w", err)
	}
	if err := opts.ImagePolicy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid image retry policy: %w", err)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Pipeline{
		text:    text,
		images:  images,
		fetcher: fetcher,
		opts:    opts,
		metrics: metrics.OrNoop(opts.Metrics),
		logger:  logger.With("component", "image_pipeline"),
	}, nil
}

// GenerateAll illustrates every section and returns one result per section,
// sorted by index. headings supplies the title of each section by index; a
// section beyond it uses its own heading. Images are written to outputDir.
func (p *Pipeline) GenerateAll(
	ctx context.Context,
	sections []domain.SectionResult,
	headings []string,
	style domain.Style,
	outputDir string,
	emitter events.EventEmitter,
) []domain.ImageResult {
	total := len(sections)
	if total == 0 {
		return nil
	}

	p.logger.InfoContext(ctx, "starting image generation",
		"sections", total,
		"concurrency", p.opts.Concurrency)

	// Phase A: every summary starts now and is awaited in submission order.
	summaries := make([]chan string, total)
	for i, s := range sections {
		heading := headingFor(s, headings)
		ch := make(chan string, 1)
		summaries[i] = ch
		go func() {
			ch <- p.summarize(ctx, s, heading)
		}()
	}

	results := make(chan domain.ImageResult, total)
	queue := task.NewTaskQueue(total, p.logger)
	pool := task.NewWorkerPool(queue, task.WorkerPoolConfig{WorkerCount: p.opts.Concurrency}, p.logger)
	pool.SetErrorHandler(func(t task.Task, err error) {
		if it, ok := t.(*illustrateTask); ok {
			results <- domain.ImageResult{Index: it.index}
		}
	})
	pool.Start(ctx)
	go func() {
		pool.Wait()
		close(results)
	}()

	h := &harvest{
		pipeline:  p,
		ctx:       ctx,
		emitter:   emitter,
		total:     total,
		seen:      make([]bool, total),
		collected: make([]domain.ImageResult, 0, total),
		position:  make(map[int]int, total),
	}
	for i, s := range sections {
		h.position[s.Index] = i
	}

	// Phase B is fed as summaries arrive while finished images are harvested.
	// The pool closes results early if ctx is cancelled.
	harvested := (<-chan domain.ImageResult)(results)
	for i, s := range sections {
		heading := headingFor(s, headings)
		for waiting := true; waiting; {
			select {
			case prompt := <-summaries[i]:
				waiting = false
				if err := queue.Enqueue(newIllustrateTask(p, s.Index, heading, prompt, style, outputDir, results)); err != nil {
					p.logger.ErrorContext(ctx, "failed to enqueue image", "section_index", s.Index, "error", err)
				}
				events.Publish(ctx, emitter, p.logger,
					events.NewProgressEvent(events.StageImage, float64(i+1)/float64(total)*0.5))
				events.Publish(ctx, emitter, p.logger,
					events.NewLogEvent(events.LevelInfo, fmt.Sprintf("Generated image prompt %d/%d", i+1, total)))
			case res, ok := <-harvested:
				if !ok {
					harvested = nil
					continue
				}
				h.add(res)
			}
		}
	}
	queue.Close()

	if harvested != nil {
		for res := range harvested {
			h.add(res)
		}
	}

	for i, s := range sections {
		if !h.seen[i] {
			p.logger.WarnContext(ctx, "image never ran", "section_index", s.Index)
			h.collected = append(h.collected, domain.ImageResult{Index: s.Index})
			h.seen[i] = true
		}
	}

	domain.SortImageResults(h.collected)
	return h.collected
}

// harvest accumulates image results in completion order.
type harvest struct {
	pipeline  *Pipeline
	ctx       context.Context
	emitter   events.EventEmitter
	total     int
	seen      []bool
	collected []domain.ImageResult

	// position maps a section index to its slot in the input
	position map[int]int
}

func (h *harvest) add(res domain.ImageResult) {
	pos, ok := h.position[res.Index]
	if !ok || h.seen[pos] {
		return
	}
	h.seen[pos] = true
	h.collected = append(h.collected, res)

	p := h.pipeline
	p.metrics.IncImageResult(res.HasImage())
	events.Publish(h.ctx, h.emitter, p.logger, events.NewImageCompletedEvent(res.Index, res.Path))
	events.Publish(h.ctx, h.emitter, p.logger,
		events.NewProgressEvent(events.StageImage, 0.5+float64(len(h.collected))/float64(h.total)*0.5))
	events.Publish(h.ctx, h.emitter, p.logger,
		events.NewLogEvent(events.LevelInfo, fmt.Sprintf("Generated image %d/%d", len(h.collected), h.total)))

	p.logger.InfoContext(h.ctx, "image harvested",
		"section_index", res.Index,
		"has_image", res.HasImage(),
		"completed", len(h.collected),
		"total", h.total)
}

func headingFor(s domain.SectionResult, headings []string) string {
	if s.Index >= 0 && s.Index < len(headings) {
		return headings[s.Index]
	}
	return s.Heading
}

// summarize derives the visual prompt for one section. It never fails.
func (p *Pipeline) summarize(ctx context.Context, s domain.SectionResult, heading string) (prompt string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "summary panicked, using fallback prompt",
				"section_index", s.Index,
				"panic", fmt.Sprint(r))
			prompt = FallbackPrompt(heading)
		}
	}()

	summary, err := retry.Do(ctx, p.opts.SummaryPolicy, p.logger, func(ctx context.Context) (string, error) {
		resp, err := p.text.Generate(ctx, generation.TextRequest{
			Prompt:    SummaryPrompt(heading, s.Content),
			Model:     p.opts.SummaryModel,
			MaxTokens: p.opts.SummaryMaxTokens,
		})
		if err != nil {
			return "", err
		}
		return resp.Content()
	})
	if err != nil {
		p.logger.WarnContext(ctx, "image prompt generation failed, using fallback prompt",
			"section_index", s.Index,
			"error", redact.Error(err))
		return FallbackPrompt(heading)
	}
	return strings.TrimSpace(summary)
}

// illustrate generates, downloads and saves the image of one section. An
// empty path in the result means it gave up.
func (p *Pipeline) illustrate(ctx context.Context, index int, heading, visual string, style domain.Style, dir string) domain.ImageResult {
	start := time.Now()
	url, err := retry.Do(ctx, p.opts.ImagePolicy, p.logger, func(ctx context.Context) (string, error) {
		resp, err := p.images.Generate(ctx, generation.ImageRequest{
			Prompt: FinalPrompt(visual, style, heading),
			Size:   generation.ImageSize1024,
			Style:  string(style),
		})
		if err != nil {
			return "", err
		}
		return resp.URL()
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "image generation failed",
			"section_index", index,
			"error", redact.Error(err))
		return domain.ImageResult{Index: index}
	}

	img, err := retry.Do(ctx, p.opts.ImagePolicy, p.logger, func(ctx context.Context) (image.Image, error) {
		return p.fetcher.Fetch(ctx, url)
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "image download failed",
			"section_index", index,
			"error", redact.Error(err))
		return domain.ImageResult{Index: index}
	}

	path := filepath.Join(dir, domain.ImageFileName(index))
	if err := savePNG(path, img); err != nil {
		p.logger.ErrorContext(ctx, "failed to save image",
			"section_index", index,
			"path", path,
			"error", err)
		return domain.ImageResult{Index: index}
	}

	p.logger.InfoContext(ctx, "image saved",
		"section_index", index,
		"path", path,
		"duration", time.Since(start))
	return domain.ImageResult{Index: index, Path: path}
}

func savePNG(path string, img image.Image) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create image directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close image file: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// SummaryPrompt asks for a purely visual description of a section. Only the
// first MaxSummaryInput characters of content are included.
func SummaryPrompt(heading, content string) string {
	excerpt := content
	if runes := []rune(content); len(runes) > MaxSummaryInput {
		excerpt = string(runes[:MaxSummaryInput]) + "..."
	}

	var sb strings.Builder
	sb.WriteString("Please summarize the key visual elements from this article section to create a detailed image prompt.\n\n")
	fmt.Fprintf(&sb, "Section Title: %s\n\n", heading)
	fmt.Fprintf(&sb, "Content: ```\n%s\n```\n\n", excerpt)
	sb.WriteString("Create a detailed, visual image prompt (200-300 words) that captures the essence of this section.\n")
	sb.WriteString("Focus on visual elements, scenery, objects, people, colors, mood, and style.\n")
	sb.WriteString("The prompt should be highly descriptive and specific to guide an AI image generator.\n")
	sb.WriteString(`DO NOT use terms like "an image of" or "a picture showing" in your response.` + "\n")
	sb.WriteString("Just provide the direct, detailed visual description.")
	return sb.String()
}

// FallbackPrompt is used when no visual description could be generated.
func FallbackPrompt(heading string) string {
	return fmt.Sprintf("A detailed conceptual illustration representing %s with elements relevant to the topic, "+
		"featuring professional visual style with clear symbols and meaningful imagery", heading)
}

// FinalPrompt combines the visual description with style and title.
func FinalPrompt(visual string, style domain.Style, heading string) string {
	return fmt.Sprintf("%s. Style: %s. Title: %s", visual, style, heading)
}
