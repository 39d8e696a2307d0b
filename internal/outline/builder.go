// Package outline turns a brief into a normalized document outline.
//
// The builder asks the text service for a JSON outline, parses the reply with
// an ordered list of strategies and normalizes the result to the requested
// size. It never fails: when the service is unreachable or every parse
// strategy fails, a deterministic default outline is used instead.
package outline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/longform/internal/domain"
	"github.com/phrazzld/longform/internal/generation"
	"github.com/phrazzld/longform/internal/metrics"
	"github.com/phrazzld/longform/internal/redact"
	"github.com/phrazzld/longform/internal/retry"
)

const systemPrompt = `You are an expert content strategist and SEO specialist. You create comprehensive outlines
for very long-form articles that thoroughly cover every aspect of a topic.`

// Options configures the outline request.
type Options struct {
	Model     string
	MaxTokens int
	Policy    retry.Policy
	Metrics   metrics.Recorder
}

// Builder requests and normalizes outlines.
type Builder struct {
	text    generation.TextService
	opts    Options
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(text generation.TextService, opts Options, logger *slog.Logger) (*Builder, error) {
	if text == nil {
		return nil, errors.New("text service cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}
	return &Builder{
		text:    text,
		opts:    opts,
		metrics: metrics.OrNoop(opts.Metrics),
		logger:  logger.With("component", "outline_builder"),
	}, nil
}

// Build returns an outline with exactly mainCount sections of exactly
// subCount subheadings, and the strategy that produced it. Failures of the
// text service or of parsing fall back to Default and are only logged.
func (b *Builder) Build(ctx context.Context, brief domain.Brief, mainCount, subCount int) (domain.Outline, string) {
	b.logger.InfoContext(ctx, "generating outline",
		"topic", brief.Topic,
		"main_headings", mainCount,
		"sub_headings", subCount)

	text, err := retry.Do(ctx, b.opts.Policy, b.logger, func(ctx context.Context) (string, error) {
		resp, err := b.text.Generate(ctx, generation.TextRequest{
			Prompt:       Prompt(brief, mainCount, subCount),
			SystemPrompt: systemPrompt,
			Model:        b.opts.Model,
			MaxTokens:    b.opts.MaxTokens,
		})
		if err != nil {
			return "", err
		}
		return resp.Content()
	})
	if err != nil {
		b.logger.ErrorContext(ctx, "outline request failed, using default outline",
			"error", redact.Error(err))
		return b.fallback(brief, mainCount, subCount)
	}

	res, tried := Parse(text)
	if !res.OK() {
		for _, t := range tried {
			b.logger.DebugContext(ctx, "outline parse attempt failed",
				"strategy", t.Strategy,
				"error", t.Err)
		}
		b.logger.ErrorContext(ctx, "could not parse outline, using default outline",
			"response_length", len(text))
		return b.fallback(brief, mainCount, subCount)
	}

	if !res.Outline.Conforms(mainCount, subCount) {
		b.logger.WarnContext(ctx, "outline size differs from request, adjusting",
			"received_headings", len(res.Outline.Sections),
			"expected_headings", mainCount)
	}

	b.metrics.IncOutlineSource(res.Strategy)
	b.logger.InfoContext(ctx, "outline generated",
		"strategy", res.Strategy,
		"main_headings", mainCount)
	return Normalize(res.Outline, brief.Topic, mainCount, subCount), res.Strategy
}

func (b *Builder) fallback(brief domain.Brief, mainCount, subCount int) (domain.Outline, string) {
	b.metrics.IncOutlineSource(StrategyDefault)
	return Default(brief, mainCount, subCount), StrategyDefault
}

// Prompt is the outline request sent to the text service.
func Prompt(brief domain.Brief, mainCount, subCount int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a comprehensive outline for a very long article about %q targeting %s.\n\n",
		brief.Topic, brief.Audience)
	sb.WriteString("The outline should include:\n")
	fmt.Fprintf(&sb, "- Exactly %d main headings (numbered 1-%d)\n", mainCount, mainCount)
	fmt.Fprintf(&sb, "- Exactly %d subheadings under each main heading\n\n", subCount)
	fmt.Fprintf(&sb, "Each heading should explore a different aspect of %q and be designed to engage %s.\n",
		brief.Topic, brief.Audience)
	sb.WriteString("Organize the topics in a logical progression, from introductory concepts to advanced applications.\n\n")
	sb.WriteString("VERY IMPORTANT: Return your response in valid JSON format as follows:\n")
	sb.WriteString(`{"outline": [{"heading": "Main Heading 1", "subheadings": ["Subheading 1.1", "Subheading 1.2"]}]}`)
	sb.WriteString("\n\nEnsure all JSON is valid and properly escaped.")
	return sb.String()
}
