package illustration

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/longform/internal/domain"
	"github.com/phrazzld/longform/internal/events"
	"github.com/phrazzld/longform/internal/generation"
	"github.com/phrazzld/longform/internal/platform/mock"
	"github.com/phrazzld/longform/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summaryText struct {
	respond func(heading string) (string, error)
}

func (s summaryText) Generate(_ context.Context, req generation.TextRequest) (*generation.TextResponse, error) {
	_, rest, _ := strings.Cut(req.Prompt, "Section Title: ")
	heading, _, _ := strings.Cut(rest, "\n")
	content, err := s.respond(heading)
	if err != nil {
		return nil, err
	}
	return &generation.TextResponse{
		Choices: []generation.TextChoice{{Message: generation.TextMessage{Content: content}}},
	}, nil
}

type recordingImages struct {
	mu       sync.Mutex
	prompts  []string
	styles   []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	fail     func(prompt string) error
}

func (r *recordingImages) Generate(_ context.Context, req generation.ImageRequest) (*generation.ImageResponse, error) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		seen := r.maxSeen.Load()
		if n <= seen || r.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)

	r.mu.Lock()
	r.prompts = append(r.prompts, req.Prompt)
	r.styles = append(r.styles, req.Style)
	r.mu.Unlock()

	if r.fail != nil {
		if err := r.fail(req.Prompt); err != nil {
			return nil, err
		}
	}
	return &generation.ImageResponse{Data: []generation.ImageData{{URL: "https://img.test/" + req.Prompt}}}, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []*events.Event
}

func (l *eventLog) HandleEvent(_ context.Context, e *events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPolicy(name string, attempts int) retry.Policy {
	return retry.Policy{Name: name, MaxAttempts: attempts, Initial: time.Millisecond, Max: 2 * time.Millisecond}
}

func newTestPipeline(t *testing.T, text generation.TextService, images generation.ImageService, concurrency int) *Pipeline {
	t.Helper()
	p, err := NewPipeline(text, images, mock.Fetcher{}, Options{
		Concurrency:      concurrency,
		SummaryModel:     "gpt-4o",
		SummaryMaxTokens: 1000,
		SummaryPolicy:    fastPolicy("text", 2),
		ImagePolicy:      fastPolicy("image", 3),
	}, testLogger())
	require.NoError(t, err)
	return p
}

func sectionsOf(headings ...string) []domain.SectionResult {
	out := make([]domain.SectionResult, len(headings))
	for i, h := range headings {
		out[i] = domain.SectionResult{Index: i, Heading: h, Content: "# " + h + "\n\nAbout " + h}
	}
	return out
}

func TestGenerateAll(t *testing.T) {
	headings := []string{"A", "B", "C", "D", "E"}
	text := summaryText{respond: func(h string) (string, error) {
		return "  a lighthouse for " + h + "  ", nil
	}}
	images := &recordingImages{}
	p := newTestPipeline(t, text, images, 2)
	dir := t.TempDir()
	log := &eventLog{}

	results := p.GenerateAll(context.Background(), sectionsOf(headings...), headings, domain.StyleNatural, dir,
		events.NewInMemoryEventEmitter(testLogger(), log))

	require.Len(t, results, len(headings))
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		require.True(t, r.HasImage())
		assert.Equal(t, filepath.Join(dir, domain.ImageFileName(i)), r.Path)

		f, err := os.Open(r.Path)
		require.NoError(t, err)
		cfg, format, err := image.DecodeConfig(f)
		_ = f.Close()
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Positive(t, cfg.Width)
	}
	assert.LessOrEqual(t, images.maxSeen.Load(), int32(2))
	assert.Contains(t, images.prompts, "a lighthouse for C. Style: natural. Title: C")
	for _, style := range images.styles {
		assert.Equal(t, "natural", style)
	}

	var summaryProgress, imageProgress []float64
	completed := 0
	for _, e := range log.events {
		switch e.Type {
		case events.TypeProgress:
			if e.Progress <= 0.5 {
				summaryProgress = append(summaryProgress, e.Progress)
			} else {
				imageProgress = append(imageProgress, e.Progress)
			}
		case events.TypeImageCompleted:
			completed++
		}
	}
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4, 0.5}, roundAll(summaryProgress))
	assert.Equal(t, []float64{0.6, 0.7, 0.8, 0.9, 1.0}, roundAll(imageProgress))
	assert.Equal(t, len(headings), completed)
}

func roundAll(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(int(v*1000+0.5)) / 1000
	}
	return out
}

func TestGenerateAllImageFailureLeavesPathEmpty(t *testing.T) {
	text := summaryText{respond: func(h string) (string, error) { return "scene " + h, nil }}
	images := &recordingImages{fail: func(prompt string) error {
		if strings.HasSuffix(prompt, "Title: B") {
			return generation.ErrRateLimited
		}
		return nil
	}}
	dir := t.TempDir()

	results := newTestPipeline(t, text, images, 3).GenerateAll(context.Background(),
		sectionsOf("A", "B", "C"), []string{"A", "B", "C"}, domain.StyleVivid, dir, nil)

	require.Len(t, results, 3)
	assert.True(t, results[0].HasImage())
	assert.False(t, results[1].HasImage())
	assert.True(t, results[2].HasImage())
	_, err := os.Stat(filepath.Join(dir, domain.ImageFileName(1)))
	assert.True(t, os.IsNotExist(err))

	attemptsForB := 0
	for _, prompt := range images.prompts {
		if strings.HasSuffix(prompt, "Title: B") {
			attemptsForB++
		}
	}
	assert.Equal(t, 3, attemptsForB)
}

func TestGenerateAllSummaryFailureUsesFallback(t *testing.T) {
	text := summaryText{respond: func(h string) (string, error) {
		if h == "B" {
			return "", errors.New("connection refused")
		}
		return "scene " + h, nil
	}}
	images := &recordingImages{}

	results := newTestPipeline(t, text, images, 1).GenerateAll(context.Background(),
		sectionsOf("A", "B"), []string{"A", "B"}, domain.StyleVivid, t.TempDir(), nil)

	require.Len(t, results, 2)
	assert.True(t, results[1].HasImage())
	assert.Contains(t, images.prompts, FallbackPrompt("B")+". Style: vivid. Title: B")
}

func TestGenerateAllUsesHeadingsByIndex(t *testing.T) {
	text := summaryText{respond: func(h string) (string, error) { return "scene", nil }}
	images := &recordingImages{}

	newTestPipeline(t, text, images, 1).GenerateAll(context.Background(),
		sectionsOf("ignored", "own heading"), []string{"Outline Title"}, domain.StyleVivid, t.TempDir(), nil)

	assert.ElementsMatch(t, []string{
		"scene. Style: vivid. Title: Outline Title",
		"scene. Style: vivid. Title: own heading",
	}, images.prompts)
}

func TestGenerateAllCanceled(t *testing.T) {
	text := summaryText{respond: func(h string) (string, error) { return "scene", nil }}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := newTestPipeline(t, text, &recordingImages{}, 2).GenerateAll(ctx,
		sectionsOf("A", "B", "C"), nil, domain.StyleVivid, t.TempDir(), nil)

	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.False(t, r.HasImage())
	}
}

func TestGenerateAllWithMockServices(t *testing.T) {
	images := &mock.ImageService{}
	results := newTestPipeline(t, mock.TextService{}, images, 4).GenerateAll(context.Background(),
		sectionsOf("A", "B", "C"), []string{"A", "B", "C"}, domain.StyleVivid, t.TempDir(), nil)

	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.HasImage())
	}
	assert.EqualValues(t, 3, images.Calls())
}

func TestSummaryPromptTruncates(t *testing.T) {
	long := strings.Repeat("é", MaxSummaryInput+10)
	prompt := SummaryPrompt("Heading", long)
	assert.Contains(t, prompt, "Section Title: Heading")
	assert.Contains(t, prompt, strings.Repeat("é", MaxSummaryInput)+"...")
	assert.NotContains(t, prompt, strings.Repeat("é", MaxSummaryInput+1))

	short := SummaryPrompt("Heading", "tiny")
	assert.Contains(t, short, "tiny\n```")
	assert.Contains(t, short, `DO NOT use terms like "an image of"`)
}

func TestNewPipelineValidation(t *testing.T) {
	text := summaryText{}
	images := &recordingImages{}
	opts := Options{SummaryPolicy: fastPolicy("text", 1), ImagePolicy: fastPolicy("image", 1)}

	_, err := NewPipeline(nil, images, mock.Fetcher{}, opts, testLogger())
	assert.Error(t, err)
	_, err = NewPipeline(text, images, mock.Fetcher{}, opts, nil)
	assert.Error(t, err)
	_, err = NewPipeline(text, images, mock.Fetcher{}, Options{SummaryPolicy: opts.SummaryPolicy}, testLogger())
	assert.Error(t, err)

	p, err := NewPipeline(text, images, mock.Fetcher{}, opts, testLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultConcurrency, p.opts.Concurrency)
}
