package section

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/longform/internal/domain"
	"github.com/phrazzld/longform/internal/events"
	"github.com/phrazzld/longform/internal/generation"
	"github.com/phrazzld/longform/internal/platform/openai"
	"github.com/phrazzld/longform/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedText answers section prompts through a per-heading function and
// tracks how many calls are in flight.
type scriptedText struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
	respond  func(heading string) (string, error)
}

func (s *scriptedText) Generate(ctx context.Context, req generation.TextRequest) (*generation.TextResponse, error) {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	content, err := s.respond(headingOf(req.Prompt))
	if err != nil {
		return nil, err
	}
	return &generation.TextResponse{
		Choices: []generation.TextChoice{{Message: generation.TextMessage{Content: content}}},
	}, nil
}

func headingOf(prompt string) string {
	_, rest, found := strings.Cut(prompt, "Section Heading:\n")
	if !found {
		return ""
	}
	heading, _, _ := strings.Cut(rest, "\n")
	return heading
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

func (l *eventLog) ofType(t events.Type) []*events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*events.Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(t *testing.T, text generation.TextService, concurrency int) *Pipeline {
	t.Helper()
	p, err := NewPipeline(text, Options{
		Concurrency: concurrency,
		Model:       "gpt-4o",
		MaxTokens:   4000,
		Policy:      retry.Policy{Name: "text", MaxAttempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond},
	}, testLogger())
	require.NoError(t, err)
	return p
}

func outlineOf(headings ...string) domain.Outline {
	o := domain.Outline{}
	for _, h := range headings {
		o.Sections = append(o.Sections, domain.Section{Heading: h, Subheadings: []string{h + ".1", h + ".2"}})
	}
	return o
}

var brief = domain.Brief{Topic: "Go", Audience: "engineers", Style: domain.StyleNatural}

func TestGenerateAllOrdersResults(t *testing.T) {
	headings := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	delays := map[string]time.Duration{}
	for i, h := range headings {
		// Later sections finish first
		delays[h] = time.Duration(len(headings)-i) * 3 * time.Millisecond
	}
	text := &scriptedText{respond: func(h string) (string, error) {
		time.Sleep(delays[h])
		return "# " + h + "\n\nbody of " + h, nil
	}}
	p := newTestPipeline(t, text, 3)
	log := &eventLog{}

	results := p.GenerateAll(context.Background(), outlineOf(headings...), brief, events.NewInMemoryEventEmitter(testLogger(), log))

	require.Len(t, results, len(headings))
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, headings[i], r.Heading)
		assert.False(t, r.Degraded)
		assert.True(t, strings.HasSuffix(r.Content, "\n\n"+domain.EndMarker), "marker appended")
	}
	assert.LessOrEqual(t, text.maxSeen.Load(), int32(3))

	completed := log.ofType(events.TypeSectionCompleted)
	assert.Len(t, completed, len(headings))

	progress := log.ofType(events.TypeProgress)
	require.Len(t, progress, len(headings))
	for i, e := range progress {
		assert.InDelta(t, float64(i+1)/float64(len(headings)), e.Progress, 1e-9)
		assert.Equal(t, events.StageArticle, e.Stage)
	}
}

func TestGenerateAllKeepsExistingMarker(t *testing.T) {
	text := &scriptedText{respond: func(h string) (string, error) {
		return "# " + h + "\n\ntext\n\n" + domain.EndMarker, nil
	}}
	results := newTestPipeline(t, text, 2).GenerateAll(context.Background(), outlineOf("A"), brief, nil)

	require.Len(t, results, 1)
	assert.Equal(t, 1, strings.Count(results[0].Content, domain.EndMarker))
}

func TestGenerateAllDegradesFailedSection(t *testing.T) {
	text := &scriptedText{respond: func(h string) (string, error) {
		if h == "B" {
			return "", generation.ErrRateLimited
		}
		return "# " + h, nil
	}}
	p := newTestPipeline(t, text, 2)

	results := p.GenerateAll(context.Background(), outlineOf("A", "B", "C"), brief, nil)

	require.Len(t, results, 3)
	assert.False(t, results[0].Degraded)
	assert.True(t, results[1].Degraded)
	assert.False(t, results[2].Degraded)
	assert.Equal(t, 1, results[1].Index)
	assert.Contains(t, results[1].Content, "# B\n")
	assert.Contains(t, results[1].Content, "## B.1")
	assert.Contains(t, results[1].Content, "## B.2")
	assert.True(t, strings.HasSuffix(results[1].Content, domain.EndMarker))
	// Two successes plus three attempts for B
	assert.EqualValues(t, 5, text.calls.Load())
}

func TestGenerateAllRetriesEveryHTTPFailure(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_, _ = io.WriteString(w, `{"error":{"message":"nope","type":"error"}}`)
			}))
			defer server.Close()

			text, err := openai.NewTextService(openai.Options{
				APIKey:     "sk-test",
				BaseURL:    server.URL + "/v1/",
				Model:      "gpt-4o",
				Timeout:    2 * time.Second,
				HTTPClient: server.Client(),
			}, testLogger())
			require.NoError(t, err)

			p, err := NewPipeline(text, Options{
				Concurrency: 1,
				Policy:      retry.Policy{Name: "text", MaxAttempts: 5, Initial: time.Millisecond, Max: 2 * time.Millisecond},
			}, testLogger())
			require.NoError(t, err)

			results := p.GenerateAll(context.Background(), outlineOf("A"), brief, nil)

			require.Len(t, results, 1)
			assert.True(t, results[0].Degraded)
			assert.EqualValues(t, 5, calls.Load())
		})
	}
}

func TestGenerateAllEmptyContentIsRetried(t *testing.T) {
	var attempts atomic.Int32
	text := &scriptedText{respond: func(h string) (string, error) {
		if attempts.Add(1) == 1 {
			return "   ", nil
		}
		return "# " + h, nil
	}}
	results := newTestPipeline(t, text, 1).GenerateAll(context.Background(), outlineOf("A"), brief, nil)

	require.Len(t, results, 1)
	assert.False(t, results[0].Degraded)
	assert.EqualValues(t, 2, attempts.Load())
}

func TestGenerateAllRecoversFromPanic(t *testing.T) {
	text := &scriptedText{respond: func(h string) (string, error) {
		if h == "A" {
			panic("boom")
		}
		return "# " + h, nil
	}}
	results := newTestPipeline(t, text, 2).GenerateAll(context.Background(), outlineOf("A", "B"), brief, nil)

	require.Len(t, results, 2)
	assert.True(t, results[0].Degraded)
	assert.False(t, results[1].Degraded)
}

func TestGenerateAllCanceled(t *testing.T) {
	text := &scriptedText{respond: func(h string) (string, error) {
		return "# " + h, nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := newTestPipeline(t, text, 2).GenerateAll(ctx, outlineOf("A", "B", "C"), brief, nil)

	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.True(t, r.Degraded)
	}
}

func TestGenerateAllEmptyOutline(t *testing.T) {
	text := &scriptedText{respond: func(string) (string, error) { return "x", nil }}
	assert.Empty(t, newTestPipeline(t, text, 1).GenerateAll(context.Background(), domain.Outline{}, brief, nil))
}

func TestPlaceholder(t *testing.T) {
	content := Placeholder(domain.Section{Heading: "Solo"}, "Go")
	assert.True(t, strings.HasPrefix(content, "# Solo\n"))
	assert.Contains(t, content, "## Overview")
	assert.Contains(t, content, "## Additional Information")
	assert.Contains(t, content, "related to Go")
}

func TestPromptCarriesOutline(t *testing.T) {
	prompt := Prompt(domain.Section{Heading: "Channels", Subheadings: []string{"Buffered", "Closing"}}, brief)
	assert.Equal(t, "Channels", headingOf(prompt))
	assert.Contains(t, prompt, "- Buffered\n- Closing\n")
	assert.Contains(t, prompt, "10,000 words")
	assert.Contains(t, prompt, domain.EndMarker)
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "articles")
	paths, err := Save(dir, []domain.SectionResult{
		{Index: 0, Content: "first"},
		{Index: 9, Content: "tenth"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "section_01.md"), filepath.Join(dir, "section_10.md")}, paths)

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "tenth", string(data))
}

func TestNewPipelineValidation(t *testing.T) {
	text := &scriptedText{}
	policy := retry.Policy{Name: "text", MaxAttempts: 1, Initial: time.Millisecond, Max: time.Millisecond}

	_, err := NewPipeline(nil, Options{Policy: policy}, testLogger())
	assert.Error(t, err)
	_, err = NewPipeline(text, Options{Policy: policy}, nil)
	assert.Error(t, err)
	_, err = NewPipeline(text, Options{}, testLogger())
	assert.Error(t, err)

	p, err := NewPipeline(text, Options{Policy: policy}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultConcurrency, p.opts.Concurrency)
}
