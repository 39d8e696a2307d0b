package task

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/longform/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunStore struct {
	mu      sync.Mutex
	runs    map[uuid.UUID]domain.Run
	history []domain.RunStatus
	getErr  error
}

func newFakeRunStore(runs ...*domain.Run) *fakeRunStore {
	s := &fakeRunStore{runs: make(map[uuid.UUID]domain.Run)}
	for _, r := range runs {
		s.runs[r.ID] = *r
	}
	return s
}

func (s *fakeRunStore) GetRun(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	r, ok := s.runs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &r, nil
}

func (s *fakeRunStore) UpdateRun(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	s.history = append(s.history, run.Status)
	return nil
}

type fakeGenerator struct {
	outcome RunOutcome
	err     error
	seen    *domain.Run
}

func (g *fakeGenerator) GenerateArticle(_ context.Context, run *domain.Run) (RunOutcome, error) {
	g.seen = run
	return g.outcome, g.err
}

func newTestRun(t *testing.T) *domain.Run {
	t.Helper()
	run, err := domain.NewRun(domain.Brief{Topic: "Go", Audience: "students", Style: domain.StyleVivid}, 2, 1)
	require.NoError(t, err)
	return run
}

func TestNewGenerationTask_Validation(t *testing.T) {
	logger := setupTestLogger()
	runs := newFakeRunStore()
	gen := &fakeGenerator{}

	_, err := NewGenerationTask(uuid.New(), nil, gen, logger)
	assert.ErrorIs(t, err, ErrNilRunStore)
	_, err = NewGenerationTask(uuid.New(), runs, nil, logger)
	assert.ErrorIs(t, err, ErrNilGenerator)
	_, err = NewGenerationTask(uuid.New(), runs, gen, nil)
	assert.ErrorIs(t, err, ErrNilLogger)
	_, err = NewGenerationTask(uuid.Nil, runs, gen, logger)
	assert.ErrorIs(t, err, ErrEmptyRunID)

	task, err := NewGenerationTask(uuid.New(), runs, gen, logger)
	require.NoError(t, err)
	assert.Equal(t, TaskTypeArticleGeneration, task.Type())
	assert.Equal(t, TaskStatusPending, task.Status())
	assert.NotEqual(t, uuid.Nil, task.ID())
}

func TestGenerationTask_Execute(t *testing.T) {
	tests := []struct {
		name       string
		outcome    RunOutcome
		genErr     error
		wantStatus domain.RunStatus
		wantTask   TaskStatus
		wantErr    bool
	}{
		{
			name:       "clean run",
			outcome:    RunOutcome{SessionID: "session_1"},
			wantStatus: domain.RunStatusCompleted,
			wantTask:   TaskStatusCompleted,
		},
		{
			name:       "degraded sections",
			outcome:    RunOutcome{SessionID: "session_2", DegradedSections: 1},
			wantStatus: domain.RunStatusCompletedWithErrors,
			wantTask:   TaskStatusCompleted,
		},
		{
			name:       "missing images",
			outcome:    RunOutcome{SessionID: "session_3", MissingImages: 2},
			wantStatus: domain.RunStatusCompletedWithErrors,
			wantTask:   TaskStatusCompleted,
		},
		{
			name:       "precondition failure",
			genErr:     errors.New("missing API credential"),
			wantStatus: domain.RunStatusFailed,
			wantTask:   TaskStatusFailed,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := newTestRun(t)
			runs := newFakeRunStore(run)
			gen := &fakeGenerator{outcome: tt.outcome, err: tt.genErr}

			task, err := NewGenerationTask(run.ID, runs, gen, setupTestLogger())
			require.NoError(t, err)

			err = task.Execute(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			stored, getErr := runs.GetRun(context.Background(), run.ID)
			require.NoError(t, getErr)
			assert.Equal(t, tt.wantStatus, stored.Status)
			assert.Equal(t, tt.outcome.SessionID, stored.SessionID)
			assert.Equal(t, tt.wantTask, task.Status())
			assert.Equal(t, domain.RunStatusProcessing, runs.history[0])
			require.NotNil(t, gen.seen)
			assert.Equal(t, run.ID, gen.seen.ID)
			if tt.wantErr {
				assert.Equal(t, tt.genErr.Error(), stored.Error)
			}
		})
	}
}

func TestGenerationTask_ExecuteMissingRun(t *testing.T) {
	runs := newFakeRunStore()
	runs.getErr = errors.New("store down")
	task, err := NewGenerationTask(uuid.New(), runs, &fakeGenerator{}, setupTestLogger())
	require.NoError(t, err)

	err = task.Execute(context.Background())
	assert.Error(t, err)
	assert.Equal(t, TaskStatusFailed, task.Status())
}

func TestGenerationTask_ExecuteCancelled(t *testing.T) {
	run := newTestRun(t)
	task, err := NewGenerationTask(run.ID, newFakeRunStore(run), &fakeGenerator{}, setupTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = task.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// blockingGenerator holds GenerateArticle open until release is closed.
type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
}

func (g *blockingGenerator) GenerateArticle(_ context.Context, _ *domain.Run) (RunOutcome, error) {
	close(g.started)
	<-g.release
	return RunOutcome{SessionID: "session_20250101_000000"}, nil
}

func TestGenerationTask_StatusReadableWhileExecuting(t *testing.T) {
	run := newTestRun(t)
	gen := &blockingGenerator{started: make(chan struct{}), release: make(chan struct{})}
	task, err := NewGenerationTask(run.ID, newFakeRunStore(run), gen, setupTestLogger())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- task.Execute(context.Background())
	}()

	<-gen.started
	assert.Equal(t, TaskStatusProcessing, task.Status())
	close(gen.release)

	require.NoError(t, <-done)
	assert.Equal(t, TaskStatusCompleted, task.Status())
}
