package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/longform/internal/domain"
	"github.com/phrazzld/longform/internal/events"
)

type runEntry struct {
	run       domain.Run
	apiKey    string
	recorder  *events.Recorder
	artifacts domain.Artifacts
}

// MemoryRunStore implements RunStore in process memory.
type MemoryRunStore struct {
	mu          sync.RWMutex
	runs        map[uuid.UUID]*runEntry
	logCapacity int
}

var _ RunStore = (*MemoryRunStore)(nil)

// NewMemoryRunStore creates an empty store whose recorders keep up to
// logCapacity log lines per run (events.DefaultLogCapacity if <= 0).
func NewMemoryRunStore(logCapacity int) *MemoryRunStore {
	return &MemoryRunStore{
		runs:        make(map[uuid.UUID]*runEntry),
		logCapacity: logCapacity,
	}
}

// Create implements RunStore.
func (s *MemoryRunStore) Create(_ context.Context, run *domain.Run, apiKey string) (*events.Recorder, error) {
	if err := run.Validate(); err != nil {
		return nil, NewStoreError("run", "create", "validation failed", fmt.Errorf("%w: %w", ErrInvalidEntity, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrRunExists, run.ID)
	}
	rec := events.NewRecorder(s.logCapacity)
	s.runs[run.ID] = &runEntry{
		run:      *run,
		apiKey:   apiKey,
		recorder: rec,
	}
	return rec, nil
}

// GetRun implements RunStore.
func (s *MemoryRunStore) GetRun(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	run := e.run
	return &run, nil
}

// UpdateRun implements RunStore.
func (s *MemoryRunStore) UpdateRun(_ context.Context, run *domain.Run) error {
	if err := run.Validate(); err != nil {
		return NewStoreError("run", "update", "validation failed", fmt.Errorf("%w: %w", ErrInvalidEntity, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.runs[run.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	e.run = *run
	return nil
}

// Recorder implements RunStore.
func (s *MemoryRunStore) Recorder(_ context.Context, id uuid.UUID) (*events.Recorder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return e.recorder, nil
}

// TakeAPIKey implements RunStore.
func (s *MemoryRunStore) TakeAPIKey(_ context.Context, id uuid.UUID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.runs[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	key := e.apiKey
	e.apiKey = ""
	return key, nil
}

// SetArtifacts implements RunStore.
func (s *MemoryRunStore) SetArtifacts(_ context.Context, id uuid.UUID, artifacts domain.Artifacts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	e.artifacts = artifacts
	return nil
}

// Artifacts implements RunStore.
func (s *MemoryRunStore) Artifacts(_ context.Context, id uuid.UUID) (domain.Artifacts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.runs[id]
	if !ok {
		return domain.Artifacts{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return e.artifacts, nil
}

// EvictExpired implements RunStore.
func (s *MemoryRunStore) EvictExpired(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.runs {
		if e.run.IsTerminal() && e.run.UpdatedAt.Before(cutoff) {
			delete(s.runs, id)
			removed++
		}
	}
	return removed, nil
}
