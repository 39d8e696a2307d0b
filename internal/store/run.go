package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/longform/internal/domain"
	"github.com/phrazzld/longform/internal/events"
)

// RunStore defines the interface for run persistence.
type RunStore interface {
	// Create saves a new run together with the OpenAI key it should use,
	// which may be empty. It returns the recorder that observes the run.
	// Returns ErrRunExists if a run with the same ID is stored.
	Create(ctx context.Context, run *domain.Run, apiKey string) (*events.Recorder, error)

	// GetRun retrieves a copy of a run by its ID.
	// Returns ErrRunNotFound if the run does not exist.
	GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error)

	// UpdateRun saves changes to an existing run.
	// Returns ErrRunNotFound if the run does not exist.
	UpdateRun(ctx context.Context, run *domain.Run) error

	// Recorder returns the event recorder of a run.
	Recorder(ctx context.Context, id uuid.UUID) (*events.Recorder, error)

	// TakeAPIKey returns the run's API key and forgets it.
	TakeAPIKey(ctx context.Context, id uuid.UUID) (string, error)

	// SetArtifacts records the files a run produced.
	SetArtifacts(ctx context.Context, id uuid.UUID, artifacts domain.Artifacts) error

	// Artifacts returns the files a run produced so far.
	Artifacts(ctx context.Context, id uuid.UUID) (domain.Artifacts, error)

	// EvictExpired forgets finished runs last updated before cutoff and
	// returns how many were removed. Pending and processing runs are kept.
	EvictExpired(ctx context.Context, cutoff time.Time) (int, error)
}
