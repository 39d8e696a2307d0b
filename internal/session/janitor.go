package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// RunEvictor forgets run records that outlived their sessions.
type RunEvictor interface {
	EvictExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// JanitorOption configures a Janitor.
type JanitorOption func(*Janitor)

// WithRunEvictor evicts run records older than the session TTL on every sweep.
func WithRunEvictor(e RunEvictor) JanitorOption {
	return func(j *Janitor) {
		j.evictor = e
	}
}

// Janitor sweeps expired sessions on a fixed interval.
type Janitor struct {
	store     *Store
	evictor   RunEvictor
	ttl       time.Duration
	interval  time.Duration
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// NewJanitor creates a Janitor. Nothing runs until Start.
func NewJanitor(store *Store, ttl, interval time.Duration, logger *slog.Logger, opts ...JanitorOption) (*Janitor, error) {
	if store == nil {
		return nil, errors.New("session store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if ttl <= 0 || interval <= 0 {
		return nil, errors.New("ttl and interval must be positive")
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	j := &Janitor{
		store:     store,
		ttl:       ttl,
		interval:  interval,
		scheduler: s,
		logger:    logger.With("component", "session_janitor"),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Start schedules the sweep, running it once immediately. The job stops
// when ctx is cancelled or Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	_, err := j.scheduler.NewJob(
		gocron.DurationJob(j.interval),
		gocron.NewTask(j.sweep),
		gocron.WithName("session-sweep"),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	j.scheduler.Start()
	j.logger.InfoContext(ctx, "session janitor started",
		"interval", j.interval,
		"ttl", j.ttl)
	return nil
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (j *Janitor) Stop() error {
	if err := j.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop session janitor: %w", err)
	}
	j.logger.Info("session janitor stopped")
	return nil
}

func (j *Janitor) sweep(ctx context.Context) {
	removed, err := j.store.SweepExpired(ctx, j.ttl)
	if err != nil {
		j.logger.ErrorContext(ctx, "session sweep failed", "error", err)
		return
	}
	j.logger.DebugContext(ctx, "session sweep finished", "removed", removed)

	if j.evictor == nil {
		return
	}
	evicted, err := j.evictor.EvictExpired(ctx, j.store.now().Add(-j.ttl))
	if err != nil {
		j.logger.ErrorContext(ctx, "run eviction failed", "error", err)
		return
	}
	if evicted > 0 {
		j.logger.InfoContext(ctx, "evicted expired runs", "evicted", evicted)
	}
}
