// Package retry provides the explicit backoff policy used for every call to an
// external generation service.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/longform/internal/config"
	"github.com/phrazzld/longform/internal/generation"
)

// ErrExhausted is returned when every attempt of a policy failed.
// The last underlying error is wrapped alongside it.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy encapsulates an exponential backoff schedule for transient failures.
// The delay before retry n (1-based) is Initial * 2^(n-1), capped at Max.
type Policy struct {
	// Name identifies the policy in logs and metrics ("text", "image").
	Name        string
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration

	// Retryable decides whether a failure is worth another attempt.
	// Defaults to generation.IsRetryable.
	Retryable func(error) bool

	// Sleep waits between attempts. Defaults to a timer that honours ctx.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry, when set, is called before every wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// FromConfig builds a policy from a configured backoff schedule.
func FromConfig(name string, cfg config.BackoffConfig) Policy {
	return Policy{
		Name:        name,
		MaxAttempts: cfg.MaxAttempts,
		Initial:     cfg.Initial,
		Max:         cfg.Max,
	}
}

// Text returns the schedule for text calls: 5 attempts, 2s doubling to 60s.
func Text() Policy {
	return Policy{Name: "text", MaxAttempts: 5, Initial: 2 * time.Second, Max: 60 * time.Second}
}

// Image returns the schedule for image calls: 3 attempts, 2s doubling to 30s.
func Image() Policy {
	return Policy{Name: "image", MaxAttempts: 3, Initial: 2 * time.Second, Max: 30 * time.Second}
}

// Delay returns the backoff delay for the given retry number (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	d := p.Initial
	for i := 1; i < retryCount; i++ {
		if d >= p.Max {
			break
		}
		d *= 2
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Validate ensures invariants; returns error if policy impossible to apply.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >=1")
	}
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max < p.Initial {
		return fmt.Errorf("max must be >= initial")
	}
	return nil
}

// Do runs op until it succeeds, returns a non-retryable error, or the policy
// runs out of attempts. Cancellation of ctx stops the loop between attempts.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, fmt.Errorf("invalid %s retry policy: %w", p.Name, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = generation.IsRetryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("%w: %w", err, lastErr)
			}
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.DebugContext(ctx, "call succeeded after retry",
					"policy", p.Name,
					"attempt", attempt)
			}
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			logger.WarnContext(ctx, "permanent error, not retrying",
				"policy", p.Name,
				"attempt", attempt,
				"error", err)
			return zero, err
		}

		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt)
		logger.InfoContext(ctx, "retrying after delay",
			"policy", p.Name,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"delay", delay,
			"error", err)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%w: %w", err, lastErr)
		}
	}

	logger.WarnContext(ctx, "maximum retry attempts reached",
		"policy", p.Name,
		"max_attempts", p.MaxAttempts,
		"error", lastErr)
	return zero, fmt.Errorf("%w (%s, %d attempts): %w", ErrExhausted, p.Name, p.MaxAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
