// Package openai adapts the official OpenAI SDK to the generation service
// contracts: chat completions for text and DALL-E for images.
//
// The SDK's own retries are disabled. Every call is a single attempt bounded
// by a per-call timeout, and failures are translated into the generation error
// taxonomy so that internal/retry can apply the pipeline's backoff schedule.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/phrazzld/longform/internal/generation"
)

// Options configures the SDK client shared by the text and image services.
type Options struct {
	APIKey  string
	BaseURL string
	// Model is the default model when a request does not name one.
	Model   string
	Timeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

func newSDKClient(opts Options) (openaisdk.Client, error) {
	if opts.APIKey == "" {
		return openaisdk.Client{}, fmt.Errorf("%w: openai api key is empty", generation.ErrMissingCredential)
	}
	if opts.Model == "" {
		return openaisdk.Client{}, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	if opts.Timeout <= 0 {
		return openaisdk.Client{}, fmt.Errorf("%w: timeout must be positive", generation.ErrInvalidConfig)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return openaisdk.NewClient(reqOpts...), nil
}

// mapError translates an SDK failure into the generation taxonomy.
func mapError(ctx context.Context, err error) error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		return generation.FromStatus(apiErr.StatusCode, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		// The caller gave up; this is not an upstream failure
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out: %w", generation.ErrTransport, err)
	}
	return fmt.Errorf("%w: %w", generation.ErrTransport, err)
}

func componentLogger(logger *slog.Logger, service string) (*slog.Logger, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return logger.With("component", "openai", "service", service), nil
}
