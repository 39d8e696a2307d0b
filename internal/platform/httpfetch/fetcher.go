// Package httpfetch downloads generated images by URL and decodes them.
//
// Image URLs returned by the image service are short-lived signed links, so
// the fetcher makes a single bounded GET and reports failures in the
// generation error taxonomy. Retries belong to the caller.
package httpfetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/phrazzld/longform/internal/generation"
)

// MaxImageBytes caps the size of a downloaded image.
const MaxImageBytes = 32 * 1024 * 1024

// ErrTooLarge is returned when the response body exceeds MaxImageBytes.
var ErrTooLarge = errors.New("image response too large")

// Fetcher implements generation.ImageFetcher over net/http.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

var _ generation.ImageFetcher = (*Fetcher)(nil)

// New creates a Fetcher. A nil client gets a default client with the given
// timeout.
func New(client *http.Client, timeout time.Duration, logger *slog.Logger) (*Fetcher, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if client == nil {
		if timeout <= 0 {
			return nil, fmt.Errorf("%w: download timeout must be positive", generation.ErrInvalidConfig)
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{
		client: client,
		logger: logger.With("component", "image_fetcher"),
	}, nil
}

// Fetch downloads the image at rawURL and decodes it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (image.Image, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid image url: %v", generation.ErrInvalidResponse, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported url scheme %q", generation.ErrInvalidResponse, parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, fmt.Errorf("%w: download image: %w", generation.ErrTransport, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, generation.FromStatus(resp.StatusCode, fmt.Errorf("download image: HTTP %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read image body: %w", generation.ErrTransport, err)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%w: %w", generation.ErrInvalidResponse, ErrTooLarge)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", generation.ErrInvalidResponse, err)
	}

	f.logger.DebugContext(ctx, "image downloaded",
		"format", format,
		"bytes", len(data),
		"duration", time.Since(start))
	return img, nil
}
