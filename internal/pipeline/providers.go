package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/longform/internal/config"
	"github.com/phrazzld/longform/internal/generation"
	"github.com/phrazzld/longform/internal/platform/gemini"
	"github.com/phrazzld/longform/internal/platform/httpfetch"
	"github.com/phrazzld/longform/internal/platform/mock"
	"github.com/phrazzld/longform/internal/platform/openai"
)

// Supported values of llm.provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// Services are the external capabilities a run calls.
type Services struct {
	Text    generation.TextService
	Images  generation.ImageService
	Fetcher generation.ImageFetcher
}

// ServiceFactory builds the services for one run. A non-empty apiKey
// replaces the configured OpenAI key for that run only. A missing credential
// is reported as generation.ErrMissingCredential.
type ServiceFactory func(ctx context.Context, apiKey string) (Services, error)

// NewServiceFactory returns a factory for the configured provider. The
// gemini provider only writes text; images always come from OpenAI.
func NewServiceFactory(cfg config.LLMConfig, logger *slog.Logger) ServiceFactory {
	return func(ctx context.Context, apiKey string) (Services, error) {
		if cfg.Provider == ProviderMock {
			return Services{
				Text:    mock.TextService{},
				Images:  &mock.ImageService{},
				Fetcher: mock.Fetcher{},
			}, nil
		}

		openaiKey := cfg.OpenAIAPIKey
		if apiKey != "" {
			openaiKey = apiKey
		}
		if openaiKey == "" {
			return Services{}, fmt.Errorf("%w: no OpenAI API key configured", generation.ErrMissingCredential)
		}

		var (
			text generation.TextService
			err  error
		)
		switch cfg.Provider {
		case ProviderGemini:
			if cfg.GeminiAPIKey == "" {
				return Services{}, fmt.Errorf("%w: no Gemini API key configured", generation.ErrMissingCredential)
			}
			text, err = gemini.NewTextService(ctx, logger, gemini.Options{
				APIKey:  cfg.GeminiAPIKey,
				Model:   cfg.GeminiModel,
				Timeout: cfg.TextTimeout,
			})
		case ProviderOpenAI, "":
			text, err = openai.NewTextService(openai.Options{
				APIKey:  openaiKey,
				BaseURL: cfg.BaseURL,
				Model:   cfg.TextModel,
				Timeout: cfg.TextTimeout,
			}, logger)
		default:
			return Services{}, fmt.Errorf("%w: unknown provider %q", generation.ErrInvalidConfig, cfg.Provider)
		}
		if err != nil {
			return Services{}, fmt.Errorf("failed to create text service: %w", err)
		}

		images, err := openai.NewImageService(openai.Options{
			APIKey:  openaiKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.ImageModel,
			Timeout: cfg.ImageTimeout,
		}, logger)
		if err != nil {
			return Services{}, fmt.Errorf("failed to create image service: %w", err)
		}

		fetcher, err := httpfetch.New(nil, cfg.DownloadTimeout, logger)
		if err != nil {
			return Services{}, fmt.Errorf("failed to create image fetcher: %w", err)
		}

		return Services{Text: text, Images: images, Fetcher: fetcher}, nil
	}
}
