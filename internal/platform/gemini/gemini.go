package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/longform/internal/generation"
	"google.golang.org/genai"
)

// Options configures a Gemini text service.
type Options struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL    string
	HTTPClient *http.Client
}

// TextService implements generation.TextService using Google's Gemini API.
type TextService struct {
	// logger is used for structured logging
	logger *slog.Logger

	// client is the Gemini API client for making requests
	client *genai.Client

	// model is the default Gemini model
	model string

	// timeout bounds every call
	timeout time.Duration
}

var _ generation.TextService = (*TextService)(nil)

// NewTextService creates a new TextService with the provided dependencies.
//
// Parameters:
//   - ctx: Context for client construction
//   - logger: A structured logger for operation logging
//   - opts: API key, model name and per-call timeout
//
// Returns:
//   - A properly initialized TextService or an error if initialization fails
func NewTextService(ctx context.Context, logger *slog.Logger, opts Options) (*TextService, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	// Validate configuration
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrMissingCredential)
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive", generation.ErrInvalidConfig)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		clientConfig.HTTPOptions.BaseURL = opts.BaseURL
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &TextService{
		logger:  logger.With("component", "gemini"),
		client:  client,
		model:   opts.Model,
		timeout: opts.Timeout,
	}, nil
}

// Generate makes one GenerateContent call and returns the text in the shared
// response shape. req.Model overrides the configured model only when it names
// a Gemini model, so OpenAI model names in pipeline defaults are ignored.
func (s *TextService) Generate(ctx context.Context, req generation.TextRequest) (*generation.TextResponse, error) {
	model := s.model
	if strings.HasPrefix(req.Model, "gemini") {
		model = req.Model
	}

	config := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.client.Models.GenerateContent(callCtx, model, genai.Text(req.Prompt), config)
	if err != nil {
		mapped := mapError(ctx, err)
		s.logger.DebugContext(ctx, "Gemini API call failed",
			"model", model,
			"duration", time.Since(start),
			"error", mapped)
		return nil, mapped
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates in response", generation.ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: finish reason %s", generation.ErrContentBlocked, resp.Candidates[0].FinishReason)
	}

	s.logger.DebugContext(ctx, "Gemini API call successful",
		"model", model,
		"duration", time.Since(start))

	return &generation.TextResponse{
		Choices: []generation.TextChoice{{Message: generation.TextMessage{Content: resp.Text()}}},
	}, nil
}

// mapError translates a genai failure into the generation taxonomy.
func mapError(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return generation.FromStatus(apiErr.Code, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return fmt.Errorf("%w: %w", generation.ErrTransport, err)
}
