package openai

import (
	"context"
	"log/slog"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/phrazzld/longform/internal/generation"
)

// TextService implements generation.TextService over chat completions.
type TextService struct {
	client  openaisdk.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

var _ generation.TextService = (*TextService)(nil)

// NewTextService creates a text service. A missing API key yields
// generation.ErrMissingCredential.
func NewTextService(opts Options, logger *slog.Logger) (*TextService, error) {
	log, err := componentLogger(logger, "text")
	if err != nil {
		return nil, err
	}
	client, err := newSDKClient(opts)
	if err != nil {
		return nil, err
	}
	return &TextService{
		client:  client,
		model:   opts.Model,
		timeout: opts.Timeout,
		logger:  log,
	}, nil
}

// Generate makes one chat completion call.
func (s *TextService) Generate(ctx context.Context, req generation.TextRequest) (*generation.TextResponse, error) {
	model := req.Model
	if model == "" {
		model = s.model
	}

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openaisdk.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openaisdk.UserMessage(req.Prompt))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(req.MaxTokens))
	}

	start := time.Now()
	resp, err := s.client.Chat.Completions.New(ctx, params, option.WithRequestTimeout(s.timeout))
	if err != nil {
		mapped := mapError(ctx, err)
		s.logger.DebugContext(ctx, "chat completion failed",
			"model", model,
			"duration", time.Since(start),
			"error", mapped)
		return nil, mapped
	}

	out := &generation.TextResponse{Choices: make([]generation.TextChoice, 0, len(resp.Choices))}
	for _, choice := range resp.Choices {
		out.Choices = append(out.Choices, generation.TextChoice{
			Message: generation.TextMessage{Content: choice.Message.Content},
		})
	}

	s.logger.DebugContext(ctx, "chat completion succeeded",
		"model", model,
		"choices", len(out.Choices),
		"duration", time.Since(start))
	return out, nil
}
