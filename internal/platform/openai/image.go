package openai

import (
	"context"
	"log/slog"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/phrazzld/longform/internal/generation"
)

// ImageService implements generation.ImageService over the images API.
type ImageService struct {
	client  openaisdk.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

var _ generation.ImageService = (*ImageService)(nil)

// NewImageService creates an image service. Options.Model is the image model,
// normally dall-e-3.
func NewImageService(opts Options, logger *slog.Logger) (*ImageService, error) {
	log, err := componentLogger(logger, "image")
	if err != nil {
		return nil, err
	}
	client, err := newSDKClient(opts)
	if err != nil {
		return nil, err
	}
	return &ImageService{
		client:  client,
		model:   opts.Model,
		timeout: opts.Timeout,
		logger:  log,
	}, nil
}

// Generate requests one image and returns its download URL.
func (s *ImageService) Generate(ctx context.Context, req generation.ImageRequest) (*generation.ImageResponse, error) {
	size := req.Size
	if size == "" {
		size = generation.ImageSize1024
	}
	style := openaisdk.ImageGenerateParamsStyleVivid
	if req.Style == string(openaisdk.ImageGenerateParamsStyleNatural) {
		style = openaisdk.ImageGenerateParamsStyleNatural
	}

	params := openaisdk.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openaisdk.ImageModel(s.model),
		N:              openaisdk.Int(1),
		Size:           openaisdk.ImageGenerateParamsSize(size),
		Style:          style,
		Quality:        openaisdk.ImageGenerateParamsQualityStandard,
		ResponseFormat: openaisdk.ImageGenerateParamsResponseFormatURL,
	}

	start := time.Now()
	resp, err := s.client.Images.Generate(ctx, params, option.WithRequestTimeout(s.timeout))
	if err != nil {
		mapped := mapError(ctx, err)
		s.logger.DebugContext(ctx, "image generation failed",
			"model", s.model,
			"duration", time.Since(start),
			"error", mapped)
		return nil, mapped
	}

	out := &generation.ImageResponse{Data: make([]generation.ImageData, 0, len(resp.Data))}
	for _, img := range resp.Data {
		out.Data = append(out.Data, generation.ImageData{URL: img.URL})
	}

	s.logger.DebugContext(ctx, "image generation succeeded",
		"model", s.model,
		"duration", time.Since(start))
	return out, nil
}
