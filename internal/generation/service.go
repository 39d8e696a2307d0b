package generation

import (
	"context"
	"fmt"
	"image"
	"strings"
)

// ImageSize1024 is the only image size the pipelines request.
const ImageSize1024 = "1024x1024"

// TextRequest is a single prompt for the text service.
type TextRequest struct {
	Prompt       string
	SystemPrompt string
	Model        string
	MaxTokens    int
}

// TextResponse mirrors the chat completion shape {choices: [{message: {content}}]}.
type TextResponse struct {
	Choices []TextChoice `json:"choices"`
}

// TextChoice is one completion candidate.
type TextChoice struct {
	Message TextMessage `json:"message"`
}

// TextMessage holds the generated text.
type TextMessage struct {
	Content string `json:"content"`
}

// Content returns the text of the first choice. A response without choices
// or with only whitespace content is rejected with ErrInvalidResponse.
func (r *TextResponse) Content() (string, error) {
	if r == nil || len(r.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}
	content := r.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty content", ErrInvalidResponse)
	}
	return content, nil
}

// ImageRequest asks for one image.
type ImageRequest struct {
	Prompt string
	Size   string
	Style  string
}

// ImageResponse mirrors the image generation shape {data: [{url}]}.
type ImageResponse struct {
	Data []ImageData `json:"data"`
}

// ImageData references one generated image.
type ImageData struct {
	URL string `json:"url"`
}

// URL returns the first image URL or ErrInvalidResponse.
func (r *ImageResponse) URL() (string, error) {
	if r == nil || len(r.Data) == 0 {
		return "", fmt.Errorf("%w: no image data", ErrInvalidResponse)
	}
	if r.Data[0].URL == "" {
		return "", fmt.Errorf("%w: empty image url", ErrInvalidResponse)
	}
	return r.Data[0].URL, nil
}

// TextService generates text from a prompt.
// Implementations make exactly one upstream call per invocation; retries are
// the caller's concern.
type TextService interface {
	Generate(ctx context.Context, req TextRequest) (*TextResponse, error)
}

// ImageService generates an image and returns where it can be downloaded.
// Implementations make exactly one upstream call per invocation.
type ImageService interface {
	Generate(ctx context.Context, req ImageRequest) (*ImageResponse, error)
}

// ImageFetcher downloads and decodes an image by URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (image.Image, error)
}
