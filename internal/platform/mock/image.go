package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"sync/atomic"

	"github.com/phrazzld/longform/internal/generation"
)

// URLScheme prefixes every URL handed out by ImageService.
const URLScheme = "mock://image/"

// imageSide is the width and height of images produced by Fetcher.
const imageSide = 64

// ImageService hands out mock:// URLs without generating anything.
type ImageService struct {
	calls atomic.Int64
}

var _ generation.ImageService = (*ImageService)(nil)

// Generate returns a unique mock URL for every call.
func (s *ImageService) Generate(ctx context.Context, req generation.ImageRequest) (*generation.ImageResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := s.calls.Add(1)
	return &generation.ImageResponse{
		Data: []generation.ImageData{{URL: fmt.Sprintf("%s%d", URLScheme, n)}},
	}, nil
}

// Calls returns how many images were requested.
func (s *ImageService) Calls() int64 {
	return s.calls.Load()
}

// Fetcher returns a solid image whose color is derived from the URL.
type Fetcher struct{}

var _ generation.ImageFetcher = Fetcher{}

// Fetch ignores the network and paints a deterministic square.
func (Fetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(url))
	sum := h.Sum32()
	fill := color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 255}

	img := image.NewRGBA(image.Rect(0, 0, imageSide, imageSide))
	for y := 0; y < imageSide; y++ {
		for x := 0; x < imageSide; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	return img, nil
}
