package mock

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/phrazzld/longform/internal/domain"
	"github.com/phrazzld/longform/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextServiceOutline(t *testing.T) {
	resp, err := TextService{}.Generate(context.Background(), generation.TextRequest{
		Prompt: `Create an outline about "Go" with exactly 4 main headings and exactly 3 subheadings. ` +
			`Return {"outline": [...]}`,
	})
	require.NoError(t, err)
	content, err := resp.Content()
	require.NoError(t, err)

	var outline domain.Outline
	require.NoError(t, json.Unmarshal([]byte(content), &outline))
	assert.True(t, outline.Conforms(4, 3))
	assert.Equal(t, "Part 1 of Go", outline.Sections[0].Heading)
}

func TestTextServiceSection(t *testing.T) {
	prompt := "Write a section.\n\nSection Heading:\nChannels\n\nSubheadings to Cover:\n- Buffered\n- Unbuffered\n"
	resp, err := TextService{}.Generate(context.Background(), generation.TextRequest{Prompt: prompt})
	require.NoError(t, err)
	content, err := resp.Content()
	require.NoError(t, err)

	assert.Contains(t, content, "# Channels\n")
	assert.Contains(t, content, "## Buffered")
	assert.Contains(t, content, "## Unbuffered")
	assert.Contains(t, content, domain.EndMarker)
}

func TestTextServiceCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := TextService{}.Generate(ctx, generation.TextRequest{Prompt: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImageServiceAndFetcher(t *testing.T) {
	ctx := context.Background()
	svc := &ImageService{}

	first, err := svc.Generate(ctx, generation.ImageRequest{Prompt: "a"})
	require.NoError(t, err)
	second, err := svc.Generate(ctx, generation.ImageRequest{Prompt: "b"})
	require.NoError(t, err)

	url1, err := first.URL()
	require.NoError(t, err)
	url2, err := second.URL()
	require.NoError(t, err)
	assert.NotEqual(t, url1, url2)
	assert.EqualValues(t, 2, svc.Calls())

	img, err := Fetcher{}.Fetch(ctx, url1)
	require.NoError(t, err)
	assert.Equal(t, imageSide, img.Bounds().Dx())

	again, err := Fetcher{}.Fetch(ctx, url1)
	require.NoError(t, err)
	assert.Equal(t, img.At(0, 0), again.At(0, 0))
}
