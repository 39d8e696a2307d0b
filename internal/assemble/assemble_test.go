package assemble

import (
	"strings"
	"testing"

	"github.com/phrazzld/longform/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine(t *testing.T) {
	sections := []domain.SectionResult{
		{Index: 1, Content: "# B\n\nsecond\n\n" + domain.EndMarker},
		{Index: 0, Content: "# A\n\nfirst\n\n" + domain.EndMarker + "\n"},
		{Index: 2, Content: "# C\n\nthird"},
	}

	got := Combine(sections)

	assert.Equal(t, "# A\n\nfirst\n\n# B\n\nsecond\n\n# C\n\nthird\n", got)
	assert.Equal(t, 1, sections[0].Index, "input is not reordered")
}

func TestCombineIsIdempotent(t *testing.T) {
	sections := []domain.SectionResult{
		{Index: 0, Content: "# A\n\nfirst " + domain.EndMarker},
		{Index: 1, Content: "# B\n\n" + domain.EndMarker + "\n\n\n"},
	}

	once := Combine(sections)
	twice := Combine([]domain.SectionResult{{Index: 0, Content: once}})

	assert.Equal(t, once, twice)
	assert.NotContains(t, twice, domain.EndMarker)
}

func TestCombineEmpty(t *testing.T) {
	assert.Equal(t, "\n", Combine(nil))
}

func TestInsertImages(t *testing.T) {
	t.Run("inserts after matching heading only", func(t *testing.T) {
		doc := "# A\ncontent\n# B\nmore"
		got := InsertImages(doc, []domain.ImageResult{{Index: 0, Path: "/tmp/s/images/img0.png"}}, "images/")

		assert.Equal(t, "# A\n\n![A](images/img0.png)\n\ncontent\n# B\nmore", got)
	})

	t.Run("skips sections without image", func(t *testing.T) {
		doc := "# A\n# B\n# C"
		got := InsertImages(doc, []domain.ImageResult{
			{Index: 0},
			{Index: 1, Path: "section_02.png"},
			{Index: 2},
		}, "images/")

		assert.Equal(t, "# A\n# B\n\n![B](images/section_02.png)\n\n# C", got)
	})

	t.Run("subheadings do not advance the counter", func(t *testing.T) {
		doc := "# A\n## a1\n## a2\n# B\n### deep"
		got := InsertImages(doc, []domain.ImageResult{{Index: 1, Path: "b.png"}}, "")

		assert.Equal(t, "# A\n## a1\n## a2\n# B\n\n![B](b.png)\n\n### deep", got)
	})

	t.Run("at most one image per section", func(t *testing.T) {
		doc := "# A\ntext"
		got := InsertImages(doc, []domain.ImageResult{
			{Index: 0, Path: "first.png"},
			{Index: 0, Path: "first.png"},
		}, "images/")

		assert.Equal(t, 1, strings.Count(got, "!["))
	})

	t.Run("no images leaves document unchanged", func(t *testing.T) {
		doc := "# A\ntext\n"
		assert.Equal(t, doc, InsertImages(doc, nil, "images/"))
	})

	t.Run("heading without space is not top level", func(t *testing.T) {
		doc := "#hashtag\n# A"
		got := InsertImages(doc, []domain.ImageResult{{Index: 0, Path: "a.png"}}, "")

		assert.Equal(t, "#hashtag\n# A\n\n![A](a.png)\n", got)
	})
}

func TestCombineThenInsert(t *testing.T) {
	sections := []domain.SectionResult{
		{Index: 0, Heading: "One", Content: "# One\n\n## Sub\n\nbody\n\n" + domain.EndMarker},
		{Index: 1, Heading: "Two", Content: "# Two\n\nbody\n\n" + domain.EndMarker},
	}
	images := []domain.ImageResult{
		{Index: 0, Path: "/s/images/section_01.png"},
		{Index: 1, Path: "/s/images/section_02.png"},
	}

	got := InsertImages(Combine(sections), images, "images/")

	assert.Contains(t, got, "# One\n\n![One](images/section_01.png)\n\n")
	assert.Contains(t, got, "# Two\n\n![Two](images/section_02.png)\n\n")
}

func TestRenderHTML(t *testing.T) {
	page, err := RenderHTML("Go <Guide>", "# One\n\n![One](images/section_01.png)\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.Contains(t, page, "<title>Go &lt;Guide&gt;</title>")
	assert.Contains(t, page, "<h1>One</h1>")
	assert.Contains(t, page, `<img src="images/section_01.png" alt="One">`)
	assert.Contains(t, page, "<table>")
}
