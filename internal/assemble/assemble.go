// Package assemble merges generated sections into one markdown document and
// places illustrations under their section headings.
package assemble

import (
	"bytes"
	"fmt"
	"html"
	"path/filepath"
	"strings"

	"github.com/phrazzld/longform/internal/domain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// sectionSeparator joins sections in the combined document.
const sectionSeparator = "\n\n"

// StripMarker removes every end-of-section marker from content.
func StripMarker(content string) string {
	return strings.ReplaceAll(content, domain.EndMarker, "")
}

// Combine concatenates sections in index order, without end markers,
// separated by a blank line. The input slice is not modified. Combining the
// output again (as a single section) yields the same text.
func Combine(sections []domain.SectionResult) string {
	ordered := append([]domain.SectionResult(nil), sections...)
	domain.SortSectionResults(ordered)

	parts := make([]string, 0, len(ordered))
	for _, s := range ordered {
		parts = append(parts, strings.TrimRight(StripMarker(s.Content), " \t\r\n"))
	}
	return strings.Join(parts, sectionSeparator) + "\n"
}

// isTopLevelHeading reports whether line is a "# " heading.
func isTopLevelHeading(line string) bool {
	return strings.HasPrefix(line, "# ")
}

// InsertImages adds an image reference after each top-level heading whose
// position in the document matches a section with an image. The n-th "# "
// line is taken to be section n; every section gets at most one image.
// The reference is prefix followed by the image's file name.
func InsertImages(document string, images []domain.ImageResult, prefix string) string {
	byIndex := make(map[int]string, len(images))
	for _, img := range images {
		if img.HasImage() {
			byIndex[img.Index] = filepath.Base(img.Path)
		}
	}

	lines := strings.Split(document, "\n")
	out := make([]string, 0, len(lines)+3*len(byIndex))
	inserted := make(map[int]bool, len(byIndex))
	current := 0

	for _, line := range lines {
		out = append(out, line)
		if !isTopLevelHeading(line) {
			continue
		}
		if name, ok := byIndex[current]; ok && !inserted[current] {
			alt := strings.TrimLeft(line, "# ")
			out = append(out, "", fmt.Sprintf("![%s](%s%s)", alt, prefix, name), "")
			inserted[current] = true
		}
		current++
	}
	return strings.Join(out, "\n")
}

var renderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderHTML converts a markdown document into a standalone HTML page. Image
// references keep their relative paths, so the page displays correctly next
// to an images directory.
func RenderHTML(title, markdown string) (string, error) {
	var body bytes.Buffer
	if err := renderer.Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(title))
	sb.WriteString("<style>body{max-width:46rem;margin:2rem auto;padding:0 1rem;font-family:Georgia,serif;line-height:1.6}" +
		"img{max-width:100%;height:auto}</style>\n</head>\n<body>\n")
	sb.Write(body.Bytes())
	sb.WriteString("</body>\n</html>\n")
	return sb.String(), nil
}
