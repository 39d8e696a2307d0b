package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phrazzld/longform/internal/domain"
	"github.com/phrazzld/longform/internal/generation"
)

var (
	mainCountPattern = regexp.MustCompile(`[Ee]xactly (\d+) main headings`)
	subCountPattern  = regexp.MustCompile(`[Ee]xactly (\d+) subheadings`)
	topicPattern     = regexp.MustCompile(`about "([^"]+)"`)
)

// TextService answers prompts without calling any model.
type TextService struct{}

var _ generation.TextService = TextService{}

// Generate returns a canned response shaped after the prompt.
func (TextService) Generate(ctx context.Context, req generation.TextRequest) (*generation.TextResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var content string
	switch {
	case strings.Contains(req.Prompt, `"outline"`):
		content = outlineResponse(req.Prompt)
	case strings.Contains(req.Prompt, "Section Heading:"):
		content = sectionResponse(req.Prompt)
	default:
		content = "A wide, sunlit workshop with long wooden tables covered in sketches, " +
			"warm amber light falling across open notebooks and scattered tools."
	}

	return &generation.TextResponse{
		Choices: []generation.TextChoice{{Message: generation.TextMessage{Content: content}}},
	}, nil
}

func outlineResponse(prompt string) string {
	mainCount := matchInt(mainCountPattern, prompt, 3)
	subCount := matchInt(subCountPattern, prompt, 2)
	topic := "the topic"
	if m := topicPattern.FindStringSubmatch(prompt); m != nil {
		topic = m[1]
	}

	outline := domain.Outline{Sections: make([]domain.Section, 0, mainCount)}
	for i := 1; i <= mainCount; i++ {
		section := domain.Section{Heading: fmt.Sprintf("Part %d of %s", i, topic)}
		for j := 1; j <= subCount; j++ {
			section.Subheadings = append(section.Subheadings, fmt.Sprintf("Point %d.%d", i, j))
		}
		outline.Sections = append(outline.Sections, section)
	}

	data, err := json.Marshal(outline)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// sectionResponse rebuilds the section from the heading and subheading lines
// of a section prompt.
func sectionResponse(prompt string) string {
	var heading string
	var subheadings []string

	lines := strings.Split(prompt, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case line == "Section Heading:" && i+1 < len(lines):
			heading = strings.TrimSpace(lines[i+1])
			i++
		case strings.HasPrefix(line, "- "):
			subheadings = append(subheadings, strings.TrimPrefix(line, "- "))
		}
	}
	if heading == "" {
		heading = "Untitled Section"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", heading)
	fmt.Fprintf(&sb, "An overview of %s.\n\n", heading)
	for _, sub := range subheadings {
		fmt.Fprintf(&sb, "## %s\n\n", sub)
		fmt.Fprintf(&sb, "Details about %s.\n\n", sub)
	}
	sb.WriteString("In summary, this section covered the essentials.\n\n")
	sb.WriteString(domain.EndMarker)
	return sb.String()
}

func matchInt(pattern *regexp.Regexp, s string, fallback int) int {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return fallback
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
