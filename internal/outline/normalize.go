package outline

import (
	"fmt"

	"github.com/phrazzld/longform/internal/domain"
)

// Normalize returns a copy of o with exactly mainCount sections and exactly
// subCount subheadings per section. Short lists are padded with synthesized
// headings, long lists are truncated.
func Normalize(o domain.Outline, topic string, mainCount, subCount int) domain.Outline {
	sections := make([]domain.Section, 0, mainCount)
	for i, s := range o.Sections {
		if i == mainCount {
			break
		}
		sections = append(sections, domain.Section{
			Heading:     s.Heading,
			Subheadings: normalizeSubheadings(s, subCount),
		})
	}

	for i := len(sections); i < mainCount; i++ {
		section := domain.Section{
			Heading:     fmt.Sprintf("Additional Topic %d on %s", i+1, topic),
			Subheadings: make([]string, 0, subCount),
		}
		for j := 1; j <= subCount; j++ {
			section.Subheadings = append(section.Subheadings, fmt.Sprintf("Aspect %d of Topic %d", j, i+1))
		}
		sections = append(sections, section)
	}

	return domain.Outline{Sections: sections}
}

func normalizeSubheadings(s domain.Section, subCount int) []string {
	subs := s.Subheadings
	if subs == nil {
		subs = []string{
			"Key Aspect of " + s.Heading,
			"Advanced Concepts in " + s.Heading,
		}
	}

	out := make([]string, 0, subCount)
	for i, sub := range subs {
		if i == subCount {
			break
		}
		out = append(out, sub)
	}
	for len(out) < subCount {
		out = append(out, "Additional Aspect of "+s.Heading)
	}
	return out
}

// Default synthesizes a complete outline from the brief alone.
func Default(brief domain.Brief, mainCount, subCount int) domain.Outline {
	sections := make([]domain.Section, 0, mainCount)
	if mainCount > 0 {
		sections = append(sections, domain.Section{
			Heading: fmt.Sprintf("Understanding %s: A Comprehensive Introduction", brief.Topic),
			Subheadings: []string{
				fmt.Sprintf("What is %s?", brief.Topic),
				fmt.Sprintf("Why %s Matters for %s", brief.Topic, brief.Audience),
			},
		})
	}
	for i := 1; i < mainCount; i++ {
		sections = append(sections, domain.Section{
			Heading: fmt.Sprintf("Topic %d: Important Aspect of %s", i, brief.Topic),
			Subheadings: []string{
				fmt.Sprintf("Key Concept %d.1", i),
				fmt.Sprintf("Key Concept %d.2", i),
			},
		})
	}
	return Normalize(domain.Outline{Sections: sections}, brief.Topic, mainCount, subCount)
}
