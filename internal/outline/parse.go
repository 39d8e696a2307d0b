package outline

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/phrazzld/longform/internal/domain"
)

// Parse strategy names, in the order they are tried.
const (
	StrategyWhole  = "whole"
	StrategyFenced = "fenced"
	StrategyBraces = "braces"
	// StrategyDefault marks a synthesized outline; it is never a parse attempt.
	StrategyDefault = "default"
)

var (
	// ErrNoCandidate is returned when a strategy finds nothing to parse.
	ErrNoCandidate = errors.New("no JSON candidate found")

	// ErrInvalidOutline is returned when JSON parses but does not describe an outline.
	ErrInvalidOutline = errors.New("invalid outline structure")
)

var fencedPattern = regexp.MustCompile("(?s)```(?:json)?[ \t]*\r?\n(.*?)\r?\n?```")

// attempt is one way of locating outline JSON in a model response.
type attempt struct {
	name    string
	extract func(text string) (string, bool)
}

// attempts lists the parse strategies in priority order; the first success wins.
var attempts = []attempt{
	{name: StrategyWhole, extract: func(text string) (string, bool) {
		return strings.TrimSpace(text), true
	}},
	{name: StrategyFenced, extract: func(text string) (string, bool) {
		m := fencedPattern.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		return m[1], true
	}},
	{name: StrategyBraces, extract: func(text string) (string, bool) {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return "", false
		}
		return text[start : end+1], true
	}},
}

// Result is the tagged outcome of one parse attempt.
type Result struct {
	Strategy string
	Outline  domain.Outline
	Err      error
}

// OK reports whether the attempt produced an outline.
func (r Result) OK() bool {
	return r.Err == nil
}

// rawOutline is the strict wire shape. Pointers distinguish a missing field
// from an empty one.
type rawOutline struct {
	Outline *[]rawSection `json:"outline"`
}

type rawSection struct {
	Heading     *string   `json:"heading"`
	Subheadings *[]string `json:"subheadings"`
}

// Parse tries each strategy in order and returns the first success. When every
// strategy fails, the returned results explain why, one per strategy.
func Parse(text string) (Result, []Result) {
	tried := make([]Result, 0, len(attempts))
	for _, a := range attempts {
		res := Result{Strategy: a.name}
		candidate, ok := a.extract(text)
		if !ok {
			res.Err = ErrNoCandidate
			tried = append(tried, res)
			continue
		}
		res.Outline, res.Err = decode(candidate)
		if res.OK() {
			return res, tried
		}
		tried = append(tried, res)
	}
	return Result{Err: fmt.Errorf("%w: all parse strategies failed", domain.ErrInvalidFormat)}, tried
}

// decode validates candidate against the outline schema. A section without
// subheadings keeps a nil list so normalization can synthesize them.
func decode(candidate string) (domain.Outline, error) {
	var raw rawOutline
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return domain.Outline{}, fmt.Errorf("%w: %v", domain.ErrInvalidFormat, err)
	}
	if raw.Outline == nil {
		return domain.Outline{}, fmt.Errorf("%w: missing \"outline\" list", ErrInvalidOutline)
	}

	out := domain.Outline{Sections: make([]domain.Section, 0, len(*raw.Outline))}
	for i, rs := range *raw.Outline {
		if rs.Heading == nil || strings.TrimSpace(*rs.Heading) == "" {
			return domain.Outline{}, fmt.Errorf("%w: section %d has no heading", ErrInvalidOutline, i+1)
		}
		section := domain.Section{Heading: strings.TrimSpace(*rs.Heading)}
		if rs.Subheadings != nil {
			section.Subheadings = append([]string{}, (*rs.Subheadings)...)
		}
		out.Sections = append(out.Sections, section)
	}
	return out, nil
}
