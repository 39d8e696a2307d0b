package domain

import (
	"fmt"
	"strings"
)

// Style is the visual style requested for generated illustrations.
type Style string

// Supported illustration styles.
const (
	StyleNatural Style = "natural"
	StyleVivid   Style = "vivid"
)

// NormalizeStyle maps a user-supplied style to a supported one.
// "natural" in any letter case selects StyleNatural; every other value,
// including the empty string, selects StyleVivid.
func NormalizeStyle(s string) Style {
	if strings.EqualFold(strings.TrimSpace(s), string(StyleNatural)) {
		return StyleNatural
	}
	return StyleVivid
}

// Brief carries what a run writes about and for whom.
type Brief struct {
	Topic    string `json:"topic"`
	Audience string `json:"audience"`
	Style    Style  `json:"style"`
}

// NewBrief trims its inputs, normalizes the style and validates the result.
func NewBrief(topic, audience, style string) (Brief, error) {
	b := Brief{
		Topic:    strings.TrimSpace(topic),
		Audience: strings.TrimSpace(audience),
		Style:    NormalizeStyle(style),
	}
	if err := b.Validate(); err != nil {
		return Brief{}, err
	}
	return b, nil
}

// Validate checks that topic and audience are present.
func (b Brief) Validate() error {
	if strings.TrimSpace(b.Topic) == "" {
		return fmt.Errorf("%w: topic: %w", ErrValidation, ErrEmptyContent)
	}
	if strings.TrimSpace(b.Audience) == "" {
		return fmt.Errorf("%w: audience: %w", ErrValidation, ErrEmptyContent)
	}
	return nil
}
