package domain

// Section is one top-level heading of an outline with its subheadings.
type Section struct {
	Heading     string   `json:"heading"`
	Subheadings []string `json:"subheadings"`
}

// Outline is the ordered plan of a document. Its JSON form is
// {"outline": [{"heading": "...", "subheadings": ["..."]}]}, which is both the
// shape requested from the text service and the shape written to outline.json.
type Outline struct {
	Sections []Section `json:"outline"`
}

// Headings returns the top-level headings in outline order.
func (o Outline) Headings() []string {
	headings := make([]string, len(o.Sections))
	for i, s := range o.Sections {
		headings[i] = s.Heading
	}
	return headings
}

// Conforms reports whether the outline has exactly mainCount sections, each
// with exactly subCount subheadings.
func (o Outline) Conforms(mainCount, subCount int) bool {
	if len(o.Sections) != mainCount {
		return false
	}
	for _, s := range o.Sections {
		if len(s.Subheadings) != subCount {
			return false
		}
	}
	return true
}
