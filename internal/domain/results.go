package domain

import (
	"fmt"
	"sort"
)

// EndMarker terminates the content of every generated section. It is removed
// when sections are combined into one document.
const EndMarker = "<!--END_SECTION-->"

// SectionFileName is the name of the markdown file for a 0-based section index.
func SectionFileName(index int) string {
	return fmt.Sprintf("section_%02d.md", index+1)
}

// ImageFileName is the name of the PNG file for a 0-based section index.
func ImageFileName(index int) string {
	return fmt.Sprintf("section_%02d.png", index+1)
}

// SectionResult is the generated text of one outline section.
// Degraded marks a placeholder produced after the text service failed on
// every attempt.
type SectionResult struct {
	Index    int    `json:"index"`
	Heading  string `json:"heading"`
	Content  string `json:"content"`
	Degraded bool   `json:"degraded"`
}

// ImageResult is the outcome of illustrating one section. An empty Path means
// no image was produced, which is a valid final state.
type ImageResult struct {
	Index int    `json:"index"`
	Path  string `json:"path,omitempty"`
}

// HasImage reports whether an image file was produced.
func (r ImageResult) HasImage() bool {
	return r.Path != ""
}

// SortSectionResults orders results by section index in place.
func SortSectionResults(results []SectionResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})
}

// SortImageResults orders results by section index in place.
func SortImageResults(results []ImageResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})
}

// Artifacts locates the files a run wrote into its session directory.
// Paths are empty for files that were not produced.
type Artifacts struct {
	SessionID    string `json:"session_id"`
	OutlinePath  string `json:"outline_path,omitempty"`
	CombinedPath string `json:"combined_path,omitempty"`
	DocumentPath string `json:"document_path,omitempty"`
	HTMLPath     string `json:"html_path,omitempty"`
	ArchivePath  string `json:"archive_path,omitempty"`
}
