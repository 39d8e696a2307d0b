// Package illustration produces one image per generated section.
//
// Every section goes through two phases. The summarize phase asks the text
// service for a purely visual description of the section; these requests
// all start at once and are awaited in section order. As each description
// arrives, an illustrate task is queued for a fixed-size worker pool that
// generates the image, downloads it and saves it as PNG. Image results are
// harvested in completion order and returned sorted by section index.
//
// A failed description falls back to a generic prompt built from the
// heading. A failed image leaves the section without an illustration.
package illustration
