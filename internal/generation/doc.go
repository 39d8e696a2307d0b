// Package generation defines the contracts of the external text and image
// services used by the pipelines, together with the error taxonomy their
// adapters translate upstream failures into.
//
// Adapters live under internal/platform: openai (chat completions and DALL-E),
// gemini (text only), httpfetch (image download) and mock (offline runs).
package generation
