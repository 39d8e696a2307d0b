// Package gemini provides an implementation of the generation.TextService
// interface that uses Google's Gemini API.
//
// This package is an infrastructure adapter, connecting the pipelines to
// Google's external Gemini service without exposing the details of that
// service to the rest of the application.
//
// Key components:
//
// 1. TextService:
//   - Implements generation.TextService over Models.GenerateContent
//   - Maps the system prompt onto the request's system instruction
//   - Applies a per-call timeout
//
// 2. Error Handling:
//   - Translates genai.APIError status codes into the generation taxonomy
//   - Reports safety refusals as generation.ErrContentBlocked
//   - Leaves retries to internal/retry
//
// Gemini does not serve the image model used by the pipelines, so a run using
// this provider still needs an OpenAI key for illustrations.
package gemini
