// Package redact removes credentials and other sensitive details from strings
// before they are logged or returned in error responses. Upstream services
// sometimes echo the caller's API key or return signed URLs, so every error
// that leaves the process goes through this package.
package redact

import (
	"regexp"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Precompiled rules, applied in order.
var (
	credentialRules = []rule{
		// JWT tokens: three base64url segments
		{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "[REDACTED_JWT]"},
		// OpenAI secret keys, including project keys
		{regexp.MustCompile(`sk-(?:proj-)?[A-Za-z0-9_\-]{16,}`), RedactedKeyPlaceholder},
		// Google API keys
		{regexp.MustCompile(`AIza[0-9A-Za-z_\-]{30,}`), RedactedKeyPlaceholder},
		// Bearer tokens in echoed headers
		{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9_\-.~+/=]{8,}`), "${1}" + RedactedCredentialPlaceholder},
		// key=value style secrets
		{
			regexp.MustCompile(`(?i)(api[_-]?key|secret|token|password)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`),
			RedactedKeyPlaceholder,
		},
		// Signatures of pre-signed image URLs
		{regexp.MustCompile(`(?i)([?&]sig=)[^&\s"']+`), "${1}" + RedactionPlaceholder},
	}

	detailRules = []rule{
		{regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`), "[STACK_TRACE_REDACTED]"},
		{regexp.MustCompile(`[A-Za-z]:\\[^\\]+(\\[^\\]+)+`), RedactedPathPlaceholder},
		{regexp.MustCompile(`(/[\w.-]+){2,}`), RedactedPathPlaceholder},
		{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED_EMAIL]"},
	}
)

func apply(input string, rules []rule) string {
	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Credentials removes API keys, tokens and URL signatures but leaves the rest
// of the message intact. It is used for log output.
func Credentials(input string) string {
	if input == "" {
		return input
	}
	return apply(input, credentialRules)
}

// String redacts credentials plus file paths, stack traces and email
// addresses. It is used for messages returned to API clients.
func String(input string) string {
	if input == "" {
		return input
	}
	return apply(apply(input, credentialRules), detailRules)
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
