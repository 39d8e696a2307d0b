package logger

import (
	"log/slog"
	"strings"

	"github.com/phrazzld/longform/internal/redact"
)

// sensitiveKeys are attribute names whose values are never written.
var sensitiveKeys = map[string]bool{
	"api_key":       true,
	"authorization": true,
	"jwt_secret":    true,
	"token":         true,
}

// redactAttr scrubs credentials from log attributes. Error values and strings
// go through redact.Credentials so that keys echoed back by upstream services
// do not reach the log.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redact.RedactionPlaceholder)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, redact.Credentials(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, redact.Credentials(err.Error()))
		}
	}
	return a
}
