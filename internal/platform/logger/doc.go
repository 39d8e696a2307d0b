// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels. Credentials are scrubbed from every record before it is
// written, and a request-scoped logger can travel through a context.Context.
package logger
