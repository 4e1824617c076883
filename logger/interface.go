package logger

import (
	"context"
)

// Logger provides a high-level interface for structured logging. It wraps
// Uber's Zap logger with a map-based field API and optional trace
// correlation.
//
// Each package of this module that logs declares the subset of these
// methods it uses; *LoggerClient satisfies all of them, so one client is
// shared through dependency injection.
//
// Every method takes:
//   - msg: a short, constant description of what happened
//   - err: the error involved, or nil; it is logged under "error"
//   - fields: zero or more maps of extra structured fields
type Logger interface {
	// Basic logging methods

	// Debug logs a debug-level message, useful while developing and
	// troubleshooting.
	Debug(msg string, err error, fields ...map[string]interface{})

	// Info logs an informational message about normal progress, such as a
	// layer starting or closing.
	Info(msg string, err error, fields ...map[string]interface{})

	// Warn logs a warning: something went wrong but the process carries on,
	// such as spans left open at shutdown.
	Warn(msg string, err error, fields ...map[string]interface{})

	// Error logs an error message with details of the error.
	Error(msg string, err error, fields ...map[string]interface{})

	// Context-aware logging methods. They add trace_id and span_id when
	// tracing is enabled and ctx carries a recording span.

	// DebugWithContext logs a debug-level message with trace context.
	DebugWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})

	// InfoWithContext logs an informational message with trace context.
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})

	// WarnWithContext logs a warning message with trace context.
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})

	// ErrorWithContext logs an error message with trace context.
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}
