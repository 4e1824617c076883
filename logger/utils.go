package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// extractTracingFields returns trace_id and span_id for ctx's recording
// span, or nothing when tracing is disabled or there is no such span.
func (l *LoggerClient) extractTracingFields(ctx context.Context) []zap.Field {
	if !l.tracingEnabled || ctx == nil {
		return nil
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return nil
	}

	spanContext := span.SpanContext()
	if !spanContext.IsValid() {
		return nil
	}

	return []zap.Field{
		zap.String("trace_id", spanContext.TraceID().String()),
		zap.String("span_id", spanContext.SpanID().String()),
	}
}

// convertToZapFields turns err and the field maps into zap fields. A key
// repeated across maps appears once per map.
func (l *LoggerClient) convertToZapFields(err error, fields ...map[string]interface{}) []zap.Field {
	var zapFields []zap.Field
	if err != nil {
		zapFields = append(zapFields, zap.Error(err))
	}
	for _, fieldMap := range fields {
		for key, value := range fieldMap {
			zapFields = append(zapFields, zap.Any(key, value))
		}
	}
	return zapFields
}

func (l *LoggerClient) withContext(ctx context.Context, err error, fields []map[string]interface{}) []zap.Field {
	return append(l.convertToZapFields(err, fields...), l.extractTracingFields(ctx)...)
}

// Debug logs msg at debug level. Debug entries are dropped unless the
// client was built with Level "debug".
//
// Example:
//
//	log.Debug("batch framed", nil, map[string]interface{}{
//	    "records": len(batch),
//	    "bytes":   len(buf),
//	})
func (l *LoggerClient) Debug(msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Debug(msg, l.convertToZapFields(err, fields...)...)
}

// Info logs msg at info level.
//
// Parameters:
//   - msg: the message, kept constant so entries can be grouped
//   - err: an error to attach, usually nil at this level
//   - fields: maps of extra fields; values are encoded with zap.Any
//
// When several maps repeat a key, each occurrence is written.
//
// Example:
//
//	log.Info("chrome trace layer closed", nil, map[string]interface{}{
//	    "events_written": 1024,
//	})
func (l *LoggerClient) Info(msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Info(msg, l.convertToZapFields(err, fields...)...)
}

// Warn logs msg at warn level, for conditions worth a look that did not
// stop the operation.
//
// Example:
//
//	log.Warn("spans still open at shutdown", nil, map[string]interface{}{
//	    "open_spans": d.OpenSpans,
//	})
func (l *LoggerClient) Warn(msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Warn(msg, l.convertToZapFields(err, fields...)...)
}

// Error logs msg at error level with err attached under "error". Use the
// WithContext variant when a context is at hand so the entry can be found
// from its trace.
//
// Example:
//
//	if err := sink.Close(); err != nil {
//	    log.Error("failed to close trace output", err, map[string]interface{}{
//	        "path": path,
//	    })
//	}
func (l *LoggerClient) Error(msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Error(msg, l.convertToZapFields(err, fields...)...)
}

// DebugWithContext is Debug with trace_id and span_id taken from ctx when
// tracing is enabled and ctx carries a recording span.
func (l *LoggerClient) DebugWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Debug(msg, l.withContext(ctx, err, fields)...)
}

// InfoWithContext is Info with trace correlation.
//
// Example:
//
//	ctx, span := tracer.StartSpan(ctx, "export")
//	defer span.End()
//	log.InfoWithContext(ctx, "export started", nil, map[string]interface{}{
//	    "destination": "minio bucket traces",
//	})
func (l *LoggerClient) InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Info(msg, l.withContext(ctx, err, fields)...)
}

// WarnWithContext is Warn with trace correlation.
func (l *LoggerClient) WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Warn(msg, l.withContext(ctx, err, fields)...)
}

// ErrorWithContext is Error with trace correlation. The flush task of the
// Chrome layer reports sink failures through it, since it has no caller to
// return them to.
//
// Example:
//
//	log.ErrorWithContext(ctx, "chrome trace sink write failed", err, map[string]interface{}{
//	    "records": 512,
//	})
func (l *LoggerClient) ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.Zap.Error(msg, l.withContext(ctx, err, fields)...)
}
