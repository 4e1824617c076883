// Package logger provides the zap-backed structured logger used across
// this module.
//
// Fields are passed as maps after an optional error. The *WithContext
// methods add trace_id and span_id from the context's OpenTelemetry span
// when Config.EnableTracing is set, so log lines emitted while a traced
// operation runs can be matched to its row in the Chrome trace.
//
// Output goes to stderr by default. Keep it there when the trace itself is
// streamed to stdout.
//
// # Direct Usage (Without FX)
//
//	log, err := logger.NewLoggerClient(logger.Config{
//	    Level:         logger.Info,
//	    EnableTracing: true,
//	    ServiceName:   "indexer",
//	})
//	if err != nil {
//	    return err
//	}
//	log.InfoWithContext(ctx, "batch written", nil, map[string]interface{}{
//	    "records": 128,
//	})
//
// # FX Module Integration
//
//	app := fx.New(
//	    logger.FXModule,
//	    fx.Supply(logger.Config{Level: logger.Info, ServiceName: "indexer"}),
//	)
//
// Packages that log declare a narrow Logger interface of their own;
// *LoggerClient satisfies each of them.
package logger
