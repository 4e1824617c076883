package logger

// Log levels accepted by Config.Level.
const (
	Debug   = "debug"
	Info    = "info"
	Warning = "warning"
	Error   = "error"
)

// Encodings accepted by Config.Encoding.
const (
	EncodingJSON    = "json"
	EncodingConsole = "console"
)

// DefaultOutput is where logs go unless Config.OutputPaths says otherwise.
// It is never stdout so a trace streamed to stdout stays parseable.
const DefaultOutput = "stderr"

// Config controls the zap logger built by NewLoggerClient.
type Config struct {
	// Level is the minimum level written: "debug", "info", "warning" or
	// "error". Unknown values mean "info".
	//
	// Environment variable: LOGGER_LEVEL
	Level string `yaml:"level" envconfig:"LOGGER_LEVEL"`

	// EnableTracing adds trace_id and span_id from the context's active
	// OpenTelemetry span to every *WithContext entry.
	//
	// Environment variable: LOGGER_ENABLE_TRACING
	EnableTracing bool `yaml:"enable_tracing" envconfig:"LOGGER_ENABLE_TRACING"`

	// ServiceName populates the "service" field of every entry.
	//
	// Environment variable: LOGGER_SERVICE_NAME
	ServiceName string `yaml:"service_name" envconfig:"LOGGER_SERVICE_NAME"`

	// Encoding is "json" (default) or "console".
	//
	// Environment variable: LOGGER_ENCODING
	Encoding string `yaml:"encoding" envconfig:"LOGGER_ENCODING"`

	// OutputPaths lists zap sinks: "stderr", "stdout" or file paths.
	// Default: ["stderr"].
	//
	// Environment variable: LOGGER_OUTPUT_PATHS (comma separated)
	OutputPaths []string `yaml:"output_paths" envconfig:"LOGGER_OUTPUT_PATHS"`

	// CallerSkip is the number of wrapper frames between the caller and
	// this package. 0 means 1, which reports the direct caller.
	CallerSkip int `yaml:"caller_skip" envconfig:"LOGGER_CALLER_SKIP"`
}
