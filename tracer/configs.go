package tracer

// DefaultCategory is the Chrome trace category used for spans whose tracer
// was obtained without an instrumentation scope name.
const DefaultCategory = "otel"

// Config defines the configuration for the OpenTelemetry tracer.
// It controls service identification, where finished spans go and how they
// are labelled in the Chrome trace.
type Config struct {
	// ServiceName specifies the name of the service using this tracer.
	// It is set as the service.name resource attribute.
	//
	// Example values: "indexer", "payment-processor", "notification-worker"
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME"`

	// AppEnv indicates the deployment environment where the service is running.
	// Common values include "development", "staging", "production".
	AppEnv string `yaml:"app_env" envconfig:"APP_ENV"`

	// EnableExport additionally sends spans to an OTLP HTTP collector. The
	// endpoint is taken from the standard OTEL_EXPORTER_OTLP_* variables.
	EnableExport bool `yaml:"enable_export" envconfig:"ENABLE_EXPORT"`

	// Category is the Chrome trace category for spans from tracers with no
	// instrumentation scope name.
	//
	// Default: "otel"
	Category string `yaml:"category" envconfig:"CATEGORY"`
}
