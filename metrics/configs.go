package metrics

// Default addresses for the metrics servers.
const (
	DefaultSystemMetricsAddress      = ":9090"
	DefaultApplicationMetricsAddress = ":9091"
)

// DefaultNamespace prefixes every series the trace observer registers.
const DefaultNamespace = "chrometrace"

// Config defines the Prometheus endpoints and how series are named.
//
// Two endpoints are served:
//  1. System metrics (default :9090): Go runtime, process and build info
//  2. Application metrics (default :9091): the trace layer's own series
type Config struct {
	// SystemMetricsAddress is where the system metrics server listens.
	// nil selects the default; a pointer to "" disables the endpoint.
	//
	// Environment variable: METRICS_SYSTEM_ADDRESS
	SystemMetricsAddress *string `yaml:"system_metrics_address" envconfig:"METRICS_SYSTEM_ADDRESS"`

	// ApplicationMetricsAddress is where the application metrics server
	// listens. nil selects the default; a pointer to "" disables it, and
	// with it NewObserver.
	//
	// Environment variable: METRICS_APPLICATION_ADDRESS
	ApplicationMetricsAddress *string `yaml:"application_metrics_address" envconfig:"METRICS_APPLICATION_ADDRESS"`

	// ServiceName is attached to every series as the "service" label.
	//
	// Environment variable: METRICS_SERVICE_NAME
	ServiceName string `yaml:"service_name" envconfig:"METRICS_SERVICE_NAME"`

	// Namespace prefixes the observer's series. Default: "chrometrace".
	//
	// Environment variable: METRICS_NAMESPACE
	Namespace string `yaml:"namespace" envconfig:"METRICS_NAMESPACE"`
}

// Ptr returns a pointer to s. Use Ptr("") to disable an endpoint.
func Ptr(s string) *string {
	return &s
}

func addressOrDefault(addr *string, def string) string {
	if addr == nil {
		return def
	}
	return *addr
}
