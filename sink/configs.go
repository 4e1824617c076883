package sink

import "time"

// Stdout is the Path value that selects standard output.
const Stdout = "-"

const (
	// ContentTypeJSON is set on uploaded trace objects.
	ContentTypeJSON = "application/json"

	// ContentTypeGzip is set on uploaded trace objects when Compress is on.
	ContentTypeGzip = "application/gzip"

	// DefaultObjectPrefix is prepended to generated object names.
	DefaultObjectPrefix = "traces/"

	// DefaultKafkaWriteTimeout bounds one batch publish.
	DefaultKafkaWriteTimeout = 10 * time.Second
)

// Config selects and configures a sink. Open picks Kafka when brokers are
// set, then MinIO when an endpoint is set, then the local Path.
type Config struct {
	// Path is the output file, or "-" for stdout.
	Path string `yaml:"path" envconfig:"SINK_PATH"`

	// Compress gzips the stream. Applies to files and MinIO objects.
	Compress bool `yaml:"compress" envconfig:"SINK_COMPRESS"`

	// Minio uploads the document as a single object.
	Minio MinioConfig `yaml:"minio" envconfig:"SINK"`

	// Kafka publishes each batch as one message.
	Kafka KafkaConfig `yaml:"kafka" envconfig:"SINK"`
}

// MinioConfig contains MinIO server connection details and the object the
// trace is uploaded to.
type MinioConfig struct {
	// Endpoint is the MinIO server address (e.g., "minio.example.com:9000")
	Endpoint string `yaml:"endpoint" envconfig:"MINIO_ENDPOINT"`

	// AccessKeyID is the MinIO access key (similar to a username)
	AccessKeyID string `yaml:"access_key_id" envconfig:"MINIO_ACCESS_KEY_ID"`

	// SecretAccessKey is the MinIO secret key (similar to a password)
	SecretAccessKey string `yaml:"secret_access_key" envconfig:"MINIO_SECRET_ACCESS_KEY"`

	// UseSSL determines whether to use HTTPS (true) or HTTP (false)
	UseSSL bool `yaml:"use_ssl" envconfig:"MINIO_USE_SSL"`

	// Region specifies the S3 region (e.g., "us-east-1")
	Region string `yaml:"region" envconfig:"MINIO_REGION"`

	// Bucket receives the trace object. It must exist.
	Bucket string `yaml:"bucket" envconfig:"MINIO_BUCKET"`

	// Object is the object name. Default: "traces/<uuid>.json"
	Object string `yaml:"object" envconfig:"MINIO_OBJECT"`
}

// KafkaConfig describes the topic trace batches are published to.
type KafkaConfig struct {
	// Brokers is a list of Kafka broker addresses
	Brokers []string `yaml:"brokers" envconfig:"KAFKA_BROKERS"`

	// Topic receives one message per batch, keyed by the run id
	Topic string `yaml:"topic" envconfig:"KAFKA_TOPIC"`

	// WriteTimeout is the timeout for write operations
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"KAFKA_WRITE_TIMEOUT"`
}
