package chrometrace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Defaults applied by NewLayer to zero-valued Config fields.
const (
	DefaultOutputPath    = "trace.json"
	DefaultFlushInterval = time.Second
	DefaultMaxBatchSize  = 1024
)

// Output document layouts.
const (
	// FormatArray writes a bare JSON array of events.
	FormatArray = "array"

	// FormatObject wraps the array under "traceEvents".
	FormatObject = "object"
)

// Policies for an exit that breaks its thread's stack discipline.
const (
	// MisnestInstant records an instant event in place of the End.
	MisnestInstant = "instant"

	// MisnestEnd emits the End anyway, leaving nesting to the viewer.
	MisnestEnd = "end"

	// MisnestDrop emits nothing for the exit.
	MisnestDrop = "drop"
)

// Clock epoch sources.
const (
	// EpochStart measures timestamps from layer initialization.
	EpochStart = "start"

	// EpochUnix offsets timestamps to read as microseconds since the Unix
	// epoch, which lines traces from several processes up.
	EpochUnix = "unix"
)

// Config defines how the layer flushes and where its output goes. Only the
// flush task and the clock resolver read it; the encoder's semantics do not
// depend on it beyond the policy switches.
type Config struct {
	// OutputPath is the file the trace is written to. "-" writes to stdout.
	// Ignored when a sink is supplied with WithSink.
	//
	// Default: "trace.json"
	OutputPath string `yaml:"output_path" envconfig:"CHROMETRACE_OUTPUT_PATH"`

	// Compress gzips the output file. The trace viewer opens .json.gz
	// directly.
	Compress bool `yaml:"compress" envconfig:"CHROMETRACE_COMPRESS"`

	// FlushInterval is how often the flush task drains the queue.
	//
	// Default: 1s
	FlushInterval time.Duration `yaml:"flush_interval" envconfig:"CHROMETRACE_FLUSH_INTERVAL"`

	// MaxBatchSize bounds how many records go into one sink write.
	//
	// Default: 1024
	MaxBatchSize int `yaml:"max_batch_size" envconfig:"CHROMETRACE_MAX_BATCH_SIZE"`

	// Format selects FormatArray or FormatObject.
	//
	// Default: FormatArray
	Format string `yaml:"format" envconfig:"CHROMETRACE_FORMAT"`

	// ClockEpoch selects EpochStart or EpochUnix.
	//
	// Default: EpochStart
	ClockEpoch string `yaml:"clock_epoch" envconfig:"CHROMETRACE_CLOCK_EPOCH"`

	// ProcessName, when set, is written as process_name metadata.
	ProcessName string `yaml:"process_name" envconfig:"CHROMETRACE_PROCESS_NAME"`

	// OmitArgs drops span and event fields from the output.
	OmitArgs bool `yaml:"omit_args" envconfig:"CHROMETRACE_OMIT_ARGS"`

	// MisnestPolicy selects MisnestInstant, MisnestEnd or MisnestDrop.
	//
	// Default: MisnestInstant
	MisnestPolicy string `yaml:"misnest_policy" envconfig:"CHROMETRACE_MISNEST_POLICY"`

	// FieldOverrides lets the reserved field keys (name, cat, id, ts, pid,
	// tid, ph, dur and tts) replace record fields instead of becoming args.
	FieldOverrides bool `yaml:"field_overrides" envconfig:"CHROMETRACE_FIELD_OVERRIDES"`
}

// withDefaults fills zero values and rejects unknown enumerations.
func (c Config) withDefaults() (Config, error) {
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutputPath
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	switch c.Format {
	case "":
		c.Format = FormatArray
	case FormatArray, FormatObject:
	default:
		return c, fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, c.Format)
	}
	switch c.ClockEpoch {
	case "":
		c.ClockEpoch = EpochStart
	case EpochStart, EpochUnix:
	default:
		return c, fmt.Errorf("%w: unknown clock epoch %q", ErrInvalidConfig, c.ClockEpoch)
	}
	switch c.MisnestPolicy {
	case "":
		c.MisnestPolicy = MisnestInstant
	case MisnestInstant, MisnestEnd, MisnestDrop:
	default:
		return c, fmt.Errorf("%w: unknown misnest policy %q", ErrInvalidConfig, c.MisnestPolicy)
	}
	return c, nil
}

// LoadConfig reads a YAML config file and applies CHROMETRACE_* environment
// overrides on top. An empty path or a missing file yields a config built
// from the environment alone.
//
// Example:
//
//	cfg, err := chrometrace.LoadConfig("chrometrace.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	layer, err := chrometrace.NewLayer(cfg)
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Logger is the subset of the logger package the layer writes to. The layer
// only logs from its flush task and lifecycle methods, never from a
// callback.
type Logger interface {
	// InfoWithContext logs an informational message with trace context.
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})

	// WarnWithContext logs a warning message with trace context.
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})

	// ErrorWithContext logs an error message with trace context.
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}
