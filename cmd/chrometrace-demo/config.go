package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aalemi-dev/chrometrace/logger"
	"github.com/aalemi-dev/chrometrace/metrics"
	"github.com/aalemi-dev/chrometrace/sink"
	"github.com/aalemi-dev/chrometrace/tracer"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// appConfig is everything the demo needs besides the trace layer, which
// reads its own file through chrometrace.LoadConfig.
type appConfig struct {
	Logger   logger.Config  `yaml:"logger"`
	Metrics  metrics.Config `yaml:"metrics"`
	Tracer   tracer.Config  `yaml:"tracer"`
	Sink     sink.Config    `yaml:"sink"`
	Workload workloadConfig `yaml:"workload"`
}

type workloadConfig struct {
	Workers    int `yaml:"workers" envconfig:"DEMO_WORKERS"`
	Iterations int `yaml:"iterations" envconfig:"DEMO_ITERATIONS"`
	Depth      int `yaml:"depth" envconfig:"DEMO_DEPTH"`
}

func (w workloadConfig) withDefaults() workloadConfig {
	if w.Workers <= 0 {
		w.Workers = 4
	}
	if w.Iterations <= 0 {
		w.Iterations = 100
	}
	if w.Depth <= 0 {
		w.Depth = 3
	}
	return w
}

// remote reports whether the sink section selects a non-local destination.
// Local paths stay with the layer's own output_path.
func (c appConfig) remote() bool {
	return len(c.Sink.Kafka.Brokers) > 0 || c.Sink.Minio.Endpoint != ""
}

func loadAppConfig(path string) (appConfig, error) {
	cfg := appConfig{
		Logger:  logger.Config{Level: logger.Info, ServiceName: "chrometrace-demo"},
		Metrics: metrics.Config{ServiceName: "chrometrace-demo"},
		Tracer:  tracer.Config{ServiceName: "chrometrace-demo"},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return appConfig{}, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
				return appConfig{}, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	for _, target := range []interface{}{&cfg.Logger, &cfg.Metrics, &cfg.Tracer, &cfg.Sink, &cfg.Workload} {
		if err := envconfig.Process("", target); err != nil {
			return appConfig{}, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.Workload = cfg.Workload.withDefaults()
	return cfg, nil
}
