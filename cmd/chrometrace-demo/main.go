// Command chrometrace-demo runs a concurrent synthetic workload under the
// Chrome trace layer and writes the result where the configuration says.
//
// Open the output in chrome://tracing or https://ui.perfetto.dev.
//
//	chrometrace-demo run -config demo.yaml -trace-config chrometrace.yaml
//	chrometrace-demo check trace.json
//
// Both configuration files are optional; environment variables override
// them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aalemi-dev/chrometrace/chrometrace"
	"github.com/aalemi-dev/chrometrace/logger"
	"github.com/aalemi-dev/chrometrace/metrics"
	"github.com/aalemi-dev/chrometrace/sink"
	"github.com/aalemi-dev/chrometrace/tracer"
	"github.com/dustin/go-humanize"
	"github.com/maruel/subcommands"
	"go.uber.org/fx"
)

var application = &subcommands.DefaultApplication{
	Name:  "chrometrace-demo",
	Title: "Chrome trace layer demo",
	Commands: []*subcommands.Command{
		cmdRun,
		cmdCheck,
		subcommands.CmdHelp,
	},
}

var cmdRun = &subcommands.Command{
	UsageLine: "run [flags]",
	ShortDesc: "runs the synthetic workload and writes its trace",
	LongDesc:  "Runs the synthetic workload under the trace layer, then drains the layer and prints what was written.",
	CommandRun: func() subcommands.CommandRun {
		c := &runCmd{}
		c.Flags.StringVar(&c.configPath, "config", "demo.yaml", "demo configuration file")
		c.Flags.StringVar(&c.traceConfigPath, "trace-config", "chrometrace.yaml", "trace layer configuration file")
		c.Flags.DurationVar(&c.stopTimeout, "stop-timeout", 30*time.Second, "bound on draining the trace at exit")
		return c
	},
}

type runCmd struct {
	subcommands.CommandRunBase

	configPath      string
	traceConfigPath string
	stopTimeout     time.Duration
}

func (c *runCmd) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) != 0 {
		fmt.Fprintf(a.GetErr(), "%s: unexpected arguments %q\n", a.GetName(), args)
		return 1
	}
	if err := run(c.configPath, c.traceConfigPath, c.stopTimeout); err != nil {
		fmt.Fprintf(a.GetErr(), "%s: %s\n", a.GetName(), err)
		return 1
	}
	return 0
}

func main() {
	flag.Parse()
	os.Exit(subcommands.Run(application, flag.Args()))
}

func run(configPath, traceConfigPath string, stopTimeout time.Duration) error {
	cfg, err := loadAppConfig(configPath)
	if err != nil {
		return err
	}
	traceCfg, err := chrometrace.LoadConfig(traceConfigPath)
	if err != nil {
		return err
	}

	var (
		log   *logger.LoggerClient
		layer *chrometrace.ChromeLayer
		trc   tracer.Tracer
	)
	app := fx.New(
		fx.NopLogger,
		logger.FXModule,
		metrics.FXModule,
		chrometrace.FXModule,
		tracer.FXModule,
		fx.Supply(cfg.Logger, cfg.Metrics, cfg.Tracer, traceCfg),
		fx.Provide(
			func(l *logger.LoggerClient) chrometrace.Logger { return l },
			func(l *logger.LoggerClient) metrics.Logger { return l },
			func(l *logger.LoggerClient) tracer.Logger { return l },
		),
		sinkOption(cfg),
		fx.Populate(&log, &layer, &trc),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	started := time.Now()
	newWorkload(cfg.Workload, layer, trc).run(context.Background())
	log.Info("workload finished", nil, map[string]interface{}{
		"workers":    cfg.Workload.Workers,
		"iterations": cfg.Workload.Iterations,
		"elapsed":    time.Since(started).String(),
	})

	stopCtx, cancelStop := context.WithTimeout(context.Background(), stopTimeout)
	defer cancelStop()
	stopErr := app.Stop(stopCtx)

	d := layer.Diagnostics()
	fmt.Fprintf(os.Stderr, "wrote %s records (%s) to %s\n",
		humanize.Comma(d.EventsWritten), humanize.Bytes(uint64(d.BytesWritten)), destination(cfg, traceCfg))
	return stopErr
}

// sinkOption supplies a remote sink when the demo config names one.
func sinkOption(cfg appConfig) fx.Option {
	if !cfg.remote() {
		return fx.Options()
	}
	return fx.Provide(func() (chrometrace.Sink, error) {
		return sink.Open(cfg.Sink)
	})
}

func destination(cfg appConfig, traceCfg chrometrace.Config) string {
	switch {
	case len(cfg.Sink.Kafka.Brokers) > 0:
		return "kafka topic " + cfg.Sink.Kafka.Topic
	case cfg.Sink.Minio.Endpoint != "":
		return "minio bucket " + cfg.Sink.Minio.Bucket
	case traceCfg.OutputPath == "":
		return chrometrace.DefaultOutputPath
	}
	return traceCfg.OutputPath
}
