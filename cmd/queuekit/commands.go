package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/queuekit/bootstrap"
	"github.com/kbukum/queuekit/logger"
	"github.com/kbukum/queuekit/observability"
	"github.com/kbukum/queuekit/pipeline"
	"github.com/kbukum/queuekit/server"
	"github.com/kbukum/queuekit/version"
)

const instrumentationName = "github.com/kbukum/queuekit"

type rootOptions struct {
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Concurrent producers feeding one idle-timed consumer",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default: search ./cmd/queuekit, ./config, .)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", ".env file loaded before reading QUEUEKIT_* variables")

	root.AddCommand(newRunCmd(opts), newServeCmd(opts), newVersionCmd())
	return root
}

// newApp builds the application and registers telemetry.
func newApp(cfg *AppConfig) (*bootstrap.App[*AppConfig], error) {
	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return nil, err
	}
	tel := observability.NewTelemetry(cfg.Telemetry, cfg.Name, cfg.Version, cfg.Environment)
	if err := app.RegisterComponent(tel); err != nil {
		return nil, err
	}
	return app, nil
}

// pipelineOptions wires the app logger and pipeline instruments.
func pipelineOptions(app *bootstrap.App[*AppConfig]) ([]pipeline.Option, error) {
	metrics, err := pipeline.NewMetrics(observability.Meter(instrumentationName))
	if err != nil {
		return nil, err
	}
	return []pipeline.Option{
		pipeline.WithLogger(app.Logger),
		pipeline.WithMetrics(metrics),
	}, nil
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		dataset    []string
		counts     []int
		timeout    time.Duration
		transform  string
		multiplier int
		seed       uint64
		valuesOnly bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and print every result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides := map[string]any{}
			flags := cmd.Flags()
			if flags.Changed("dataset") {
				overrides["pipeline.dataset"] = dataset
			}
			if flags.Changed("counts") {
				overrides["pipeline.counts"] = counts
			}
			if flags.Changed("timeout") {
				overrides["pipeline.timeout"] = timeout
			}
			if flags.Changed("transform") {
				overrides["pipeline.transform"] = transform
			}
			if flags.Changed("multiplier") {
				overrides["pipeline.multiplier"] = multiplier
			}
			if flags.Changed("seed") {
				overrides["pipeline.seed"] = seed
			}

			cfg, err := loadConfig(opts, overrides)
			if err != nil {
				return err
			}
			app, err := newApp(cfg)
			if err != nil {
				return err
			}
			popts, err := pipelineOptions(app)
			if err != nil {
				return err
			}

			return app.RunTask(cmd.Context(), func(ctx context.Context) error {
				orch, err := pipeline.New(cfg.Pipeline, popts...)
				if err != nil {
					return err
				}
				return printRun(ctx, orch, cmd, valuesOnly, app.Logger)
			})
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&dataset, "dataset", "d", nil, "text sources, one character producer each")
	f.IntSliceVar(&counts, "counts", nil, "integer sources, one counting producer each")
	f.DurationVarP(&timeout, "timeout", "t", 0, "idle timeout ending the stream")
	f.StringVar(&transform, "transform", "", "built-in transform: scale or upper")
	f.IntVarP(&multiplier, "multiplier", "m", 0, "multiplier applied by the scale transform")
	f.Uint64Var(&seed, "seed", 0, "seed for reproducible runs (0 = random)")
	f.BoolVar(&valuesOnly, "values-only", false, "print transformed values only, no markers")
	return cmd
}

// printRun streams one session to the command's stdout and logs its report.
func printRun(ctx context.Context, orch *pipeline.Orchestrator, cmd *cobra.Command, valuesOnly bool, log *logger.Logger) error {
	sess := orch.Start(ctx)
	defer sess.Close()

	stream := pipeline.From[pipeline.Result](sess)
	if valuesOnly {
		stream = pipeline.Filter(stream, func(r pipeline.Result) bool { return !r.IsMarker() })
	}
	stream = pipeline.Tap(stream, func(_ context.Context, r pipeline.Result) error {
		if r.Kind == pipeline.ResultCancelled {
			log.Info("Run cancelled by consumer", logger.Fields(logger.FieldRunID, sess.RunID()))
		}
		return nil
	})
	lines := pipeline.Map(stream, func(_ context.Context, r pipeline.Result) (string, error) {
		return r.Value, nil
	})

	out := cmd.OutOrStdout()
	err := pipeline.ForEach(ctx, lines, func(_ context.Context, line string) error {
		_, werr := fmt.Fprintln(out, line)
		return werr
	})

	report := sess.Report()
	log.Info("Run finished", logger.Fields(
		logger.FieldRunID, report.RunID,
		"results", report.Results,
		"pushed", report.Pushed(),
		"failed", report.Failed(),
		"breaks", report.Breaks,
		"cancelled", report.Cancelled,
		"unconsumed", report.Unconsumed,
		logger.FieldDuration, report.Duration.Milliseconds(),
	))
	return err
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pipeline runs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides := map[string]any{}
			if cmd.Flags().Changed("port") {
				overrides["server.port"] = port
			}
			cfg, err := loadConfig(opts, overrides)
			if err != nil {
				return err
			}
			app, err := newApp(cfg)
			if err != nil {
				return err
			}
			popts, err := pipelineOptions(app)
			if err != nil {
				return err
			}
			httpMetrics, err := observability.NewMetrics(observability.Meter(instrumentationName))
			if err != nil {
				return err
			}

			srv := server.New(cfg.Server, cfg.Name, app.Logger, server.WithMetrics(httpMetrics))
			srv.ApplyMiddleware()
			srv.RegisterDefaultEndpoints(cfg.Version, app.Components.HealthAll)
			srv.RegisterRuns(cfg.Pipeline, popts...)
			if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", serviceName, version.GetFullVersion())
		},
	}
}
