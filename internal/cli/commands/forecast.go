package commands

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"juneau/pkg/chart"
	"juneau/pkg/config"
	"juneau/pkg/forecast"
	"juneau/pkg/output"
	"juneau/pkg/parser"
	"juneau/pkg/pipeline"
	"juneau/pkg/store"
	"juneau/pkg/webhook"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// ForecastOptions holds command-line options for the forecast command.
type ForecastOptions struct {
	Data          []string
	ConfigFile    string
	Model         string
	Horizon       int
	IntervalWidth float64
	Output        string
	Workers       int
	KeepGoing     bool
	ChartDir      string
	StoreDSN      string
	Progress      bool
	Verbose       bool
	Quiet         bool

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewForecastCommand creates the forecast command.
func NewForecastCommand() *cobra.Command {
	opts := &ForecastOptions{}

	cmd := &cobra.Command{
		Use:   "forecast [data-file...]",
		Short: "Parse wide-format calendar CSV files and forecast every row",
		Long: `Parse wide-format calendar CSV files and forecast every row.

Each line of a data file is one series: a MM/DD/YYYY base date followed by
one value per consecutive month. Months that lack the base date's day (for
example February 30) are dropped.

Data files come from --data, positional arguments, or data_sources in the
configuration file, in that order of precedence. Directories expand to the
*.csv files they contain.

Exit codes:
  0 - All files forecast
  1 - Some files failed (with --keep-going)
  2 - Configuration or runtime error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForecast(cmd, args, opts)
		},
	}

	// Flags
	cmd.Flags().StringSliceVarP(&opts.Data, "data", "d", nil, "Data file(s), comma separated or repeated")
	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "Configuration file (YAML or .ini)")
	cmd.Flags().StringVarP(&opts.Model, "model", "m", forecast.DefaultModel, fmt.Sprintf("Forecasting model (%s)", strings.Join(forecast.Names(), "|")))
	cmd.Flags().IntVar(&opts.Horizon, "horizon", forecast.DefaultHorizon, "Months to forecast past each row")
	cmd.Flags().Float64Var(&opts.IntervalWidth, "interval-width", forecast.DefaultIntervalWidth, "Prediction interval coverage")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", config.DefaultOutputFormat, "Output format (text|json|csv)")
	cmd.Flags().IntVar(&opts.Workers, "workers", config.DefaultWorkers, "Files processed concurrently")
	cmd.Flags().BoolVar(&opts.KeepGoing, "keep-going", false, "Skip files that fail instead of aborting")
	cmd.Flags().StringVar(&opts.ChartDir, "chart-dir", "", "Write a PNG chart per series into this directory")
	cmd.Flags().StringVar(&opts.StoreDSN, "store-dsn", "", "Save results to mysql://, mariadb:// or postgres:// DSN")
	cmd.Flags().BoolVar(&opts.Progress, "progress", false, "Show a progress bar on stderr")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show input points and log per-file details")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", string(config.WebhookTriggerOnErrors), "When to fire webhook (on_errors|always|never)")

	return cmd
}

func runForecast(cmd *cobra.Command, args []string, opts *ForecastOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	cfg, err := loadForecastConfig(ctx, cmd, opts)
	if err != nil {
		return err
	}

	sources := append(append([]string{}, opts.Data...), args...)
	if len(sources) == 0 {
		sources = cfg.DataSources
	}
	files, err := parser.ExpandGlobs(sources)
	if err != nil {
		return fmt.Errorf("expanding data sources: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no data files matched: %v", sources)
	}

	model, err := forecast.New(cfg.Model.Name, cfg.ForecastOptions())
	if err != nil {
		return fmt.Errorf("creating model: %w", err)
	}

	logger := log.New(io.Discard, "", 0)
	if opts.Verbose {
		logger = log.New(stderr, "", log.LstdFlags)
	}

	runnerOpts := []pipeline.Option{
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithKeepGoing(cfg.KeepGoing),
		pipeline.WithLogger(logger),
	}
	if opts.Progress {
		runnerOpts = append(runnerOpts, pipeline.WithProgress(stderr))
	}

	runner, err := pipeline.NewRunner(model, runnerOpts...)
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}

	result, err := runner.Run(ctx, files)
	if err != nil {
		return fmt.Errorf("forecast failed: %w", err)
	}

	report := output.NewReport(result, opts.ConfigFile)

	if cfg.Store.Enabled() {
		runID, err := saveRun(ctx, cfg.Store, result, logger)
		if err != nil {
			return err
		}
		report.Metadata.RunID = runID
	}

	if cfg.Chart.Enabled() {
		paths, err := chart.RenderAll(cfg.Chart.Dir, result.Results, model.Name(), chart.Options{
			Width:  cfg.Chart.Width,
			Height: cfg.Chart.Height,
		})
		if err != nil {
			return fmt.Errorf("rendering charts: %w", err)
		}
		logger.Printf("[INFO] wrote %d chart(s) to %s", len(paths), cfg.Chart.Dir)
	}

	formatter, err := output.NewFormatter(cfg.Output.Format, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	})
	if err != nil {
		return err
	}

	if err := formatter.Format(ctx, report, stdout); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	// Send webhooks (errors logged but don't fail the run)
	sendWebhooks(ctx, cfg, opts, report, stderr)

	if report.HasErrors() {
		ExitCode = 1
	}

	return nil
}

// loadForecastConfig builds the effective configuration: defaults or the
// config file, then environment, then any flags set on the command line.
func loadForecastConfig(ctx context.Context, cmd *cobra.Command, opts *ForecastOptions) (*config.Config, error) {
	var cfg *config.Config
	if opts.ConfigFile != "" {
		loaded, err := config.Load(ctx, opts.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
		cfg.ApplyEnvironmentOverrides()
	}

	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model.Name = opts.Model
	}
	if flags.Changed("horizon") {
		cfg.Model.Horizon = opts.Horizon
	}
	if flags.Changed("interval-width") {
		cfg.Model.IntervalWidth = opts.IntervalWidth
	}
	if flags.Changed("output") {
		cfg.Output.Format = opts.Output
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.Workers
	}
	if flags.Changed("keep-going") {
		cfg.KeepGoing = opts.KeepGoing
	}
	if flags.Changed("chart-dir") {
		cfg.Chart.Dir = opts.ChartDir
	}
	if flags.Changed("store-dsn") {
		cfg.Store.DSN = opts.StoreDSN
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func saveRun(ctx context.Context, sc config.StoreConfig, result *pipeline.RunResult, logger *log.Logger) (string, error) {
	db, err := store.Open(ctx, sc.DSN, sc.Table)
	if err != nil {
		return "", fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return "", err
	}

	run := store.NewRun(result)
	n, err := db.SaveRun(ctx, run, result.Results)
	if err != nil {
		return "", fmt.Errorf("saving run: %w", err)
	}
	logger.Printf("[INFO] stored run %s: %d point(s) in %s (%s)", run.ID, n, sc.Table, db.Dialect())
	return run.ID.String(), nil
}

// sendWebhooks sends the report to all configured webhooks.
// Errors are logged to stderr but don't fail the run.
func sendWebhooks(ctx context.Context, cfg *config.Config, opts *ForecastOptions, report *output.Report, stderr io.Writer) {
	webhooks := collectWebhooks(cfg, opts)
	if len(webhooks) == 0 {
		return
	}

	client := webhook.NewClient()

	for _, wh := range webhooks {
		if !webhook.ShouldFire(wh.Trigger, report.HasErrors()) {
			continue
		}

		resp := client.Send(ctx, report, webhook.SendOptions{
			URL:     wh.URL,
			Token:   wh.Token,
			Timeout: wh.Timeout,
		})

		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		if resp.Success() {
			fmt.Fprintf(stderr, "Webhook %s: sent (%d, %s)\n", name, resp.StatusCode, resp.Duration)
		} else {
			fmt.Fprintf(stderr, "Webhook %s: failed (%v)\n", name, resp.Error)
		}
	}
}

// collectWebhooks merges config file webhooks with the CLI webhook.
func collectWebhooks(cfg *config.Config, opts *ForecastOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnErrors
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}
