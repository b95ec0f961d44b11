package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"juneau/pkg/config"
	"juneau/pkg/forecast"
	"juneau/pkg/parser"
	"juneau/pkg/store"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Verbose bool
}

// Check outcomes.
const (
	statusOK      = "ok"
	statusWarning = "warning"
	statusError   = "error"
)

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <config-file>",
		Short: "Diagnose common configuration and data issues",
		Long: `Diagnose common configuration and data issues.

This command checks:
- Config file syntax and structure
- Data source existence and accessibility
- That every data file decodes, reporting the first bad row
- Model settings
- Store DSN (and connectivity with -v)
- Webhooks (and connectivity with -v)

Example:
  juneau diagnose juneau.yaml
  juneau diagnose -v juneau.yaml  # verbose output`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if failed := runDiagnose(ctx, cmd.OutOrStdout(), args[0], opts); failed > 0 {
				ExitCode = 1
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

// runDiagnose runs every check and prints the results. It returns the
// number of failed checks.
func runDiagnose(ctx context.Context, w io.Writer, configPath string, opts *DiagnoseOptions) int {
	results := []DiagnosticResult{}

	result := checkConfigExists(configPath)
	results = append(results, result)
	if result.Status == statusError {
		return printDiagnostics(w, results, opts)
	}

	cfg, result := checkConfigParseable(ctx, configPath)
	results = append(results, result)
	if result.Status == statusError {
		return printDiagnostics(w, results, opts)
	}

	results = append(results, checkDataSources(cfg)...)
	results = append(results, checkDataFiles(ctx, cfg, opts)...)
	results = append(results, checkModel(cfg))
	results = append(results, checkStore(ctx, cfg, opts)...)
	results = append(results, checkWebhooks(ctx, cfg, opts)...)

	return printDiagnostics(w, results, opts)
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Config File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = statusError
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{
			"Check the file path is correct",
			"Use 'juneau inspect <data-file> --write-config juneau.yaml' to generate a starter config",
		}
		return result
	}
	if err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = statusError
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = statusError
		result.Message = "Config file is empty"
		result.Suggests = []string{
			"Use 'juneau inspect <data-file> --write-config juneau.yaml' to generate a starter config",
		}
		return result
	}

	result.Status = statusOK
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config Syntax",
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Failed to load config: %v", err)
		switch {
		case strings.Contains(err.Error(), "yaml"):
			result.Suggests = []string{
				"Check YAML syntax - ensure proper indentation (use spaces, not tabs)",
			}
		case strings.EqualFold(filepath.Ext(path), ".ini"):
			result.Suggests = []string{
				"Check INI syntax - keys go under [model], [output], [store], [chart] or [webhook.<name>]",
			}
		}
		return nil, result
	}

	result.Status = statusOK
	result.Message = "Config file parsed successfully"
	result.Details = []string{
		fmt.Sprintf("Data sources: %d", len(cfg.DataSources)),
		fmt.Sprintf("Model: %s", cfg.Model.Name),
	}
	return cfg, result
}

func checkDataSources(cfg *config.Config) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.DataSources) == 0 {
		results = append(results, DiagnosticResult{
			Check:   "Data Sources",
			Status:  statusWarning,
			Message: "No data sources defined; files must be given on the command line",
			Suggests: []string{
				"Add a data_sources section to your config",
				"Example: data_sources:\n  - data/*.csv",
			},
		})
		return results
	}

	totalFiles := 0
	for _, source := range cfg.DataSources {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Data Source: %s", source),
		}

		info, statErr := os.Stat(source)
		switch {
		case statErr == nil && info.IsDir():
			files, _ := parser.ExpandGlobs([]string{source})
			if len(files) == 1 && files[0] == filepath.Join(source, "*.csv") {
				result.Status = statusWarning
				result.Message = "Directory contains no .csv files"
			} else {
				result.Status = statusOK
				result.Message = fmt.Sprintf("Directory with %d csv file(s)", len(files))
				result.Details = append(result.Details, files...)
				totalFiles += len(files)
			}
		case strings.ContainsAny(source, "*?["):
			matches, err := filepath.Glob(source)
			if err != nil {
				result.Status = statusError
				result.Message = fmt.Sprintf("Invalid glob pattern: %v", err)
			} else if len(matches) == 0 {
				result.Status = statusWarning
				result.Message = "Glob pattern matches no files"
				result.Suggests = []string{
					"Check if the data files exist at this path",
					"Verify the glob pattern syntax",
				}
			} else {
				result.Status = statusOK
				result.Message = fmt.Sprintf("Matches %d file(s)", len(matches))
				result.Details = append(result.Details, matches...)
				totalFiles += len(matches)
			}
		case os.IsNotExist(statErr):
			result.Status = statusError
			result.Message = "File does not exist"
			result.Suggests = []string{"Check if the data file path is correct"}
		case statErr != nil:
			result.Status = statusError
			result.Message = fmt.Sprintf("Cannot access file: %v", statErr)
			result.Suggests = []string{"Check file permissions"}
		case info.Size() == 0:
			result.Status = statusWarning
			result.Message = "File is empty (0 bytes)"
		default:
			result.Status = statusOK
			result.Message = fmt.Sprintf("File exists (%d bytes)", info.Size())
			totalFiles++
		}
		results = append(results, result)
	}

	if totalFiles == 0 {
		results = append(results, DiagnosticResult{
			Check:   "Data Files Summary",
			Status:  statusError,
			Message: "No accessible data files found",
			Suggests: []string{
				"Ensure at least one data file exists and is readable",
			},
		})
	}

	return results
}

// checkDataFiles decodes every matched data file and reports the first
// failing row of each.
func checkDataFiles(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	files, err := parser.ExpandGlobs(cfg.DataSources)
	if err != nil {
		return results
	}

	for _, f := range files {
		if info, err := os.Stat(f); err != nil || info.IsDir() {
			continue
		}

		result := DiagnosticResult{
			Check: fmt.Sprintf("Decode: %s", filepath.Base(f)),
		}

		ds, err := parser.ParseFile(ctx, f)
		if err != nil {
			result.Status = statusError
			result.Message = "File does not decode; a forecast run would abort here"
			result.Details = []string{err.Error()}
			result.Suggests = decodeHints(err)
			results = append(results, result)
			continue
		}

		empty := 0
		for _, row := range ds.Rows {
			if row.Len() == 0 {
				empty++
			}
		}

		switch {
		case ds.Len() == 0:
			result.Status = statusWarning
			result.Message = "File has no rows"
		case empty > 0:
			result.Status = statusWarning
			result.Message = fmt.Sprintf("%d row(s), %d with no usable points", ds.Len(), empty)
			result.Suggests = []string{
				"Rows stop at the first empty field, and months without the base day are dropped",
			}
		default:
			result.Status = statusOK
			result.Message = fmt.Sprintf("%d row(s), %d point(s)", ds.Len(), ds.Points())
		}

		if opts.Verbose && ds.Len() > 0 && ds.Rows[0].Len() > 0 {
			first := ds.Rows[0]
			result.Details = append(result.Details, fmt.Sprintf("Row 0: %s .. %s",
				parser.DateFromUnix(first.Timestamps[0]),
				parser.DateFromUnix(first.Timestamps[first.Len()-1])))
		}

		results = append(results, result)
	}

	return results
}

func decodeHints(err error) []string {
	switch {
	case errors.Is(err, parser.ErrDateFormat), errors.Is(err, parser.ErrInvalidMonth):
		return []string{"The first field of each row must be a MM/DD/YYYY date, month first"}
	case errors.Is(err, parser.ErrInvalidDate):
		return []string{"The base date must exist in the calendar (no 02/30 or 04/31)"}
	case errors.Is(err, parser.ErrNumericParse):
		return []string{"Value fields must be plain numbers; leave a field empty to end the row"}
	case errors.Is(err, parser.ErrMalformedRecord):
		return []string{"Check for unbalanced quotes or non UTF-8 bytes"}
	case errors.Is(err, parser.ErrMissingDateColumn):
		return []string{"Each row must start with a base date"}
	default:
		return nil
	}
}

func checkModel(cfg *config.Config) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Model",
	}

	if _, err := forecast.New(cfg.Model.Name, cfg.ForecastOptions()); err != nil {
		result.Status = statusError
		result.Message = err.Error()
		result.Suggests = []string{fmt.Sprintf("Available models: %s", strings.Join(forecast.Names(), ", "))}
		return result
	}

	result.Status = statusOK
	result.Message = fmt.Sprintf("%s, horizon %d month(s), %.0f%% interval",
		cfg.Model.Name, cfg.Model.Horizon, cfg.Model.IntervalWidth*100)
	if cfg.Model.Horizon == 0 {
		result.Status = statusWarning
		result.Suggests = []string{"Horizon 0 produces in-sample predictions only"}
	}
	return result
}

func checkStore(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	if !cfg.Store.Enabled() {
		if opts.Verbose {
			return []DiagnosticResult{{
				Check:   "Store",
				Status:  statusOK,
				Message: "No store configured (optional)",
			}}
		}
		return nil
	}

	result := DiagnosticResult{
		Check: "Store",
	}

	dialect, _, err := store.ParseDSN(cfg.Store.DSN)
	if err != nil {
		result.Status = statusError
		result.Message = err.Error()
		return []DiagnosticResult{result}
	}
	result.Status = statusOK
	result.Message = fmt.Sprintf("%s, table %s", dialect, cfg.Store.Table)

	if !opts.Verbose {
		return []DiagnosticResult{result}
	}

	conn := DiagnosticResult{Check: "Store Connectivity"}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	db, err := store.Open(ctx, cfg.Store.DSN, cfg.Store.Table)
	if err != nil {
		conn.Status = statusWarning
		conn.Message = fmt.Sprintf("Cannot connect: %v", err)
		conn.Suggests = []string{"Check the database host, credentials and database name"}
	} else {
		db.Close()
		conn.Status = statusOK
		conn.Message = "Reachable"
	}
	return []DiagnosticResult{result, conn}
}

func checkWebhooks(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  statusOK,
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		result := DiagnosticResult{Check: "Webhook: " + webhookName(wh)}

		issues, warnings := webhookProblems(wh)
		switch {
		case len(issues) > 0:
			result.Status = statusError
			result.Message = fmt.Sprintf("%d configuration issue(s)", len(issues))
			result.Details = issues
		case len(warnings) > 0:
			result.Status = statusWarning
			result.Message = fmt.Sprintf("%d warning(s)", len(warnings))
			result.Details = warnings
		default:
			result.Status = statusOK
			result.Message = fmt.Sprintf("Trigger: %s", wh.Trigger)
			if opts.Verbose {
				result.Details = []string{"URL: " + wh.URL, "Timeout: " + wh.Timeout.String()}
				if wh.Token != "" {
					result.Details = append(result.Details, "Token: configured")
				}
			}
		}
		results = append(results, result)

		if opts.Verbose && wh.URL != "" {
			results = append(results, checkWebhookConnectivity(ctx, wh))
		}
	}

	return results
}

// webhookProblems returns blocking issues and non-blocking warnings for wh.
func webhookProblems(wh config.WebhookConfig) (issues, warnings []string) {
	if wh.URL == "" {
		issues = append(issues, "Missing url")
	} else if u, err := url.Parse(wh.URL); err != nil {
		issues = append(issues, fmt.Sprintf("Invalid URL: %v", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		issues = append(issues, fmt.Sprintf("URL scheme must be http or https, got %q", u.Scheme))
	} else if u.Host == "" {
		issues = append(issues, "URL must have a host")
	}

	switch wh.Trigger {
	case "", config.WebhookTriggerOnErrors, config.WebhookTriggerAlways:
	case config.WebhookTriggerNever:
		warnings = append(warnings, "Trigger is never; this webhook will not fire")
	default:
		issues = append(issues, fmt.Sprintf("Invalid trigger %q (use on_errors, always, or never)", wh.Trigger))
	}

	if wh.Token == "" && strings.Contains(wh.URL, "token") {
		warnings = append(warnings, "URL mentions a token but no bearer token is set")
	}
	return issues, warnings
}

func webhookName(wh config.WebhookConfig) string {
	if wh.Name != "" {
		return wh.Name
	}
	return wh.URL
}

// checkWebhookConnectivity sends a HEAD request to the webhook endpoint.
func checkWebhookConnectivity(ctx context.Context, wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{Check: "Webhook Connectivity: " + webhookName(wh)}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = statusWarning
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}
	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Status = statusWarning
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{"Check if the webhook URL is correct", "Verify network connectivity"}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode < 400 {
		result.Status = statusOK
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
		return result
	}
	result.Status = statusWarning
	result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
	result.Suggests = []string{
		"The endpoint may only accept POST (the run itself will POST)",
		"Check authentication if using a token",
	}
	return result
}

var statusLabels = map[string]string{
	statusOK:      "PASS",
	statusWarning: "WARN",
	statusError:   "FAIL",
}

// printDiagnostics writes every result and a summary, and returns the
// number of failed checks.
func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) int {
	fmt.Fprint(w, "=== Juneau Diagnostics ===\n\n")

	counts := map[string]int{}
	for _, r := range results {
		counts[r.Status]++

		fmt.Fprintf(w, "[%s] %s\n    %s\n", statusLabels[r.Status], r.Check, r.Message)
		if opts.Verbose || r.Status != statusOK {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}
		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "---\nSummary: %d passed, %d warnings, %d errors\n\n",
		counts[statusOK], counts[statusWarning], counts[statusError])

	switch {
	case counts[statusError] > 0:
		fmt.Fprintln(w, "Fix the errors above before forecasting.")
	case counts[statusWarning] > 0:
		fmt.Fprintln(w, "Configuration is usable but has warnings.")
	default:
		fmt.Fprintln(w, "Configuration looks good!")
	}

	return counts[statusError]
}
