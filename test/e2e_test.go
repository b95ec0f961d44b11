package test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"juneau/internal/cli"
	"juneau/internal/cli/commands"
	"juneau/pkg/config"
	"juneau/pkg/forecast"
	"juneau/pkg/output"
	"juneau/pkg/parser"
	"juneau/pkg/pipeline"
	"juneau/pkg/webhook"
)

var (
	projectRoot string
	rootOnce    sync.Once
)

// chdir changes to the project root directory for tests.
// Config files use paths relative to project root.
func chdir(t *testing.T) {
	t.Helper()
	rootOnce.Do(func() {
		_, filename, _, _ := runtime.Caller(0)
		projectRoot = filepath.Dir(filepath.Dir(filename))
	})
	if err := os.Chdir(projectRoot); err != nil {
		t.Fatalf("Failed to chdir to project root: %v", err)
	}
}

// requireFile fails the test if the required test file doesn't exist.
// We never skip tests - missing test data is a test failure.
func requireFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Required test file not found: %s", path)
	}
}

// runJuneau runs the root command in-process and returns stdout, stderr
// and the exit code Execute would report.
func runJuneau(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	commands.ExitCode = 0
	t.Cleanup(func() { commands.ExitCode = 0 })

	root := cli.NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		stderr.WriteString("Error: " + err.Error() + "\n")
		return stdout.String(), stderr.String(), 2
	}
	return stdout.String(), stderr.String(), commands.ExitCode
}

// runPipeline loads a config and runs it through the library API.
func runPipeline(t *testing.T, configFile string) (*config.Config, *pipeline.RunResult) {
	t.Helper()
	ctx := context.Background()

	cfg, err := config.Load(ctx, configFile)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	files, err := parser.ExpandGlobs(cfg.DataSources)
	if err != nil {
		t.Fatalf("Failed to expand globs: %v", err)
	}
	for _, f := range files {
		requireFile(t, f)
	}

	model, err := forecast.New(cfg.Model.Name, cfg.ForecastOptions())
	if err != nil {
		t.Fatalf("Failed to create model: %v", err)
	}

	runner, err := pipeline.NewRunner(model,
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithKeepGoing(cfg.KeepGoing),
	)
	if err != nil {
		t.Fatalf("Failed to create runner: %v", err)
	}

	result, err := runner.Run(ctx, files)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return cfg, result
}

// TestE2E_Sales runs the full pipeline over the sample data.
func TestE2E_Sales(t *testing.T) {
	chdir(t)
	cfg, result := runPipeline(t, filepath.Join("testdata", "configs", "sales.yaml"))

	if result.Metadata.Model != "linear" || cfg.Model.Horizon != 6 {
		t.Errorf("unexpected model setup: %s horizon %d", result.Metadata.Model, cfg.Model.Horizon)
	}

	wantIDs := []string{
		"file 1 row 0", "file 1 row 1", "file 1 row 2",
		"file 2 row 0", "file 2 row 1", "file 2 row 2",
	}
	if len(result.Results) != len(wantIDs) {
		t.Fatalf("Expected %d series, got %d", len(wantIDs), len(result.Results))
	}
	for i, id := range wantIDs {
		if result.Results[i].ID != id {
			t.Errorf("Results[%d].ID = %q, want %q", i, result.Results[i].ID, id)
		}
	}

	// 24 + 12 + 6 in sales.csv; 7 + 5 + 0 in month_end.csv.
	if got := result.Points(); got != 54 {
		t.Errorf("Expected 54 points, got %d", got)
	}
	if got := result.Forecasts(); got != 5 {
		t.Errorf("Expected 5 forecasts, got %d", got)
	}

	empty := result.Results[5]
	if !empty.Skipped || empty.Prediction != nil {
		t.Errorf("Expected the empty row to be skipped, got %+v", empty)
	}

	// Month-end row ends 12/31/2023; of the next six months only
	// January, March and May have a 31st.
	monthEnd := result.Results[3]
	if got := monthEnd.Input.Len(); got != 7 {
		t.Errorf("Expected 7 month-end points, got %d", got)
	}
	future := monthEnd.Prediction.Timestamps[monthEnd.FutureStart():]
	wantDates := []string{"01/31/2024", "03/31/2024", "05/31/2024"}
	if len(future) != len(wantDates) {
		t.Fatalf("Expected %d future points, got %d", len(wantDates), len(future))
	}
	for i, ts := range future {
		if got := parser.DateFromUnix(ts).String(); got != wantDates[i] {
			t.Errorf("future[%d] = %s, want %s", i, got, wantDates[i])
		}
	}

	// The trend in row 0 is upward, so the forecast should keep rising.
	trend := result.Results[0].Prediction
	start := result.Results[0].FutureStart()
	if trend.Point[trend.Len()-1] <= trend.Point[start] {
		t.Errorf("Expected rising forecast, got %v", trend.Point[start:])
	}
	for i := start; i < trend.Len(); i++ {
		if trend.Lower[i] > trend.Point[i] || trend.Upper[i] < trend.Point[i] {
			t.Errorf("point %d outside its interval: %f [%f, %f]", i, trend.Point[i], trend.Lower[i], trend.Upper[i])
		}
	}
}

// TestE2E_Sales_TextOutput tests text output formatting.
func TestE2E_Sales_TextOutput(t *testing.T) {
	chdir(t)
	configFile := filepath.Join("testdata", "configs", "sales.yaml")
	_, result := runPipeline(t, configFile)

	report := output.NewReport(result, configFile)
	formatter, err := output.NewFormatter("text", output.FormatOptions{})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := formatter.Format(context.Background(), report, &buf); err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"=== Juneau Forecast Report ===",
		"[file 2 row 0]",
		"Forecast (linear):",
		"Skipped: too few points to forecast",
		"Summary: 2 files processed, 0 failed, 6 series, 54 points, 5 forecasts",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Missing %q in text output", want)
		}
	}
}

// TestE2E_Sales_CSVOutput checks that the CSV output lists forecast rows only.
func TestE2E_Sales_CSVOutput(t *testing.T) {
	chdir(t)
	configFile := filepath.Join("testdata", "configs", "sales.yaml")
	_, result := runPipeline(t, configFile)

	formatter, _ := output.NewFormatter("csv", output.FormatOptions{})
	var buf bytes.Buffer
	if err := formatter.Format(context.Background(), output.NewReport(result, configFile), &buf); err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// Header plus 6 + 6 + 6 + 3 + 6 future points.
	if len(lines) != 28 {
		t.Errorf("Expected 28 lines, got %d", len(lines))
	}
	for _, line := range lines[1:] {
		if !strings.Contains(line, ",forecast,") {
			t.Errorf("Non-forecast row in default CSV output: %s", line)
		}
	}
}

// TestE2E_CLI_JSONOutput runs the forecast command end to end.
func TestE2E_CLI_JSONOutput(t *testing.T) {
	chdir(t)
	configFile := filepath.Join("testdata", "configs", "sales.yaml")

	stdout, stderr, code := runJuneau(t, "forecast", "-c", configFile, "-o", "json")
	if code != 0 {
		t.Fatalf("Exit code %d, stderr: %s", code, stderr)
	}

	var report output.Report
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if report.Summary.Series != 6 || report.Summary.Forecasts != 5 {
		t.Errorf("Unexpected summary: %+v", report.Summary)
	}
	if report.Metadata.ConfigFile != configFile {
		t.Errorf("ConfigFile = %q, want %q", report.Metadata.ConfigFile, configFile)
	}
	if len(report.Metadata.Sources) != 2 {
		t.Errorf("Expected 2 sources, got %v", report.Metadata.Sources)
	}
}

// TestE2E_CLI_FlagsOverrideConfig checks flag precedence over the config file.
func TestE2E_CLI_FlagsOverrideConfig(t *testing.T) {
	chdir(t)
	configFile := filepath.Join("testdata", "configs", "sales.yaml")

	stdout, stderr, code := runJuneau(t, "forecast", "-c", configFile, "-o", "json", "-m", "naive", "--horizon", "1",
		filepath.Join("testdata", "data", "sales.csv"))
	if code != 0 {
		t.Fatalf("Exit code %d, stderr: %s", code, stderr)
	}

	var report output.Report
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if report.Metadata.Model != "naive" {
		t.Errorf("Model = %q, want naive", report.Metadata.Model)
	}
	if report.Summary.Series != 3 {
		t.Errorf("Expected positional data to replace data_sources, got %d series", report.Summary.Series)
	}
	for _, res := range report.Results {
		if got := res.Prediction.Len() - res.FutureStart(); got != 1 {
			t.Errorf("%s: expected 1 future point, got %d", res.ID, got)
		}
	}
}

// TestE2E_CLI_KeepGoing runs an INI config that includes a broken file.
func TestE2E_CLI_KeepGoing(t *testing.T) {
	chdir(t)
	configFile := filepath.Join("testdata", "configs", "keep_going.ini")

	stdout, stderr, code := runJuneau(t, "forecast", "-c", configFile)
	if code != 1 {
		t.Fatalf("Expected exit code 1, got %d (stderr: %s)", code, stderr)
	}

	var report output.Report
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if report.Summary.FilesFailed != 1 || report.Summary.Series != 3 {
		t.Errorf("Unexpected summary: %+v", report.Summary)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0].Error, "invalid month") {
		t.Errorf("Unexpected errors: %+v", report.Errors)
	}
}

// TestE2E_CLI_BadFileAborts checks that without --keep-going one bad file
// fails the whole run.
func TestE2E_CLI_BadFileAborts(t *testing.T) {
	chdir(t)

	stdout, stderr, code := runJuneau(t, "forecast",
		filepath.Join("testdata", "data", "sales.csv"),
		filepath.Join("testdata", "data", "bad", "not_a_number.csv"))
	if code != 2 {
		t.Fatalf("Expected exit code 2, got %d", code)
	}
	if stdout != "" {
		t.Errorf("Expected no report on failure, got: %s", stdout)
	}
	if !strings.Contains(stderr, "invalid numeric value") {
		t.Errorf("Expected numeric error, got: %s", stderr)
	}

	// The library reports the same failure as a typed error.
	_, err := parser.ParseFile(context.Background(), filepath.Join("testdata", "data", "bad", "not_a_number.csv"))
	var rowErr *parser.RowError
	if !errors.As(err, &rowErr) || !errors.Is(err, parser.ErrNumericParse) {
		t.Fatalf("Expected RowError wrapping ErrNumericParse, got %v", err)
	}
	if rowErr.Line != 1 || rowErr.Column != 2 {
		t.Errorf("Error at line %d column %d, want line 1 column 2", rowErr.Line, rowErr.Column)
	}
}

// TestE2E_CLI_Charts renders one chart per forecast series.
func TestE2E_CLI_Charts(t *testing.T) {
	chdir(t)
	chartDir := t.TempDir()

	_, stderr, code := runJuneau(t, "forecast", "-q", "--chart-dir", chartDir,
		filepath.Join("testdata", "data", "month_end.csv"))
	if code != 0 {
		t.Fatalf("Exit code %d, stderr: %s", code, stderr)
	}

	matches, _ := filepath.Glob(filepath.Join(chartDir, "*.png"))
	if len(matches) != 2 {
		t.Errorf("Expected 2 charts (empty row has none), got %v", matches)
	}
}

// TestE2E_Inspect_WriteConfig generates a config and forecasts with it.
func TestE2E_Inspect_WriteConfig(t *testing.T) {
	chdir(t)
	configPath := filepath.Join(t.TempDir(), "juneau.yaml")
	dataFile := filepath.Join("testdata", "data", "sales.csv")

	stdout, stderr, code := runJuneau(t, "inspect", dataFile, "--write-config", configPath)
	if code != 0 {
		t.Fatalf("inspect failed: %s", stderr)
	}
	if !strings.Contains(stdout, "3 row(s), 42 point(s)") {
		t.Errorf("Unexpected inspect output: %s", stdout)
	}

	cfg, err := config.Load(context.Background(), configPath)
	if err != nil {
		t.Fatalf("Generated config is invalid: %v", err)
	}
	if cfg.Model.Name != "linear" {
		t.Errorf("Expected linear suggestion for 6+ points, got %s", cfg.Model.Name)
	}

	_, stderr, code = runJuneau(t, "forecast", "-q", "-c", configPath)
	if code != 0 {
		t.Errorf("forecast with generated config failed: %s", stderr)
	}
}

// ============================================================================
// Diagnose
// ============================================================================

func TestE2E_Diagnose(t *testing.T) {
	chdir(t)

	tests := []struct {
		name     string
		config   string
		wantCode int
		want     []string
	}{
		{
			name:     "valid config",
			config:   filepath.Join("testdata", "configs", "sales.yaml"),
			wantCode: 0,
			want:     []string{"=== Juneau Diagnostics ===", "[PASS] Config File", "[PASS] Decode: sales.csv", "[WARN] Decode: month_end.csv"},
		},
		{
			name:     "invalid yaml",
			config:   filepath.Join("testdata", "configs", "bad", "invalid_yaml.yaml"),
			wantCode: 1,
			want:     []string{"[FAIL] Config Syntax", "YAML"},
		},
		{
			name:     "unknown model",
			config:   filepath.Join("testdata", "configs", "bad", "unknown_model.yaml"),
			wantCode: 1,
			want:     []string{"[FAIL] Config Syntax", "arima"},
		},
		{
			name:     "missing data file",
			config:   filepath.Join("testdata", "configs", "bad", "missing_data.yaml"),
			wantCode: 1,
			want:     []string{"File does not exist", "No accessible data files found"},
		},
		{
			name:     "undecodable data",
			config:   filepath.Join("testdata", "configs", "bad_data.yaml"),
			wantCode: 1,
			want:     []string{"[FAIL] Decode: not_a_number.csv", "Value fields must be plain numbers"},
		},
		{
			name:     "nonexistent config",
			config:   filepath.Join("testdata", "configs", "nope.yaml"),
			wantCode: 1,
			want:     []string{"Config file not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, code := runJuneau(t, "diagnose", tt.config)
			if code != tt.wantCode {
				t.Errorf("Exit code %d, want %d\n%s", code, tt.wantCode, stdout)
			}
			for _, want := range tt.want {
				if !strings.Contains(stdout, want) {
					t.Errorf("Missing %q in output:\n%s", want, stdout)
				}
			}
		})
	}
}

// ============================================================================
// Webhooks
// ============================================================================

type webhookRecorder struct {
	mu       sync.Mutex
	calls    int
	auth     string
	payloads [][]byte
}

func (r *webhookRecorder) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.calls++
		r.auth = req.Header.Get("Authorization")
		r.payloads = append(r.payloads, body)
		r.mu.Unlock()
		w.WriteHeader(status)
	}
}

// TestE2E_Webhook_ConfigFile fires a config-file webhook with env expansion.
func TestE2E_Webhook_ConfigFile(t *testing.T) {
	chdir(t)
	rec := &webhookRecorder{}
	server := httptest.NewServer(rec.handler(http.StatusOK))
	defer server.Close()

	t.Setenv("JUNEAU_TEST_WEBHOOK_URL", server.URL)
	t.Setenv("JUNEAU_TEST_WEBHOOK_TOKEN", "test-token-123")

	_, stderr, code := runJuneau(t, "forecast", "-q", "-c", filepath.Join("testdata", "configs", "webhook.yaml"))
	if code != 0 {
		t.Fatalf("Exit code %d, stderr: %s", code, stderr)
	}

	if rec.calls != 1 {
		t.Fatalf("Expected 1 webhook call, got %d", rec.calls)
	}
	if rec.auth != "Bearer test-token-123" {
		t.Errorf("Expected Bearer token, got %q", rec.auth)
	}
	if !strings.Contains(stderr, "Webhook ops: sent") {
		t.Errorf("Expected webhook status on stderr, got: %s", stderr)
	}

	var payload webhook.Payload
	if err := json.Unmarshal(rec.payloads[0], &payload); err != nil {
		t.Fatalf("Invalid JSON payload: %v", err)
	}
	if payload.Event != webhook.EventCompleted || payload.Report.Summary.Points != 42 {
		t.Errorf("Unexpected payload: event %s, summary %+v", payload.Event, payload.Report.Summary)
	}
}

// TestE2E_Webhook_OnErrors fires the CLI webhook only when a file fails.
func TestE2E_Webhook_OnErrors(t *testing.T) {
	chdir(t)
	rec := &webhookRecorder{}
	server := httptest.NewServer(rec.handler(http.StatusOK))
	defer server.Close()

	good := filepath.Join("testdata", "data", "sales.csv")
	bad := filepath.Join("testdata", "data", "bad", "invalid_month.csv")

	runJuneau(t, "forecast", "-q", "--webhook-url", server.URL, good)
	if rec.calls != 0 {
		t.Fatalf("Webhook fired for a clean run")
	}

	_, _, code := runJuneau(t, "forecast", "-q", "--keep-going", "--webhook-url", server.URL, good, bad)
	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if rec.calls != 1 {
		t.Fatalf("Expected 1 webhook call, got %d", rec.calls)
	}

	var payload webhook.Payload
	if err := json.Unmarshal(rec.payloads[0], &payload); err != nil {
		t.Fatalf("Invalid JSON payload: %v", err)
	}
	if payload.Event != webhook.EventFailed || len(payload.Report.Errors) != 1 {
		t.Errorf("Unexpected payload: event %s, errors %+v", payload.Event, payload.Report.Errors)
	}
}

// TestE2E_Webhook_ServerError checks that a failing endpoint does not fail the run.
func TestE2E_Webhook_ServerError(t *testing.T) {
	chdir(t)
	rec := &webhookRecorder{}
	server := httptest.NewServer(rec.handler(http.StatusInternalServerError))
	defer server.Close()

	_, stderr, code := runJuneau(t, "forecast", "-q", "--webhook-url", server.URL, "--webhook-trigger", "always",
		filepath.Join("testdata", "data", "sales.csv"))
	if code != 0 {
		t.Errorf("Webhook failure changed exit code to %d", code)
	}
	if !strings.Contains(stderr, "Webhook cli: failed") {
		t.Errorf("Expected failure message, got: %s", stderr)
	}
}
