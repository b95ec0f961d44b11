package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"juneau/pkg/parser"
)

// InspectOptions holds options for the inspect command.
type InspectOptions struct {
	JSON        bool
	Points      bool
	WriteConfig string
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	opts := &InspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <data-file>...",
		Short: "Show how data files are decoded, without forecasting",
		Long: `Decode data files and show the resulting series without running a model.

For each row this prints the number of points and the first and last
resolved dates. Use --points to list every (date, timestamp, value) triple.

Example:
  juneau inspect data/sales.csv
  juneau inspect --json data/
  juneau inspect data/*.csv --write-config juneau.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output decoded datasets as JSON")
	cmd.Flags().BoolVar(&opts.Points, "points", false, "List every decoded point")
	cmd.Flags().StringVar(&opts.WriteConfig, "write-config", "", "Write a starter config for these files")

	return cmd
}

func runInspect(cmd *cobra.Command, args []string, opts *InspectOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	files, err := parser.ExpandGlobs(args)
	if err != nil {
		return fmt.Errorf("expanding data files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no data files matched: %v", args)
	}

	datasets := make([]*parser.Dataset, 0, len(files))
	for _, f := range files {
		ds, err := parser.ParseFile(ctx, f)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", f, err)
		}
		datasets = append(datasets, ds)
	}

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(datasets, opts.WriteConfig); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote starter config to: %s\n", opts.WriteConfig)
	}

	if opts.JSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(datasets)
	}

	for i, ds := range datasets {
		outputInspectText(out, i, ds, opts.Points)
	}
	return nil
}

func outputInspectText(w io.Writer, fileIdx int, ds *parser.Dataset, points bool) {
	fmt.Fprintf(w, "%s: %d row(s), %d point(s)\n", ds.Source, ds.Len(), ds.Points())

	for rowIdx, row := range ds.Rows {
		id := fmt.Sprintf("file %d row %d", fileIdx+1, rowIdx)
		if row.Len() == 0 {
			fmt.Fprintf(w, "  %s: no points\n", id)
			continue
		}
		fmt.Fprintf(w, "  %s: %d point(s), %s .. %s\n", id, row.Len(),
			parser.DateFromUnix(row.Timestamps[0]),
			parser.DateFromUnix(row.Timestamps[row.Len()-1]))

		if points {
			for _, p := range row.Points() {
				fmt.Fprintf(w, "    %s  %d  %g\n", parser.DateFromUnix(p.Timestamp), p.Timestamp, p.Value)
			}
		}
	}
	fmt.Fprintln(w)
}

// writeStarterConfig writes a YAML config listing the inspected files, with
// a model suggestion based on how long the series are.
func writeStarterConfig(datasets []*parser.Dataset, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, []byte(generateStarterConfig(datasets)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// suggestModel picks a model from the length of the shortest non-empty row.
func suggestModel(datasets []*parser.Dataset) (string, int) {
	shortest := -1
	for _, ds := range datasets {
		for _, row := range ds.Rows {
			if row.Len() == 0 {
				continue
			}
			if shortest < 0 || row.Len() < shortest {
				shortest = row.Len()
			}
		}
	}

	switch {
	case shortest >= 6:
		return "linear", shortest
	case shortest >= 2:
		return "naive", shortest
	default:
		return "mean", shortest
	}
}

func generateStarterConfig(datasets []*parser.Dataset) string {
	var sources strings.Builder
	for _, ds := range datasets {
		path := ds.Source
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		fmt.Fprintf(&sources, "  - %s\n", path)
	}

	model, shortest := suggestModel(datasets)

	return fmt.Sprintf(`# Juneau Configuration
# Generated by: juneau inspect --write-config
# Shortest series: %d point(s)

data_sources:
%s  # Add more files, directories, or globs:
  # - data/*.csv

model:
  name: %s
  horizon: 12
  interval_width: 0.8

workers: 4
keep_going: false

output:
  format: text

# Persist every run (mysql://, mariadb:// or postgres://):
# store:
#   dsn: ${JUNEAU_STORE_DSN}
#   table: forecasts

# Render one PNG per series:
# chart:
#   dir: charts
#   width: 800
#   height: 400

# webhooks:
#   - name: ops
#     url: https://hooks.example.com/juneau
#     token: ${JUNEAU_WEBHOOK_TOKEN}
#     trigger: on_errors
`, shortest, sources.String(), model)
}
