package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"juneau/pkg/config"
	"juneau/pkg/parser"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a juneau configuration file without forecasting.

Checks:
  - YAML or INI syntax
  - Model name, horizon and interval width
  - Output format, store DSN and table name
  - Webhook URLs and triggers
  - Data source file existence (warning only)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(out, "\nConfiguration valid!\n")
	fmt.Fprintf(out, "  Data sources: %d pattern(s)\n", len(cfg.DataSources))
	fmt.Fprintf(out, "  Model:        %s (horizon %d, interval %.0f%%)\n",
		cfg.Model.Name, cfg.Model.Horizon, cfg.Model.IntervalWidth*100)
	fmt.Fprintf(out, "  Workers:      %d\n", cfg.Workers)
	fmt.Fprintf(out, "  Output:       %s\n", cfg.Output.Format)
	if cfg.Store.Enabled() {
		fmt.Fprintf(out, "  Store:        table %s\n", cfg.Store.Table)
	}
	if cfg.Chart.Enabled() {
		fmt.Fprintf(out, "  Charts:       %s (%dx%d)\n", cfg.Chart.Dir, cfg.Chart.Width, cfg.Chart.Height)
	}
	if len(cfg.Webhooks) > 0 {
		names := make([]string, 0, len(cfg.Webhooks))
		for _, wh := range cfg.Webhooks {
			names = append(names, fmt.Sprintf("%s [%s]", wh.Name, wh.Trigger))
		}
		fmt.Fprintf(out, "  Webhooks:     %s\n", strings.Join(names, ", "))
	}

	// Check if data sources exist (warnings only)
	files, err := parser.ExpandGlobs(cfg.DataSources)
	if err != nil {
		fmt.Fprintf(out, "\nWarning: Error expanding data source patterns: %v\n", err)
	} else if len(files) == 0 {
		fmt.Fprintf(out, "\nWarning: No files match data source patterns\n")
	} else {
		fmt.Fprintf(out, "\nData files matched: %d\n", len(files))
		for _, f := range files {
			fmt.Fprintf(out, "  - %s\n", f)
		}
	}

	return nil
}
