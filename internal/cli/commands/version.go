package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"juneau/internal/cli/plugins"
	"juneau/pkg/forecast"
)

// Version is set via ldflags at build time.
var Version = "dev"

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print the version of juneau, the built-in forecasting models and any installed plugins.",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "juneau %s\n", Version)
			fmt.Fprintf(out, "models: %s\n", strings.Join(forecast.Names(), ", "))
			if installed := plugins.List(); len(installed) > 0 {
				fmt.Fprintf(out, "plugins: %s\n", strings.Join(installed, ", "))
			}
		},
	}
}
