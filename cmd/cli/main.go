// Juneau - Monthly Series Forecasting Tool
//
// Juneau decodes wide-format calendar CSV files, one series per row, and
// forecasts each series with an in-process model.
package main

import (
	"os"

	"juneau/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
