package config

import (
	"os"
	"strings"
	"time"

	"juneau/pkg/forecast"
)

// Default values for configuration.
const (
	DefaultWorkers        = 4
	DefaultOutputFormat   = "text"
	DefaultStoreTable     = "forecasts"
	DefaultChartWidth     = 800
	DefaultChartHeight    = 400
	DefaultWebhookTimeout = 10 * time.Second
)

// Environment variable names.
const (
	EnvDataSources = "JUNEAU_DATA_SOURCES"
	EnvModel       = "JUNEAU_MODEL"
	EnvStoreDSN    = "JUNEAU_STORE_DSN"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataSources: []string{},
		Model: ModelConfig{
			Name:          forecast.DefaultModel,
			Horizon:       forecast.DefaultHorizon,
			IntervalWidth: forecast.DefaultIntervalWidth,
		},
		Workers: DefaultWorkers,
		Output: OutputConfig{
			Format: DefaultOutputFormat,
		},
		Store: StoreConfig{
			Table: DefaultStoreTable,
		},
		Chart: ChartConfig{
			Width:  DefaultChartWidth,
			Height: DefaultChartHeight,
		},
	}
}

// ApplyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) ApplyEnvironmentOverrides() {
	if sources := os.Getenv(EnvDataSources); sources != "" {
		c.DataSources = splitList(sources)
	}
	if model := os.Getenv(EnvModel); model != "" {
		c.Model.Name = model
	}
	if dsn := os.Getenv(EnvStoreDSN); dsn != "" {
		c.Store.DSN = dsn
	}
}

// ForecastOptions returns the model options described by the config.
func (c *Config) ForecastOptions() forecast.Options {
	return forecast.Options{
		Horizon:       c.Model.Horizon,
		IntervalWidth: c.Model.IntervalWidth,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
