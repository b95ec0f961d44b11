// Package config provides configuration loading and validation for juneau.
package config

import (
	"time"
)

// Config is the root configuration structure loaded from YAML or INI.
type Config struct {
	DataSources []string        `yaml:"data_sources"`
	Model       ModelConfig     `yaml:"model"`
	Workers     int             `yaml:"workers,omitempty"`
	KeepGoing   bool            `yaml:"keep_going,omitempty"`
	Output      OutputConfig    `yaml:"output,omitempty"`
	Store       StoreConfig     `yaml:"store,omitempty"`
	Chart       ChartConfig     `yaml:"chart,omitempty"`
	Webhooks    []WebhookConfig `yaml:"webhooks,omitempty"`
}

// ModelConfig selects and tunes the forecasting model.
type ModelConfig struct {
	// Name is the model to run for every row (linear, naive, mean).
	Name string `yaml:"name"`

	// Horizon is the number of months to forecast past each row's data.
	Horizon int `yaml:"horizon"`

	// IntervalWidth is the prediction interval coverage, between 0 and 1.
	IntervalWidth float64 `yaml:"interval_width"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	// Format is text, json, or csv.
	Format string `yaml:"format"`
}

// StoreConfig enables persisting forecasts to a SQL database.
type StoreConfig struct {
	// DSN is a mysql://, mariadb://, or postgres:// URL, or a native
	// go-sql-driver/mysql DSN. Empty disables the store.
	DSN string `yaml:"dsn,omitempty"`

	// Table is the results table name.
	Table string `yaml:"table,omitempty"`
}

// Enabled reports whether a store is configured.
func (s StoreConfig) Enabled() bool {
	return s.DSN != ""
}

// ChartConfig enables PNG charts of each forecast.
type ChartConfig struct {
	// Dir is the output directory. Empty disables charts.
	Dir string `yaml:"dir,omitempty"`

	Width  int `yaml:"width,omitempty"`
	Height int `yaml:"height,omitempty"`
}

// Enabled reports whether chart rendering is configured.
func (c ChartConfig) Enabled() bool {
	return c.Dir != ""
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnErrors fires only when some files failed (default).
	WebhookTriggerOnErrors WebhookTrigger = "on_errors"
	// WebhookTriggerAlways fires after every run.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending run reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token; ${VAR} and $VAR are expanded.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}
