package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"juneau/pkg/forecast"
	"juneau/pkg/store"
)

// Load reads and validates a configuration file. Files ending in .ini are
// read as INI; anything else is read as YAML.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if strings.EqualFold(filepath.Ext(path), ".ini") {
		err = decodeINI(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.ApplyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// decodeINI fills cfg from an INI document. Top-level keys map to the root
// fields, [model], [output], [store] and [chart] to their sections, and every
// [webhook.<name>] section adds one webhook.
func decodeINI(data []byte, cfg *Config) error {
	f, err := ini.Load(data)
	if err != nil {
		return err
	}

	root := f.Section("")
	if key, err := root.GetKey("data_sources"); err == nil {
		cfg.DataSources = splitList(key.String())
	}
	cfg.Workers = root.Key("workers").MustInt(cfg.Workers)
	cfg.KeepGoing = root.Key("keep_going").MustBool(cfg.KeepGoing)

	model := f.Section("model")
	cfg.Model.Name = model.Key("name").MustString(cfg.Model.Name)
	cfg.Model.Horizon = model.Key("horizon").MustInt(cfg.Model.Horizon)
	cfg.Model.IntervalWidth = model.Key("interval_width").MustFloat64(cfg.Model.IntervalWidth)

	cfg.Output.Format = f.Section("output").Key("format").MustString(cfg.Output.Format)

	db := f.Section("store")
	cfg.Store.DSN = db.Key("dsn").MustString(cfg.Store.DSN)
	cfg.Store.Table = db.Key("table").MustString(cfg.Store.Table)

	chart := f.Section("chart")
	cfg.Chart.Dir = chart.Key("dir").MustString(cfg.Chart.Dir)
	cfg.Chart.Width = chart.Key("width").MustInt(cfg.Chart.Width)
	cfg.Chart.Height = chart.Key("height").MustInt(cfg.Chart.Height)

	for _, sec := range f.Sections() {
		name, ok := strings.CutPrefix(sec.Name(), "webhook.")
		if !ok {
			continue
		}
		cfg.Webhooks = append(cfg.Webhooks, WebhookConfig{
			Name:    name,
			URL:     sec.Key("url").String(),
			Token:   sec.Key("token").String(),
			Trigger: WebhookTrigger(sec.Key("trigger").String()),
			Timeout: sec.Key("timeout").MustDuration(0),
		})
	}

	return nil
}

// Validate checks a configuration for errors and fills in defaults for
// optional fields left empty.
func Validate(cfg *Config) error {
	if err := validateModel(&cfg.Model); err != nil {
		return fmt.Errorf("model: %w", err)
	}

	if cfg.Workers < 0 {
		return fmt.Errorf("workers: must be >= 0, got %d", cfg.Workers)
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}

	switch cfg.Output.Format {
	case "":
		cfg.Output.Format = DefaultOutputFormat
	case "text", "json", "csv":
	default:
		return fmt.Errorf("output.format: invalid format %q (must be text, json, or csv)", cfg.Output.Format)
	}

	if err := validateStore(&cfg.Store); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if cfg.Chart.Width < 0 || cfg.Chart.Height < 0 {
		return errors.New("chart: width and height must be positive")
	}
	if cfg.Chart.Width == 0 {
		cfg.Chart.Width = DefaultChartWidth
	}
	if cfg.Chart.Height == 0 {
		cfg.Chart.Height = DefaultChartHeight
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

func validateModel(m *ModelConfig) error {
	if m.Name == "" {
		m.Name = forecast.DefaultModel
	}
	known := false
	for _, name := range forecast.Names() {
		if name == m.Name {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("invalid name %q (must be one of %s)", m.Name, strings.Join(forecast.Names(), ", "))
	}
	if m.IntervalWidth == 0 {
		m.IntervalWidth = forecast.DefaultIntervalWidth
	}
	return forecast.Options{Horizon: m.Horizon, IntervalWidth: m.IntervalWidth}.Validate()
}

func validateStore(s *StoreConfig) error {
	if s.Table == "" {
		s.Table = DefaultStoreTable
	}
	if !store.ValidTableName(s.Table) {
		return fmt.Errorf("invalid table name %q", s.Table)
	}
	if s.DSN == "" {
		return nil
	}
	s.DSN = expandEnvVar(s.DSN)
	if strings.Contains(s.DSN, "://") {
		u, err := url.Parse(s.DSN)
		if err != nil {
			return fmt.Errorf("invalid dsn: %w", err)
		}
		switch u.Scheme {
		case "mysql", "mariadb", "postgres", "postgresql":
		default:
			return fmt.Errorf("dsn scheme must be mysql, mariadb, or postgres, got %q", u.Scheme)
		}
	}
	if _, _, err := store.ParseDSN(s.DSN); err != nil {
		return err
	}
	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	wh.URL = expandEnvVar(wh.URL)
	if wh.URL == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url must have a host")
	}

	wh.Token = expandEnvVar(wh.Token)

	switch wh.Trigger {
	case "":
		wh.Trigger = WebhookTriggerOnErrors
	case WebhookTriggerOnErrors, WebhookTriggerAlways, WebhookTriggerNever:
	default:
		return fmt.Errorf("invalid trigger %q (must be on_errors, always, or never)", wh.Trigger)
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands a value of the form ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") && len(s) > 1 {
		return os.Getenv(s[1:])
	}
	return s
}
