// Package config loads and validates the pipeline's YAML configuration
// (spec §6), parsed with gopkg.in/yaml.v3 as the teacher's pack-wide
// convention for config files (grounded via the yaml.v3 usage in the
// broader example pack's config loaders). Hand-rolled Validate() is used
// rather than a struct-tag validator library because no validation
// library appears anywhere in the example pack — see DESIGN.md.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/victor-bajanov/gmail-cleanup-automation/pkg/apperr"
)

// Config is the full recognised option set (spec §6).
type Config struct {
	Scan struct {
		PeriodDays             int `yaml:"period_days"`
		MaxConcurrentRequests  int `yaml:"max_concurrent_requests"`
	} `yaml:"scan"`

	Classification struct {
		Mode                   string `yaml:"mode"`
		MinimumEmailsForLabel  int    `yaml:"minimum_emails_for_label"`
	} `yaml:"classification"`

	Labels struct {
		Prefix                string   `yaml:"prefix"`
		AutoArchiveCategories []string `yaml:"auto_archive_categories"`
	} `yaml:"labels"`

	Execution struct {
		DryRun bool `yaml:"dry_run"`
	} `yaml:"execution"`
}

// Default returns the configuration with every spec §6 default applied.
func Default() Config {
	var c Config
	c.Scan.PeriodDays = 90
	c.Scan.MaxConcurrentRequests = 40
	c.Classification.Mode = "rules"
	c.Classification.MinimumEmailsForLabel = 5
	c.Labels.Prefix = "AutoManaged"
	c.Labels.AutoArchiveCategories = []string{"newsletter", "marketing", "notification"}
	c.Execution.DryRun = false
	return c
}

// Load reads and parses path, filling unset fields with defaults, then
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, apperr.Wrap(err, apperr.KindInvalidInput, fmt.Sprintf("read config file %s", path))
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, apperr.Wrap(err, apperr.KindInvalidInput, fmt.Sprintf("parse config file %s", path))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteDefault emits a default configuration file (the `init-config`
// command, spec §6).
func WriteDefault(path string) error {
	cfg := Default()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return apperr.Internal("marshal default config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperr.Wrap(err, apperr.KindInternal, fmt.Sprintf("write config file %s", path))
	}
	return nil
}

// Validate enforces spec §6's recognised-option bounds.
func (c Config) Validate() error {
	if c.Scan.PeriodDays < 1 || c.Scan.PeriodDays > 365 {
		return apperr.InvalidInput("scan.period_days must be in [1, 365]")
	}
	if c.Scan.MaxConcurrentRequests < 1 || c.Scan.MaxConcurrentRequests > 50 {
		return apperr.InvalidInput("scan.max_concurrent_requests must be in [1, 50]")
	}
	switch c.Classification.Mode {
	case "rules", "ml", "hybrid":
	default:
		return apperr.InvalidInput("classification.mode must be one of rules, ml, hybrid")
	}
	if c.Classification.MinimumEmailsForLabel < 1 {
		return apperr.InvalidInput("classification.minimum_emails_for_label must be >= 1")
	}
	if c.Labels.Prefix == "" {
		return apperr.InvalidInput("labels.prefix must be non-empty")
	}
	for _, r := range c.Labels.Prefix {
		if r == '/' {
			return apperr.InvalidInput("labels.prefix must not contain '/'")
		}
	}
	return nil
}
