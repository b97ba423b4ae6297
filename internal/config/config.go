// Package config provides unified configuration loading for the graph
// pipeline. Supports YAML files, environment variables, and programmatic
// overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/graphpipe/graphpipe/internal/domain"
)

// Duration is a time.Duration that YAML decodes from "30s" style strings.
type Duration time.Duration

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return domain.ConfigError(fmt.Sprintf("invalid duration %q", value.Value), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration back as a string.
func (d Duration) MarshalYAML() (interface{}, error) { return d.String(), nil }

// Config holds all configuration for the pipeline.
type Config struct {
	API           APIConfig           `yaml:"api"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Probe         ProbeConfig         `yaml:"probe"`
	Selection     SelectionConfig     `yaml:"selection"`
	Extraction    ExtractionConfig    `yaml:"extraction"`
	PDF           PDFConfig           `yaml:"pdf"`
	Animation     AnimationConfig     `yaml:"animation"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// APIConfig holds remote API settings.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Key            string        `yaml:"-"` // never read from YAML, env only
	ListingTimeout Duration `yaml:"listing_timeout"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// CatalogConfig holds persisted model catalog settings.
type CatalogConfig struct {
	Path string `yaml:"path"`
	// Staleness is the age beyond which the on-disk catalog is considered
	// expired and a refresh is triggered.
	Staleness Duration `yaml:"staleness"`
	// RemoteAuthoritative controls whether a capability flag carried by the
	// remote listing overrides a previously probed verdict. The feed row
	// must also mark itself authoritative for the override to apply.
	RemoteAuthoritative bool `yaml:"remote_authoritative"`
}

// ProbeConfig holds vision capability probe settings.
type ProbeConfig struct {
	Delay     Duration `yaml:"delay"` // between sequential probes
	Timeout   Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"max_tokens"`
}

// SelectionConfig holds model selection settings.
type SelectionConfig struct {
	// MaxCompletionCost is a decimal string (USD per million completion
	// tokens); empty means no ceiling.
	MaxCompletionCost string `yaml:"max_completion_cost"`
	MinContext        int    `yaml:"min_context"`
}

// ExtractionConfig holds structure extraction settings.
type ExtractionConfig struct {
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   Duration `yaml:"timeout"`
	Retry     RetryConfig   `yaml:"retry"`
}

// RetryConfig holds the caller-side retry policy for transport failures.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff Duration `yaml:"initial_backoff"`
	MaxBackoff     Duration `yaml:"max_backoff"`
}

// PDFConfig holds PDF rasterization settings.
type PDFConfig struct {
	Quality int `yaml:"quality"` // JPEG quality 1-100
}

// AnimationConfig holds animation script output settings.
type AnimationConfig struct {
	Output string `yaml:"output"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, domain.ConfigError("read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.ConfigError("parse config file", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "https://gptunnel.ru/v1",
			ListingTimeout: Duration(15 * time.Second),
			RequestTimeout: Duration(120 * time.Second),
		},
		Catalog: CatalogConfig{
			Path:                "model_cache.json",
			Staleness:           Duration(24 * time.Hour),
			RemoteAuthoritative: false,
		},
		Probe: ProbeConfig{
			Delay:     Duration(1 * time.Second),
			Timeout:   Duration(30 * time.Second),
			MaxTokens: 10,
		},
		Selection: SelectionConfig{
			MinContext: 0,
		},
		Extraction: ExtractionConfig{
			MaxTokens: 1024,
			Timeout:   Duration(120 * time.Second),
			Retry: RetryConfig{
				MaxRetries:     3,
				InitialBackoff: Duration(1 * time.Second),
				MaxBackoff:     Duration(30 * time.Second),
			},
		},
		PDF: PDFConfig{
			Quality: 85,
		},
		Animation: AnimationConfig{
			Output: "graph_manim.py",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return domain.ConfigError("api.base_url must not be empty", nil)
	}
	if c.PDF.Quality < 1 || c.PDF.Quality > 100 {
		return domain.ConfigError(fmt.Sprintf("pdf.quality must be between 1 and 100, got %d", c.PDF.Quality), nil)
	}
	if c.Catalog.Staleness <= 0 {
		return domain.ConfigError("catalog.staleness must be positive", nil)
	}
	if c.Extraction.Retry.MaxRetries < 0 {
		return domain.ConfigError("extraction.retry.max_retries must not be negative", nil)
	}
	if _, err := c.MaxCompletionCost(); err != nil {
		return err
	}
	return nil
}

// MaxCompletionCost parses the configured cost ceiling. Returns nil when no
// ceiling is set.
func (c *Config) MaxCompletionCost() (*decimal.Decimal, error) {
	if c.Selection.MaxCompletionCost == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(c.Selection.MaxCompletionCost)
	if err != nil {
		return nil, domain.ConfigError(
			fmt.Sprintf("selection.max_completion_cost %q is not a decimal", c.Selection.MaxCompletionCost), err)
	}
	if d.IsNegative() {
		return nil, domain.ConfigError("selection.max_completion_cost must not be negative", nil)
	}
	return &d, nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	// OPENAI_API_KEY is what existing .env files carry; GRAPHPIPE_API_KEY
	// wins when both are set.
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.API.Key = v
	}
	if v := os.Getenv("GRAPHPIPE_API_KEY"); v != "" {
		cfg.API.Key = v
	}

	if v := os.Getenv("GRAPHPIPE_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}

	if v := os.Getenv("GRAPHPIPE_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}

	if v := os.Getenv("GRAPHPIPE_MAX_COMPLETION_COST"); v != "" {
		cfg.Selection.MaxCompletionCost = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
