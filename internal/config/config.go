package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// SourceConfig is one catalog entry. Kind selects the adapter; feed
// sources additionally need a URL.
type SourceConfig struct {
	ID      string  `yaml:"id"`
	Name    string  `yaml:"name"`
	Kind    string  `yaml:"kind"`
	URL     string  `yaml:"url,omitempty"`
	Enabled bool    `yaml:"enabled"`
	Weight  float64 `yaml:"weight,omitempty"`
}

// FetchConfig bounds the fetch round. Durations use Go syntax ("5s").
type FetchConfig struct {
	AttemptTimeout  string `yaml:"attempt_timeout,omitempty"`
	QueryBudget     string `yaml:"query_budget,omitempty"`
	MaxConcurrent   int    `yaml:"max_concurrent,omitempty"`
	Retries         int    `yaml:"retries,omitempty"`
	BackoffBase     string `yaml:"backoff_base,omitempty"`
	CircuitCooldown string `yaml:"circuit_cooldown,omitempty"`
}

// Authority is a known contributor with per-technology domain weights
// in [0,1]. Injected into the scoring engine, never mutated.
type Authority struct {
	Name string             `yaml:"name"`
	Tags map[string]float64 `yaml:"tags"`
}

type ProfileConfig struct {
	Tags []string `yaml:"tags,omitempty"`
}

type Config struct {
	Fetch       FetchConfig    `yaml:"fetch,omitempty"`
	Profile     ProfileConfig  `yaml:"profile,omitempty"`
	Sources     []SourceConfig `yaml:"sources"`
	Authorities []Authority    `yaml:"authorities,omitempty"`
}

func (c *Config) AttemptTimeout() time.Duration {
	return parseDuration(c.Fetch.AttemptTimeout, 5*time.Second)
}

func (c *Config) QueryBudget() time.Duration {
	return parseDuration(c.Fetch.QueryBudget, 5*time.Second)
}

func (c *Config) BackoffBase() time.Duration {
	return parseDuration(c.Fetch.BackoffBase, 200*time.Millisecond)
}

func (c *Config) CircuitCooldown() time.Duration {
	return parseDuration(c.Fetch.CircuitCooldown, 5*time.Minute)
}

func (c *Config) MaxConcurrent() int {
	if c.Fetch.MaxConcurrent <= 0 {
		return 50
	}
	return c.Fetch.MaxConcurrent
}

// Retries returns the number of retry attempts after the first failure.
func (c *Config) Retries() int {
	if c.Fetch.Retries < 0 {
		return 0
	}
	if c.Fetch.Retries == 0 {
		return 2
	}
	return c.Fetch.Retries
}

func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "signalscout", "config.yaml")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config at path, falling back to embedded defaults and
// writing them out on first run.
func Load(path string) (*Config, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := writeDefaults(path); err != nil {
				// Non-fatal: just use embedded defaults
				return defaults, nil
			}
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

var validKinds = map[string]bool{
	"hackernews": true,
	"lobsters":   true,
	"github":     true,
	"feed":       true,
	"arxiv":      true,
}

// Validate checks source and authority entries. Misconfiguration is a
// defect and fails loudly rather than degrading at query time.
func Validate(cfg *Config) error {
	seen := map[string]bool{}
	for i, s := range cfg.Sources {
		if s.ID == "" {
			return fmt.Errorf("source %d: id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("source %q: duplicate id", s.ID)
		}
		seen[s.ID] = true
		if !validKinds[s.Kind] {
			return fmt.Errorf("source %q: unknown kind %q (valid: hackernews, lobsters, github, feed, arxiv)", s.ID, s.Kind)
		}
		if s.Kind == "feed" {
			if s.URL == "" {
				return fmt.Errorf("source %q: url is required for feed sources", s.ID)
			}
			u, err := url.Parse(s.URL)
			if err != nil {
				return fmt.Errorf("source %q: invalid url: %w", s.ID, err)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("source %q: url scheme must be http or https, got %q", s.ID, u.Scheme)
			}
		}
		if s.Weight < 0 || s.Weight > 1 {
			return fmt.Errorf("source %q: weight must be in [0,1]", s.ID)
		}
	}
	for _, a := range cfg.Authorities {
		if a.Name == "" {
			return fmt.Errorf("authority entries need a name")
		}
		for tag, w := range a.Tags {
			if w < 0 || w > 1 {
				return fmt.Errorf("authority %q: weight for %q must be in [0,1]", a.Name, tag)
			}
		}
	}
	return nil
}
