// Package config loads the optional gridmon YAML configuration file.
//
// Example:
//
//	endpoint:
//	  url: http://grid-1:8778/jolokia
//	  username: monitor
//	  timeout: 10s
//	  rate_limit: 50
//	poll:
//	  interval: 10s
//	  mode: report
//	  parallelism: 4
//	  entities: [machine, member, cache]
//	output:
//	  format: table
//	metrics:
//	  addr: :9464
//	log_level: info
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	errs "github.com/dm/gridmon/internal/errors"
)

// Defaults.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultInterval    = 10 * time.Second
	DefaultMode        = "direct"
	DefaultFormat      = "table"
	DefaultParallelism = 1
	DefaultHistory     = 60
	DefaultBurst       = 10
	DefaultLogLevel    = "info"

	minInterval = time.Second
)

// Config is the full gridmon configuration.
type Config struct {
	Endpoint Endpoint `yaml:"endpoint"`
	Poll     Poll     `yaml:"poll"`
	Output   Output   `yaml:"output"`
	Metrics  Metrics  `yaml:"metrics"`
	LogLevel string   `yaml:"log_level"`
}

// Endpoint describes the management agent to connect to.
type Endpoint struct {
	URL                string        `yaml:"url"`
	Username           string        `yaml:"username"`
	Password           string        `yaml:"password"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Timeout            time.Duration `yaml:"timeout"`
	// RateLimit caps requests per second; 0 disables pacing.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// Poll controls the collection cycle.
type Poll struct {
	Interval    time.Duration `yaml:"interval"`
	Mode        string        `yaml:"mode"`
	Parallelism int           `yaml:"parallelism"`
	Entities    []string      `yaml:"entities"`
	// History is the number of cycles kept for rate computation.
	History int `yaml:"history"`
}

// Output selects how cycles are printed.
type Output struct {
	Format string `yaml:"format"`
}

// Metrics configures the Prometheus endpoint; an empty address disables it.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Endpoint: Endpoint{
			Timeout: DefaultTimeout,
			Burst:   DefaultBurst,
		},
		Poll: Poll{
			Interval:    DefaultInterval,
			Mode:        DefaultMode,
			Parallelism: DefaultParallelism,
			History:     DefaultHistory,
		},
		Output:   Output{Format: DefaultFormat},
		LogLevel: DefaultLogLevel,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.WrapWithContext(errs.ErrCodeInvalidRequest, "failed to read config file", err,
			map[string]any{"path": path})
	}
	if err := cfg.decode(data); err != nil {
		return nil, errs.WrapWithContext(errs.ErrCodeInvalidRequest, "failed to parse config file", err,
			map[string]any{"path": path})
	}
	return cfg, nil
}

// Parse decodes YAML data over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidRequest, "failed to parse config", err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the configuration after flags have been applied.
func (c *Config) Validate() error {
	if c.Endpoint.URL == "" {
		return invalid("endpoint.url", "is required")
	}
	u, err := url.Parse(c.Endpoint.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("endpoint.url", "must be an http or https URL")
	}
	if c.Endpoint.Timeout <= 0 {
		return invalid("endpoint.timeout", "must be positive")
	}
	if c.Endpoint.RateLimit < 0 {
		return invalid("endpoint.rate_limit", "cannot be negative")
	}
	if c.Endpoint.RateLimit > 0 && c.Endpoint.Burst < 1 {
		return invalid("endpoint.burst", "must be at least 1 when rate_limit is set")
	}
	if c.Poll.Interval < minInterval {
		return invalid("poll.interval", fmt.Sprintf("must be at least %s", minInterval))
	}
	switch c.Poll.Mode {
	case "direct", "report":
	default:
		return invalid("poll.mode", "must be direct or report")
	}
	if c.Poll.Parallelism < 1 {
		return invalid("poll.parallelism", "must be at least 1")
	}
	if c.Poll.History < 2 {
		return invalid("poll.history", "must be at least 2")
	}
	switch c.Output.Format {
	case "json", "yaml", "table":
	default:
		return invalid("output.format", "must be json, yaml or table")
	}
	return nil
}

func invalid(field, msg string) error {
	return errs.NewWithContext(errs.ErrCodeInvalidRequest, field+" "+msg,
		map[string]any{"field": field})
}
