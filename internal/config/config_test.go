package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/dm/gridmon/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultTimeout, cfg.Endpoint.Timeout)
	assert.Equal(t, DefaultInterval, cfg.Poll.Interval)
	assert.Equal(t, "direct", cfg.Poll.Mode)
	assert.Equal(t, 1, cfg.Poll.Parallelism)
	assert.Equal(t, 60, cfg.Poll.History)
	assert.Equal(t, "table", cfg.Output.Format)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridmon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
endpoint:
  url: https://grid-1:8778/jolokia
  username: monitor
  insecure_skip_verify: true
  timeout: 3s
  rate_limit: 25
poll:
  interval: 30s
  mode: report
  parallelism: 4
  entities: [machine, cache]
metrics:
  addr: ":9464"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://grid-1:8778/jolokia", cfg.Endpoint.URL)
	assert.Equal(t, "monitor", cfg.Endpoint.Username)
	assert.True(t, cfg.Endpoint.InsecureSkipVerify)
	assert.Equal(t, 3*time.Second, cfg.Endpoint.Timeout)
	assert.Equal(t, 25.0, cfg.Endpoint.RateLimit)
	assert.Equal(t, DefaultBurst, cfg.Endpoint.Burst, "unset keys keep defaults")
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval)
	assert.Equal(t, "report", cfg.Poll.Mode)
	assert.Equal(t, 4, cfg.Poll.Parallelism)
	assert.Equal(t, []string{"machine", "cache"}, cfg.Poll.Entities)
	assert.Equal(t, ":9464", cfg.Metrics.Addr)
	assert.Equal(t, "table", cfg.Output.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("endpoint:\n  uri: http://x\n"), 0o600))
	malformed := filepath.Join(dir, "malformed.yaml")
	require.NoError(t, os.WriteFile(malformed, []byte("poll: [\n"), 0o600))

	cases := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "absent.yaml")},
		{"unknown key", unknown},
		{"malformed", malformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.path)
			require.Error(t, err)
			assert.True(t, errs.IsCode(err, errs.ErrCodeInvalidRequest))
		})
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Endpoint.URL = "http://localhost:8778/jolokia"
		return cfg
	}
	require.NoError(t, valid().Validate())

	cases := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"missing url", func(c *Config) { c.Endpoint.URL = "" }, "endpoint.url"},
		{"bad scheme", func(c *Config) { c.Endpoint.URL = "ftp://grid:21" }, "endpoint.url"},
		{"no host", func(c *Config) { c.Endpoint.URL = "http://" }, "endpoint.url"},
		{"zero timeout", func(c *Config) { c.Endpoint.Timeout = 0 }, "endpoint.timeout"},
		{"negative rate", func(c *Config) { c.Endpoint.RateLimit = -1 }, "endpoint.rate_limit"},
		{"rate without burst", func(c *Config) { c.Endpoint.RateLimit = 5; c.Endpoint.Burst = 0 }, "endpoint.burst"},
		{"short interval", func(c *Config) { c.Poll.Interval = 500 * time.Millisecond }, "poll.interval"},
		{"bad mode", func(c *Config) { c.Poll.Mode = "bulk" }, "poll.mode"},
		{"zero parallelism", func(c *Config) { c.Poll.Parallelism = 0 }, "poll.parallelism"},
		{"tiny history", func(c *Config) { c.Poll.History = 1 }, "poll.history"},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errs.IsCode(err, errs.ErrCodeInvalidRequest))
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}
