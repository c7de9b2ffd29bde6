package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/dm/gridmon/internal/client"
	"github.com/dm/gridmon/internal/config"
	"github.com/dm/gridmon/internal/logging"
	"github.com/dm/gridmon/internal/output"
)

// parseURI parses a Jolokia agent URI and returns the base URL (without
// credentials, query or fragment), username, and password.
func parseURI(raw string) (baseURL, username, password string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", fmt.Errorf("invalid URI %q: %w", raw, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", "", fmt.Errorf("unsupported scheme %q (must be http or https)", u.Scheme)
	}

	if u.Hostname() == "" {
		return "", "", "", fmt.Errorf("invalid URI %q: host is required", raw)
	}

	if p := u.Port(); p != "" {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n < 1 || n > 65535 {
			return "", "", "", fmt.Errorf("invalid URI %q: port must be between 1 and 65535", raw)
		}
	}

	if u.User != nil {
		username = u.User.Username()
		password, _ = u.User.Password()
		u.User = nil
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), username, password, nil
}

// resolveCredentials picks each of username and password independently:
// an explicit flag wins, then the config file, then the URI.
func resolveCredentials(uriUser, uriPass, cfgUser, cfgPass, flagUser, flagPass string) (string, string) {
	return firstNonEmpty(flagUser, cfgUser, uriUser), firstNonEmpty(flagPass, cfgPass, uriPass)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// loadConfig reads the config file named by --config and applies the global
// flags over it. A positional argument takes precedence over --url.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	raw := cmd.Args().First()
	if raw == "" {
		raw = cmd.String("url")
	}
	if raw == "" {
		raw = cfg.Endpoint.URL
	}
	if raw == "" {
		return nil, fmt.Errorf("an agent URL is required (argument, --url or endpoint.url)")
	}
	baseURL, uriUser, uriPass, err := parseURI(raw)
	if err != nil {
		return nil, err
	}
	cfg.Endpoint.URL = baseURL
	cfg.Endpoint.Username, cfg.Endpoint.Password = resolveCredentials(
		uriUser, uriPass,
		cfg.Endpoint.Username, cfg.Endpoint.Password,
		cmd.String("username"), cmd.String("password"))

	if cmd.IsSet("insecure") {
		cfg.Endpoint.InsecureSkipVerify = cmd.Bool("insecure")
	}
	if cmd.IsSet("timeout") {
		cfg.Endpoint.Timeout = cmd.Duration("timeout")
	}
	if cmd.IsSet("rate-limit") {
		cfg.Endpoint.RateLimit = cmd.Float("rate-limit")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	logging.SetDefaultStructuredLogger(name, version, cfg.LogLevel)
	if cmd.IsSet("format") {
		cfg.Output.Format = cmd.String("format")
	}

	applyPollFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newClient(cfg *config.Config) (*client.JolokiaClient, error) {
	return client.NewJolokiaClient(client.Config{
		BaseURL:            cfg.Endpoint.URL,
		Username:           cfg.Endpoint.Username,
		Password:           cfg.Endpoint.Password,
		InsecureSkipVerify: cfg.Endpoint.InsecureSkipVerify,
		RequestTimeout:     cfg.Endpoint.Timeout,
		RateLimit:          cfg.Endpoint.RateLimit,
		Burst:              cfg.Endpoint.Burst,
	})
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "format",
		Usage: fmt.Sprintf("output format %v", output.SupportedFormats()),
		Value: config.DefaultFormat,
	}
}

func newWriter(cmd *cli.Command, cfg *config.Config) (*output.Writer, error) {
	f, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	return output.NewWriter(f, cmd.Root().Writer), nil
}
