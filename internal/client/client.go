// Package client implements sender.RequestSender over the Jolokia
// JMX-over-HTTP protocol.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	errs "github.com/dm/gridmon/internal/errors"
)

// Config holds configuration for JolokiaClient.
type Config struct {
	BaseURL            string
	Username           string
	Password           string
	InsecureSkipVerify bool
	RequestTimeout     time.Duration
	// RateLimit caps requests per second; zero means unlimited.
	RateLimit float64
	// Burst is the number of requests allowed above RateLimit at once.
	Burst int
}

// JolokiaClient sends requests to a Jolokia agent attached to a cluster
// member with management enabled.
type JolokiaClient struct {
	http    *http.Client
	config  Config
	limiter *rate.Limiter
}

// NewJolokiaClient constructs a JolokiaClient from the given config.
// It configures TLS skip-verify and request timeout from the config.
// Returns an error if BaseURL is empty.
func NewJolokiaClient(cfg Config) (*JolokiaClient, error) {
	if cfg.BaseURL == "" {
		return nil, errs.New(errs.ErrCodeInvalidRequest, "BaseURL is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
	}

	c := &JolokiaClient{
		http: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		config: cfg,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// BaseURL returns the configured agent URL.
func (c *JolokiaClient) BaseURL() string {
	return c.config.BaseURL
}

const maxResponseBytes = 32 * 1024 * 1024

// doPost sends one Jolokia request and returns the raw response body.
// It sets Basic Auth if credentials are configured.
func (c *JolokiaClient) doPost(ctx context.Context, r request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errs.Wrap(errs.ErrCodeTimeout, "rate limiter wait", err)
		}
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, "encode request", err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidRequest, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.Username != "" || c.config.Password != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observeRequest(r.Type, outcomeError, start)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errs.Wrap(errs.ErrCodeTimeout, "request timed out", err)
		}
		return nil, errs.Wrap(errs.ErrCodeTransport, "do request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		observeRequest(r.Type, outcomeError, start)
		return nil, errs.Wrap(errs.ErrCodeTransport, "read body", err)
	}
	if len(body) > maxResponseBytes {
		observeRequest(r.Type, outcomeError, start)
		return nil, errs.New(errs.ErrCodeTransport,
			fmt.Sprintf("response body exceeds %d MB limit", maxResponseBytes/(1024*1024)))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		observeRequest(r.Type, outcomeError, start)
		return nil, errs.NewWithContext(errs.ErrCodeUnauthorized, "agent rejected credentials",
			map[string]any{"status": resp.StatusCode})
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		observeRequest(r.Type, outcomeError, start)
		return nil, errs.NewWithContext(errs.ErrCodeTransport, "unexpected status",
			map[string]any{"status": resp.StatusCode, "body": truncate(body, 200)})
	}

	observeRequest(r.Type, outcomeOK, start)
	return body, nil
}

// Ping checks connectivity by requesting the agent version with a 1s timeout.
func (c *JolokiaClient) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	_, err := c.Version(pingCtx)
	return err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
