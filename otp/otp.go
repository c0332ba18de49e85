// Package otp retrieves one-time login codes from an external HTTP drop
// box: a GET endpoint serving the latest code as plain text, polled until
// a code matching the expected pattern appears, and a DELETE endpoint to
// acknowledge the code once it has been typed into the portal.
package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrCodeTimeout is returned when no code arrived within the budget.
// It is a hard failure: without the code the login cannot proceed.
var ErrCodeTimeout = errors.New("otp: timed out waiting for code")

// Config configures the code source client.
type Config struct {
	// FetchURL is polled with GET for the latest code.
	FetchURL string
	// ConsumeURL receives a DELETE once the code has been used.
	ConsumeURL string
	// Pattern matches the code inside the response body. Default: a bare
	// 4-8 digit number.
	Pattern string
	// Interval between polls. Default: 2s.
	Interval time.Duration
	// Budget is the total wall-clock wait. Default: 3m.
	Budget time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Pattern == "" {
		c.Pattern = `^\d{4,8}$`
	}
	if c.Interval <= 0 {
		c.Interval = 2 * time.Second
	}
	if c.Budget <= 0 {
		c.Budget = 3 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client polls the code drop box.
type Client struct {
	cfg     Config
	pattern *regexp.Regexp
	http    *resty.Client
}

// New creates a Client. The pattern must compile.
func New(cfg Config) (*Client, error) {
	cfg.defaults()
	re, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("otp: pattern: %w", err)
	}
	httpc := resty.New().
		SetTimeout(10 * time.Second).
		SetHeader("Cache-Control", "no-store")
	return &Client{cfg: cfg, pattern: re, http: httpc}, nil
}

// Wait polls FetchURL until the body matches the pattern or the budget
// elapses. Transport errors are treated as "no code yet" and retried.
func (c *Client) Wait(ctx context.Context) (string, error) {
	deadline := time.Now().Add(c.cfg.Budget)
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		code, err := c.fetch(ctx)
		if err != nil {
			c.cfg.Logger.Debug("otp: fetch", "error", err)
		} else if code != "" {
			c.cfg.Logger.Info("otp: code received")
			return code, nil
		}

		if time.Now().After(deadline) {
			return "", ErrCodeTimeout
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) fetch(ctx context.Context) (string, error) {
	resp, err := c.http.R().SetContext(ctx).Get(c.cfg.FetchURL)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("otp: fetch status %d", resp.StatusCode())
	}
	body := strings.TrimSpace(resp.String())
	if m := c.pattern.FindString(body); m != "" {
		return m, nil
	}
	return "", nil
}

// Consume acknowledges the code so the drop box will not serve it again.
// Best-effort: a failed DELETE is logged and ignored.
func (c *Client) Consume(ctx context.Context) {
	if c.cfg.ConsumeURL == "" {
		return
	}
	if _, err := c.http.R().SetContext(ctx).Delete(c.cfg.ConsumeURL); err != nil {
		c.cfg.Logger.Warn("otp: consume failed", "error", err)
	}
}
