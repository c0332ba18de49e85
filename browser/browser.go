// Package browser manages the Chrome session the collectors drive: launch
// with a persistent profile, connect via Rod, open a stealth page, tear
// down. The profile directory is kept across runs so cookies and local
// storage survive and login does not have to be re-provisioned each time.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config configures the browser session.
type Config struct {
	// Headless toggles the new headless mode. Headed runs are useful when
	// the portal demands a visible window for login provisioning.
	Headless bool

	// ProfileDir is the persistent --user-data-dir. Default: ".chrome-data".
	ProfileDir string

	// BinaryPath overrides the Chrome binary. Empty = launcher default.
	BinaryPath string

	// Width and Height set the viewport. Default: 1280x1600.
	Width  int
	Height int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.ProfileDir == "" {
		c.ProfileDir = ".chrome-data"
	}
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 1600
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session is one exclusively-owned browser page. No other component may
// issue DOM actions against it while a collector runs.
type Session struct {
	Browser *rod.Browser
	Page    *rod.Page

	lnch   *launcher.Launcher
	logger *slog.Logger
}

// NewSession launches Chrome with the persistent profile and opens a
// stealth page ready for navigation.
func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	cfg.defaults()
	log := cfg.Logger

	if err := os.MkdirAll(cfg.ProfileDir, 0o755); err != nil {
		return nil, fmt.Errorf("browser: profile dir: %w", err)
	}

	l := launcher.New().
		Headless(cfg.Headless).
		UserDataDir(cfg.ProfileDir).
		NoSandbox(true).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", fmt.Sprintf("%d,%d", cfg.Width, cfg.Height))

	if cfg.BinaryPath != "" {
		l = l.Bin(cfg.BinaryPath)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}
	log.Info("browser: launched chrome", "headless", cfg.Headless, "profile", cfg.ProfileDir)

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		b.Close()
		l.Cleanup()
		return nil, fmt.Errorf("browser: stealth page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  cfg.Width,
		Height: cfg.Height,
	}); err != nil {
		log.Warn("browser: set viewport failed", "error", err)
	}

	return &Session{Browser: b, Page: page, lnch: l, logger: log}, nil
}

// Navigate opens url on the session page and waits for the load event.
// A load-event timeout is logged, not fatal: SPA portals keep streaming
// after load and the collectors poll for readiness anyway.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.Page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := s.Page.Context(ctx).WaitLoad(); err != nil {
		s.logger.Warn("browser: wait load", "url", url, "error", err)
	}
	return nil
}

// Screenshot writes a full-page PNG to path.
func (s *Session) Screenshot(path string) error {
	data, err := s.Page.Screenshot(true, nil)
	if err != nil {
		return fmt.Errorf("browser: screenshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("browser: screenshot write: %w", err)
	}
	return nil
}

// Close shuts down the page, the browser, and the launcher process.
func (s *Session) Close() error {
	if s.Page != nil {
		_ = s.Page.Close()
	}
	if s.Browser != nil {
		_ = s.Browser.Close()
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
	}
	return nil
}
