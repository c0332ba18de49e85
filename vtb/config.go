package vtb

import (
	"log/slog"
	"time"
)

// Config configures the collector.
type Config struct {
	// HistoryURL is the portal's transaction history page.
	HistoryURL string

	// Phone is typed into the phone-entry step of login.
	Phone string
	// PIN is typed into the passcode step of login.
	PIN string

	// MaxPages bounds the number of reveal-more attempts. Default: 50.
	MaxPages int
	// BatchSize is the snapshot-sink batch bound. Default: 10.
	BatchSize int

	// LoginBudget is the wall-clock ceiling of the login flow. Default: 5m.
	LoginBudget time.Duration
	// LoginInterval is the login polling step. Default: 1500ms.
	LoginInterval time.Duration

	// DetailWait bounds the wait for a detail header to appear. Default: 8s.
	DetailWait time.Duration
	// SettleWait bounds the post-navigation wait for the list to be ready
	// again. Default: 15s.
	SettleWait time.Duration

	// PauseMin and PauseMax bound the randomized human-pacing delay
	// between input actions. Defaults: 300ms and 900ms. They are a
	// resilience measure against bot-detection heuristics, not a
	// correctness requirement, but must not collapse to zero.
	PauseMin time.Duration
	PauseMax time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.HistoryURL == "" {
		c.HistoryURL = "https://online.vtb.ru/history"
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 50
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.LoginBudget <= 0 {
		c.LoginBudget = 5 * time.Minute
	}
	if c.LoginInterval <= 0 {
		c.LoginInterval = 1500 * time.Millisecond
	}
	if c.DetailWait <= 0 {
		c.DetailWait = 8 * time.Second
	}
	if c.SettleWait <= 0 {
		c.SettleWait = 15 * time.Second
	}
	if c.PauseMin <= 0 {
		c.PauseMin = 300 * time.Millisecond
	}
	if c.PauseMax <= c.PauseMin {
		c.PauseMax = c.PauseMin + 600*time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
