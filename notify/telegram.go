package notify

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
)

// Telegram sends messages through the bot API.
type Telegram struct {
	chatID string
	http   *resty.Client
	logger *slog.Logger
}

// NewTelegram creates a Telegram notifier for the given bot token and
// chat.
func NewTelegram(botToken, chatID string, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		chatID: chatID,
		http: resty.New().
			SetBaseURL("https://api.telegram.org/bot" + botToken).
			SetTimeout(30 * time.Second),
		logger: logger,
	}
}

func (t *Telegram) Text(ctx context.Context, message string) error {
	resp, err := t.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": t.chatID,
			"text":    message,
		}).
		Post("/sendMessage")
	if err != nil {
		return fmt.Errorf("notify: telegram send: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify: telegram send: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func (t *Telegram) Document(ctx context.Context, path, caption string) error {
	req := t.http.R().
		SetContext(ctx).
		SetFile("document", path).
		SetFormData(map[string]string{"chat_id": t.chatID})
	if caption != "" {
		req.SetFormData(map[string]string{"caption": caption})
	}
	resp, err := req.Post("/sendDocument")
	if err != nil {
		return fmt.Errorf("notify: telegram document %s: %w", filepath.Base(path), err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify: telegram document: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
