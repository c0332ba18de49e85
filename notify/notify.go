// Package notify is the one-way progress/error channel of a collection
// run. Delivery is best-effort: a broken notifier must never fail a run.
package notify

import "context"

// Notifier sends one-way run updates.
type Notifier interface {
	// Text sends a plain-text message.
	Text(ctx context.Context, message string) error
	// Document sends a file with an optional caption.
	Document(ctx context.Context, path, caption string) error
}

// Nop discards everything. Used when no channel is configured and in
// tests.
type Nop struct{}

func (Nop) Text(context.Context, string) error             { return nil }
func (Nop) Document(context.Context, string, string) error { return nil }
