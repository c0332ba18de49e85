// Package bank defines the domain types shared by the bank collectors:
// parsed operations, their identity scheme, and the snapshot sink contract
// used to stream results out of a collection run.
package bank

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Operation is the parsed result of one transaction. It is immutable once
// produced by a collector; ownership passes to the continuation gate and
// then to the store.
type Operation struct {
	// Date is the canonical calendar date (YYYY-MM-DD), empty when the
	// portal showed only a partial date.
	Date string `json:"date,omitempty"`
	// Time is the canonical instant, zero when Date is empty.
	Time time.Time `json:"time,omitempty"`
	// DateTimeText is the datetime fragment exactly as displayed.
	DateTimeText string `json:"datetime_text,omitempty"`

	Text     string          `json:"text"`
	Category string          `json:"category,omitempty"`
	Amount   decimal.Decimal `json:"amount"`

	// Details maps lower-cased detail-page labels to their values.
	Details map[string]string `json:"details,omitempty"`

	// Hash is the content hash, see Hash().
	Hash string `json:"hash"`
}

// rrnLabels are detail-page labels known to carry the bank reference number.
var rrnLabels = []string{"rrn", "номер операции", "референс", "id операции"}

// RRN returns the bank reference number from the detail map, or "".
func (o *Operation) RRN() string {
	for _, label := range rrnLabels {
		if v, ok := o.Details[label]; ok && v != "" {
			return v
		}
	}
	for label, v := range o.Details {
		if strings.Contains(label, "rrn") && v != "" {
			return v
		}
	}
	return ""
}

// LegacyID is the pre-RRN identity tuple of the most recently stored
// operation. It is the fallback continuation key for operations that
// carry no reference number.
type LegacyID struct {
	Date         string
	Text         string
	Amount       decimal.Decimal
	DateTimeText string
}

// Matches reports whether op is the same transaction as the stored tuple.
func (id *LegacyID) Matches(op *Operation) bool {
	return id.Date == op.Date &&
		id.Text == op.Text &&
		id.Amount.Equal(op.Amount) &&
		id.DateTimeText == op.DateTimeText
}

// Signal is the tagged result of a snapshot delivery. StopRequested means
// the sink has seen previously-ingested data and collection should halt
// without error; it is expected control flow, not a failure.
type Signal int

const (
	Continue Signal = iota
	StopRequested
)

// SnapshotFunc receives the newest batch of operations. Returning
// StopRequested halts collection cleanly; a non-nil error is a hard
// failure and propagates.
type SnapshotFunc func(ctx context.Context, batch []Operation) (Signal, error)
