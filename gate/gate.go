// Package gate decides where an incremental collection run stops. It wraps
// the snapshot sink and compares every incoming operation against the
// identities already ingested on a prior run: a bounded window of recent
// reference numbers, and the legacy tuple of the most recently stored
// operation. On the first match it forwards only the records collected
// before the match and requests a stop; re-scraping is thus bounded to
// "new since last run" without server-side pagination.
package gate

import (
	"context"

	"github.com/tsunade/collector/bank"
)

// Known is the read-only identity set supplied by the store at the start
// of a run.
type Known struct {
	// Legacy is the most recently stored operation's identity tuple.
	// Nil on a first run.
	Legacy *bank.LegacyID
	// RRNs is a bounded window of recently stored reference numbers.
	RRNs map[string]struct{}
}

// NewKnown builds a Known set from store reads.
func NewKnown(legacy *bank.LegacyID, rrns []string) Known {
	k := Known{Legacy: legacy, RRNs: make(map[string]struct{}, len(rrns))}
	for _, r := range rrns {
		if r != "" {
			k.RRNs[r] = struct{}{}
		}
	}
	return k
}

// Seen reports whether op was already ingested. The reference number is
// the stronger key and is checked first; the legacy tuple is the fallback
// for operations without one.
func (k *Known) Seen(op *bank.Operation) bool {
	if rrn := op.RRN(); rrn != "" {
		if _, ok := k.RRNs[rrn]; ok {
			return true
		}
	}
	return k.Legacy != nil && k.Legacy.Matches(op)
}

// Wrap returns a SnapshotFunc that forwards batches to inner, truncated
// at the first already-ingested record. When a match is found the records
// before it are still delivered, then StopRequested is returned; the
// match itself and everything after it are discarded.
func Wrap(known Known, inner bank.SnapshotFunc) bank.SnapshotFunc {
	return func(ctx context.Context, batch []bank.Operation) (bank.Signal, error) {
		for i := range batch {
			if !known.Seen(&batch[i]) {
				continue
			}
			if i > 0 {
				if _, err := inner(ctx, batch[:i]); err != nil {
					return bank.StopRequested, err
				}
			}
			return bank.StopRequested, nil
		}
		return inner(ctx, batch)
	}
}
