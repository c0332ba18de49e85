// Package vtb implements the incremental collector for the portal's
// transaction history: a polled multi-factor login flow and a
// reconciliation loop that visits every row of a virtualized, grow-on-
// demand list exactly once, extracting structured operations row by row.
package vtb

import (
	"context"
	"time"

	"github.com/go-rod/rod"

	"github.com/tsunade/collector/bank"
	"github.com/tsunade/collector/poll"
)

// ListDriver abstracts the portal's transaction list for the collect
// loop. The production implementation drives a Rod page; tests substitute
// a scripted fake.
type ListDriver interface {
	// Snapshot returns the currently rendered rows.
	Snapshot(ctx context.Context) ([]Row, error)

	// RevealMore scrolls the list to its bottom and/or triggers the
	// "load more" control, then reports the rendered row count.
	RevealMore(ctx context.Context) (int, error)

	// Extract resolves the registry entry at idx to a live element, opens
	// its detail view, parses it, and restores the list before returning.
	Extract(ctx context.Context, reg *Registry, idx int) (*bank.Operation, error)

	// SessionFailed reports whether the fatal session banner is showing.
	SessionFailed(ctx context.Context) bool
}

// Collect walks the transaction list on page and streams parsed
// operations to sink in batches of at most cfg.BatchSize. The page must
// already be list-ready (see Login). Collection ends when the list is
// exhausted, the page budget runs out, or the sink requests a stop; all
// three are clean completions. A fatal session banner aborts with
// ErrSessionFailure and no salvageable progress.
func Collect(ctx context.Context, page *rod.Page, cfg Config, sink bank.SnapshotFunc) error {
	cfg.defaults()
	drv := &rodList{page: page, cfg: &cfg}
	return collect(ctx, drv, &cfg, sink)
}

const snapshotAttempts = 3

func collect(ctx context.Context, drv ListDriver, cfg *Config, sink bank.SnapshotFunc) error {
	log := cfg.Logger

	var reg Registry
	var pending []bank.Operation
	collected := 0
	pages := 0
	emptyPasses := 0
	lastCount := 0

	flush := func() (bank.Signal, error) {
		if len(pending) == 0 {
			return bank.Continue, nil
		}
		batch := pending
		pending = nil
		return sink(ctx, batch)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if drv.SessionFailed(ctx) {
			return ErrSessionFailure
		}

		snapshot, err := snapshotRetry(ctx, drv)
		if err != nil {
			return err
		}
		if len(snapshot) > lastCount {
			lastCount = len(snapshot)
		}

		reg.Reconcile(snapshot)
		target, idx := reg.NextTarget(snapshot)

		if target == nil {
			emptyPasses++
			if emptyPasses < 2 {
				// First empty pass: the list may still be settling.
				continue
			}
			if pages >= cfg.MaxPages {
				log.Info("vtb: page budget exhausted", "pages", pages, "collected", collected)
				break
			}
			pages++
			count, err := drv.RevealMore(ctx)
			if err != nil {
				return err
			}
			if count <= lastCount {
				log.Info("vtb: list exhausted", "rows", lastCount, "collected", collected)
				break
			}
			lastCount = count
			continue
		}
		emptyPasses = 0

		op, err := drv.Extract(ctx, &reg, idx)
		if err != nil {
			target.Fails++
			log.Warn("vtb: detail extraction failed, row left unseen",
				"text", target.Text, "fails", target.Fails, "error", err)
			continue
		}

		target.Seen = true
		op.Hash = bank.Hash(op)
		pending = append(pending, *op)
		collected++

		if len(pending) >= cfg.BatchSize {
			sig, err := flush()
			if err != nil {
				return err
			}
			if sig == bank.StopRequested {
				log.Info("vtb: continuation stop from sink", "collected", collected)
				return nil
			}
		}
	}

	if _, err := flush(); err != nil {
		return err
	}
	return nil
}

// snapshotRetry takes a snapshot, retrying a few times with a pause when
// it yields nothing usable. An empty result after all attempts is not an
// error: the caller treats it as a pass with no target.
func snapshotRetry(ctx context.Context, drv ListDriver) ([]Row, error) {
	for i := 0; i < snapshotAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := drv.Snapshot(ctx)
		if err == nil && len(snap) > 0 {
			return snap, nil
		}
		poll.Pause(ctx, 400*time.Millisecond, 900*time.Millisecond)
	}
	return nil, nil
}
