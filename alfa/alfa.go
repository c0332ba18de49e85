// Package alfa implements the legacy collector for the second bank's
// history page. The list there is not virtualized: every loaded row stays
// mounted, rows carry their fields inline, and more rows are fetched with
// a "show more" button. One in-page evaluation parses everything rendered,
// so no reconciliation registry is needed.
package alfa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"

	"github.com/tsunade/collector/bank"
	"github.com/tsunade/collector/poll"
)

// DOM conventions of the history page.
const (
	selCell      = `button[data-test-id="operation-cell"]`
	selCellAddon = `[data-test-id="operation-cell-addon"]`

	txtShowMore = "Показать ещё"
)

// Config configures the collector.
type Config struct {
	// HistoryURL is the history page. The persistent browser profile is
	// expected to hold a live session; login here is QR-based and manual.
	HistoryURL string

	// MaxPages bounds the number of "show more" clicks. Default: 50.
	MaxPages int

	// ListWait bounds the initial wait for operation cells to appear,
	// which includes the time a human needs to scan the login QR on a
	// fresh profile. Default: 5m.
	ListWait time.Duration

	// GrowWait bounds the wait for new rows after a "show more" click.
	// Default: 20s.
	GrowWait time.Duration

	// OnLoginWait fires once when the list is not rendered on arrival,
	// meaning the login QR is likely on screen and a human has to act.
	// Optional; used to push the QR out through the notifier.
	OnLoginWait func(ctx context.Context)

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.HistoryURL == "" {
		c.HistoryURL = "https://web.alfabank.ru/history/"
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 50
	}
	if c.ListWait <= 0 {
		c.ListWait = 5 * time.Minute
	}
	if c.GrowWait <= 0 {
		c.GrowWait = 20 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// jsParseRows reads every rendered operation cell. The date lives in a
// separate header row above a group of cells, so each cell walks its
// preceding siblings (and ancestors' siblings) for the nearest date
// header.
const jsParseRows = `(cellSel) => {
	const text = el => ((el && el.textContent) || '').trim();
	const findPrevDate = el => {
		let node = el;
		while (node) {
			let prev = node.previousElementSibling;
			while (prev) {
				if (prev.matches('div.ZfxVc')) {
					const span = prev.querySelector('span');
					return text(span || prev);
				}
				prev = prev.previousElementSibling;
			}
			node = node.parentElement;
		}
		return '';
	};
	return Array.from(document.querySelectorAll(cellSel)).map(btn => ({
		date: findPrevDate(btn),
		text: text(btn.querySelector('[data-test-id="operation-cell-text_content"]')),
		category: text(btn.querySelector('[data-test-id="transaction-category-name"]')),
		amount: text(btn.querySelector('[data-test-id="transaction-status"]')),
	}));
}`

// Collect navigates to the history page, waits for the list, and streams
// parsed operations to sink: after each pass only the rows not delivered
// on a previous pass are sent. "Show more" is clicked until the list
// stops growing or the page budget runs out.
func Collect(ctx context.Context, page *rod.Page, cfg Config, sink bank.SnapshotFunc) error {
	cfg.defaults()
	log := cfg.Logger

	if err := page.Context(ctx).Navigate(cfg.HistoryURL); err != nil {
		return fmt.Errorf("alfa: navigate history: %w", err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		log.Warn("alfa: history page load", "error", err)
	}

	err := awaitList(ctx, 2*time.Second, cfg.ListWait, cfg.OnLoginWait, func(ctx context.Context) bool {
		has, _, err := page.Context(ctx).Has(selCellAddon)
		return err == nil && has
	})
	if err != nil {
		return fmt.Errorf("alfa: operation list did not appear: %w", err)
	}

	delivered := 0
	for pages := 0; ; pages++ {
		ops, err := parsePass(ctx, page)
		if err != nil {
			return err
		}

		if len(ops) > delivered {
			sig, err := sink(ctx, ops[delivered:])
			if err != nil {
				return err
			}
			delivered = len(ops)
			if sig == bank.StopRequested {
				log.Info("alfa: continuation stop from sink", "delivered", delivered)
				return nil
			}
		}

		if pages >= cfg.MaxPages {
			log.Info("alfa: page budget exhausted", "delivered", delivered)
			return nil
		}
		if !clickShowMore(ctx, page) {
			log.Info("alfa: list exhausted", "delivered", delivered)
			return nil
		}

		prev := len(ops)
		grew := poll.Until(ctx, time.Second, cfg.GrowWait, func(ctx context.Context) (bool, error) {
			return cellCount(ctx, page) > prev, nil
		})
		if grew != nil {
			log.Info("alfa: no growth after show more", "rows", prev)
			return nil
		}
	}
}

// awaitList polls probe until the operation list is rendered. When the
// very first probe comes up empty, onPending fires once before the wait
// continues; by then the page is showing the login QR and someone has to
// scan it within the budget.
func awaitList(ctx context.Context, interval, budget time.Duration, onPending func(context.Context), probe func(context.Context) bool) error {
	if probe(ctx) {
		return nil
	}
	if onPending != nil {
		onPending(ctx)
	}
	return poll.Until(ctx, interval, budget, func(ctx context.Context) (bool, error) {
		return probe(ctx), nil
	})
}

func parsePass(ctx context.Context, page *rod.Page) ([]bank.Operation, error) {
	res, err := page.Context(ctx).Eval(jsParseRows, selCell)
	if err != nil {
		return nil, fmt.Errorf("alfa: parse rows: %w", err)
	}

	var ops []bank.Operation
	for _, item := range res.Value.Arr() {
		op := bank.Operation{
			DateTimeText: strings.TrimSpace(item.Get("date").Str()),
			Text:         strings.TrimSpace(item.Get("text").Str()),
			Category:     strings.TrimSpace(item.Get("category").Str()),
			Amount:       bank.ParseAmount(item.Get("amount").Str()),
		}
		if op.Text == "" {
			continue
		}
		if t, display, ok := bank.ParseRuDateTime(op.DateTimeText); ok {
			op.Time = t
			op.Date = t.Format("2006-01-02")
			op.DateTimeText = display
		}
		op.Hash = bank.Hash(&op)
		ops = append(ops, op)
	}
	return ops, nil
}

func clickShowMore(ctx context.Context, page *rod.Page) bool {
	res, err := page.Context(ctx).Eval(`(label) => {
		const btn = Array.from(document.querySelectorAll('button'))
			.find(b => (b.innerText || '').includes(label));
		if (!btn) return false;
		btn.scrollIntoView({block: 'center'});
		btn.click();
		return true;
	}`, txtShowMore)
	return err == nil && res.Value.Bool()
}

func cellCount(ctx context.Context, page *rod.Page) int {
	res, err := page.Context(ctx).Eval(`(sel) => document.querySelectorAll(sel).length`, selCell)
	if err != nil {
		return 0
	}
	return int(res.Value.Int())
}
