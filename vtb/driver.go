package vtb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"

	"github.com/tsunade/collector/bank"
	"github.com/tsunade/collector/poll"
)

// rodList is the production ListDriver over a Rod page.
type rodList struct {
	page *rod.Page
	cfg  *Config
}

// jsSnapshotRows returns {text, top} per rendered row. Position is
// absolute (scroll offset included) so it survives viewport moves.
const jsSnapshotRows = `(sel) => Array.from(document.querySelectorAll(sel)).map(el => {
	const r = el.getBoundingClientRect();
	return { text: (el.innerText || '').trim(), top: r.top + window.scrollY };
})`

// Snapshot reads the rendered rows in one in-page evaluation, then pairs
// them with live element handles by index. The untyped eval payload is
// validated into Row at this boundary; a mid-read DOM mutation shows up
// as a count mismatch and is reported as an error so the caller retries.
func (d *rodList) Snapshot(ctx context.Context) ([]Row, error) {
	res, err := d.page.Context(ctx).Eval(jsSnapshotRows, selRow)
	if err != nil {
		return nil, fmt.Errorf("vtb: snapshot eval: %w", err)
	}
	raw := res.Value.Arr()

	els, err := d.page.Context(ctx).Elements(selRow)
	if err != nil {
		return nil, fmt.Errorf("vtb: snapshot elements: %w", err)
	}
	if len(els) != len(raw) {
		return nil, fmt.Errorf("vtb: snapshot raced a DOM mutation (%d texts, %d handles)", len(raw), len(els))
	}

	rows := make([]Row, 0, len(raw))
	for i, item := range raw {
		text := normalizeText(item.Get("text").Str())
		if text == "" {
			continue
		}
		rows = append(rows, Row{
			Text:   text,
			Top:    item.Get("top").Num(),
			Handle: els[i],
		})
	}
	return rows, nil
}

// normalizeText collapses all whitespace runs to single spaces. Row text
// is an identity key; rendering-dependent line breaks must not matter.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RevealMore scrolls the list to its current bottom, clicks the "load
// more" control if present, and waits briefly for new rows to mount.
func (d *rodList) RevealMore(ctx context.Context) (int, error) {
	prev := d.rowCount(ctx)

	if _, err := d.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
		return prev, fmt.Errorf("vtb: scroll to bottom: %w", err)
	}
	poll.Pause(ctx, d.cfg.PauseMin, d.cfg.PauseMax)

	_, _ = d.page.Context(ctx).Eval(`(label) => {
		const btn = Array.from(document.querySelectorAll('button'))
			.find(b => (b.innerText || '').includes(label));
		if (!btn) return false;
		btn.scrollIntoView({block: 'center'});
		btn.click();
		return true;
	}`, txtShowMore)

	// Wait for growth up to a short cap; no growth is a normal outcome
	// (list exhausted), not an error.
	_ = poll.Until(ctx, 500*time.Millisecond, 6*time.Second, func(ctx context.Context) (bool, error) {
		return d.rowCount(ctx) > prev, nil
	})

	return d.rowCount(ctx), nil
}

func (d *rodList) rowCount(ctx context.Context) int {
	res, err := d.page.Context(ctx).Eval(`(sel) => document.querySelectorAll(sel).length`, selRow)
	if err != nil {
		return 0
	}
	return int(res.Value.Int())
}

// SessionFailed probes for the portal's fatal error page.
func (d *rodList) SessionFailed(ctx context.Context) bool {
	return sessionFailed(ctx, d.page)
}

// Extract resolves the entry at idx to a live element, scrolls its last
// known position near the viewport top to counter virtualization, and
// runs the detail extractor.
func (d *rodList) Extract(ctx context.Context, reg *Registry, idx int) (*bank.Operation, error) {
	target := reg.Entries()[idx]

	el, err := d.resolve(ctx, reg, idx)
	if err != nil {
		return nil, err
	}

	if _, err := d.page.Context(ctx).Eval(`(y) => window.scrollTo(0, Math.max(0, y - 120))`, target.Top); err == nil {
		poll.Pause(ctx, d.cfg.PauseMin, d.cfg.PauseMax)
	}

	return d.extractDetail(ctx, el)
}

// resolve produces a live reference to the target row, preferring the
// snapshot handle while it is still attached, then a text re-query ranked
// among same-text rows, then the registry index as positional fallback.
func (d *rodList) resolve(ctx context.Context, reg *Registry, idx int) (*rod.Element, error) {
	target := reg.Entries()[idx]

	if target.Handle != nil && isAttached(ctx, target.Handle) {
		return target.Handle, nil
	}

	if el := d.requeryByText(ctx, target.Text, reg.TextRank(idx)); el != nil {
		return el, nil
	}

	els, err := d.page.Context(ctx).Elements(selRow)
	if err == nil && idx < len(els) {
		return els[idx], nil
	}
	return nil, fmt.Errorf("vtb: row %q is no longer resolvable", target.Text)
}

func isAttached(ctx context.Context, el *rod.Element) bool {
	res, err := el.Context(ctx).Eval(`() => this.isConnected`)
	return err == nil && res.Value.Bool()
}

// requeryByText finds the rank-th row whose normalized text equals want,
// falling back to a leading-substring match when exact equality finds
// nothing (detail rendering sometimes tweaks whitespace or suffixes).
func (d *rodList) requeryByText(ctx context.Context, want string, rank int) *rod.Element {
	head := leadingFragment(want)
	el, err := d.page.Context(ctx).ElementByJS(rod.Eval(`(sel, want, head, rank) => {
		const norm = s => (s || '').split(/\s+/).filter(Boolean).join(' ');
		const rows = Array.from(document.querySelectorAll(sel));
		let hits = rows.filter(el => norm(el.innerText) === want);
		if (hits.length === 0 && head) {
			hits = rows.filter(el => norm(el.innerText).startsWith(head));
		}
		if (hits.length === 0) return null;
		return hits[Math.min(rank, hits.length - 1)];
	}`, selRow, want, head, rank))
	if err != nil {
		return nil
	}
	return el
}

// leadingFragment picks the distinguishing head of a row's text: up to the
// amount-bearing part if present, capped at 40 runes.
func leadingFragment(text string) string {
	if i := strings.Index(text, bank.CurrencyMarker); i > 0 {
		text = strings.TrimSpace(text[:i])
	}
	runes := []rune(text)
	if len(runes) > 40 {
		runes = runes[:40]
	}
	return string(runes)
}

// sessionFailed probes for the fatal error interstitial, by selector first
// and by page text as fallback.
func sessionFailed(ctx context.Context, page *rod.Page) bool {
	if has, _, err := page.Context(ctx).Has(selFatalPage); err == nil && has {
		return true
	}
	res, err := page.Context(ctx).Eval(`() => (document.body && document.body.innerText || '').includes('Произошла ошибка')`)
	return err == nil && res.Value.Bool()
}

// listReady reports whether at least one transaction row is rendered.
func listReady(ctx context.Context, page *rod.Page) bool {
	has, _, err := page.Context(ctx).Has(selRow)
	return err == nil && has
}
