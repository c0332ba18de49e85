package vtb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/tsunade/collector/bank"
	"github.com/tsunade/collector/poll"
)

// detailPayload is the typed shape of the one in-page evaluation that
// reads the detail view. The untyped eval result is validated into this
// struct at the automation boundary.
type detailPayload struct {
	Title string
	Paras []string
	Pairs []string
	Body  string
}

const jsDetailPayload = `(headSel, detailsLabel) => {
	const text = el => ((el && el.innerText) || '').trim();
	const head = document.querySelector(headSel)
		|| document.querySelector('h1')
		|| document.querySelector('h2');
	const paras = Array.from(document.querySelectorAll('p')).map(text).filter(Boolean);
	let pairs = [];
	const headings = Array.from(document.querySelectorAll('h2, h3, h4'));
	const dh = headings.find(h => text(h).toLowerCase().includes(detailsLabel.toLowerCase()));
	if (dh && dh.parentElement) {
		pairs = Array.from(dh.parentElement.querySelectorAll('p')).map(text).filter(Boolean);
	}
	return { title: text(head), paras: paras, pairs: pairs, body: text(document.body) };
}`

var categoryOverride = regexp.MustCompile(`(?i)категория[:\s]+([^\n]+)`)

// extractDetail opens the row's detail view, parses it, and restores the
// list. The history-back plus list-ready re-poll runs whether extraction
// succeeded or not; without it the next reconciliation snapshot would be
// taken against the wrong page.
func (d *rodList) extractDetail(ctx context.Context, el *rod.Element) (op *bank.Operation, err error) {
	_ = el.Context(ctx).ScrollIntoView()
	poll.Pause(ctx, d.cfg.PauseMin, d.cfg.PauseMax)

	if clickErr := el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); clickErr != nil {
		// No navigation happened; the list is still the current page.
		return nil, fmt.Errorf("vtb: open detail: %w", clickErr)
	}

	defer func() {
		if backErr := d.returnToList(ctx); backErr != nil && err == nil {
			op, err = nil, backErr
		}
	}()

	waitErr := poll.Until(ctx, 300*time.Millisecond, d.cfg.DetailWait, func(ctx context.Context) (bool, error) {
		return d.detailHeader(ctx) != "", nil
	})
	if waitErr != nil {
		if errors.Is(waitErr, poll.ErrTimeout) {
			return nil, fmt.Errorf("vtb: detail header did not appear: %w", waitErr)
		}
		return nil, waitErr
	}

	payload, perr := d.readDetail(ctx)
	if perr != nil {
		return nil, perr
	}
	return parseDetail(payload), nil
}

func (d *rodList) detailHeader(ctx context.Context) string {
	res, err := d.page.Context(ctx).Eval(`(sel) => {
		const el = document.querySelector(sel);
		return el ? (el.innerText || '').trim() : '';
	}`, selDetailHead)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func (d *rodList) readDetail(ctx context.Context) (*detailPayload, error) {
	res, err := d.page.Context(ctx).Eval(jsDetailPayload, selDetailHead, txtDetails)
	if err != nil {
		return nil, fmt.Errorf("vtb: read detail: %w", err)
	}

	p := &detailPayload{
		Title: res.Value.Get("title").Str(),
		Body:  res.Value.Get("body").Str(),
	}
	for _, v := range res.Value.Get("paras").Arr() {
		p.Paras = append(p.Paras, v.Str())
	}
	for _, v := range res.Value.Get("pairs").Arr() {
		p.Pairs = append(p.Pairs, v.Str())
	}
	return p, nil
}

// parseDetail turns the raw detail payload into an Operation. Pure so it
// is testable without a browser.
func parseDetail(p *detailPayload) *bank.Operation {
	op := &bank.Operation{
		Text:    normalizeText(p.Title),
		Details: map[string]string{},
	}

	amountSet := false
	for _, para := range p.Paras {
		monetary := strings.Contains(para, bank.CurrencyMarker)
		dated := bank.HasRuDate(para)

		if op.DateTimeText == "" && dated {
			t, display, ok := bank.ParseRuDateTime(para)
			op.DateTimeText = display
			if ok {
				op.Time = t
				op.Date = t.Format("2006-01-02")
			}
			continue
		}
		if monetary && !amountSet {
			op.Amount = bank.ParseAmount(para)
			amountSet = true
			continue
		}
		if op.Category == "" && !monetary && !dated {
			op.Category = normalizeText(para)
		}
	}

	// An explicit "категория: <value>" anywhere on the page wins over the
	// positional guess.
	if m := categoryOverride.FindStringSubmatch(p.Body); m != nil {
		op.Category = normalizeText(m[1])
	}

	for i := 0; i+1 < len(p.Pairs); i += 2 {
		label := strings.ToLower(strings.TrimSpace(p.Pairs[i]))
		value := strings.TrimSpace(p.Pairs[i+1])
		if label == "" || value == "" || label == strings.ToLower(value) {
			// Identical label/value pairs are mis-paired boilerplate.
			continue
		}
		op.Details[label] = value
	}

	return op
}

// returnToList navigates history-back and waits for the transaction list
// to be ready again.
func (d *rodList) returnToList(ctx context.Context) error {
	if err := d.page.Context(ctx).NavigateBack(); err != nil {
		return fmt.Errorf("vtb: navigate back: %w", err)
	}
	err := poll.Until(ctx, 400*time.Millisecond, d.cfg.SettleWait, func(ctx context.Context) (bool, error) {
		return listReady(ctx, d.page), nil
	})
	if err != nil {
		return fmt.Errorf("vtb: list did not settle after detail view: %w", err)
	}
	return nil
}
