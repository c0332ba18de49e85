package vtb

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/tsunade/collector/poll"
)

// Codes is the one-time-code source consumed during login.
type Codes interface {
	// Wait blocks until a code is available or its budget elapses.
	Wait(ctx context.Context) (string, error)
	// Consume acknowledges the code after it has been typed.
	Consume(ctx context.Context)
}

// loginFlow is one attempt at the authentication sequence. Transitions are
// polled, not event-driven: each pass probes, in order, for the fatal
// banner, the phone field, the code field, the PIN field, and finally
// list readiness. The did* flags ensure each input is submitted at most
// once per authentication attempt, so a pass never re-types into a field
// the portal is still validating.
type loginFlow struct {
	page  *rod.Page
	cfg   *Config
	codes Codes

	didPhone bool
	didOTP   bool
	didPIN   bool
}

// Login navigates to the history page and drives the multi-factor flow
// (phone entry, one-time code, PIN) until the transaction list is ready.
// A fatal session banner restarts authentication in place. Exceeding the
// wall-clock budget returns ErrLoginTimeout, which callers may retry; a
// code-source failure propagates as a hard error.
func Login(ctx context.Context, page *rod.Page, cfg Config, codes Codes) error {
	cfg.defaults()
	log := cfg.Logger

	if err := page.Context(ctx).Navigate(cfg.HistoryURL); err != nil {
		return fmt.Errorf("vtb: navigate history: %w", err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		log.Warn("vtb: history page load", "error", err)
	}

	f := &loginFlow{page: page, cfg: &cfg, codes: codes}
	err := poll.Until(ctx, cfg.LoginInterval, cfg.LoginBudget, f.step)
	if errors.Is(err, poll.ErrTimeout) {
		return ErrLoginTimeout
	}
	return err
}

func (f *loginFlow) step(ctx context.Context) (bool, error) {
	log := f.cfg.Logger

	if sessionFailed(ctx, f.page) {
		f.recover(ctx)
		return false, nil
	}

	if !f.didPhone {
		if el := f.visible(ctx, selPhoneInput); el != nil {
			log.Info("vtb: phone field found, submitting")
			if err := f.fill(ctx, el, f.cfg.Phone); err != nil {
				log.Warn("vtb: phone fill", "error", err)
				return false, nil
			}
			poll.Pause(ctx, f.cfg.PauseMin, f.cfg.PauseMax)
			_ = el.Context(ctx).Type(input.Enter)
			f.didPhone = true
			return false, nil
		}
	}

	if !f.didOTP {
		if el := f.visible(ctx, selOtpInput); el != nil {
			log.Info("vtb: code field found, waiting for one-time code")
			code, err := f.codes.Wait(ctx)
			if err != nil {
				return false, err
			}
			if err := f.fill(ctx, el, code); err != nil {
				log.Warn("vtb: code fill", "error", err)
				return false, nil
			}
			f.codes.Consume(ctx)
			f.didOTP = true
			return false, nil
		}
	}

	if !f.didPIN {
		if el := f.visible(ctx, selPinInput); el != nil {
			log.Info("vtb: pin field found, submitting")
			if err := f.fill(ctx, el, f.cfg.PIN); err != nil {
				log.Warn("vtb: pin fill", "error", err)
				return false, nil
			}
			f.didPIN = true
			return false, nil
		}
	}

	return listReady(ctx, f.page), nil
}

// visible returns the element for sel if it is currently present, without
// waiting.
func (f *loginFlow) visible(ctx context.Context, sel string) *rod.Element {
	has, el, err := f.page.Context(ctx).Has(sel)
	if err != nil || !has {
		return nil
	}
	return el
}

// fill replaces the field's current content with value, with a pacing
// pause before typing.
func (f *loginFlow) fill(ctx context.Context, el *rod.Element, value string) error {
	poll.Pause(ctx, f.cfg.PauseMin, f.cfg.PauseMax)
	_ = el.Context(ctx).SelectAllText()
	return el.Context(ctx).Input(value)
}

// recover reacts to the fatal error banner: click the return-to-login
// control (direct selector first, text scan as fallback) and reset the
// did* flags so the whole sequence restarts on the renavigated page.
func (f *loginFlow) recover(ctx context.Context) {
	log := f.cfg.Logger
	log.Warn("vtb: fatal session banner, restarting authentication")

	clicked := false
	if has, el, err := f.page.Context(ctx).Has(selRelogin); err == nil && has {
		if err := el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err == nil {
			clicked = true
		}
	}
	if !clicked {
		res, err := f.page.Context(ctx).Eval(`(label) => {
			const ctl = Array.from(document.querySelectorAll('button, a'))
				.find(el => (el.innerText || '').includes(label));
			if (!ctl) return false;
			ctl.click();
			return true;
		}`, txtRelogin)
		clicked = err == nil && res.Value.Bool()
	}

	if !clicked {
		log.Warn("vtb: no return-to-login control found")
		return
	}

	f.didPhone = false
	f.didOTP = false
	f.didPIN = false
	poll.Pause(ctx, f.cfg.PauseMin, f.cfg.PauseMax)
}
