package pageobject

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grafana/pagekit/api"
	"github.com/grafana/pagekit/locator"
)

// pendingWait is a wait in progress.
type pendingWait struct {
	loc     locator.Resolved
	state   api.ElementState
	timeout time.Duration
	start   time.Time
}

func newWait(loc locator.Resolved, timeout time.Duration) *pendingWait {
	return &pendingWait{loc: loc, state: api.StateAttached, timeout: timeout, start: time.Now()}
}

func (w *pendingWait) elapsed() time.Duration {
	return time.Since(w.start)
}

// remaining returns what is left of the budget, never below zero.
func (w *pendingWait) remaining() time.Duration {
	if left := w.timeout - w.elapsed(); left > 0 {
		return left
	}
	return 0
}

// fail turns an engine error into the typed timeout for the state the
// wait was in. Other errors are wrapped with the locator.
func (w *pendingWait) fail(err error) error {
	if !errors.Is(err, api.ErrTimeout) {
		return fmt.Errorf("waiting for %s to be %s: %w", w.loc, w.state, err)
	}
	if w.state == api.StateVisible {
		return &ElementNotVisibleTimeout{
			Locator:  w.loc.Name,
			Selector: w.loc.Selector,
			Elapsed:  w.elapsed(),
			Err:      err,
		}
	}
	return &ElementNotFoundTimeout{
		Locator:  w.loc.Name,
		Selector: w.loc.Selector,
		Elapsed:  w.elapsed(),
		Err:      err,
	}
}

// waitAttached waits for the first element matching w.loc to exist.
func (w *pendingWait) waitAttached(ctx context.Context, page api.Page) (api.ElementHandle, error) {
	w.state = api.StateAttached
	h, err := page.WaitForSelector(ctx, w.loc.Selector, api.StateAttached, w.remaining())
	if err != nil {
		return nil, w.fail(err)
	}
	return h, nil
}

// waitVisible waits for attachment, then for visibility, within one
// budget.
func (w *pendingWait) waitVisible(ctx context.Context, page api.Page) (api.ElementHandle, error) {
	if _, err := w.waitAttached(ctx, page); err != nil {
		return nil, err
	}
	w.state = api.StateVisible
	h, err := page.WaitForSelector(ctx, w.loc.Selector, api.StateVisible, w.remaining())
	if err != nil {
		return nil, w.fail(err)
	}
	return h, nil
}

// interactionError reports a failed action. Timeouts, including those of
// the preceding wait, become an InteractionTimeout.
func (w *pendingWait) interactionError(action, text string, err error) error {
	if !errors.Is(err, api.ErrTimeout) {
		return fmt.Errorf("%s on %s: %w", action, w.loc, err)
	}
	return &InteractionTimeout{
		Action:   action,
		Locator:  w.loc.Name,
		Selector: w.loc.Selector,
		Text:     text,
		Elapsed:  w.elapsed(),
		Err:      err,
	}
}
