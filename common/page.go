package common

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
	cdppage "github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/pkg/errors"

	"github.com/grafana/pagekit/api"
	"github.com/grafana/pagekit/cdp"
	"github.com/grafana/pagekit/common/js"
	"github.com/grafana/pagekit/log"
)

// DefaultPollInterval is how often waits re-query the DOM.
const DefaultPollInterval = 100 * time.Millisecond

var _ api.Page = &Page{}

// Page is a tab attached over a flat CDP session.
type Page struct {
	bctx      *BrowserContext
	client    *cdp.Client
	targetID  string
	sessionID string
	logger    *log.Logger

	pollInterval time.Duration

	closedMu sync.RWMutex
	closed   bool
}

func newPage(bctx *BrowserContext, client *cdp.Client, targetID, sessionID string, logger *log.Logger) *Page {
	return &Page{
		bctx:         bctx,
		client:       client,
		targetID:     targetID,
		sessionID:    sessionID,
		logger:       logger,
		pollInterval: DefaultPollInterval,
	}
}

func (p *Page) sessionContext(ctx context.Context) context.Context {
	return cdp.WithSessionID(ctx, p.sessionID)
}

func (p *Page) initDomains(ctx context.Context) error {
	sctx := p.sessionContext(ctx)
	if err := p.client.Page.Enable(sctx); err != nil {
		return err
	}
	if err := p.client.Runtime.Enable(sctx); err != nil {
		return err
	}
	return nil
}

// ID returns the CDP target ID of the page.
func (p *Page) ID() string { return p.targetID }

// Context returns the browser context the page belongs to.
func (p *Page) Context() api.BrowserContext { return p.bctx }

// Goto navigates to url and waits for the load event.
func (p *Page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if p.isClosed() {
		return api.ErrTargetClosed
	}

	ctx, cancel := context.WithTimeout(p.sessionContext(ctx), timeout)
	defer cancel()

	// Subscribe before navigating so a fast load is not missed.
	evts, unsubscribe := p.client.Subscribe(ctx, cdproto.EventPageLoadEventFired)
	defer unsubscribe()

	start := time.Now()
	if _, err := p.client.Page.Navigate(ctx, url, "", ""); err != nil {
		if ctx.Err() != nil {
			return p.timeoutError(fmt.Sprintf("navigating to %q", url), timeout)
		}
		return err
	}

	for {
		select {
		case evt, ok := <-evts:
			if !ok {
				return cdp.ErrClientClosed
			}
			if _, ok := evt.Data.(*cdppage.EventLoadEventFired); ok {
				p.logger.Debugf("Page:Goto", "tid:%v url:%q loaded in %s", p.targetID, url, time.Since(start))
				return nil
			}
		case <-ctx.Done():
			return p.timeoutError(fmt.Sprintf("waiting for %q to load", url), timeout)
		}
	}
}

// URL returns the current page URL.
func (p *Page) URL() string {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	info, err := p.client.Target.GetTargetInfo(ctx, p.targetID)
	if err != nil {
		p.logger.Debugf("Page:URL", "tid:%v err:%v", p.targetID, err)
		return ""
	}
	return info.URL
}

// WaitForSelector polls the DOM until the first element matching
// selector reaches state.
func (p *Page) WaitForSelector(
	ctx context.Context, selector string, state api.ElementState, timeout time.Duration,
) (api.ElementHandle, error) {
	sel, xpath := normalizeSelector(selector)
	expr := fmt.Sprintf("(%s).check(%s, %t, %q)", js.InjectedScript, quote(sel), xpath, state)

	err := p.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		var ok bool
		if err := p.evaluateValue(ctx, expr, &ok); err != nil {
			return false, err
		}
		return ok, nil
	})
	if err != nil {
		if errors.Is(err, api.ErrTimeout) {
			return nil, p.timeoutError(fmt.Sprintf("waiting for %q to be %s", selector, state), timeout)
		}
		return nil, err
	}

	return newElementHandle(p, selector, 0), nil
}

// QueryAll returns handles to all the elements currently matching
// selector.
func (p *Page) QueryAll(ctx context.Context, selector string) ([]api.ElementHandle, error) {
	if p.isClosed() {
		return nil, api.ErrTargetClosed
	}

	sel, xpath := normalizeSelector(selector)
	var n int
	expr := fmt.Sprintf("(%s).count(%s, %t)", js.InjectedScript, quote(sel), xpath)
	if err := p.evaluateValue(ctx, expr, &n); err != nil {
		return nil, errors.Wrapf(err, "querying %q", selector)
	}

	hh := make([]api.ElementHandle, 0, n)
	for i := 0; i < n; i++ {
		hh = append(hh, newElementHandle(p, selector, i))
	}
	return hh, nil
}

// Screenshot captures the page as PNG.
func (p *Page) Screenshot(ctx context.Context, opts *api.ScreenshotOptions) ([]byte, error) {
	if p.isClosed() {
		return nil, api.ErrTargetClosed
	}
	if opts == nil {
		opts = &api.ScreenshotOptions{}
	}
	return newScreenshotter(p).screenshot(ctx, opts.FullPage)
}

// Close closes the tab.
func (p *Page) Close(ctx context.Context) error {
	if p.isClosed() {
		return nil
	}
	p.didClose()
	p.bctx.removePage(p)

	if err := p.client.Target.CloseTarget(ctx, p.targetID); err != nil {
		return errors.Wrap(err, "closing page")
	}
	return nil
}

func (p *Page) didClose() {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()
	p.closed = true
}

func (p *Page) isClosed() bool {
	p.closedMu.RLock()
	defer p.closedMu.RUnlock()
	return p.closed
}

// poll calls check until it reports true. A zero timeout makes exactly
// one call. Running out of time returns an error wrapping api.ErrTimeout.
// Errors caused by a navigation replacing the document, or by a single
// check running out of time, count as "not yet".
func (p *Page) poll(ctx context.Context, timeout time.Duration, check func(context.Context) (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		if p.isClosed() {
			return api.ErrTargetClosed
		}

		cctx, cancel := context.WithTimeout(ctx, commandTimeout)
		ok, err := check(cctx)
		cancel()
		switch {
		case ok:
			return nil
		case err == nil, ctx.Err() != nil:
		case errors.Is(err, context.DeadlineExceeded), isNavigationError(err):
			p.logger.Tracef("Page:poll", "tid:%v retrying after: %v", p.targetID, err)
		default:
			return err
		}

		if !time.Now().Before(deadline) || ctx.Err() != nil {
			return api.ErrTimeout
		}

		wait := p.pollInterval
		if left := time.Until(deadline); left < wait {
			wait = left
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return api.ErrTimeout
		}
	}
}

func (p *Page) evaluate(ctx context.Context, expr string, returnByValue bool) (*cdpruntime.RemoteObject, error) {
	return p.client.Runtime.Evaluate(p.sessionContext(ctx), expr, returnByValue)
}

func (p *Page) evaluateValue(ctx context.Context, expr string, v interface{}) error {
	obj, err := p.evaluate(ctx, expr, true)
	if err != nil {
		return err
	}
	if len(obj.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(obj.Value, v); err != nil {
		return errors.Wrap(err, "decoding evaluation result")
	}
	return nil
}

func (p *Page) timeoutError(action string, timeout time.Duration) error {
	return errors.Wrapf(api.ErrTimeout, "%s: timed out after %s", action, timeout)
}

// normalizeSelector strips the xpath= engine prefix and reports whether
// the selector is XPath.
func normalizeSelector(selector string) (string, bool) {
	if strings.HasPrefix(selector, "xpath=") {
		return strings.TrimPrefix(selector, "xpath="), true
	}
	return selector, api.IsXPath(selector)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
