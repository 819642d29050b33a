package pwbridge

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/grafana/pagekit/api"
)

var pageSeq int64 //nolint:gochecknoglobals

var _ api.Page = &Page{}

// Page adapts a playwright.Page.
type Page struct {
	id   string
	bctx *BrowserContext
	page playwright.Page
}

func newPage(bctx *BrowserContext, p playwright.Page) *Page {
	return &Page{
		id:   fmt.Sprintf("pw-page-%d", atomic.AddInt64(&pageSeq, 1)),
		bctx: bctx,
		page: p,
	}
}

func (p *Page) ID() string { return p.id }

func (p *Page) Context() api.BrowserContext { return p.bctx }

// Goto navigates to url and waits for the load event.
func (p *Page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	_, err := withContext(ctx, func() (playwright.Response, error) {
		return p.page.Goto(url, playwright.PageGotoOptions{
			Timeout:   milliseconds(timeout),
			WaitUntil: playwright.WaitUntilStateLoad,
		})
	})
	return mapError(err)
}

func (p *Page) URL() string {
	return p.page.URL()
}

func (p *Page) locator(selector string) playwright.Locator {
	return p.page.Locator(engineSelector(selector))
}

// WaitForSelector waits for the first match of selector to reach state.
// With a zero timeout the page is checked exactly once.
func (p *Page) WaitForSelector(
	ctx context.Context, selector string, state api.ElementState, timeout time.Duration,
) (api.ElementHandle, error) {
	loc := p.locator(selector).First()
	if timeout <= 0 {
		ok, err := checkOnce(loc, state)
		if err != nil {
			return nil, mapError(err)
		}
		if !ok {
			return nil, fmt.Errorf("waiting for %q to be %s: %w", selector, state, api.ErrTimeout)
		}
		return &Element{loc: loc}, nil
	}

	_, err := withContext(ctx, func() (struct{}, error) {
		return struct{}{}, loc.WaitFor(playwright.LocatorWaitForOptions{
			State:   waitState(state),
			Timeout: milliseconds(timeout),
		})
	})
	if err != nil {
		return nil, mapError(fmt.Errorf("waiting for %q to be %s: %w", selector, state, err))
	}
	return &Element{loc: loc}, nil
}

func checkOnce(loc playwright.Locator, state api.ElementState) (bool, error) {
	if state == api.StateVisible {
		return loc.IsVisible()
	}
	n, err := loc.Count()
	return n > 0, err
}

func waitState(state api.ElementState) *playwright.WaitForSelectorState {
	if state == api.StateVisible {
		return playwright.WaitForSelectorStateVisible
	}
	return playwright.WaitForSelectorStateAttached
}

// QueryAll returns the current matches of selector in document order.
func (p *Page) QueryAll(ctx context.Context, selector string) ([]api.ElementHandle, error) {
	loc := p.locator(selector)
	n, err := withContext(ctx, loc.Count)
	if err != nil {
		return nil, mapError(err)
	}
	hh := make([]api.ElementHandle, 0, n)
	for i := 0; i < n; i++ {
		hh = append(hh, &Element{loc: loc.Nth(i)})
	}
	return hh, nil
}

// Screenshot captures the page as PNG.
func (p *Page) Screenshot(ctx context.Context, opts *api.ScreenshotOptions) ([]byte, error) {
	if opts == nil {
		opts = &api.ScreenshotOptions{}
	}
	buf, err := withContext(ctx, func() ([]byte, error) {
		return p.page.Screenshot(playwright.PageScreenshotOptions{
			FullPage: playwright.Bool(opts.FullPage),
			Type:     playwright.ScreenshotTypePng,
		})
	})
	return buf, mapError(err)
}

// Close closes the tab.
func (p *Page) Close(ctx context.Context) error {
	defer p.bctx.removePage(p)

	_, err := withContext(ctx, func() (struct{}, error) {
		return struct{}{}, p.page.Close()
	})
	return mapError(err)
}

// engineSelector prefixes XPath selectors Playwright would not detect on
// its own.
func engineSelector(selector string) string {
	if strings.HasPrefix(selector, "xpath=") || !api.IsXPath(selector) {
		return selector
	}
	return "xpath=" + selector
}

var _ api.ElementHandle = &Element{}

// Element adapts a playwright.Locator pinned to one match.
type Element struct {
	loc playwright.Locator
}

func (e *Element) Click(ctx context.Context, timeout time.Duration) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		return struct{}{}, e.loc.Click(playwright.LocatorClickOptions{Timeout: milliseconds(timeout)})
	})
	return mapError(err)
}

func (e *Element) Fill(ctx context.Context, text string, timeout time.Duration) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		return struct{}{}, e.loc.Fill(text, playwright.LocatorFillOptions{Timeout: milliseconds(timeout)})
	})
	return mapError(err)
}

func (e *Element) Clear(ctx context.Context, timeout time.Duration) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		return struct{}{}, e.loc.Clear(playwright.LocatorClearOptions{Timeout: milliseconds(timeout)})
	})
	return mapError(err)
}

func (e *Element) ScrollIntoViewIfNeeded(ctx context.Context, timeout time.Duration) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		return struct{}{}, e.loc.ScrollIntoViewIfNeeded(
			playwright.LocatorScrollIntoViewIfNeededOptions{Timeout: milliseconds(timeout)},
		)
	})
	return mapError(err)
}

func (e *Element) IsVisible(ctx context.Context) (bool, error) {
	ok, err := withContext(ctx, func() (bool, error) { return e.loc.IsVisible() })
	return ok, mapError(err)
}

func (e *Element) TextContent(ctx context.Context) (string, error) {
	s, err := withContext(ctx, func() (string, error) { return e.loc.TextContent() })
	return s, mapError(err)
}
