// Package pageobject is the base of page objects: it resolves locators,
// waits for elements with bounded timeouts, interacts with them and
// manages the tabs of a browsing context.
package pageobject

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/grafana/pagekit/api"
	"github.com/grafana/pagekit/locator"
)

// Controller drives one page. Page objects embed it and add their own
// vocabulary on top.
//
// A controller is not safe for concurrent use, like the page it drives.
type Controller struct {
	run  *Run
	bctx api.BrowserContext
	page api.Page
}

// New creates a controller on a new page. The page is opened in bctx, or
// in a fresh browsing context without a fixed viewport when bctx is nil.
// The page becomes the run's active page.
func New(ctx context.Context, run *Run, bctx api.BrowserContext) (*Controller, error) {
	if bctx == nil {
		browser := run.Session.Browser()
		if browser == nil {
			return nil, ErrSessionNotReady
		}
		var err error
		bctx, err = browser.NewContext(ctx, &api.ContextOptions{NoViewport: true})
		if err != nil {
			return nil, fmt.Errorf("creating browsing context: %w", err)
		}
	}

	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating page: %w", err)
	}
	run.Logger.Debugf("PageController:New", "pageID:%s", page.ID())

	return newController(run, bctx, page), nil
}

func newController(run *Run, bctx api.BrowserContext, page api.Page) *Controller {
	c := &Controller{run: run, bctx: bctx, page: page}
	run.Active.Set(page)
	return c
}

// Run returns the run the controller belongs to.
func (c *Controller) Run() *Run { return c.run }

// Page returns the engine page.
func (c *Controller) Page() api.Page { return c.page }

// Context returns the browsing context of the page.
func (c *Controller) Context() api.BrowserContext { return c.bctx }

// Navigate opens url and waits for it to load.
func (c *Controller) Navigate(ctx context.Context, url string, opts ...Option) error {
	o := c.options(opts)
	_, err := withStep(ctx, c.run, c.page.ID(), "navigate", url, func(ctx context.Context) (struct{}, error) {
		c.run.Active.Set(c.page)

		ctx, span := c.run.Tracer.TraceNavigation(ctx, c.page.ID(), url)
		start := time.Now()
		if err := c.page.Goto(ctx, url, o.timeout); err != nil {
			span.RecordError(err)
			return struct{}{}, fmt.Errorf("navigating to %q: %w", url, err)
		}
		c.run.Metrics.ObserveNavigation(time.Since(start))
		c.run.Logger.Successf("PageController:Navigate", "opened %s", url)

		return struct{}{}, nil
	})
	return err
}

// Get opens the run's base URL.
func (c *Controller) Get(ctx context.Context, opts ...Option) error {
	if c.run.BaseURL == "" {
		return errors.New("no base URL configured")
	}
	return c.Navigate(ctx, c.run.BaseURL, opts...)
}

// resolve prepares a wait for tpl with the call's parameters.
func (c *Controller) resolve(tpl locator.Template, o callOptions) (*pendingWait, error) {
	loc, err := tpl.Resolve(o.params)
	if err != nil {
		return nil, err
	}
	return newWait(loc, o.timeout), nil
}

// Find waits for the first element matching tpl to be attached.
func (c *Controller) Find(ctx context.Context, tpl locator.Template, opts ...Option) (api.ElementHandle, error) {
	o := c.options(opts)
	return withStep(ctx, c.run, c.page.ID(), "find", tpl.Name(), func(ctx context.Context) (api.ElementHandle, error) {
		w, err := c.resolve(tpl, o)
		if err != nil {
			return nil, err
		}
		return w.waitAttached(ctx, c.page)
	})
}

// FindVisible waits for the first element matching tpl to be visible.
func (c *Controller) FindVisible(ctx context.Context, tpl locator.Template, opts ...Option) (api.ElementHandle, error) {
	o := c.options(opts)
	return withStep(ctx, c.run, c.page.ID(), "find visible", tpl.Name(),
		func(ctx context.Context) (api.ElementHandle, error) {
			w, err := c.resolve(tpl, o)
			if err != nil {
				return nil, err
			}
			return w.waitVisible(ctx, c.page)
		})
}

// FindAll returns every element currently matching tpl, in document
// order. It does not wait; no match is an empty result.
func (c *Controller) FindAll(ctx context.Context, tpl locator.Template, opts ...Option) ([]api.ElementHandle, error) {
	o := c.options(opts)
	return withStep(ctx, c.run, c.page.ID(), "find all", tpl.Name(),
		func(ctx context.Context) ([]api.ElementHandle, error) {
			loc, err := tpl.Resolve(o.params)
			if err != nil {
				return nil, err
			}
			hh, err := c.page.QueryAll(ctx, loc.Selector)
			if err != nil {
				return nil, fmt.Errorf("querying %s: %w", loc, err)
			}
			return hh, nil
		})
}

// Click waits for the element to be visible and clicks it.
func (c *Controller) Click(ctx context.Context, tpl locator.Template, opts ...Option) error {
	o := c.options(opts)
	_, err := withStep(ctx, c.run, c.page.ID(), "click", tpl.Name(), func(ctx context.Context) (struct{}, error) {
		w, err := c.resolve(tpl, o)
		if err != nil {
			return struct{}{}, err
		}
		h, err := w.waitVisible(ctx, c.page)
		if err != nil {
			return struct{}{}, w.interactionError("click", "", err)
		}
		if err := h.Click(ctx, w.remaining()); err != nil {
			return struct{}{}, w.interactionError("click", "", err)
		}
		return struct{}{}, nil
	})
	return err
}

// Type waits for the element to be attached and replaces its value with
// text.
func (c *Controller) Type(ctx context.Context, tpl locator.Template, text string, opts ...Option) error {
	o := c.options(opts)
	_, err := withStep(ctx, c.run, c.page.ID(), "type", tpl.Name(), func(ctx context.Context) (struct{}, error) {
		w, err := c.resolve(tpl, o)
		if err != nil {
			return struct{}{}, err
		}
		h, err := w.waitAttached(ctx, c.page)
		if err != nil {
			return struct{}{}, w.interactionError("fill", text, err)
		}
		if err := h.Fill(ctx, text, w.remaining()); err != nil {
			return struct{}{}, w.interactionError("fill", text, err)
		}
		return struct{}{}, nil
	})
	return err
}

// Clear waits for the element to be attached and empties its value.
func (c *Controller) Clear(ctx context.Context, tpl locator.Template, opts ...Option) error {
	o := c.options(opts)
	_, err := withStep(ctx, c.run, c.page.ID(), "clear", tpl.Name(), func(ctx context.Context) (struct{}, error) {
		w, err := c.resolve(tpl, o)
		if err != nil {
			return struct{}{}, err
		}
		h, err := w.waitAttached(ctx, c.page)
		if err != nil {
			return struct{}{}, w.interactionError("clear", "", err)
		}
		if err := h.Clear(ctx, w.remaining()); err != nil {
			return struct{}{}, w.interactionError("clear", "", err)
		}
		return struct{}{}, nil
	})
	return err
}

// ScrollIntoView waits for the element to be attached and scrolls it into
// the viewport. A find timeout is returned as ElementNotFoundTimeout.
func (c *Controller) ScrollIntoView(ctx context.Context, tpl locator.Template, opts ...Option) error {
	o := c.options(opts)
	_, err := withStep(ctx, c.run, c.page.ID(), "scroll into view", tpl.Name(),
		func(ctx context.Context) (struct{}, error) {
			w, err := c.resolve(tpl, o)
			if err != nil {
				return struct{}{}, err
			}
			h, err := w.waitAttached(ctx, c.page)
			if err != nil {
				return struct{}{}, err
			}
			if err := h.ScrollIntoViewIfNeeded(ctx, w.remaining()); err != nil {
				return struct{}{}, w.interactionError("scroll into view", "", err)
			}
			return struct{}{}, nil
		})
	return err
}

// TextOf waits for the element to be attached and returns its text.
func (c *Controller) TextOf(ctx context.Context, tpl locator.Template, opts ...Option) (string, error) {
	o := c.options(opts)
	return withStep(ctx, c.run, c.page.ID(), "text of", tpl.Name(), func(ctx context.Context) (string, error) {
		w, err := c.resolve(tpl, o)
		if err != nil {
			return "", err
		}
		h, err := w.waitAttached(ctx, c.page)
		if err != nil {
			return "", err
		}
		s, err := h.TextContent(ctx)
		if err != nil {
			return "", fmt.Errorf("reading text of %s: %w", w.loc, err)
		}
		return strings.TrimSpace(s), nil
	})
}

// OpenNewTab opens a page in the same browsing context, so it shares
// cookies and storage, and returns a controller for it.
func (c *Controller) OpenNewTab(ctx context.Context) (*Controller, error) {
	return withStep(ctx, c.run, c.page.ID(), "open tab", "", func(ctx context.Context) (*Controller, error) {
		return New(ctx, c.run, c.bctx)
	})
}

// OpenTab opens a sibling tab of c and builds a page object on it with
// factory.
func OpenTab[T any](ctx context.Context, c *Controller, factory func(*Controller) T) (T, error) {
	tab, err := c.OpenNewTab(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return factory(tab), nil
}

// CloseTabByURL closes the first tab, in creation order, whose URL
// contains substr. No match is not an error: a TabNotFoundWarning is
// logged instead.
func (c *Controller) CloseTabByURL(ctx context.Context, substr string) error {
	_, err := withStep(ctx, c.run, c.page.ID(), "close tab", substr, func(ctx context.Context) (struct{}, error) {
		for _, p := range c.bctx.Pages() {
			if strings.Contains(p.URL(), substr) {
				return struct{}{}, c.closePage(ctx, p)
			}
		}
		c.run.Logger.Warning("PageController:CloseTabByURL", &TabNotFoundWarning{URL: substr})
		return struct{}{}, nil
	})
	return err
}

// CloseTabByIndex closes the tab at index among the open tabs of the
// context, counted in creation order.
func (c *Controller) CloseTabByIndex(ctx context.Context, index int) error {
	_, err := withStep(ctx, c.run, c.page.ID(), "close tab", fmt.Sprintf("#%d", index),
		func(ctx context.Context) (struct{}, error) {
			pages := c.bctx.Pages()
			if index < 0 || index >= len(pages) {
				return struct{}{}, &TabIndexOutOfRange{Index: index, Count: len(pages)}
			}
			return struct{}{}, c.closePage(ctx, pages[index])
		})
	return err
}

func (c *Controller) closePage(ctx context.Context, p api.Page) error {
	url := p.URL()
	if err := p.Close(ctx); err != nil {
		return fmt.Errorf("closing tab %q: %w", url, err)
	}
	c.run.Tracer.EndPage(p.ID())
	c.run.Active.clearIf(p)
	c.run.Logger.Debugf("PageController:closeTab", "closed pageID:%s url:%q", p.ID(), url)
	return nil
}
