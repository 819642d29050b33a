package pwbridge

import (
	"context"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/grafana/pagekit/api"
)

var _ api.Browser = &Browser{}

// Browser adapts a playwright.Browser.
type Browser struct {
	browser playwright.Browser

	mu       sync.Mutex
	contexts []*BrowserContext
}

func newBrowser(b playwright.Browser) *Browser {
	return &Browser{browser: b}
}

// NewContext creates a browser context.
func (b *Browser) NewContext(ctx context.Context, opts *api.ContextOptions) (api.BrowserContext, error) {
	if opts == nil {
		opts = &api.ContextOptions{}
	}
	copts := playwright.BrowserNewContextOptions{}
	if opts.NoViewport {
		copts.NoViewport = playwright.Bool(true)
	}
	if opts.Locale != "" {
		copts.Locale = playwright.String(opts.Locale)
	}

	pc, err := withContext(ctx, func() (playwright.BrowserContext, error) {
		return b.browser.NewContext(copts)
	})
	if err != nil {
		return nil, mapError(err)
	}

	bctx := &BrowserContext{browser: b, context: pc}
	b.mu.Lock()
	b.contexts = append(b.contexts, bctx)
	b.mu.Unlock()

	return bctx, nil
}

// Contexts returns the contexts created through this adapter that are
// still open.
func (b *Browser) Contexts() []api.BrowserContext {
	b.mu.Lock()
	defer b.mu.Unlock()

	cc := make([]api.BrowserContext, 0, len(b.contexts))
	for _, c := range b.contexts {
		cc = append(cc, c)
	}
	return cc
}

func (b *Browser) removeContext(c *BrowserContext) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, cc := range b.contexts {
		if cc == c {
			b.contexts = append(b.contexts[:i], b.contexts[i+1:]...)
			return
		}
	}
}

// Close closes the browser.
func (b *Browser) Close(ctx context.Context) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		return struct{}{}, b.browser.Close()
	})
	return mapError(err)
}

// Version returns the browser version.
func (b *Browser) Version() string {
	return b.browser.Version()
}

var _ api.BrowserContext = &BrowserContext{}

// BrowserContext adapts a playwright.BrowserContext.
type BrowserContext struct {
	browser *Browser
	context playwright.BrowserContext

	mu    sync.Mutex
	pages []*Page
}

// NewPage opens a tab.
func (c *BrowserContext) NewPage(ctx context.Context) (api.Page, error) {
	pp, err := withContext(ctx, func() (playwright.Page, error) {
		return c.context.NewPage()
	})
	if err != nil {
		return nil, mapError(err)
	}

	p := newPage(c, pp)
	c.mu.Lock()
	c.pages = append(c.pages, p)
	c.mu.Unlock()

	return p, nil
}

// Pages returns the open pages in creation order.
func (c *BrowserContext) Pages() []api.Page {
	c.mu.Lock()
	defer c.mu.Unlock()

	pp := make([]api.Page, 0, len(c.pages))
	for _, p := range c.pages {
		if p.page.IsClosed() {
			continue
		}
		pp = append(pp, p)
	}
	return pp
}

func (c *BrowserContext) removePage(p *Page) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, pp := range c.pages {
		if pp == p {
			c.pages = append(c.pages[:i], c.pages[i+1:]...)
			return
		}
	}
}

// Close closes the context and its pages.
func (c *BrowserContext) Close(ctx context.Context) error {
	defer c.browser.removeContext(c)

	_, err := withContext(ctx, func() (struct{}, error) {
		return struct{}{}, c.context.Close()
	})
	return mapError(err)
}
