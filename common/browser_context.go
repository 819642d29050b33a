package common

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/pkg/errors"

	"github.com/grafana/pagekit/api"
	"github.com/grafana/pagekit/log"
)

// Viewport size used when a context asks for viewport emulation.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)

var _ api.BrowserContext = &BrowserContext{}

// BrowserContext is a CDP browser context: an isolated storage scope whose
// pages share cookies.
type BrowserContext struct {
	browser *Browser
	id      string
	opts    *api.ContextOptions
	logger  *log.Logger

	pagesMu sync.RWMutex
	pages   []*Page
	closed  bool
}

func newBrowserContext(b *Browser, id string, opts *api.ContextOptions, logger *log.Logger) *BrowserContext {
	return &BrowserContext{
		browser: b,
		id:      id,
		opts:    opts,
		logger:  logger,
	}
}

// ID returns the CDP browser context ID.
func (b *BrowserContext) ID() string {
	return b.id
}

// NewPage opens a new tab in this context.
func (b *BrowserContext) NewPage(ctx context.Context) (api.Page, error) {
	b.pagesMu.RLock()
	closed := b.closed
	b.pagesMu.RUnlock()
	if closed || !b.browser.IsConnected() {
		return nil, api.ErrTargetClosed
	}

	client := b.browser.cdpClient
	targetID, err := client.Target.CreateTarget(ctx, "about:blank", b.id)
	if err != nil {
		return nil, errors.Wrap(err, "creating page")
	}
	sessionID, err := client.Target.AttachToTarget(ctx, targetID)
	if err != nil {
		b.discardTarget(targetID)
		return nil, errors.Wrap(err, "attaching to page")
	}

	p := newPage(b, client, targetID, sessionID, b.logger)
	if err := p.initDomains(ctx); err != nil {
		b.discardTarget(targetID)
		return nil, errors.Wrap(err, "enabling page domains")
	}
	if err := b.emulate(p.sessionContext(ctx), client); err != nil {
		b.discardTarget(targetID)
		return nil, err
	}

	b.pagesMu.Lock()
	b.pages = append(b.pages, p)
	b.pagesMu.Unlock()

	b.logger.Debugf("BrowserContext:NewPage", "bctxid:%v tid:%v sid:%v", b.id, targetID, sessionID)

	return p, nil
}

// discardTarget closes a tab that failed to initialize. It uses its own
// deadline since the caller's context may be what failed.
func (b *BrowserContext) discardTarget(targetID string) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := b.browser.cdpClient.Target.CloseTarget(ctx, targetID); err != nil {
		b.logger.Debugf("BrowserContext:NewPage", "bctxid:%v closing orphan tid:%v: %v", b.id, targetID, err)
	}
}

func (b *BrowserContext) emulate(ctx context.Context, exec cdp.Executor) error {
	ctx = cdp.WithExecutor(ctx, exec)

	if !b.opts.NoViewport {
		action := emulation.SetDeviceMetricsOverride(DefaultViewportWidth, DefaultViewportHeight, 1, false)
		if err := action.Do(ctx); err != nil {
			return errors.Wrap(err, "emulating viewport")
		}
	}
	if b.opts.Locale != "" {
		if err := emulation.SetLocaleOverride().WithLocale(b.opts.Locale).Do(ctx); err != nil {
			return errors.Wrapf(err, "emulating locale %q", b.opts.Locale)
		}
	}

	return nil
}

// Pages returns the open pages in creation order.
func (b *BrowserContext) Pages() []api.Page {
	b.pagesMu.RLock()
	defer b.pagesMu.RUnlock()

	pp := make([]api.Page, 0, len(b.pages))
	for _, p := range b.pages {
		pp = append(pp, p)
	}
	return pp
}

func (b *BrowserContext) removePage(p *Page) {
	b.pagesMu.Lock()
	defer b.pagesMu.Unlock()

	for i, pp := range b.pages {
		if pp == p {
			b.pages = append(b.pages[:i], b.pages[i+1:]...)
			return
		}
	}
}

// Close disposes the context together with all of its pages.
func (b *BrowserContext) Close(ctx context.Context) error {
	b.pagesMu.Lock()
	if b.closed {
		b.pagesMu.Unlock()
		return nil
	}
	b.closed = true
	pages := b.pages
	b.pages = nil
	b.pagesMu.Unlock()

	for _, p := range pages {
		p.didClose()
	}
	defer b.browser.removeContext(b.id)

	if !b.browser.IsConnected() {
		return nil
	}
	if err := b.browser.cdpClient.Target.DisposeBrowserContext(ctx, b.id); err != nil {
		return errors.Wrap(err, "closing browser context")
	}

	return nil
}
