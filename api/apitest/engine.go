// Package apitest provides an in-memory browser engine for tests.
//
// Pages hold a map of selectors to elements instead of a DOM. Tests add,
// show and remove elements while waits are in flight, and can make close
// calls hang to exercise teardown timeouts.
package apitest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grafana/pagekit/api"
)

// PollInterval is how often fake waits re-check the page.
const PollInterval = 5 * time.Millisecond

// BrowserType is a fake api.BrowserType.
type BrowserType struct {
	NameValue string
	LaunchErr error
	// StopHang, when set, blocks Stop until closed.
	StopHang chan struct{}

	mu          sync.Mutex
	launched    []*LaunchCall
	browsers    []*Browser
	stopped     int
	connectedTo []string
	// OnNewBrowser is called for each browser before it is returned.
	OnNewBrowser func(*Browser)
}

// LaunchCall records the options of a Launch call.
type LaunchCall struct {
	Opts api.LaunchOptions
}

var _ api.BrowserType = &BrowserType{}

// NewBrowserType returns a fake browser type with the given name.
func NewBrowserType(name string) *BrowserType {
	return &BrowserType{NameValue: name}
}

func (bt *BrowserType) Name() string { return bt.NameValue }

func (bt *BrowserType) Launch(_ context.Context, opts *api.LaunchOptions) (api.Browser, error) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	if bt.LaunchErr != nil {
		return nil, bt.LaunchErr
	}
	bt.launched = append(bt.launched, &LaunchCall{Opts: *opts})
	return bt.newBrowser(), nil
}

func (bt *BrowserType) Connect(_ context.Context, wsEndpoint string, _ *api.LaunchOptions) (api.Browser, error) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	if bt.LaunchErr != nil {
		return nil, bt.LaunchErr
	}
	bt.connectedTo = append(bt.connectedTo, wsEndpoint)
	return bt.newBrowser(), nil
}

func (bt *BrowserType) newBrowser() *Browser {
	b := NewBrowser()
	bt.browsers = append(bt.browsers, b)
	if bt.OnNewBrowser != nil {
		bt.OnNewBrowser(b)
	}
	return b
}

func (bt *BrowserType) Stop(ctx context.Context) error {
	if bt.StopHang != nil {
		<-bt.StopHang
	}
	bt.mu.Lock()
	defer bt.mu.Unlock()
	bt.stopped++
	return nil
}

// Launches returns the recorded Launch calls.
func (bt *BrowserType) Launches() []*LaunchCall {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return append([]*LaunchCall(nil), bt.launched...)
}

// Connections returns the endpoints passed to Connect.
func (bt *BrowserType) Connections() []string {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return append([]string(nil), bt.connectedTo...)
}

// Browsers returns every browser handed out so far.
func (bt *BrowserType) Browsers() []*Browser {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return append([]*Browser(nil), bt.browsers...)
}

// Stopped returns how many times Stop completed.
func (bt *BrowserType) Stopped() int {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return bt.stopped
}

// Browser is a fake api.Browser.
type Browser struct {
	// CloseHang, when set, blocks Close until closed.
	CloseHang chan struct{}

	mu       sync.Mutex
	contexts []*Context
	closed   bool
	nextID   int
	ctxOpts  []api.ContextOptions
}

var _ api.Browser = &Browser{}

// NewBrowser returns an empty fake browser.
func NewBrowser() *Browser {
	return &Browser{}
}

func (b *Browser) NewContext(_ context.Context, opts *api.ContextOptions) (api.BrowserContext, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, api.ErrTargetClosed
	}
	if opts == nil {
		opts = &api.ContextOptions{}
	}
	b.ctxOpts = append(b.ctxOpts, *opts)
	c := &Context{browser: b}
	b.contexts = append(b.contexts, c)
	return c, nil
}

func (b *Browser) Contexts() []api.BrowserContext {
	b.mu.Lock()
	defer b.mu.Unlock()

	cc := make([]api.BrowserContext, 0, len(b.contexts))
	for _, c := range b.contexts {
		cc = append(cc, c)
	}
	return cc
}

// FakeContexts returns the open contexts with their concrete type.
func (b *Browser) FakeContexts() []*Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Context(nil), b.contexts...)
}

// ContextOptions returns the options of every NewContext call.
func (b *Browser) ContextOptions() []api.ContextOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]api.ContextOptions(nil), b.ctxOpts...)
}

func (b *Browser) Close(_ context.Context) error {
	if b.CloseHang != nil {
		<-b.CloseHang
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.contexts = nil
	return nil
}

// IsClosed reports whether Close completed.
func (b *Browser) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Browser) Version() string { return "fake/1.0" }

func (b *Browser) removeContext(c *Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cc := range b.contexts {
		if cc == c {
			b.contexts = append(b.contexts[:i], b.contexts[i+1:]...)
			return
		}
	}
}

func (b *Browser) pageID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	return fmt.Sprintf("page-%d", b.nextID)
}

// Context is a fake api.BrowserContext.
type Context struct {
	// CloseHang, when set, blocks Close until closed.
	CloseHang chan struct{}
	// OnNewPage is called for each page before it is returned.
	OnNewPage func(*Page)

	browser *Browser
	mu      sync.Mutex
	pages   []*Page
	closed  bool
}

var _ api.BrowserContext = &Context{}

func (c *Context) NewPage(_ context.Context) (api.Page, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, api.ErrTargetClosed
	}
	p := NewPage(c.browser.pageID())
	p.bctx = c
	c.pages = append(c.pages, p)
	c.mu.Unlock()

	if c.OnNewPage != nil {
		c.OnNewPage(p)
	}
	return p, nil
}

func (c *Context) Pages() []api.Page {
	c.mu.Lock()
	defer c.mu.Unlock()

	pp := make([]api.Page, 0, len(c.pages))
	for _, p := range c.pages {
		pp = append(pp, p)
	}
	return pp
}

func (c *Context) Close(_ context.Context) error {
	if c.CloseHang != nil {
		<-c.CloseHang
	}
	c.mu.Lock()
	c.closed = true
	pages := c.pages
	c.pages = nil
	c.mu.Unlock()

	for _, p := range pages {
		p.markClosed()
	}
	c.browser.removeContext(c)
	return nil
}

// IsClosed reports whether Close completed.
func (c *Context) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Context) removePage(p *Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, pp := range c.pages {
		if pp == p {
			c.pages = append(c.pages[:i], c.pages[i+1:]...)
			return
		}
	}
}
