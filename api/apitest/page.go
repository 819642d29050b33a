package apitest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grafana/pagekit/api"
)

// Page is a fake api.Page backed by a selector to elements map.
type Page struct {
	// ScreenshotErr is returned by Screenshot when set.
	ScreenshotErr error
	// ScreenshotDelay makes Screenshot take this long, or until ctx is done.
	ScreenshotDelay time.Duration
	// GotoErr is returned by Goto when set.
	GotoErr error
	// Routes maps URLs to the elements a navigation installs.
	Routes map[string]map[string][]*Element

	id   string
	bctx *Context

	mu          sync.Mutex
	url         string
	elements    map[string][]*Element
	closed      bool
	navigations []string
	screenshots int
}

var _ api.Page = &Page{}

// NewPage returns a blank page that belongs to no context.
func NewPage(id string) *Page {
	return &Page{
		id:       id,
		url:      "about:blank",
		elements: make(map[string][]*Element),
	}
}

func (p *Page) ID() string { return p.id }

func (p *Page) Context() api.BrowserContext { return p.bctx }

func (p *Page) Goto(_ context.Context, url string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return api.ErrTargetClosed
	}
	if p.GotoErr != nil {
		return p.GotoErr
	}
	p.url = url
	p.navigations = append(p.navigations, url)
	if els, ok := p.Routes[url]; ok {
		p.elements = make(map[string][]*Element, len(els))
		for sel, e := range els {
			p.elements[sel] = e
		}
	}
	return nil
}

// Navigations returns the URLs passed to Goto.
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}

// SetURL changes the current URL without a navigation.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Add appends elements matching selector.
func (p *Page) Add(selector string, els ...*Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = append(p.elements[selector], els...)
}

// Remove drops every element matching selector.
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
}

func (p *Page) lookup(selector string) []*Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Element(nil), p.elements[selector]...)
}

func (p *Page) WaitForSelector(
	ctx context.Context, selector string, state api.ElementState, timeout time.Duration,
) (api.ElementHandle, error) {
	deadline := time.Now().Add(timeout)
	for {
		if p.isClosed() {
			return nil, api.ErrTargetClosed
		}
		if els := p.lookup(selector); len(els) > 0 {
			if state == api.StateAttached || els[0].Visible() {
				return els[0], nil
			}
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("waiting for %q to be %s: %w", selector, state, api.ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(PollInterval):
		}
	}
}

func (p *Page) QueryAll(_ context.Context, selector string) ([]api.ElementHandle, error) {
	if p.isClosed() {
		return nil, api.ErrTargetClosed
	}
	els := p.lookup(selector)
	hh := make([]api.ElementHandle, 0, len(els))
	for _, e := range els {
		hh = append(hh, e)
	}
	return hh, nil
}

// PNGHeader is the signature every fake screenshot starts with.
var PNGHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func (p *Page) Screenshot(ctx context.Context, _ *api.ScreenshotOptions) ([]byte, error) {
	if p.ScreenshotDelay > 0 {
		select {
		case <-time.After(p.ScreenshotDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	if p.closed {
		return nil, api.ErrTargetClosed
	}
	p.screenshots++
	return append(append([]byte(nil), PNGHeader...), p.url...), nil
}

// Screenshots returns how many screenshots were taken.
func (p *Page) Screenshots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.screenshots
}

func (p *Page) Close(_ context.Context) error {
	p.markClosed()
	if p.bctx != nil {
		p.bctx.removePage(p)
	}
	return nil
}

// IsClosed reports whether the page was closed.
func (p *Page) IsClosed() bool { return p.isClosed() }

func (p *Page) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) markClosed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// Element is a fake api.ElementHandle.
type Element struct {
	// Text is returned by TextContent.
	Text string
	// ClickErr, FillErr and ScrollErr are returned by the matching actions.
	ClickErr  error
	FillErr   error
	ScrollErr error

	mu       sync.Mutex
	visible  bool
	value    string
	clicks   int
	scrolled int
}

var _ api.ElementHandle = &Element{}

// NewElement returns an attached element, visible or not.
func NewElement(visible bool) *Element {
	return &Element{visible: visible}
}

// SetVisible changes the element visibility.
func (e *Element) SetVisible(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.visible = v
}

// Visible reports the element visibility.
func (e *Element) Visible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible
}

func (e *Element) Click(_ context.Context, _ time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ClickErr != nil {
		return e.ClickErr
	}
	e.clicks++
	return nil
}

// Clicks returns how many times the element was clicked.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

func (e *Element) Fill(_ context.Context, text string, _ time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FillErr != nil {
		return e.FillErr
	}
	e.value = text
	return nil
}

func (e *Element) Clear(ctx context.Context, timeout time.Duration) error {
	return e.Fill(ctx, "", timeout)
}

// Value returns the text last filled into the element.
func (e *Element) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

func (e *Element) ScrollIntoViewIfNeeded(_ context.Context, _ time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ScrollErr != nil {
		return e.ScrollErr
	}
	e.scrolled++
	return nil
}

// Scrolled returns how many times the element was scrolled into view.
func (e *Element) Scrolled() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scrolled
}

func (e *Element) IsVisible(_ context.Context) (bool, error) {
	return e.Visible(), nil
}

func (e *Element) TextContent(_ context.Context) (string, error) {
	return e.Text, nil
}

// TimeoutError returns an engine style timeout error for action.
func TimeoutError(action string) error {
	return fmt.Errorf("%s: %w", action, api.ErrTimeout)
}
