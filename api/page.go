package api

import (
	"context"
	"strings"
	"time"
)

// ElementState is the state a waited-for element must reach.
type ElementState int

const (
	// StateAttached means present in the DOM.
	StateAttached ElementState = iota
	// StateVisible means present, rendered and with a non-empty box.
	StateVisible
)

func (s ElementState) String() string {
	switch s {
	case StateAttached:
		return "attached"
	case StateVisible:
		return "visible"
	}
	return "unknown"
}

// ScreenshotOptions control page screenshots. The format is always PNG.
type ScreenshotOptions struct {
	FullPage bool
}

// Page is a single tab.
//
// A page is not safe for concurrent use: callers must not issue two
// operations on the same page at the same time.
type Page interface {
	// ID identifies the page within its browser.
	ID() string
	Context() BrowserContext
	// Goto navigates to url and waits for the load event.
	Goto(ctx context.Context, url string, timeout time.Duration) error
	URL() string
	// WaitForSelector waits until the first element matching selector
	// reaches state. A zero timeout performs a single check.
	WaitForSelector(ctx context.Context, selector string, state ElementState, timeout time.Duration) (ElementHandle, error)
	// QueryAll returns all the elements currently matching selector in
	// document order, without waiting.
	QueryAll(ctx context.Context, selector string) ([]ElementHandle, error)
	Screenshot(ctx context.Context, opts *ScreenshotOptions) ([]byte, error)
	Close(ctx context.Context) error
}

// ElementHandle is an element found on a page.
type ElementHandle interface {
	Click(ctx context.Context, timeout time.Duration) error
	Fill(ctx context.Context, text string, timeout time.Duration) error
	Clear(ctx context.Context, timeout time.Duration) error
	ScrollIntoViewIfNeeded(ctx context.Context, timeout time.Duration) error
	IsVisible(ctx context.Context) (bool, error)
	TextContent(ctx context.Context) (string, error)
}

// IsXPath reports whether selector should be evaluated as XPath rather
// than as a CSS selector.
func IsXPath(selector string) bool {
	return strings.HasPrefix(selector, "//") ||
		strings.HasPrefix(selector, "(//") ||
		strings.HasPrefix(selector, "..") ||
		strings.HasPrefix(selector, "xpath=")
}
