package api

import "context"

// Browser is a running browser instance.
type Browser interface {
	NewContext(ctx context.Context, opts *ContextOptions) (BrowserContext, error)
	// Contexts returns the open browsing contexts in creation order.
	Contexts() []BrowserContext
	Close(ctx context.Context) error
	Version() string
}

// BrowserContext is an isolated cookie and storage scope holding tabs.
type BrowserContext interface {
	NewPage(ctx context.Context) (Page, error)
	// Pages returns the open pages in creation order.
	Pages() []Page
	Close(ctx context.Context) error
}
