// Package api defines the browser engine capability pagekit is built on.
//
// Any engine able to navigate, query the DOM by selector, wait for element
// states, click, fill, clear, take screenshots and manage contexts and pages
// can implement these interfaces.
package api

import (
	"context"
	"time"
)

// BrowserType launches or connects to browsers of one kind.
type BrowserType interface {
	// Name returns the browser kind, e.g. "chromium".
	Name() string
	// Launch starts a new browser.
	Launch(ctx context.Context, opts *LaunchOptions) (Browser, error)
	// Connect attaches to an already running browser.
	Connect(ctx context.Context, wsEndpoint string, opts *LaunchOptions) (Browser, error)
	// Stop releases the engine resources backing the browsers this type
	// started, such as processes and temporary directories.
	Stop(ctx context.Context) error
}

// LaunchOptions control how a browser is started.
type LaunchOptions struct {
	Headless       bool
	Args           []string
	ExecutablePath string
	Env            []string
	// Timeout bounds the browser start and the initial connection.
	Timeout time.Duration
}

// ContextOptions control a new browsing context.
type ContextOptions struct {
	// NoViewport disables the fixed viewport emulation, so pages use the
	// browser window size.
	NoViewport bool
	Locale     string
}
