// Package pwbridge implements the api engine on top of playwright-go.
package pwbridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/grafana/pagekit/api"
	"github.com/grafana/pagekit/log"
)

// Product is a browser product Playwright can drive.
type Product string

const (
	Chromium Product = "chromium"
	Firefox  Product = "firefox"
)

var _ api.BrowserType = &BrowserType{}

// BrowserType starts the Playwright driver on first use and launches
// browsers of one product through it.
type BrowserType struct {
	product Product
	logger  *log.Logger

	mu sync.Mutex
	pw *playwright.Playwright
}

// NewBrowserType returns a BrowserType for product. The driver is not
// started until Launch or Connect.
func NewBrowserType(product Product, logger *log.Logger) *BrowserType {
	return &BrowserType{product: product, logger: logger}
}

// Name returns the product name.
func (b *BrowserType) Name() string {
	return string(b.product)
}

func (b *BrowserType) driver() (playwright.BrowserType, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("starting playwright driver: %w", err)
		}
		b.pw = pw
	}
	switch b.product {
	case Chromium:
		return b.pw.Chromium, nil
	case Firefox:
		return b.pw.Firefox, nil
	}
	return nil, fmt.Errorf("unknown playwright product %q", b.product)
}

// Launch starts a browser through the driver.
func (b *BrowserType) Launch(ctx context.Context, opts *api.LaunchOptions) (api.Browser, error) {
	if opts == nil {
		opts = &api.LaunchOptions{}
	}
	bt, err := b.driver()
	if err != nil {
		return nil, err
	}

	lopts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.Args,
	}
	if opts.ExecutablePath != "" {
		lopts.ExecutablePath = playwright.String(opts.ExecutablePath)
	}
	if opts.Timeout > 0 {
		lopts.Timeout = milliseconds(opts.Timeout)
	}
	if len(opts.Env) > 0 {
		lopts.Env = envMap(opts.Env)
	}

	b.logger.Debugf("pwbridge:Launch", "product:%s headless:%t args:%v", b.product, opts.Headless, opts.Args)

	browser, err := withContext(ctx, func() (playwright.Browser, error) {
		return bt.Launch(lopts)
	})
	if err != nil {
		return nil, mapError(fmt.Errorf("launching %s: %w", b.product, err))
	}
	return newBrowser(browser), nil
}

// Connect attaches to a running browser. Chromium endpoints are CDP
// endpoints, other products need a Playwright server endpoint.
func (b *BrowserType) Connect(ctx context.Context, wsEndpoint string, opts *api.LaunchOptions) (api.Browser, error) {
	if opts == nil {
		opts = &api.LaunchOptions{}
	}
	bt, err := b.driver()
	if err != nil {
		return nil, err
	}

	browser, err := withContext(ctx, func() (playwright.Browser, error) {
		if b.product == Chromium {
			copts := playwright.BrowserTypeConnectOverCDPOptions{}
			if opts.Timeout > 0 {
				copts.Timeout = milliseconds(opts.Timeout)
			}
			return bt.ConnectOverCDP(wsEndpoint, copts)
		}
		copts := playwright.BrowserTypeConnectOptions{}
		if opts.Timeout > 0 {
			copts.Timeout = milliseconds(opts.Timeout)
		}
		return bt.Connect(wsEndpoint, copts)
	})
	if err != nil {
		return nil, mapError(fmt.Errorf("connecting to %s at %q: %w", b.product, wsEndpoint, err))
	}
	return newBrowser(browser), nil
}

// Stop shuts the driver down, closing every browser it launched.
func (b *BrowserType) Stop(ctx context.Context) error {
	b.mu.Lock()
	pw := b.pw
	b.pw = nil
	b.mu.Unlock()

	if pw == nil {
		return nil
	}
	_, err := withContext(ctx, func() (struct{}, error) {
		return struct{}{}, pw.Stop()
	})
	return err
}

// withContext runs fn, which cannot be cancelled, and gives up waiting
// for it when ctx is done.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		v, err := fn()
		resCh <- result{v, err}
	}()

	select {
	case r := <-resCh:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// milliseconds converts d to a Playwright timeout. Playwright treats
// zero as no timeout, so the result is never below one millisecond.
func milliseconds(d time.Duration) *float64 {
	ms := float64(d) / float64(time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	return playwright.Float(ms)
}

// mapError makes Playwright timeouts match api.ErrTimeout.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) && !errors.Is(err, api.ErrTimeout) {
		return &timeoutError{err: err}
	}
	return err
}

type timeoutError struct {
	err error
}

func (e *timeoutError) Error() string { return e.err.Error() }

func (e *timeoutError) Unwrap() []error { return []error{e.err, api.ErrTimeout} }

func envMap(env []string) map[string]string {
	m := make(map[string]string, len(env))
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		m[k] = v
	}
	return m
}
