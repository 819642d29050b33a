/*
 *
 * xk6-browser - a browser automation extension for k6
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package common

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/grafana/pagekit/api"
	"github.com/grafana/pagekit/cdp"
	"github.com/grafana/pagekit/log"
)

const (
	BrowserStateOpen int64 = iota
	BrowserStateClosing
	BrowserStateClosed
)

var _ api.Browser = &Browser{}

// Browser is a browser driven over CDP.
type Browser struct {
	ctx      context.Context
	cancelFn context.CancelFunc

	state int64

	// browserProc is nil when connected to a browser we did not launch.
	browserProc *BrowserProcess

	cdpClient *cdp.Client
	version   string

	contextsMu sync.RWMutex
	contexts   []*BrowserContext

	logger *log.Logger
}

// NewBrowser connects to the browser listening on wsURL and returns it.
// browserProc may be nil for remote browsers.
func NewBrowser(
	ctx context.Context,
	cancel context.CancelFunc,
	browserProc *BrowserProcess,
	wsURL string,
	logger *log.Logger,
) (*Browser, error) {
	b := &Browser{
		ctx:         ctx,
		cancelFn:    cancel,
		state:       BrowserStateOpen,
		browserProc: browserProc,
		cdpClient:   cdp.NewClient(ctx, logger),
		logger:      logger,
	}
	if err := b.connect(wsURL); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Browser) connect(wsURL string) error {
	b.logger.Debugf("Browser:connect", "wsURL:%q", wsURL)
	if err := b.cdpClient.Connect(wsURL); err != nil {
		return fmt.Errorf("connecting to browser DevTools URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()
	v, err := b.cdpClient.Browser.GetVersion(ctx)
	if err != nil {
		b.cdpClient.Disconnect()
		return fmt.Errorf("getting browser version: %w", err)
	}
	b.version = v.Product
	b.logger.Debugf("Browser:connect", "product:%q protocol:%q", v.Product, v.Protocol)

	go b.watchConnection()

	return nil
}

func (b *Browser) watchConnection() {
	select {
	case <-b.cdpClient.Done():
	case <-b.ctx.Done():
		return
	}
	if atomic.LoadInt64(&b.state) == BrowserStateOpen {
		b.logger.Errorf("Browser:watchConnection", "lost browser connection: %v", b.cdpClient.Err())
		atomic.StoreInt64(&b.state, BrowserStateClosed)
	}
}

// NewContext creates a new incognito-like browser context.
func (b *Browser) NewContext(ctx context.Context, opts *api.ContextOptions) (api.BrowserContext, error) {
	if !b.IsConnected() {
		return nil, api.ErrTargetClosed
	}
	if opts == nil {
		opts = &api.ContextOptions{}
	}

	id, err := b.cdpClient.Target.CreateBrowserContext(ctx, true)
	if err != nil {
		return nil, errors.Wrap(err, "creating browser context")
	}
	bctx := newBrowserContext(b, id, opts, b.logger)

	b.contextsMu.Lock()
	b.contexts = append(b.contexts, bctx)
	b.contextsMu.Unlock()

	b.logger.Debugf("Browser:NewContext", "bctxid:%v", id)

	return bctx, nil
}

// Contexts returns the open browser contexts in creation order.
func (b *Browser) Contexts() []api.BrowserContext {
	b.contextsMu.RLock()
	defer b.contextsMu.RUnlock()

	cc := make([]api.BrowserContext, 0, len(b.contexts))
	for _, c := range b.contexts {
		cc = append(cc, c)
	}
	return cc
}

func (b *Browser) removeContext(id string) {
	b.contextsMu.Lock()
	defer b.contextsMu.Unlock()

	for i, c := range b.contexts {
		if c.id == id {
			b.contexts = append(b.contexts[:i], b.contexts[i+1:]...)
			return
		}
	}
}

// Close shuts down the browser if we launched it, otherwise it only
// disconnects.
func (b *Browser) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt64(&b.state, BrowserStateOpen, BrowserStateClosing) {
		// already closed or closing
		return nil
	}
	defer func() {
		atomic.StoreInt64(&b.state, BrowserStateClosed)
		b.cancelFn()
	}()

	if b.browserProc == nil {
		b.cdpClient.Disconnect()
		return nil
	}

	b.browserProc.GracefulClose()
	if err := b.cdpClient.Browser.Close(ctx); err != nil {
		b.logger.Debugf("Browser:Close", "Browser.close: %v", err)
	}
	b.cdpClient.Disconnect()

	select {
	case <-b.browserProc.Done():
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for the browser process to exit")
	}
}

// IsConnected reports whether the browser connection is usable.
func (b *Browser) IsConnected() bool {
	return atomic.LoadInt64(&b.state) == BrowserStateOpen
}

// Version returns the browser product and version, e.g. "HeadlessChrome/120.0".
func (b *Browser) Version() string {
	return b.version
}

// Pid returns the browser process ID, or 0 for remote browsers.
func (b *Browser) Pid() int {
	if b.browserProc == nil {
		return 0
	}
	return b.browserProc.Pid()
}

// commandTimeout bounds single CDP round trips that have no caller
// supplied deadline.
const commandTimeout = 10 * time.Second
