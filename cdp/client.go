// Package cdp implements a Chrome DevTools Protocol client.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto"
	cdpext "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"

	"github.com/grafana/pagekit/cdp/domains"
	"github.com/grafana/pagekit/log"
)

// ErrClientClosed is returned by commands issued after the connection to
// the browser was lost or closed.
var ErrClientClosed = errors.New("CDP connection closed")

var _ cdpext.Executor = &Client{}

// Client manages CDP communication with the browser.
type Client struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *log.Logger

	Browser domains.Browser
	DOM     domains.DOM
	Input   domains.Input
	Page    domains.Page
	Runtime domains.Runtime
	Target  domains.Target

	conn      *connection
	msgID     int64
	msgSubsMu sync.Mutex
	msgSubs   map[int64]chan *cdproto.Message
	watcher   *eventWatcher
	wsURL     string

	done    chan struct{}
	errMu   sync.Mutex
	connErr error
}

// NewClient returns a new Client that is unusable until a CDP connection is
// established with Connect().
func NewClient(ctx context.Context, logger *log.Logger) *Client {
	ctx, cancel := context.WithCancel(ctx)
	c := &Client{
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		msgSubs: make(map[int64]chan *cdproto.Message),
		watcher: newEventWatcher(),
		done:    make(chan struct{}),
	}

	c.Browser = domains.NewBrowser(c)
	c.DOM = domains.NewDOM(c)
	c.Input = domains.NewInput(c)
	c.Page = domains.NewPage(c)
	c.Runtime = domains.NewRuntime(c)
	c.Target = domains.NewTarget(c)

	return c
}

// Connect to the browser that exposes a CDP API at wsURL.
func (c *Client) Connect(wsURL string) (err error) {
	if c.wsURL != "" {
		return fmt.Errorf("CDP connection already established to %q", c.wsURL)
	}

	if c.conn, err = newConnection(c.ctx, wsURL, c.logger); err != nil {
		return err
	}
	c.logger.Debugf("cdp", "established CDP connection to %q", wsURL)
	c.wsURL = wsURL

	go c.recvLoop()

	return nil
}

// Disconnect from the browser's CDP API.
func (c *Client) Disconnect() {
	if c.conn != nil {
		c.conn.Close()
	}
	c.cancel()
}

// Done is closed once the connection to the browser is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection ended, if it has.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.connErr
}

// Execute implements cdp.Executor and performs a synchronous send and
// receive.
//
// With a session ID set in the context (WithSessionID(ctx)), the message
// is routed to the matching target (page). Without one it goes to the
// browser target.
func (c *Client) Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	id := atomic.AddInt64(&c.msgID, 1)
	c.logger.Tracef("cdp:Execute", "wsURL:%q id:%d method:%q", c.wsURL, id, method)

	var buf []byte
	if params != nil {
		var err error
		if buf, err = easyjson.Marshal(params); err != nil {
			return fmt.Errorf("marshalling %q params: %w", method, err)
		}
	}
	msg := &cdproto.Message{
		ID:     id,
		Method: cdproto.MethodType(method),
		Params: buf,
	}
	if sid := GetSessionID(ctx); sid != "" {
		msg.SessionID = target.SessionID(sid)
	}

	// Register for the reply before sending so it can't be missed.
	recvCh := make(chan *cdproto.Message, 1)
	c.msgSubsMu.Lock()
	c.msgSubs[id] = recvCh
	c.msgSubsMu.Unlock()
	defer func() {
		c.msgSubsMu.Lock()
		delete(c.msgSubs, id)
		c.msgSubsMu.Unlock()
	}()

	if err := c.conn.writeMessage(msg); err != nil {
		return err
	}

	select {
	case reply := <-recvCh:
		switch {
		case reply.Error != nil:
			return fmt.Errorf("%s: %w", method, reply.Error)
		case res != nil:
			return easyjson.Unmarshal(reply.Result, res)
		}
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel that will be notified when the provided CDP
// events are received for the session in ctx, and a cancellation
// function that will unsubscribe and close the channel.
func (c *Client) Subscribe(ctx context.Context, events ...cdproto.MethodType) (<-chan *Event, func()) {
	return c.watcher.subscribe(GetSessionID(ctx), events...)
}

func (c *Client) recvLoop() {
	defer c.shutdown()

	for {
		msg, err := c.conn.readMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.Is(err, net.ErrClosed) && !errors.As(err, &closeErr) && c.ctx.Err() == nil {
				c.logger.Errorf("cdp:recvLoop", "wsURL:%q ioErr:%v", c.wsURL, err)
			}
			c.setErr(err)
			return
		}

		switch {
		case msg.Method != "":
			evt, err := cdproto.UnmarshalMessage(msg)
			if err != nil {
				c.logger.Debugf("cdp:recvLoop", "skipping event %q: %v", msg.Method, err)
				continue
			}
			c.watcher.notify(&Event{
				Name:      msg.Method,
				Data:      evt,
				SessionID: string(msg.SessionID),
			})
		case msg.ID > 0:
			c.msgSubsMu.Lock()
			ch, ok := c.msgSubs[msg.ID]
			c.msgSubsMu.Unlock()
			if !ok {
				c.logger.Debugf("cdp:recvLoop", "no waiter for reply id:%d", msg.ID)
				continue
			}
			ch <- msg
		default:
			c.logger.Errorf("cdp:recvLoop", "ignoring malformed incoming CDP message (missing id or method): %#v", msg)
		}
	}
}

func (c *Client) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.connErr == nil {
		c.connErr = err
	}
}

func (c *Client) shutdown() {
	close(c.done)
	c.watcher.closeAll()
	c.cancel()
}
