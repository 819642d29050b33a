package cdp

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jwriter"
	"github.com/oxtoacart/bpool"

	"github.com/grafana/pagekit/log"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsBufferSize       = 1 << 20
	readBufferPoolSize = 16
)

// connection is a websocket connection speaking CDP messages.
type connection struct {
	ws     *websocket.Conn
	wsURL  string
	logger *log.Logger
	bufs   *bpool.BufferPool

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newConnection(ctx context.Context, wsURL string, logger *log.Logger) (*connection, error) {
	wd := websocket.Dialer{
		HandshakeTimeout: wsHandshakeTimeout,
		ReadBufferSize:   wsBufferSize,
		WriteBufferSize:  wsBufferSize,
		Proxy:            http.ProxyFromEnvironment,
	}
	ws, _, err := wd.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("connecting to %q: %w", wsURL, err)
	}

	return &connection{
		ws:     ws,
		wsURL:  wsURL,
		logger: logger,
		bufs:   bpool.NewBufferPool(readBufferPoolSize),
	}, nil
}

// readMessage blocks until the next message arrives.
func (c *connection) readMessage() (*cdproto.Message, error) {
	_, r, err := c.ws.NextReader()
	if err != nil {
		return nil, fmt.Errorf("reading from %q: %w", c.wsURL, err)
	}

	buf := c.bufs.Get()
	defer c.bufs.Put(buf)
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("reading from %q: %w", c.wsURL, err)
	}

	var msg cdproto.Message
	if err := easyjson.Unmarshal(buf.Bytes(), &msg); err != nil {
		return nil, fmt.Errorf("unmarshalling CDP message: %w", err)
	}
	// raw fields point into the pooled buffer.
	msg.Params = append(easyjson.RawMessage(nil), msg.Params...)
	msg.Result = append(easyjson.RawMessage(nil), msg.Result...)

	return &msg, nil
}

func (c *connection) writeMessage(msg *cdproto.Message) error {
	var w jwriter.Writer
	msg.MarshalEasyJSON(&w)
	if err := w.Error; err != nil {
		return fmt.Errorf("marshalling CDP message %q: %w", msg.Method, err)
	}
	buf, err := w.BuildBytes()
	if err != nil {
		return fmt.Errorf("marshalling CDP message %q: %w", msg.Method, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, buf); err != nil {
		return fmt.Errorf("writing to %q: %w", c.wsURL, err)
	}

	return nil
}

// Close closes the connection, sending a close frame first.
func (c *connection) Close() {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		if err := c.ws.Close(); err != nil {
			c.logger.Debugf("connection:Close", "wsURL:%q err:%v", c.wsURL, err)
		}
	})
}
