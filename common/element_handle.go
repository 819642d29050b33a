package common

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/pkg/errors"

	"github.com/grafana/pagekit/api"
	"github.com/grafana/pagekit/common/js"
)

// errElementDetached is returned when the element a handle points to is
// no longer in the DOM.
var errElementDetached = errors.New("element is not attached to the DOM")

var _ api.ElementHandle = &ElementHandle{}

// ElementHandle points to the index-th element matching a selector.
// It is resolved again for every action, so it survives re-renders that
// replace the underlying node.
type ElementHandle struct {
	page     *Page
	selector string
	index    int
}

func newElementHandle(p *Page, selector string, index int) *ElementHandle {
	return &ElementHandle{page: p, selector: selector, index: index}
}

func (h *ElementHandle) String() string {
	return fmt.Sprintf("%s[%d]", h.selector, h.index)
}

// resolve returns a remote object for the element. The caller releases it.
func (h *ElementHandle) resolve(ctx context.Context) (cdpruntime.RemoteObjectID, error) {
	sel, xpath := normalizeSelector(h.selector)
	expr := fmt.Sprintf("(%s).element(%s, %t, %d)", js.InjectedScript, quote(sel), xpath, h.index)
	obj, err := h.page.evaluate(ctx, expr, false)
	if err != nil {
		return "", err
	}
	if obj.ObjectID == "" {
		return "", errElementDetached
	}
	return obj.ObjectID, nil
}

func (h *ElementHandle) release(id cdpruntime.RemoteObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := h.page.client.Runtime.ReleaseObject(h.page.sessionContext(ctx), id); err != nil {
		h.page.logger.Tracef("ElementHandle:release", "%v: %v", h, err)
	}
}

// callValue calls fn on the element and decodes its return value into v.
func (h *ElementHandle) callValue(
	ctx context.Context, id cdpruntime.RemoteObjectID, fn string, v interface{}, args ...interface{},
) error {
	obj, err := h.page.client.Runtime.CallFunctionOn(h.page.sessionContext(ctx), id, fn, true, args...)
	if err != nil {
		return err
	}
	if v == nil || len(obj.Value) == 0 {
		return nil
	}
	return json.Unmarshal(obj.Value, v)
}

// waitFor polls until the element is attached, and visible when
// visible is set, then runs action on it, all within timeout.
func (h *ElementHandle) waitFor(
	ctx context.Context, name string, timeout time.Duration, visible bool,
	action func(context.Context, cdpruntime.RemoteObjectID) error,
) error {
	ctx, cancel := context.WithTimeout(ctx, timeout+commandTimeout)
	defer cancel()

	var id cdpruntime.RemoteObjectID
	err := h.page.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		oid, err := h.resolve(ctx)
		if errors.Is(err, errElementDetached) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if visible {
			var ok bool
			if err := h.callValue(ctx, oid, js.IsVisibleFunction, &ok); err != nil || !ok {
				h.release(oid)
				return false, err
			}
		}
		id = oid
		return true, nil
	})
	if errors.Is(err, api.ErrTimeout) {
		return h.page.timeoutError(fmt.Sprintf("%s %q", name, h.selector), timeout)
	}
	if err != nil {
		return errors.Wrapf(err, "%s %q", name, h.selector)
	}
	defer h.release(id)

	if err := action(h.page.sessionContext(ctx), id); err != nil {
		if ctx.Err() != nil {
			return h.page.timeoutError(fmt.Sprintf("%s %q", name, h.selector), timeout)
		}
		return errors.Wrapf(err, "%s %q", name, h.selector)
	}
	return nil
}

// Click scrolls the element into view and clicks the centre of its first
// content quad.
func (h *ElementHandle) Click(ctx context.Context, timeout time.Duration) error {
	return h.waitFor(ctx, "clicking", timeout, true, func(ctx context.Context, id cdpruntime.RemoteObjectID) error {
		client := h.page.client
		if err := client.DOM.ScrollIntoViewIfNeeded(ctx, id); err != nil {
			return err
		}
		quads, err := client.DOM.GetContentQuads(ctx, id)
		if err != nil {
			return err
		}
		x, y, ok := quadsCenter(quads)
		if !ok {
			return errors.New("element has no clickable area")
		}
		return client.Input.Click(ctx, x, y)
	})
}

// Fill replaces the element value with text.
func (h *ElementHandle) Fill(ctx context.Context, text string, timeout time.Duration) error {
	return h.waitFor(ctx, "filling", timeout, false, func(ctx context.Context, id cdpruntime.RemoteObjectID) error {
		return h.callValue(ctx, id, js.FillFunction, nil, text)
	})
}

// Clear empties the element value.
func (h *ElementHandle) Clear(ctx context.Context, timeout time.Duration) error {
	return h.waitFor(ctx, "clearing", timeout, false, func(ctx context.Context, id cdpruntime.RemoteObjectID) error {
		return h.callValue(ctx, id, js.FillFunction, nil, "")
	})
}

// ScrollIntoViewIfNeeded scrolls the element into the viewport.
func (h *ElementHandle) ScrollIntoViewIfNeeded(ctx context.Context, timeout time.Duration) error {
	return h.waitFor(ctx, "scrolling", timeout, false, func(ctx context.Context, id cdpruntime.RemoteObjectID) error {
		return h.page.client.DOM.ScrollIntoViewIfNeeded(ctx, id)
	})
}

// IsVisible reports whether the element is rendered with a non-empty box.
// A detached element is not visible.
func (h *ElementHandle) IsVisible(ctx context.Context) (bool, error) {
	id, err := h.resolve(ctx)
	if errors.Is(err, errElementDetached) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer h.release(id)

	var ok bool
	err = h.callValue(ctx, id, js.IsVisibleFunction, &ok)
	return ok, err
}

// TextContent returns the element text.
func (h *ElementHandle) TextContent(ctx context.Context) (string, error) {
	id, err := h.resolve(ctx)
	if err != nil {
		return "", errors.Wrapf(err, "reading text of %q", h.selector)
	}
	defer h.release(id)

	var s string
	err = h.callValue(ctx, id, js.TextContentFunction, &s)
	return s, err
}
