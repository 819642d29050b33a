package domains

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpd "github.com/chromedp/cdproto/dom"
	cdpr "github.com/chromedp/cdproto/runtime"
)

// DOM exposes the CDP DOM domain actions used on remote element objects.
type DOM interface {
	Focus(ctx context.Context, objectID cdpr.RemoteObjectID) error
	ScrollIntoViewIfNeeded(ctx context.Context, objectID cdpr.RemoteObjectID) error
	GetContentQuads(ctx context.Context, objectID cdpr.RemoteObjectID) ([]cdpd.Quad, error)
}

var _ DOM = &dom{}

type dom struct {
	exec cdp.Executor
}

// NewDOM returns a new CDP DOM domain wrapper.
func NewDOM(exec cdp.Executor) DOM {
	return &dom{exec}
}

func (d *dom) Focus(ctx context.Context, objectID cdpr.RemoteObjectID) error {
	if err := cdpd.Focus().WithObjectID(objectID).Do(cdp.WithExecutor(ctx, d.exec)); err != nil {
		return fmt.Errorf("focusing element: %w", err)
	}

	return nil
}

func (d *dom) ScrollIntoViewIfNeeded(ctx context.Context, objectID cdpr.RemoteObjectID) error {
	action := cdpd.ScrollIntoViewIfNeeded().WithObjectID(objectID)
	if err := action.Do(cdp.WithExecutor(ctx, d.exec)); err != nil {
		return fmt.Errorf("scrolling element into view: %w", err)
	}

	return nil
}

func (d *dom) GetContentQuads(ctx context.Context, objectID cdpr.RemoteObjectID) ([]cdpd.Quad, error) {
	quads, err := cdpd.GetContentQuads().WithObjectID(objectID).Do(cdp.WithExecutor(ctx, d.exec))
	if err != nil {
		return nil, fmt.Errorf("getting element content quads: %w", err)
	}

	return quads, nil
}
