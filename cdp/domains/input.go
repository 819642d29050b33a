package domains

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpi "github.com/chromedp/cdproto/input"
)

// Input exposes the CDP Input domain actions.
type Input interface {
	// Click moves the mouse to x, y and presses and releases the left button.
	Click(ctx context.Context, x, y float64) error
}

var _ Input = &input{}

type input struct {
	exec cdp.Executor
}

// NewInput returns a new CDP Input domain wrapper.
func NewInput(exec cdp.Executor) Input {
	return &input{exec}
}

func (i *input) Click(ctx context.Context, x, y float64) error {
	ctx = cdp.WithExecutor(ctx, i.exec)

	if err := cdpi.DispatchMouseEvent(cdpi.MouseMoved, x, y).Do(ctx); err != nil {
		return fmt.Errorf("moving mouse: %w", err)
	}
	for _, typ := range []cdpi.MouseType{cdpi.MousePressed, cdpi.MouseReleased} {
		action := cdpi.DispatchMouseEvent(typ, x, y).
			WithButton(cdpi.Left).
			WithClickCount(1)
		if err := action.Do(ctx); err != nil {
			return fmt.Errorf("dispatching %s: %w", typ, err)
		}
	}

	return nil
}
