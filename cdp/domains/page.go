package domains

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpp "github.com/chromedp/cdproto/page"
)

// Page exposes the CDP Page domain actions.
type Page interface {
	Enable(context.Context) error
	Navigate(ctx context.Context, url, referrer, frameID string) (loaderID string, err error)
	CaptureScreenshot(ctx context.Context, clip *cdpp.Viewport) ([]byte, error)
}

var _ Page = &page{}

type page struct {
	exec cdp.Executor
}

// NewPage returns a new CDP Page domain wrapper.
func NewPage(exec cdp.Executor) Page {
	return &page{exec}
}

func (p *page) Enable(ctx context.Context) error {
	action := cdpp.Enable()
	if err := action.Do(cdp.WithExecutor(ctx, p.exec)); err != nil {
		return fmt.Errorf("enabling page CDP domain: %w", err)
	}

	return nil
}

func (p *page) Navigate(ctx context.Context, url, referrer, frameID string) (string, error) {
	action := cdpp.Navigate(url)
	if referrer != "" {
		action = action.WithReferrer(referrer)
	}
	if frameID != "" {
		action = action.WithFrameID(cdp.FrameID(frameID))
	}

	_, loaderID, errorText, err := action.Do(cdp.WithExecutor(ctx, p.exec))
	if err != nil {
		return "", fmt.Errorf("navigating to %q: %w", url, err)
	}
	// Network level failures come back as a successful reply with an
	// error text.
	if errorText != "" {
		return "", fmt.Errorf("navigating to %q: %w", url, errors.New(errorText))
	}

	return loaderID.String(), nil
}

// CaptureScreenshot captures a PNG, beyond the viewport when clip is larger.
func (p *page) CaptureScreenshot(ctx context.Context, clip *cdpp.Viewport) ([]byte, error) {
	action := cdpp.CaptureScreenshot().
		WithFormat(cdpp.CaptureScreenshotFormatPng).
		WithCaptureBeyondViewport(true)
	if clip != nil && clip.Width > 0 && clip.Height > 0 {
		action = action.WithClip(clip)
	}

	buf, err := action.Do(cdp.WithExecutor(ctx, p.exec))
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}

	return buf, nil
}
