package domains

import (
	"context"

	cdpb "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
)

// Version describes the browser on the other end of the connection.
type Version struct {
	Protocol  string
	Product   string
	Revision  string
	UserAgent string
	JSVersion string
}

// Browser wraps the CDP Browser domain.
type Browser interface {
	Close(ctx context.Context) error
	GetVersion(ctx context.Context) (*Version, error)
}

var _ Browser = &browser{}

type browser struct {
	exec cdp.Executor
}

// NewBrowser returns a new CDP Browser domain wrapper.
func NewBrowser(exec cdp.Executor) Browser {
	return &browser{exec}
}

func (b *browser) Close(ctx context.Context) error {
	return cdpb.Close().Do(cdp.WithExecutor(ctx, b.exec))
}

func (b *browser) GetVersion(ctx context.Context) (*Version, error) {
	proto, product, rev, ua, jsv, err := cdpb.GetVersion().Do(cdp.WithExecutor(ctx, b.exec))
	if err != nil {
		return nil, err
	}
	return &Version{
		Protocol:  proto,
		Product:   product,
		Revision:  rev,
		UserAgent: ua,
		JSVersion: jsv,
	}, nil
}
