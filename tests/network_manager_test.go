package tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/pagekit/locator"
)

func TestHTTPBinPages(t *testing.T) {
	t.Parallel()

	tb := newTestBrowser(t)
	c := tb.newController()

	require.NoError(t, c.Navigate(tb.ctx, tb.URL("/html")))
	title, err := c.TextOf(tb.ctx, locator.New("title", `//h1`))
	require.NoError(t, err)
	assert.Equal(t, "Herman Melville - Moby-Dick", title)

	require.NoError(t, c.Navigate(tb.ctx, tb.URL("/user-agent")))
	body, err := c.TextOf(tb.ctx, locator.New("body", `body`))
	require.NoError(t, err)
	assert.Contains(t, body, "HeadlessChrome")
}
