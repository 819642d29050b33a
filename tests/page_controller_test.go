package tests

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/pagekit/api"
	"github.com/grafana/pagekit/locator"
	"github.com/grafana/pagekit/pageobject"
)

func TestClickByRequest(t *testing.T) {
	t.Parallel()

	tb := newTestBrowser(t)
	p := openReqres(tb)

	testCases := []struct {
		request, code, output string
	}{
		{request: "users", code: "200", output: `{"page":2}`},
		{request: "users-single-not-found", code: "404", output: "{}"},
		{request: "post", code: "201", output: `{"id":1}`},
	}
	for _, tc := range testCases {
		require.NoError(t, p.clickByRequest(tb.ctx, tc.request), tc.request)

		code, err := p.statusCode(tb.ctx)
		require.NoError(t, err)
		assert.Equal(t, tc.code, code)

		out, err := p.output(tb.ctx)
		require.NoError(t, err)
		assert.Equal(t, tc.output, out)
	}
}

func TestMissingElementTimeout(t *testing.T) {
	t.Parallel()

	tb := newTestBrowser(t)
	p := openReqres(tb)

	const timeout = 500 * time.Millisecond
	start := time.Now()
	err := p.clickByRequest(tb.ctx, "ghost", pageobject.Timeout(timeout))
	elapsed := time.Since(start)

	var interaction *pageobject.InteractionTimeout
	require.ErrorAs(t, err, &interaction)
	assert.Equal(t, "click", interaction.Action)

	var notFound *pageobject.ElementNotFoundTimeout
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "GET method", notFound.Locator)
	assert.Equal(t, `//li[@data-id="ghost"]//a`, notFound.Selector)
	assert.GreaterOrEqual(t, notFound.Elapsed, timeout)
	assert.Less(t, elapsed, timeout+3*time.Second)
	assert.ErrorIs(t, err, api.ErrTimeout)
}

func TestZeroTimeoutChecksOnce(t *testing.T) {
	t.Parallel()

	tb := newTestBrowser(t)
	p := openReqres(tb)

	start := time.Now()
	_, err := p.Find(tb.ctx, getMethods, pageobject.With("text", "ghost"), pageobject.Timeout(0))
	assert.Less(t, time.Since(start), 2*time.Second)

	var notFound *pageobject.ElementNotFoundTimeout
	assert.ErrorAs(t, err, &notFound)

	h, err := p.Find(tb.ctx, getMethods, pageobject.With("text", "users"), pageobject.Timeout(0))
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestVisibility(t *testing.T) {
	t.Parallel()

	tb := newTestBrowser(t)
	p := openReqres(tb)

	// attached but never shown
	_, err := p.FindVisible(tb.ctx, getMethods, pageobject.With("text", "hidden"),
		pageobject.Timeout(300*time.Millisecond))
	var notVisible *pageobject.ElementNotVisibleTimeout
	require.ErrorAs(t, err, &notVisible)
	var notFound *pageobject.ElementNotFoundTimeout
	assert.False(t, errors.As(err, &notFound))

	// attachment alone is enough for Find
	_, err = p.Find(tb.ctx, getMethods, pageobject.With("text", "hidden"))
	require.NoError(t, err)

	// shown by the page after a delay
	require.NoError(t, p.clickByRequest(tb.ctx, "delayed", pageobject.Timeout(3*time.Second)))
	code, err := p.statusCode(tb.ctx)
	require.NoError(t, err)
	assert.Equal(t, "204", code)
}

func TestTypeAndClear(t *testing.T) {
	t.Parallel()

	tb := newTestBrowser(t)
	p := openReqres(tb)

	require.NoError(t, p.Type(tb.ctx, emailInput, "eve.holt@reqres.in"))
	echo, err := p.TextOf(tb.ctx, emailEcho)
	require.NoError(t, err)
	assert.Equal(t, "eve.holt@reqres.in", echo)

	require.NoError(t, p.Clear(tb.ctx, emailInput))
	echo, err = p.TextOf(tb.ctx, emailEcho)
	require.NoError(t, err)
	assert.Empty(t, echo)
}

func TestFindAll(t *testing.T) {
	t.Parallel()

	tb := newTestBrowser(t)
	p := openReqres(tb)

	items, err := p.FindAll(tb.ctx, endpointItems)
	require.NoError(t, err)
	assert.Len(t, items, 5)

	visible := 0
	for _, it := range items {
		ok, err := it.IsVisible(tb.ctx)
		require.NoError(t, err)
		if ok {
			visible++
		}
	}
	// "delayed" may or may not be shown yet
	assert.GreaterOrEqual(t, visible, 3)
	assert.LessOrEqual(t, visible, 4)

	none, err := p.FindAll(tb.ctx, getMethods, pageobject.With("text", "ghost"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestScrollIntoView(t *testing.T) {
	t.Parallel()

	tb := newTestBrowser(t)
	tb.withPage("/long", `<!doctype html><html><body>
<div style="height:5000px"></div>
<button id="bottom" onclick="this.textContent='clicked'">bottom</button>
</body></html>`)

	c := tb.newController()
	require.NoError(t, c.Navigate(tb.ctx, tb.URL("/long")))

	bottom := locator.New("bottom button", "#bottom")
	require.NoError(t, c.ScrollIntoView(tb.ctx, bottom))
	require.NoError(t, c.Click(tb.ctx, bottom))
	text, err := c.TextOf(tb.ctx, bottom)
	require.NoError(t, err)
	assert.Equal(t, "clicked", text)
}
