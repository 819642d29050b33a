package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/pagekit/api"
	"github.com/grafana/pagekit/locator"
	"github.com/grafana/pagekit/pageobject"
)

var loadState = locator.New("load state", `#state`)

func TestNavigateWaitsForLoad(t *testing.T) {
	t.Parallel()

	tb := newTestBrowser(t)
	tb.withHandler("/slow.png", func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Header().Set("Content-Type", "image/png")
	})
	tb.withPage("/slow", `<!doctype html><html><body>
<div id="state">loading</div>
<img src="/slow.png">
<script>window.addEventListener('load', function() {
  document.getElementById('state').textContent = 'loaded';
});</script>
</body></html>`)

	c := tb.newController()
	require.NoError(t, c.Navigate(tb.ctx, tb.URL("/slow")))

	got, err := c.TextOf(tb.ctx, loadState, pageobject.Timeout(0))
	require.NoError(t, err)
	assert.Equal(t, "loaded", got)
}

func TestNavigateTimeout(t *testing.T) {
	t.Parallel()

	tb := newTestBrowser(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	tb.withHandler("/hang", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	c := tb.newController()
	start := time.Now()
	err := c.Navigate(tb.ctx, tb.URL("/hang"), pageobject.Timeout(500*time.Millisecond))
	assert.ErrorIs(t, err, api.ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestGetOpensBaseURL(t *testing.T) {
	t.Parallel()

	tb := newTestBrowser(t)
	c := tb.newController()

	require.NoError(t, c.Get(tb.ctx))
	assert.Equal(t, tb.URL("/"), c.Page().URL())
}
